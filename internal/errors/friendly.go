package errors

import (
	"fmt"
	"strings"
)

// UserFriendlyError provides actionable error messages for end users
type UserFriendlyError struct {
	Message    string // User-facing message explaining what went wrong
	Suggestion string // Actionable steps to fix the issue
	Details    error  // Original error for debugging/logs
}

func (e *UserFriendlyError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Suggestion != "" {
		sb.WriteString("\n\n")
		sb.WriteString("How to fix:\n")
		sb.WriteString(e.Suggestion)
	}

	return sb.String()
}

func (e *UserFriendlyError) Unwrap() error {
	return e.Details
}

// NewFriendlyError creates a user-friendly error
func NewFriendlyError(message, suggestion string) *UserFriendlyError {
	return &UserFriendlyError{
		Message:    message,
		Suggestion: suggestion,
	}
}

// WithDetails adds the underlying error details
func (e *UserFriendlyError) WithDetails(err error) *UserFriendlyError {
	e.Details = err
	return e
}

// NetworkError returns a network-related error for a failed participant
// service call
func NetworkError(err error) *UserFriendlyError {
	msg := "Cannot reach the participant service"
	suggestion := "Check that the participant app is running and server.base_url points at it"

	if err != nil {
		errStr := err.Error()

		if strings.Contains(errStr, "connection refused") {
			msg = "Participant service refused the connection"
			suggestion = "Start the participant app, then verify server.base_url in your config"
		}

		if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
			msg = "Participant service timed out"
			suggestion = "The service may be busy computing. Increase server.timeout_seconds or try again later"
		}

		if strings.Contains(errStr, "no such host") || strings.Contains(errStr, "name resolution") {
			msg = "Cannot resolve the participant service hostname"
			suggestion = "Check server.base_url for typos and verify your network connection"
		}
	}

	return &UserFriendlyError{
		Message:    msg,
		Suggestion: suggestion,
		Details:    err,
	}
}

// ConfigError returns configuration-related errors
func ConfigError(field, issue string) *UserFriendlyError {
	return &UserFriendlyError{
		Message:    fmt.Sprintf("Configuration error in field '%s': %s", field, issue),
		Suggestion: "Run 'fedrec config validate' to check your configuration\nOr run 'fedrec config init' to write a fresh default file",
	}
}

// DatabaseError returns preference-store errors with recovery suggestions
func DatabaseError(err error) *UserFriendlyError {
	msg := "Preference store error"
	suggestion := "Check that general.data_root is writable"

	if err != nil {
		errStr := err.Error()

		if strings.Contains(errStr, "locked") {
			msg = "Preference store is locked by another process"
			suggestion = "Close other fedrec instances and try again"
		}

		if strings.Contains(errStr, "corrupt") || strings.Contains(errStr, "malformed") {
			msg = "Preference store is corrupted"
			suggestion = "Back up and remove prefs.db under general.data_root; preferences will be recreated with defaults"
		}
	}

	return &UserFriendlyError{
		Message:    msg,
		Suggestion: suggestion,
		Details:    err,
	}
}

// UploadError returns viewing-history upload validation errors
func UploadError(path, issue string) *UserFriendlyError {
	return &UserFriendlyError{
		Message:    fmt.Sprintf("Cannot upload %s: %s", path, issue),
		Suggestion: "Export your viewing history from Netflix (Account > Profile > Viewing activity > Download all) and upload the unmodified CSV",
	}
}
