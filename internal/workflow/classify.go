package workflow

import (
	"strings"

	friendlyerrors "github.com/SlokomManel/federated-recommendations-participants/internal/errors"
)

// errorMessages maps the service's error_type codes to human-readable
// messages shown on the error surface. Unknown codes fall back to the raw
// service message.
var errorMessages = map[string]string{
	"syftbox_not_running":        "The participant service cannot reach the aggregator. Make sure SyftBox is running.",
	"aggregator_not_initialized": "The aggregator has not initialized the shared model files yet. Wait a bit and retry.",
	"aggregator_not_ready":       "The aggregator has not processed any data yet. Wait for the aggregator to run.",
	"vocabulary_error":           "The model vocabulary is unavailable. The aggregator setup may be incomplete.",
}

var errorSuggestions = map[string]string{
	"syftbox_not_running":        "Start SyftBox, then press R to retry",
	"aggregator_not_initialized": "Press R to retry once the aggregator has run",
	"aggregator_not_ready":       "Press R to retry once the aggregator has run",
	"vocabulary_error":           "Press R to retry; contact the aggregator operator if this persists",
}

// classification is the routing decision for a remote error.
type classification struct {
	// RerouteToUpload sends the user to the upload surface with a toast
	// instead of the generic error surface.
	RerouteToUpload bool
	Message         string
	Err             *friendlyerrors.UserFriendlyError
}

// classifyRemoteError implements the fixed error routing: "no title
// matches" and viewing-history complaints mean the user needs to (re)upload
// data; everything else maps through the message table.
func classifyRemoteError(errorType, message string) classification {
	if errorType == "no_title_matches" || strings.Contains(strings.ToLower(message), "viewing history") {
		return classification{
			RerouteToUpload: true,
			Message:         "None of your viewing history matched the shared catalog. Try uploading a fresh export.",
		}
	}
	if msg, ok := errorMessages[errorType]; ok {
		return classification{
			Message: msg,
			Err:     friendlyerrors.NewFriendlyError(msg, errorSuggestions[errorType]),
		}
	}
	if message == "" {
		message = "The participant service reported an unknown error."
	}
	return classification{
		Message: message,
		Err:     friendlyerrors.NewFriendlyError(message, "Press R to retry"),
	}
}
