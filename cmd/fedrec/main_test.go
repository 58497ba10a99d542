package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SlokomManel/federated-recommendations-participants/internal/testutil"
	"github.com/SlokomManel/federated-recommendations-participants/internal/workflow"
)

func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	yaml := fmt.Sprintf(`version: 1
general:
  data_root: %s
server:
  base_url: %s
workflow:
  poll_interval_seconds: 1
`, filepath.Join(dir, "data"), baseURL)
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunRequiresCommand(t *testing.T) {
	if err := run(context.Background(), nil); err == nil {
		t.Fatalf("expected error with no command")
	}
	if err := run(context.Background(), []string{"frobnicate"}); err == nil ||
		!strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
	if err := run(context.Background(), []string{"help"}); err != nil {
		t.Fatalf("help must succeed: %v", err)
	}
}

func TestConfigInitValidatePrint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	ctx := context.Background()

	if err := run(ctx, []string{"config", "init", "--config", path}); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if err := run(ctx, []string{"config", "init", "--config", path}); err == nil {
		t.Fatalf("second init must refuse to overwrite")
	}
	if err := run(ctx, []string{"config", "validate", "--config", path}); err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if err := run(ctx, []string{"config", "print", "--config", path}); err != nil {
		t.Fatalf("config print: %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	ms := testutil.NewMockHTTPServer()
	defer ms.Close()
	ms.AddJSONResponse("/api/status", 200, `{"status": "ready", "has_viewing_history": true, "has_recommendations": true}`)
	ms.AddJSONResponse("/api/health", 200, `{"status": "ok"}`)
	ms.AddJSONResponse("/api/fl/global-v-info", 200, `{"exists": true, "last_modified": "t1"}`)
	ms.AddJSONResponse("/api/user", 200, `{"email": "user@example.org"}`)

	path := writeTestConfig(t, ms.URL)
	if err := run(context.Background(), []string{"status", "--config", path}); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := run(context.Background(), []string{"status", "--config", path, "--json"}); err != nil {
		t.Fatalf("status --json: %v", err)
	}
}

func TestRecsCommand(t *testing.T) {
	ms := testutil.NewMockHTTPServer()
	defer ms.Close()
	ms.AddJSONResponse("/api/recommendations", 200, `{
		"raw_recommendations": [
			{"id": 1, "name": "Dark", "genres": "Sci-Fi"},
			{"id": 2, "name": "Ozark", "genres": "Crime"}
		],
		"reranked_recommendations": [],
		"user_email": "user@example.org"
	}`)

	path := writeTestConfig(t, ms.URL)
	ctx := context.Background()
	if err := run(ctx, []string{"recs", "--config", path}); err != nil {
		t.Fatalf("recs: %v", err)
	}
	if err := run(ctx, []string{"recs", "--config", path, "--json"}); err != nil {
		t.Fatalf("recs --json: %v", err)
	}
}

func TestRecsCommandPending(t *testing.T) {
	ms := testutil.NewMockHTTPServer()
	defer ms.Close()
	ms.AddJSONResponse("/api/recommendations", 404, `{"detail": "nothing yet"}`)

	path := writeTestConfig(t, ms.URL)
	err := run(context.Background(), []string{"recs", "--config", path})
	if err == nil || !strings.Contains(err.Error(), "no recommendations yet") {
		t.Fatalf("expected pending hint, got %v", err)
	}
}

func TestMovieCommand(t *testing.T) {
	ms := testutil.NewMockHTTPServer()
	defer ms.Close()
	ms.AddJSONResponse("/api/movie/7", 200, `{"status": "ok", "item": {"id": 7, "name": "Dark", "genres": "Sci-Fi"}}`)

	path := writeTestConfig(t, ms.URL)
	ctx := context.Background()
	if err := run(ctx, []string{"movie", "--config", path, "7"}); err != nil {
		t.Fatalf("movie: %v", err)
	}
	if err := run(ctx, []string{"movie", "--config", path, "99"}); err == nil {
		t.Fatalf("unknown id must fail")
	}
	if err := run(ctx, []string{"movie", "--config", path, "nope"}); err == nil {
		t.Fatalf("non-numeric id must fail")
	}
}

func TestFeedbackCommandValidatesRating(t *testing.T) {
	ms := testutil.NewMockHTTPServer()
	defer ms.Close()

	path := writeTestConfig(t, ms.URL)
	err := run(context.Background(), []string{"feedback", "--config", path, "--rating", "9"})
	if err == nil {
		t.Fatalf("out-of-range rating must fail")
	}
	if len(ms.Requests) != 0 {
		t.Fatalf("invalid rating must not reach the service")
	}
}

func TestOptOutRequiresConfirmation(t *testing.T) {
	ms := testutil.NewMockHTTPServer()
	defer ms.Close()

	path := writeTestConfig(t, ms.URL)
	err := run(context.Background(), []string{"optout", "--config", path})
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("expected confirmation prompt, got %v", err)
	}
	if len(ms.Requests) != 0 {
		t.Fatalf("unconfirmed opt-out must not reach the service")
	}
}

func TestCLISinkRegistersFirstPhase(t *testing.T) {
	s := newCLISink()
	s.PhaseChanged(workflow.Snapshot{Phase: workflow.PhaseIdle})
	if !s.seen || s.last != workflow.PhaseIdle {
		t.Fatalf("first event must register, seen=%v last=%v", s.seen, s.last)
	}

	s.PhaseChanged(workflow.Snapshot{Phase: workflow.PhaseReady})
	select {
	case snap := <-s.done:
		if snap.Phase != workflow.PhaseReady {
			t.Fatalf("expected ready snapshot, got %v", snap.Phase)
		}
	default:
		t.Fatalf("resting phase must signal completion")
	}
}
