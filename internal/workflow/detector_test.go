package workflow

import (
	"context"
	"testing"

	"github.com/SlokomManel/federated-recommendations-participants/internal/api"
	"github.com/SlokomManel/federated-recommendations-participants/internal/logging"
)

type fakeMarkerStore struct {
	marker string
	writes int
}

func (s *fakeMarkerStore) SharedModelMarker() (string, error) { return s.marker, nil }
func (s *fakeMarkerStore) SetSharedModelMarker(m string) error {
	s.marker = m
	s.writes++
	return nil
}

type fakeInfo struct {
	info api.SharedModelInfo
}

func (f *fakeInfo) SharedModelInfo(ctx context.Context) (*api.SharedModelInfo, error) {
	cp := f.info
	return &cp, nil
}

func TestDetectorNoModelMeansNoChange(t *testing.T) {
	store := &fakeMarkerStore{}
	d := NewDetector(&fakeInfo{info: api.SharedModelInfo{Exists: false}}, store, logging.Nop())
	changed, err := d.Check(context.Background())
	if err != nil || changed {
		t.Fatalf("expected (false, nil), got (%v, %v)", changed, err)
	}
	if store.writes != 0 {
		t.Fatalf("marker must not be written when the model does not exist")
	}
}

func TestDetectorAtMostOncePerChange(t *testing.T) {
	remote := &fakeInfo{info: api.SharedModelInfo{Exists: true, LastModified: "t1"}}
	store := &fakeMarkerStore{}
	d := NewDetector(remote, store, logging.Nop())
	ctx := context.Background()

	// First observation establishes the baseline, never triggers.
	changed, err := d.Check(ctx)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if changed {
		t.Fatalf("baseline observation must not report change")
	}
	if store.marker != "t1" {
		t.Fatalf("baseline marker not stored, got %q", store.marker)
	}

	// Remote advances: exactly one change report.
	remote.info.LastModified = "t2"
	changed, err = d.Check(ctx)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !changed {
		t.Fatalf("expected change report for new marker")
	}
	if store.marker != "t2" {
		t.Fatalf("marker must be stored before the change is reported")
	}

	// A retry (e.g. after a failed trigger) must not re-detect it.
	changed, err = d.Check(ctx)
	if err != nil || changed {
		t.Fatalf("expected no change on repeat, got (%v, %v)", changed, err)
	}
}
