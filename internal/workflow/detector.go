package workflow

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/SlokomManel/federated-recommendations-participants/internal/api"
)

// markerStore is the slice of the preference store the detector needs. The
// detector is the only writer of the marker key.
type markerStore interface {
	SharedModelMarker() (string, error)
	SetSharedModelMarker(string) error
}

type modelInfoFetcher interface {
	SharedModelInfo(ctx context.Context) (*api.SharedModelInfo, error)
}

// Detector decides, once per ready-phase status check, whether the shared
// model has advanced since last observed, with at-most-one change report
// per observed change.
type Detector struct {
	client modelInfoFetcher
	store  markerStore
	log    zerolog.Logger
}

func NewDetector(client modelInfoFetcher, store markerStore, log zerolog.Logger) *Detector {
	return &Detector{client: client, store: store, log: log}
}

// Check fetches the remote marker and compares it to the stored one.
// The first observation only establishes the baseline and never reports a
// change. On a differing marker the new value is written to the store
// BEFORE reporting the change, so a retry after a failed trigger cannot
// re-detect the same change and issue a duplicate fine-tune.
func (d *Detector) Check(ctx context.Context) (bool, error) {
	info, err := d.client.SharedModelInfo(ctx)
	if err != nil {
		return false, fmt.Errorf("shared model info: %w", err)
	}
	if !info.Exists {
		return false, nil
	}
	local, err := d.store.SharedModelMarker()
	if err != nil {
		return false, fmt.Errorf("read marker: %w", err)
	}
	if local == "" {
		if err := d.store.SetSharedModelMarker(info.LastModified); err != nil {
			return false, fmt.Errorf("store baseline marker: %w", err)
		}
		d.log.Debug().Str("marker", info.LastModified).Msg("shared model baseline recorded")
		return false, nil
	}
	if local == info.LastModified {
		return false, nil
	}
	if err := d.store.SetSharedModelMarker(info.LastModified); err != nil {
		return false, fmt.Errorf("store marker: %w", err)
	}
	d.log.Info().Str("old", local).Str("new", info.LastModified).Msg("shared model changed")
	return true, nil
}
