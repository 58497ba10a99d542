package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/SlokomManel/federated-recommendations-participants/internal/config"
)

// Manager accumulates workflow counters and writes them in Prometheus
// textfile format. A nil Manager is valid and does nothing.
type Manager struct {
	path string
	mu   sync.Mutex
	// counters
	pollsTotal        int64
	fineTuneTriggers  int64
	recomputeTriggers int64
	choicesRecorded   int64
	lastPollSec       float64
}

func New(cfg *config.Config) *Manager {
	if cfg == nil || !cfg.Metrics.PrometheusTextfile.Enabled || cfg.Metrics.PrometheusTextfile.Path == "" {
		return nil
	}
	p := cfg.Metrics.PrometheusTextfile.Path
	_ = os.MkdirAll(filepath.Dir(p), 0o755)
	return &Manager{path: p}
}

func (m *Manager) IncPolls() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.pollsTotal++
	m.mu.Unlock()
}

func (m *Manager) IncFineTuneTriggers() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.fineTuneTriggers++
	m.mu.Unlock()
}

func (m *Manager) IncRecomputeTriggers() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.recomputeTriggers++
	m.mu.Unlock()
}

func (m *Manager) IncChoicesRecorded() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.choicesRecorded++
	m.mu.Unlock()
}

func (m *Manager) ObservePollSeconds(sec float64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.lastPollSec = sec
	m.mu.Unlock()
}

func (m *Manager) Write() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := os.CreateTemp(filepath.Dir(m.path), ".metrics.tmp.*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	// Prometheus textfile format with a fedrec_ prefix
	fmt.Fprintf(f, "# HELP fedrec_polls_total Total status probes issued.\n")
	fmt.Fprintf(f, "# TYPE fedrec_polls_total counter\n")
	fmt.Fprintf(f, "fedrec_polls_total %d\n", m.pollsTotal)

	fmt.Fprintf(f, "# HELP fedrec_fine_tune_triggers_total Total fine-tune triggers sent.\n")
	fmt.Fprintf(f, "# TYPE fedrec_fine_tune_triggers_total counter\n")
	fmt.Fprintf(f, "fedrec_fine_tune_triggers_total %d\n", m.fineTuneTriggers)

	fmt.Fprintf(f, "# HELP fedrec_recompute_triggers_total Total recompute triggers sent.\n")
	fmt.Fprintf(f, "# TYPE fedrec_recompute_triggers_total counter\n")
	fmt.Fprintf(f, "fedrec_recompute_triggers_total %d\n", m.recomputeTriggers)

	fmt.Fprintf(f, "# HELP fedrec_choices_recorded_total Total choice/watchlist events posted.\n")
	fmt.Fprintf(f, "# TYPE fedrec_choices_recorded_total counter\n")
	fmt.Fprintf(f, "fedrec_choices_recorded_total %d\n", m.choicesRecorded)

	fmt.Fprintf(f, "# HELP fedrec_last_poll_seconds Duration of the last status probe in seconds.\n")
	fmt.Fprintf(f, "# TYPE fedrec_last_poll_seconds gauge\n")
	fmt.Fprintf(f, "fedrec_last_poll_seconds %.6f\n", m.lastPollSec)

	fmt.Fprintf(f, "# HELP fedrec_metrics_timestamp_seconds UNIX timestamp when this file was written.\n")
	fmt.Fprintf(f, "# TYPE fedrec_metrics_timestamp_seconds gauge\n")
	fmt.Fprintf(f, "fedrec_metrics_timestamp_seconds %d\n", time.Now().Unix())

	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), m.path)
}
