package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/SlokomManel/federated-recommendations-participants/internal/api"
	"github.com/SlokomManel/federated-recommendations-participants/internal/config"
	friendlyerrors "github.com/SlokomManel/federated-recommendations-participants/internal/errors"
	"github.com/SlokomManel/federated-recommendations-participants/internal/metrics"
	"github.com/SlokomManel/federated-recommendations-participants/internal/recs"
	"github.com/SlokomManel/federated-recommendations-participants/internal/state"
)

// Collaborator is the remote computation service surface the machine drives.
// *api.Client satisfies it; tests use a scripted fake.
type Collaborator interface {
	Status(ctx context.Context) (*api.StatusResponse, error)
	TriggerFineTune(ctx context.Context, req api.FineTuneRequest) (*api.TriggerResponse, error)
	TriggerRecompute(ctx context.Context) (*api.TriggerResponse, error)
	Recommendations(ctx context.Context) (*api.RecommendationsResponse, error)
	SharedModelInfo(ctx context.Context) (*api.SharedModelInfo, error)
	RecordChoice(ctx context.Context, req api.ChoiceRequest) error
	RecordWatchlist(ctx context.Context, req api.WatchlistRequest) error
	LogSettings(ctx context.Context, s api.SettingsLog) error
	UploadHistory(ctx context.Context, filename string, r io.Reader) (*api.UploadResponse, error)
}

// Sink receives phase transitions and toasts. Implementations must be safe
// to call from the poll goroutine.
type Sink interface {
	PhaseChanged(Snapshot)
	Toast(msg string)
}

// Snapshot is the machine's externally visible state. The rendering layer
// reads it through accessors only.
type Snapshot struct {
	Phase     Phase
	Message   string
	Friendly  *friendlyerrors.UserFriendlyError
	Raw       []recs.Item
	Reranked  []recs.Item
	UserEmail string
}

// Machine owns the workflow phase and decides the next collaborator call.
type Machine struct {
	client   Collaborator
	store    *state.DB
	sched    *Scheduler
	det      *Detector
	sink     Sink
	log      zerolog.Logger
	met      *metrics.Manager
	profile  string
	epsilon  float64
	interval time.Duration

	mu       sync.Mutex
	phase    Phase
	message  string
	friendly *friendlyerrors.UserFriendlyError
	raw      []recs.Item
	reranked []recs.Item
	email    string
}

// New wires a machine from config. met may be nil.
func New(client Collaborator, store *state.DB, sink Sink, cfg *config.Config, log zerolog.Logger, met *metrics.Manager) *Machine {
	return &Machine{
		client:   client,
		store:    store,
		sched:    NewScheduler(log),
		det:      NewDetector(client, store, log),
		sink:     sink,
		log:      log,
		met:      met,
		profile:  cfg.Workflow.Profile,
		epsilon:  cfg.Workflow.Epsilon,
		interval: time.Duration(cfg.Workflow.PollIntervalSeconds) * time.Second,
	}
}

// Phase returns the active phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Snapshot returns a copy of the externally visible state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		Phase:     m.phase,
		Message:   m.message,
		Friendly:  m.friendly,
		Raw:       m.raw,
		Reranked:  m.reranked,
		UserEmail: m.email,
	}
}

// Stop cancels any active poll session.
func (m *Machine) Stop() { m.sched.Stop() }

// enterPhase applies a transition. Entering a terminal or redirect phase
// stops the active poll session as its first side effect, before the sink
// renders the new surface.
func (m *Machine) enterPhase(p Phase, msg string, friendly *friendlyerrors.UserFriendlyError) {
	if p.terminal() {
		m.sched.Stop()
	}
	m.mu.Lock()
	from := m.phase
	m.phase = p
	m.message = msg
	m.friendly = friendly
	snap := m.snapshotLocked()
	m.mu.Unlock()
	if from != p {
		m.log.Info().Str("from", from.String()).Str("to", p.String()).Msg("phase transition")
	}
	if m.sink != nil {
		m.sink.PhaseChanged(snap)
	}
}

func (m *Machine) toast(msg string) {
	if m.sink != nil {
		m.sink.Toast(msg)
	}
}

// Bootstrap runs the initial status probe and the idle decision tree.
func (m *Machine) Bootstrap(ctx context.Context) {
	m.enterPhase(PhaseIdle, "Checking status...", nil)
	s, err := m.client.Status(ctx)
	if err != nil {
		m.enterPhase(PhaseError, "Cannot reach the participant service", friendlyerrors.NetworkError(err))
		return
	}
	switch {
	case !s.HasViewingHistory:
		m.enterPhase(PhaseNoViewingHistory, "No viewing history found. Upload your Netflix export to get started.", nil)
	case s.Status == api.StatusRunning:
		m.enterPhase(PhaseRunning, s.Message, nil)
		m.startFineTunePoll()
	case s.Status == api.StatusFineTuning:
		m.enterPhase(PhaseFineTuning, s.Message, nil)
		m.startFineTunePoll()
	case s.Status == api.StatusComputing:
		m.enterPhase(PhaseComputing, s.Message, nil)
		m.startComputePoll()
	case s.Status == api.StatusError:
		m.handleRemoteError(s.ErrorType, s.Message)
	case s.Status == api.StatusReady && s.HasRecommendations:
		changed, err := m.det.Check(ctx)
		if err != nil {
			// Detector failures are non-fatal; show what we have.
			m.log.Warn().Err(err).Msg("shared model check failed")
		}
		if changed {
			m.toast("Shared model updated, retraining your personal model")
			m.TriggerFineTune(ctx)
			return
		}
		m.fetchAndShow(ctx)
	default:
		// No results yet; kick off the full workflow.
		m.TriggerFineTune(ctx)
	}
}

// clickHistoryPayload maps every stored click entry to the wire shape, in
// stored order.
func (m *Machine) clickHistoryPayload() []api.ClickRecord {
	entries, err := m.store.ClickHistory()
	if err != nil {
		m.log.Warn().Err(err).Msg("read click history")
		return nil
	}
	out := make([]api.ClickRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, api.ClickRecord{
			Name:      e.Name,
			ID:        e.ID,
			ClickedAt: e.ClickedAt.Format(time.RFC3339),
		})
	}
	return out
}

// TriggerFineTune starts the remote fine-tuning workflow, passing the full
// locally stored click history as extra training signal.
func (m *Machine) TriggerFineTune(ctx context.Context) {
	m.enterPhase(PhaseFineTuning, "Starting fine-tuning...", nil)
	req := api.FineTuneRequest{
		Profile:      m.profile,
		Epsilon:      m.epsilon,
		ClickHistory: m.clickHistoryPayload(),
	}
	resp, err := m.client.TriggerFineTune(ctx, req)
	if err != nil {
		m.enterPhase(PhaseError, "Could not start fine-tuning", friendlyerrors.NetworkError(err))
		return
	}
	m.met.IncFineTuneTriggers()
	switch resp.Status {
	case api.StatusNoHistory:
		// Recoverable signal, not a failure.
		m.enterPhase(PhaseNoViewingHistory, resp.Message, nil)
	case api.StatusAlreadyRun:
		m.enterPhase(PhaseFineTuning, "Fine-tuning already in progress", nil)
		m.startFineTunePoll()
	default:
		m.enterPhase(PhaseFineTuning, "Fine-tuning your personal model...", nil)
		m.startFineTunePoll()
	}
}

// TriggerRecompute starts remote scoring without retraining.
func (m *Machine) TriggerRecompute(ctx context.Context) {
	m.enterPhase(PhaseComputing, "Recomputing recommendations...", nil)
	resp, err := m.client.TriggerRecompute(ctx)
	if err != nil {
		m.enterPhase(PhaseError, "Could not start recomputation", friendlyerrors.NetworkError(err))
		return
	}
	m.met.IncRecomputeTriggers()
	if resp.Status == api.StatusAlreadyComput {
		m.toast("Computation already in progress")
	}
	m.startComputePoll()
}

// Refresh is the ready-phase user action: full retrains, otherwise only
// rescores with the existing model.
func (m *Machine) Refresh(ctx context.Context, full bool) {
	if full {
		m.TriggerFineTune(ctx)
		return
	}
	m.TriggerRecompute(ctx)
}

// Upload validates and sends a viewing-history CSV, then kicks off
// fine-tuning on success.
func (m *Machine) Upload(ctx context.Context, path string) {
	m.enterPhase(PhaseUploading, fmt.Sprintf("Uploading %s...", filepath.Base(path)), nil)
	f, err := os.Open(path)
	if err != nil {
		m.enterPhase(PhaseNoViewingHistory, "", nil)
		m.toast(fmt.Sprintf("Cannot open %s: %v", path, err))
		return
	}
	defer func() { _ = f.Close() }()
	resp, err := m.client.UploadHistory(ctx, filepath.Base(path), f)
	if err != nil {
		m.enterPhase(PhaseNoViewingHistory, "", nil)
		m.toast(err.Error())
		return
	}
	m.toast(fmt.Sprintf("Uploaded %d viewing history entries", resp.RowCount))
	m.TriggerFineTune(ctx)
}

func (m *Machine) startFineTunePoll() {
	m.sched.Start(m.interval, m.pollFineTune)
}

func (m *Machine) startComputePoll() {
	m.sched.Start(m.interval, m.pollCompute)
}

// pollFineTune is the scheduled probe while the service trains. Transient
// probe failures are logged and retried on the next tick.
func (m *Machine) pollFineTune(ctx context.Context) {
	s, err := m.probe(ctx)
	if err != nil || ctx.Err() != nil {
		return
	}
	switch s.Status {
	case api.StatusReady:
		// Training done; scoring still has to run.
		m.TriggerRecompute(ctx)
	case api.StatusComputing:
		// The service moved to scoring on its own.
		m.enterPhase(PhaseComputing, s.Message, nil)
		m.startComputePoll()
	case api.StatusNoHistory:
		m.enterPhase(PhaseNoViewingHistory, s.Message, nil)
	case api.StatusAggrWait:
		m.enterPhase(PhaseAggregatorWait, s.Message, nil)
	case api.StatusError:
		m.handleRemoteError(s.ErrorType, s.Message)
	case api.StatusRunning, api.StatusFineTuning:
		m.setMessage(s.Message)
	}
}

// pollCompute is the scheduled probe while the service scores.
func (m *Machine) pollCompute(ctx context.Context) {
	s, err := m.probe(ctx)
	if err != nil || ctx.Err() != nil {
		return
	}
	switch {
	case s.Status == api.StatusReady && s.HasRecommendations:
		m.fetchAndShow(ctx)
	case s.Status == api.StatusError:
		m.handleRemoteError(s.ErrorType, s.Message)
	case s.Status == api.StatusComputing:
		m.setMessage(s.Message)
	}
}

func (m *Machine) probe(ctx context.Context) (*api.StatusResponse, error) {
	start := time.Now()
	s, err := m.client.Status(ctx)
	m.met.IncPolls()
	m.met.ObservePollSeconds(time.Since(start).Seconds())
	if err != nil {
		m.log.Debug().Err(err).Msg("status probe failed, retrying next tick")
		return nil, err
	}
	return s, nil
}

func (m *Machine) setMessage(msg string) {
	if msg == "" {
		return
	}
	m.mu.Lock()
	changed := m.message != msg
	m.message = msg
	snap := m.snapshotLocked()
	m.mu.Unlock()
	if changed && m.sink != nil {
		m.sink.PhaseChanged(snap)
	}
}

// fetchAndShow loads both ranked lists, stamps provenance ranks, and enters
// the ready phase.
func (m *Machine) fetchAndShow(ctx context.Context) {
	resp, err := m.client.Recommendations(ctx)
	if errors.Is(err, api.ErrPending) {
		// Results not written yet; the next poll tick will retry.
		return
	}
	if err != nil {
		m.enterPhase(PhaseError, "Could not fetch recommendations", friendlyerrors.NetworkError(err))
		return
	}
	m.mu.Lock()
	m.raw = recs.FromAPI(resp.Raw)
	m.reranked = recs.FromAPI(resp.Reranked)
	m.email = resp.UserEmail
	m.mu.Unlock()
	m.enterPhase(PhaseReady, "Recommendations ready", nil)
}

func (m *Machine) handleRemoteError(errorType, message string) {
	c := classifyRemoteError(errorType, message)
	if c.RerouteToUpload {
		m.enterPhase(PhaseNoViewingHistory, "", nil)
		m.toast(c.Message)
		return
	}
	m.enterPhase(PhaseError, c.Message, c.Err)
}

// telemetryTimeout bounds fire-and-forget posts so they cannot pile up.
const telemetryTimeout = 10 * time.Second

// RecordChoice stores the click locally and posts telemetry in the
// background; failures are logged, never surfaced.
func (m *Machine) RecordChoice(item recs.Item, useReranked bool, page int, visible []int) {
	if err := m.store.RecordClick(item.ID, item.Name); err != nil {
		m.log.Warn().Err(err).Msg("record click locally")
	}
	column := 1
	if useReranked {
		column = 2
	}
	req := api.ChoiceRequest{
		ID:           item.ID,
		Column:       column,
		Rank:         item.Rank,
		Page:         page,
		VisibleItems: visible,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryTimeout)
		defer cancel()
		if err := m.client.RecordChoice(ctx, req); err != nil {
			m.log.Warn().Err(err).Int("id", req.ID).Msg("choice telemetry failed")
			return
		}
		m.met.IncChoicesRecorded()
	}()
}

// RecordWatchlist stores the decision locally and posts it in the
// background.
func (m *Machine) RecordWatchlist(item recs.Item, action string, useReranked bool, page int, visible []int) {
	if err := m.store.SetClickStatus(item.ID, action); err != nil {
		m.log.Warn().Err(err).Msg("record watchlist status locally")
	}
	req := api.WatchlistRequest{
		ID:           item.ID,
		Title:        item.Name,
		Action:       action,
		UseReranked:  useReranked,
		Rank:         item.Rank,
		Page:         page,
		VisibleItems: visible,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryTimeout)
		defer cancel()
		if err := m.client.RecordWatchlist(ctx, req); err != nil {
			m.log.Warn().Err(err).Int("id", req.ID).Msg("watchlist telemetry failed")
			return
		}
		m.met.IncChoicesRecorded()
	}()
}

// NotifySettingsChanged forwards the full settings record to the service
// after a toggle.
func (m *Machine) NotifySettingsChanged(s state.Settings) {
	rec := api.SettingsLog{
		ShowMoreDetails:     s.ShowMoreDetails,
		UseReranked:         s.UseReranked,
		ShowWhyRecommended:  s.ShowWhyRecommended,
		EnableWatchlist:     s.EnableWatchlist,
		EnableBlockItems:    s.EnableBlockItems,
		ShowActivityCharts:  s.ShowActivityCharts,
		ShowWatchlistStatus: s.ShowWatchlistStatus,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryTimeout)
		defer cancel()
		if err := m.client.LogSettings(ctx, rec); err != nil {
			m.log.Warn().Err(err).Msg("settings telemetry failed")
		}
	}()
}
