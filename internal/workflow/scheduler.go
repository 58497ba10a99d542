package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Scheduler runs at most one fixed-cadence poll session at a time. Starting
// a new session unconditionally cancels the previous one before the first
// tick, so two loops can never race on phase transitions.
type Scheduler struct {
	log zerolog.Logger

	mu     sync.Mutex
	active *Session
}

// Session is the cancellable handle of one polling loop.
type Session struct {
	ID     string
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// Cancel stops the session. It is synchronous (the context is cancelled
// before returning, so no further tick fires) and idempotent: cancelling an
// already-cancelled session is a no-op. It must not wait for the loop
// goroutine; probes cancel their own session on terminal transitions.
func (s *Session) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// Done reports when the session loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{log: log}
}

// Start cancels any active session and begins a new one that invokes probe
// every interval until cancelled. The probe receives a context cancelled
// alongside the session.
func (sch *Scheduler) Start(interval time.Duration, probe func(ctx context.Context)) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	sch.mu.Lock()
	prev := sch.active
	sch.active = s
	sch.mu.Unlock()
	prev.Cancel()

	sch.log.Debug().Str("session", s.ID).Dur("interval", interval).Msg("poll session started")

	go func() {
		defer close(s.done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				sch.log.Debug().Str("session", s.ID).Msg("poll session stopped")
				return
			case <-t.C:
				probe(ctx)
			}
		}
	}()

	return s
}

// Stop cancels the active session, if any.
func (sch *Scheduler) Stop() {
	sch.mu.Lock()
	s := sch.active
	sch.active = nil
	sch.mu.Unlock()
	s.Cancel()
}
