package workflow

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SlokomManel/federated-recommendations-participants/internal/logging"
)

func TestSchedulerSingleActiveSession(t *testing.T) {
	sch := NewScheduler(logging.Nop())
	var first, second atomic.Int64

	s1 := sch.Start(10*time.Millisecond, func(ctx context.Context) { first.Add(1) })
	time.Sleep(35 * time.Millisecond)
	s2 := sch.Start(10*time.Millisecond, func(ctx context.Context) { second.Add(1) })

	// Starting the second session must have cancelled the first.
	select {
	case <-s1.Done():
	case <-time.After(time.Second):
		t.Fatalf("first session did not stop after second started")
	}

	n := first.Load()
	time.Sleep(35 * time.Millisecond)
	if first.Load() != n {
		t.Fatalf("first session probe fired after cancellation")
	}
	if second.Load() == 0 {
		t.Fatalf("second session never fired")
	}
	s2.Cancel()
}

func TestSessionCancelIdempotent(t *testing.T) {
	sch := NewScheduler(logging.Nop())
	s := sch.Start(10*time.Millisecond, func(ctx context.Context) {})
	s.Cancel()
	s.Cancel() // no-op
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatalf("session did not stop")
	}
}

func TestSchedulerStop(t *testing.T) {
	sch := NewScheduler(logging.Nop())
	var n atomic.Int64
	sch.Start(10*time.Millisecond, func(ctx context.Context) { n.Add(1) })
	time.Sleep(35 * time.Millisecond)
	sch.Stop()
	sch.Stop() // idempotent with no active session
	got := n.Load()
	if got == 0 {
		t.Fatalf("probe never fired")
	}
	time.Sleep(35 * time.Millisecond)
	if n.Load() != got {
		t.Fatalf("probe fired after Stop")
	}
}

func TestProbeContextCancelledWithSession(t *testing.T) {
	sch := NewScheduler(logging.Nop())
	cancelled := make(chan struct{}, 1)
	s := sch.Start(10*time.Millisecond, func(ctx context.Context) {
		<-ctx.Done()
		select {
		case cancelled <- struct{}{}:
		default:
		}
	})
	time.Sleep(20 * time.Millisecond)
	s.Cancel()
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatalf("probe context was not cancelled")
	}
}
