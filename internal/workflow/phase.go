package workflow

// Phase is the client-side lifecycle of producing a recommendation list.
// Exactly one phase is active at a time, owned by the Machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUploading
	PhaseFineTuning
	PhaseRunning
	PhaseComputing
	PhaseReady
	PhaseNoViewingHistory
	PhaseAggregatorWait
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseUploading:
		return "uploading"
	case PhaseFineTuning:
		return "fine_tuning"
	case PhaseRunning:
		return "running"
	case PhaseComputing:
		return "computing"
	case PhaseReady:
		return "ready"
	case PhaseNoViewingHistory:
		return "no_viewing_history"
	case PhaseAggregatorWait:
		return "aggregator_wait"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// terminal reports whether entering the phase must stop the active poll
// session before anything else happens.
func (p Phase) terminal() bool {
	switch p {
	case PhaseReady, PhaseNoViewingHistory, PhaseAggregatorWait, PhaseError:
		return true
	}
	return false
}
