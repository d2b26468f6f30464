package domain

// FilingState is where a filing is in its lifecycle.
type FilingState string

const (
	StateDraft           FilingState = "draft"
	StateValidating      FilingState = "validating"
	StateSubmitting      FilingState = "submitting"
	StateSubmitted       FilingState = "submitted"
	StateAccepted        FilingState = "accepted"
	StateRejected        FilingState = "rejected"
	StateStillProcessing FilingState = "still_processing"
	StateAbandoned       FilingState = "abandoned"
)

var transitions = map[FilingState][]FilingState{
	StateDraft:           {StateValidating, StateAbandoned},
	StateValidating:      {StateDraft, StateSubmitting},
	StateSubmitting:      {StateDraft, StateSubmitted},
	StateSubmitted:       {StateAccepted, StateRejected, StateStillProcessing},
	StateStillProcessing: {StateStillProcessing, StateAccepted, StateRejected},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
// Validating and Submitting may fall back to Draft when the attempt fails before an envelope exists.
func CanTransition(from, to FilingState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s FilingState) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// StateFromStatus maps a status check result onto the lifecycle.
func StateFromStatus(s FilingStatus) FilingState {
	switch s {
	case StatusAccepted:
		return StateAccepted
	case StatusRejected:
		return StateRejected
	default:
		return StateStillProcessing
	}
}
