package models

// Stage names one step of the issuance pipeline.
type Stage string

const (
	StageDedup    Stage = "dedup"
	StageIdentify Stage = "identify"
	StageRender   Stage = "render"
	StageConvert  Stage = "convert"
	StageNotify   Stage = "notify"
	StagePersist  Stage = "persist"
)

func (s Stage) String() string {
	return string(s)
}

// State is the observable position of one request in the pipeline.
type State string

const (
	StateReceived           State = "RECEIVED"
	StateDedupChecked       State = "DEDUP_CHECKED"
	StateRejectedDuplicate  State = "REJECTED_DUPLICATE"
	StateRejectedInProgress State = "REJECTED_IN_PROGRESS"
	StateIdentified         State = "IDENTIFIED"
	StateRendered           State = "RENDERED"
	StateConverted          State = "CONVERTED"
	StateNotified           State = "NOTIFIED"
	StatePersisted          State = "PERSISTED"
	StateDone               State = "DONE"
	StateFailed             State = "FAILED"
)

// transitions lists the states reachable from each non-terminal state. FAILED is reachable
// from RECEIVED when the lock or the dedup read fails, and from every later state up to
// NOTIFIED; a conflicting append also ends in FAILED.
var transitions = map[State][]State{
	StateReceived:     {StateDedupChecked, StateRejectedInProgress, StateFailed},
	StateDedupChecked: {StateIdentified, StateRejectedDuplicate, StateFailed},
	StateIdentified:   {StateRendered, StateFailed},
	StateRendered:     {StateConverted, StateFailed},
	StateConverted:    {StateNotified, StateFailed},
	StateNotified:     {StatePersisted, StateFailed},
	StatePersisted:    {StateDone},
}

// IsTerminal reports whether no further transition follows s.
func (s State) IsTerminal() bool {
	switch s {
	case StateDone, StateFailed, StateRejectedDuplicate, StateRejectedInProgress:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether next may follow s.
func (s State) CanTransitionTo(next State) bool {
	if s.IsTerminal() {
		return false
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s State) String() string {
	return string(s)
}

// Outcome labels used for issuance counters and events.
const (
	OutcomeIssued     = "issued"
	OutcomeDuplicate  = "duplicate"
	OutcomeInProgress = "in_progress"
	OutcomeFailed     = "failed"
	OutcomeInvalid    = "invalid"
)
