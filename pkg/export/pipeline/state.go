package pipeline

// State is a stage of an export run.
type State int

const (
	Idle State = iota
	Connecting
	Querying
	Exporting
	Finalizing
	Done
	Failed
)

var stateNames = [...]string{
	Idle:       "idle",
	Connecting: "connecting",
	Querying:   "querying",
	Exporting:  "exporting",
	Finalizing: "finalizing",
	Done:       "done",
	Failed:     "failed",
}

// String returns the lower-case state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// canTransition reports whether from → to is a legal transition. Runs move
// forward one stage at a time and may fail from any non-terminal stage.
func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == Failed {
		return true
	}
	return to == from+1
}
