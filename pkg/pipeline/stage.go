package pipeline

// Stage is a pipeline state. Runs move strictly forward through
// Idle, Interpreting, Extracting, Grouping, Verifying, Synthesizing and Done,
// or stop at NoMedicinesFound when extraction yields nothing.
type Stage int

const (
	Idle Stage = iota
	Interpreting
	Extracting
	Grouping
	Verifying
	Synthesizing
	Done
	NoMedicinesFound
)

var stageNames = [...]string{
	Idle:             "idle",
	Interpreting:     "interpreting",
	Extracting:       "extracting",
	Grouping:         "grouping",
	Verifying:        "verifying",
	Synthesizing:     "synthesizing",
	Done:             "done",
	NoMedicinesFound: "no_medicines_found",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Terminal reports whether no further transition is possible
func (s Stage) Terminal() bool {
	return s == Done || s == NoMedicinesFound
}
