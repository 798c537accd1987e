package graph

import "github.com/joshharrison/shopledger/internal/model"

// DefaultDurationDays is used for phases missing either planned date.
const DefaultDurationDays = 7

// Options tunes how phase durations are derived.
type Options struct {
	DefaultDuration int // days; 0 means DefaultDurationDays
}

// PhaseGraph is the dependency forest of a project's phases.
// Every phase has at most one predecessor.
type PhaseGraph struct {
	Phases     map[string]*model.Phase
	Order      []string            // input order
	Successors map[string][]string // phase -> phases that depend on it
	Roots      []string            // phases with no predecessor
	Leaves     []string            // phases nobody depends on

	defaultDuration int
	index           map[string]int
}
