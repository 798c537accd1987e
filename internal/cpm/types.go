package cpm

// Result holds the complete critical path analysis of one project.
type Result struct {
	Schedules       []PhaseSchedule // one per input phase, input order
	ByID            map[string]*PhaseSchedule
	CriticalPath    []string   // critical phase ids in topological order
	Chains          [][]string // critical path split into disjoint chains
	ProjectDuration int        // days
	Waves           []Wave     // phases grouped by earliest start
	TopoOrder       []string
}

// PhaseSchedule holds the schedule metrics for a single phase, in day
// offsets from the project start.
type PhaseSchedule struct {
	PhaseID        string `json:"phase_id" yaml:"phase_id"`
	Duration       int    `json:"duration" yaml:"duration"`
	EarliestStart  int    `json:"earliest_start" yaml:"earliest_start"`
	EarliestFinish int    `json:"earliest_finish" yaml:"earliest_finish"`
	LatestStart    int    `json:"latest_start" yaml:"latest_start"`
	LatestFinish   int    `json:"latest_finish" yaml:"latest_finish"`
	Slack          int    `json:"slack" yaml:"slack"`
	IsCritical     bool   `json:"is_critical" yaml:"is_critical"`
	Wave           int    `json:"wave" yaml:"wave"`
}

// Wave is a group of phases that can start on the same day.
type Wave struct {
	Index      int      `json:"index" yaml:"index"`
	Start      int      `json:"start" yaml:"start"`
	PhaseIDs   []string `json:"phase_ids" yaml:"phase_ids"`
	IsCritical bool     `json:"is_critical" yaml:"is_critical"` // true if the wave holds a critical phase
}
