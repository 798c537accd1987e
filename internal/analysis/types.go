package analysis

import (
	"time"

	"github.com/joshharrison/shopledger/internal/cost"
	"github.com/joshharrison/shopledger/internal/cpm"
	"github.com/joshharrison/shopledger/internal/evm"
	"github.com/joshharrison/shopledger/internal/resource"
)

// Report is every analysis result for one project snapshot.
type Report struct {
	ProjectID   string                       `json:"project_id" yaml:"project_id"`
	ProjectName string                       `json:"project_name,omitempty" yaml:"project_name,omitempty"`
	AsOf        time.Time                    `json:"as_of" yaml:"as_of"`
	Schedule    Schedule                     `json:"schedule" yaml:"schedule"`
	EarnedValue EarnedValue                  `json:"earned_value" yaml:"earned_value"`
	Costs       Costs                        `json:"costs" yaml:"costs"`
	Utilization []resource.UtilizationRecord `json:"utilization" yaml:"utilization"`
	Config      Config                       `json:"config" yaml:"config"`
}

// Schedule is the critical path analysis with phase display fields attached.
type Schedule struct {
	ProjectDuration int        `json:"project_duration_days" yaml:"project_duration_days"`
	CriticalPath    []string   `json:"critical_path" yaml:"critical_path"`
	Chains          [][]string `json:"critical_chains" yaml:"critical_chains"`
	Phases          []PhaseRow `json:"phases" yaml:"phases"`
	Waves           []cpm.Wave `json:"waves" yaml:"waves"`
	Deps            PhaseDeps  `json:"deps" yaml:"deps"`
}

// PhaseRow is one phase's schedule metrics plus what a timeline needs to label it.
type PhaseRow struct {
	cpm.PhaseSchedule `yaml:",inline"`
	Name              string  `json:"name,omitempty" yaml:"name,omitempty"`
	Status            string  `json:"status" yaml:"status"`
	PercentComplete   float64 `json:"percent_complete" yaml:"percent_complete"`
	IsMilestone       bool    `json:"is_milestone,omitempty" yaml:"is_milestone,omitempty"`
	DependsOn         string  `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// PhaseDeps holds per-phase predecessor and successor lists.
type PhaseDeps struct {
	Predecessors map[string]string   `json:"predecessors" yaml:"predecessors"`
	Successors   map[string][]string `json:"successors" yaml:"successors"`
}

// EarnedValue is the EVM snapshot with the caller-facing ratings.
type EarnedValue struct {
	evm.Snapshot      `yaml:",inline"`
	ScheduleHealth    evm.Health `json:"schedule_health" yaml:"schedule_health"`
	CostHealth        evm.Health `json:"cost_health" yaml:"cost_health"`
	RecoveryDifficult bool       `json:"recovery_difficult" yaml:"recovery_difficult"`
	Budget            evm.Budget `json:"budget" yaml:"budget"`
}

// Costs is the ledger roll-up with deterministic orderings for display.
type Costs struct {
	cost.Totals `yaml:",inline"`
	Grand       cost.Bucket `json:"grand" yaml:"grand"`
	Categories  []string    `json:"categories" yaml:"categories"`
	PhaseIDs    []string    `json:"phase_ids" yaml:"phase_ids"`
}

// Config is the effective analysis configuration, echoed into the report.
type Config struct {
	DefaultDurationDays int              `json:"default_duration_days" yaml:"default_duration_days"`
	CapacityHours       float64          `json:"capacity_hours" yaml:"capacity_hours"`
	Window              *resource.Window `json:"window,omitempty" yaml:"window,omitempty"`
}
