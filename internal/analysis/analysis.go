package analysis

import (
	"fmt"
	"time"

	"github.com/joshharrison/shopledger/internal/cost"
	"github.com/joshharrison/shopledger/internal/cpm"
	"github.com/joshharrison/shopledger/internal/evm"
	"github.com/joshharrison/shopledger/internal/graph"
	"github.com/joshharrison/shopledger/internal/model"
	"github.com/joshharrison/shopledger/internal/resource"
)

// Options configures a Build run. Zero values fall back to package defaults.
type Options struct {
	DefaultDuration int              // days for phases without dates
	CapacityHours   float64          // per-resource monthly capacity
	Window          *resource.Window // restrict utilization to scheduled dates
	Now             time.Time        // as-of date for earned value; zero means time.Now
}

// Build runs every analyzer over one snapshot. The snapshot is not modified.
// A dependency cycle or invalid record fails the whole report.
func Build(snap *model.Snapshot, opts Options) (*Report, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = graph.DefaultDurationDays
	}
	if opts.CapacityHours <= 0 {
		opts.CapacityHours = resource.DefaultCapacityHours
	}

	g, err := graph.Build(snap.Phases, graph.Options{DefaultDuration: opts.DefaultDuration})
	if err != nil {
		return nil, fmt.Errorf("build phase graph: %w", err)
	}
	result, err := cpm.Analyze(g)
	if err != nil {
		return nil, fmt.Errorf("critical path: %w", err)
	}

	ev, err := evm.Calculate(snap.Project, snap.Phases, now)
	if err != nil {
		return nil, fmt.Errorf("earned value: %w", err)
	}

	totals, err := cost.Rollup(snap.CostItems)
	if err != nil {
		return nil, fmt.Errorf("cost rollup: %w", err)
	}

	util, err := resource.Analyze(snap.Assignments, resource.Options{
		CapacityHours: opts.CapacityHours,
		Window:        opts.Window,
	})
	if err != nil {
		return nil, fmt.Errorf("resource utilization: %w", err)
	}

	return &Report{
		ProjectID:   snap.Project.ID,
		ProjectName: snap.Project.Name,
		AsOf:        now,
		Schedule:    scheduleSection(g, result),
		EarnedValue: EarnedValue{
			Snapshot:          ev,
			ScheduleHealth:    ev.ScheduleHealth(),
			CostHealth:        ev.CostHealth(),
			RecoveryDifficult: ev.RecoveryDifficult(),
			Budget:            evm.BudgetSummary(snap.Project),
		},
		Costs: Costs{
			Totals:     *totals,
			Grand:      totals.Grand(),
			Categories: totals.Categories(),
			PhaseIDs:   totals.Phases(),
		},
		Utilization: util,
		Config: Config{
			DefaultDurationDays: opts.DefaultDuration,
			CapacityHours:       opts.CapacityHours,
			Window:              opts.Window,
		},
	}, nil
}

func scheduleSection(g *graph.PhaseGraph, result *cpm.Result) Schedule {
	s := Schedule{
		ProjectDuration: result.ProjectDuration,
		CriticalPath:    result.CriticalPath,
		Chains:          result.Chains,
		Waves:           result.Waves,
		Phases:          make([]PhaseRow, 0, len(result.Schedules)),
		Deps: PhaseDeps{
			Predecessors: make(map[string]string, len(g.Order)),
			Successors:   make(map[string][]string, len(g.Order)),
		},
	}

	for _, ps := range result.Schedules {
		p := g.Phases[ps.PhaseID]
		status := p.Status
		if status == "" {
			status = model.StatusPending
		}
		s.Phases = append(s.Phases, PhaseRow{
			PhaseSchedule:   ps,
			Name:            p.Name,
			Status:          string(status),
			PercentComplete: p.PercentComplete,
			IsMilestone:     p.IsMilestone,
			DependsOn:       p.DependsOn,
		})

		if pred := g.Predecessor(ps.PhaseID); pred != "" {
			s.Deps.Predecessors[ps.PhaseID] = pred
		}
		if succs := g.SuccessorsOf(ps.PhaseID); len(succs) > 0 {
			s.Deps.Successors[ps.PhaseID] = succs
		}
	}

	return s
}

// Overallocated returns the utilization records above capacity.
func (r *Report) Overallocated() []resource.UtilizationRecord {
	return resource.Overallocated(r.Utilization)
}

// Phase returns the schedule row for id.
func (r *Report) Phase(id string) (PhaseRow, bool) {
	for _, row := range r.Schedule.Phases {
		if row.PhaseID == id {
			return row, true
		}
	}
	return PhaseRow{}, false
}
