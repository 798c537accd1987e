// Package evm computes earned value management metrics for a project.
//
// All functions are pure: the current time is an argument, never read from
// the clock, so repeated calls over the same inputs return identical values.
package evm

import (
	"time"

	"github.com/joshharrison/shopledger/internal/model"
)

// Snapshot is the earned value metric set for one project at one instant.
type Snapshot struct {
	BAC              float64 `json:"bac" yaml:"bac"`
	PV               float64 `json:"pv" yaml:"pv"`
	EV               float64 `json:"ev" yaml:"ev"`
	AC               float64 `json:"ac" yaml:"ac"`
	SV               float64 `json:"sv" yaml:"sv"`
	CV               float64 `json:"cv" yaml:"cv"`
	SPI              float64 `json:"spi" yaml:"spi"`
	CPI              float64 `json:"cpi" yaml:"cpi"`
	EAC              float64 `json:"eac" yaml:"eac"`
	ETC              float64 `json:"etc" yaml:"etc"`
	VAC              float64 `json:"vac" yaml:"vac"`
	TCPI             float64 `json:"tcpi" yaml:"tcpi"`
	PercentComplete  float64 `json:"percent_complete" yaml:"percent_complete"`
	PercentScheduled float64 `json:"percent_scheduled" yaml:"percent_scheduled"`
}

// Calculate derives the metric set from the project's budget fields, its
// phases' progress and the given instant.
func Calculate(project model.Project, phases []model.Phase, now time.Time) (Snapshot, error) {
	if err := project.Validate(); err != nil {
		return Snapshot{}, err
	}
	for i := range phases {
		if err := phases[i].Validate(); err != nil {
			return Snapshot{}, err
		}
	}

	pc := PercentComplete(phases)
	ps := PercentScheduled(project, now)
	return FromPercentages(BudgetAtCompletion(project), pc, ps, project.ActualSpent), nil
}

// FromPercentages computes the metric set from already-derived progress
// percentages. Zero denominators resolve to the neutral index 1.
func FromPercentages(bac, percentComplete, percentScheduled, ac float64) Snapshot {
	s := Snapshot{
		BAC:              bac,
		AC:               ac,
		PercentComplete:  percentComplete,
		PercentScheduled: percentScheduled,
	}

	s.EV = percentComplete / 100 * bac
	s.PV = percentScheduled / 100 * bac
	s.SV = s.EV - s.PV
	s.CV = s.EV - s.AC

	s.SPI = 1
	if s.PV > 0 {
		s.SPI = s.EV / s.PV
	}
	s.CPI = 1
	if s.AC > 0 {
		s.CPI = s.EV / s.AC
	}

	s.EAC = bac
	if s.CPI > 0 {
		s.EAC = bac / s.CPI
	}
	s.ETC = s.EAC - s.AC
	s.VAC = bac - s.EAC

	s.TCPI = 1
	if remaining := bac - s.AC; remaining > 0 {
		s.TCPI = (bac - s.EV) / remaining
	}
	return s
}

// BudgetAtCompletion is the current budget, or the original one when no
// current budget has been set.
func BudgetAtCompletion(p model.Project) float64 {
	if p.CurrentBudget > 0 {
		return p.CurrentBudget
	}
	return p.OriginalBudget
}

// PercentComplete is the budget-weighted mean of phase progress. Phases are
// weighted equally when no phase carries a budget.
func PercentComplete(phases []model.Phase) float64 {
	if len(phases) == 0 {
		return 0
	}

	total := 0.0
	for _, p := range phases {
		total += p.Budget
	}

	pc := 0.0
	for _, p := range phases {
		weight := 1 / float64(len(phases))
		if total > 0 {
			weight = p.Budget / total
		}
		pc += p.PercentComplete * weight
	}
	return pc
}

// PercentScheduled is the share of the planned window elapsed at now,
// clamped to [0,100]. Projects without both planned dates report 0.
func PercentScheduled(p model.Project, now time.Time) float64 {
	if p.PlannedStartDate == nil || p.PlannedEndDate == nil {
		return 0
	}
	window := p.PlannedEndDate.Sub(*p.PlannedStartDate)
	if window <= 0 {
		if now.Before(*p.PlannedStartDate) {
			return 0
		}
		return 100
	}
	pct := float64(now.Sub(*p.PlannedStartDate)) / float64(window) * 100
	return clamp(pct, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
