package evm

import "github.com/joshharrison/shopledger/internal/model"

// Health classifies a performance index for display.
type Health string

const (
	OnTrack Health = "on_track"
	AtRisk  Health = "at_risk"
	Behind  Health = "behind"
)

// Index thresholds used by Rate.
const (
	OnTrackThreshold   = 1.0
	AtRiskThreshold    = 0.9
	DifficultTCPILimit = 1.1
)

// Rate classifies an SPI or CPI value.
func Rate(index float64) Health {
	switch {
	case index >= OnTrackThreshold:
		return OnTrack
	case index >= AtRiskThreshold:
		return AtRisk
	default:
		return Behind
	}
}

// ScheduleHealth rates the schedule performance index.
func (s Snapshot) ScheduleHealth() Health { return Rate(s.SPI) }

// CostHealth rates the cost performance index.
func (s Snapshot) CostHealth() Health { return Rate(s.CPI) }

// RecoveryDifficult reports whether the remaining work needs a cost
// efficiency the project is unlikely to reach on its current budget.
func (s Snapshot) RecoveryDifficult() bool {
	return s.TCPI > DifficultTCPILimit
}

// Budget summarises the project's budget fields for the budget overview.
type Budget struct {
	Original     float64 `json:"original" yaml:"original"`
	Approved     float64 `json:"approved" yaml:"approved"`
	Current      float64 `json:"current" yaml:"current"`
	Contingency  float64 `json:"contingency" yaml:"contingency"`
	Committed    float64 `json:"committed" yaml:"committed"`
	Spent        float64 `json:"spent" yaml:"spent"`
	Remaining    float64 `json:"remaining" yaml:"remaining"`
	PercentSpent float64 `json:"percent_spent" yaml:"percent_spent"`
	OverBudget   bool    `json:"over_budget" yaml:"over_budget"`
}

// BudgetSummary reports spend against the budget at completion.
func BudgetSummary(p model.Project) Budget {
	current := BudgetAtCompletion(p)
	b := Budget{
		Original:    p.OriginalBudget,
		Approved:    p.ApprovedBudget,
		Current:     current,
		Contingency: p.ContingencyAmount,
		Committed:   p.CommittedAmount,
		Spent:       p.ActualSpent,
		Remaining:   current - p.ActualSpent,
	}
	if current > 0 {
		b.PercentSpent = p.ActualSpent / current * 100
	}
	b.OverBudget = b.Remaining < 0
	return b
}
