package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a project phase.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDelayed    Status = "delayed"
)

// Valid reports whether s is one of the known phase statuses.
// The empty status is accepted and treated as pending.
func (s Status) Valid() bool {
	switch s {
	case "", StatusPending, StatusInProgress, StatusCompleted, StatusDelayed:
		return true
	}
	return false
}

// Phase is a single scheduled phase of a project as stored in the shop database.
type Phase struct {
	ID              string     `json:"id" yaml:"id"`
	Name            string     `json:"name,omitempty" yaml:"name,omitempty"`
	PlannedStart    *time.Time `json:"planned_start_date,omitempty" yaml:"planned_start_date,omitempty"`
	PlannedEnd      *time.Time `json:"planned_end_date,omitempty" yaml:"planned_end_date,omitempty"`
	DependsOn       string     `json:"depends_on_phase_id,omitempty" yaml:"depends_on_phase_id,omitempty"` // single predecessor
	Budget          float64    `json:"phase_budget" yaml:"phase_budget"`
	ActualSpent     float64    `json:"actual_spent" yaml:"actual_spent"`
	PercentComplete float64    `json:"percent_complete" yaml:"percent_complete"`
	Status          Status     `json:"status" yaml:"status"`
	IsMilestone     bool       `json:"is_milestone,omitempty" yaml:"is_milestone,omitempty"`
	MilestoneDate   *time.Time `json:"milestone_date,omitempty" yaml:"milestone_date,omitempty"`
}

// Project holds the budget fields of a project used by earned value analysis.
type Project struct {
	ID                string     `json:"id" yaml:"id"`
	Name              string     `json:"name,omitempty" yaml:"name,omitempty"`
	OriginalBudget    float64    `json:"original_budget" yaml:"original_budget"`
	ApprovedBudget    float64    `json:"approved_budget" yaml:"approved_budget"`
	CurrentBudget     float64    `json:"current_budget" yaml:"current_budget"` // 0 means unset
	ContingencyAmount float64    `json:"contingency_amount" yaml:"contingency_amount"`
	CommittedAmount   float64    `json:"committed_amount" yaml:"committed_amount"`
	ActualSpent       float64    `json:"actual_spent" yaml:"actual_spent"`
	PlannedStartDate  *time.Time `json:"planned_start_date,omitempty" yaml:"planned_start_date,omitempty"`
	PlannedEndDate    *time.Time `json:"planned_end_date,omitempty" yaml:"planned_end_date,omitempty"`
}

// CostItem is one row of a project's cost ledger.
type CostItem struct {
	ID              string          `json:"id,omitempty" yaml:"id,omitempty"`
	Category        string          `json:"category" yaml:"category"`
	PhaseID         string          `json:"phase_id,omitempty" yaml:"phase_id,omitempty"`
	BudgetedAmount  decimal.Decimal `json:"budgeted_amount" yaml:"budgeted_amount"`
	CommittedAmount decimal.Decimal `json:"committed_amount" yaml:"committed_amount"`
	ActualSpent     decimal.Decimal `json:"actual_spent" yaml:"actual_spent"`
}

// ResourceAssignment books planned hours of a person or piece of equipment
// against a project.
type ResourceAssignment struct {
	ResourceID   string     `json:"resource_id" yaml:"resource_id"`
	ResourceType string     `json:"resource_type" yaml:"resource_type"`
	PlannedHours float64    `json:"planned_hours" yaml:"planned_hours"`
	ProjectID    string     `json:"project_id" yaml:"project_id"`
	ScheduledOn  *time.Time `json:"scheduled_on,omitempty" yaml:"scheduled_on,omitempty"`
}

// Snapshot is the full input set for one analysis run. Loaders produce it,
// the analyzers only read it.
type Snapshot struct {
	Project     Project              `json:"project" yaml:"project"`
	Phases      []Phase              `json:"phases" yaml:"phases"`
	CostItems   []CostItem           `json:"cost_items" yaml:"cost_items"`
	Assignments []ResourceAssignment `json:"resource_assignments" yaml:"resource_assignments"`
}
