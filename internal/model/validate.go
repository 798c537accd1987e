package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is matched by every *InvalidInputError via errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError reports a record that the analyzers refuse to compute over.
type InvalidInputError struct {
	Kind   string // "phase", "project", "cost item", "assignment"
	ID     string
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid %s: %s %s", e.Kind, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %s: %s %s", e.Kind, e.ID, e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(kind, id, field, reason string) error {
	return &InvalidInputError{Kind: kind, ID: id, Field: field, Reason: reason}
}

// amount rejects negative and non-finite quantities.
func amount(kind, id, field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(kind, id, field, fmt.Sprintf("%g is not a finite number", v))
	}
	if v < 0 {
		return invalid(kind, id, field, "is negative")
	}
	return nil
}

// Validate checks the phase for negative amounts, out-of-range progress,
// unknown status and inverted dates.
func (p Phase) Validate() error {
	if p.ID == "" {
		return invalid("phase", "", "id", "is empty")
	}
	if err := amount("phase", p.ID, "phase_budget", p.Budget); err != nil {
		return err
	}
	if err := amount("phase", p.ID, "actual_spent", p.ActualSpent); err != nil {
		return err
	}
	// NaN fails every comparison, so test the range positively.
	if !(p.PercentComplete >= 0 && p.PercentComplete <= 100) {
		return invalid("phase", p.ID, "percent_complete", fmt.Sprintf("%g is outside [0,100]", p.PercentComplete))
	}
	if !p.Status.Valid() {
		return invalid("phase", p.ID, "status", fmt.Sprintf("%q is unknown", p.Status))
	}
	if p.PlannedStart != nil && p.PlannedEnd != nil && p.PlannedEnd.Before(*p.PlannedStart) {
		return invalid("phase", p.ID, "planned_end_date", "is before planned_start_date")
	}
	return nil
}

// Validate checks the project's budget fields and planned window.
func (p Project) Validate() error {
	amounts := []struct {
		field string
		v     float64
	}{
		{"original_budget", p.OriginalBudget},
		{"approved_budget", p.ApprovedBudget},
		{"current_budget", p.CurrentBudget},
		{"contingency_amount", p.ContingencyAmount},
		{"committed_amount", p.CommittedAmount},
		{"actual_spent", p.ActualSpent},
	}
	for _, a := range amounts {
		if err := amount("project", p.ID, a.field, a.v); err != nil {
			return err
		}
	}
	if p.PlannedStartDate != nil && p.PlannedEndDate != nil && p.PlannedEndDate.Before(*p.PlannedStartDate) {
		return invalid("project", p.ID, "planned_end_date", "is before planned_start_date")
	}
	return nil
}

// Validate rejects negative ledger amounts.
func (c CostItem) Validate() error {
	amounts := []struct {
		field string
		v     decimal.Decimal
	}{
		{"budgeted_amount", c.BudgetedAmount},
		{"committed_amount", c.CommittedAmount},
		{"actual_spent", c.ActualSpent},
	}
	for _, a := range amounts {
		if a.v.IsNegative() {
			return invalid("cost item", c.ID, a.field, "is negative")
		}
	}
	return nil
}

// Validate rejects assignments without a resource or with negative hours.
func (a ResourceAssignment) Validate() error {
	if a.ResourceID == "" {
		return invalid("assignment", a.ProjectID, "resource_id", "is empty")
	}
	if err := amount("assignment", a.ResourceID, "planned_hours", a.PlannedHours); err != nil {
		return err
	}
	return nil
}
