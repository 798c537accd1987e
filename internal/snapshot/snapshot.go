package snapshot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/joshharrison/shopledger/internal/model"
)

// UncategorizedCategory is used for ledger rows without a category.
const UncategorizedCategory = "uncategorized"

// Source loads the analysis input for one project.
type Source interface {
	Load(ctx context.Context, projectID string) (*model.Snapshot, error)
}

// FileSource reads a JSON export of the project's database rows.
type FileSource struct {
	Path string
}

// Load reads and parses the snapshot file. projectID, when set, must match
// the project in the file.
func (s FileSource) Load(_ context.Context, projectID string) (*model.Snapshot, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	snap, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", s.Path, err)
	}
	if projectID != "" && snap.Project.ID != "" && snap.Project.ID != projectID {
		return nil, fmt.Errorf("snapshot %s holds project %s, not %s", s.Path, snap.Project.ID, projectID)
	}
	return snap, nil
}

// Parse decodes a snapshot document:
//
//	{"project": {...}, "phases": [...], "cost_items": [...], "resource_assignments": [...]}
//
// Column names follow the database (snake_case). Numeric columns may arrive
// as JSON numbers or strings, dates as RFC3339 or YYYY-MM-DD.
func Parse(data []byte) (*model.Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON")
	}
	doc := gjson.ParseBytes(data)

	snap := &model.Snapshot{}
	var err error

	if snap.Project, err = parseProject(doc.Get("project")); err != nil {
		return nil, err
	}

	for i, row := range doc.Get("phases").Array() {
		p, err := parsePhase(row)
		if err != nil {
			return nil, fmt.Errorf("phases[%d]: %w", i, err)
		}
		snap.Phases = append(snap.Phases, p)
	}

	for i, row := range doc.Get("cost_items").Array() {
		c, err := parseCostItem(row)
		if err != nil {
			return nil, fmt.Errorf("cost_items[%d]: %w", i, err)
		}
		snap.CostItems = append(snap.CostItems, c)
	}

	for i, row := range doc.Get("resource_assignments").Array() {
		a, err := parseAssignment(row)
		if err != nil {
			return nil, fmt.Errorf("resource_assignments[%d]: %w", i, err)
		}
		if a.ProjectID == "" {
			a.ProjectID = snap.Project.ID
		}
		snap.Assignments = append(snap.Assignments, a)
	}

	return snap, nil
}

func parseProject(row gjson.Result) (model.Project, error) {
	p := model.Project{
		ID:                row.Get("id").String(),
		Name:              row.Get("name").String(),
		OriginalBudget:    row.Get("original_budget").Float(),
		ApprovedBudget:    row.Get("approved_budget").Float(),
		CurrentBudget:     row.Get("current_budget").Float(),
		ContingencyAmount: row.Get("contingency_amount").Float(),
		CommittedAmount:   row.Get("committed_amount").Float(),
		ActualSpent:       row.Get("actual_spent").Float(),
	}
	var err error
	if p.PlannedStartDate, err = parseDate(row.Get("planned_start_date")); err != nil {
		return p, fmt.Errorf("project planned_start_date: %w", err)
	}
	if p.PlannedEndDate, err = parseDate(row.Get("planned_end_date")); err != nil {
		return p, fmt.Errorf("project planned_end_date: %w", err)
	}
	return p, nil
}

func parsePhase(row gjson.Result) (model.Phase, error) {
	p := model.Phase{
		ID:              row.Get("id").String(),
		Name:            firstString(row, "phase_name", "name"),
		Budget:          row.Get("phase_budget").Float(),
		ActualSpent:     row.Get("actual_spent").Float(),
		PercentComplete: row.Get("percent_complete").Float(),
		Status:          model.Status(strings.ToLower(row.Get("status").String())),
		IsMilestone:     row.Get("is_milestone").Bool(),
	}

	dep := row.Get("depends_on_phase_id")
	if dep.IsArray() {
		ids := dep.Array()
		if len(ids) > 1 {
			return p, &model.InvalidInputError{Kind: "phase", ID: p.ID, Field: "depends_on_phase_id", Reason: fmt.Sprintf("lists %d predecessors, at most one is supported", len(ids))}
		}
		if len(ids) == 1 {
			p.DependsOn = ids[0].String()
		}
	} else {
		p.DependsOn = dep.String()
	}

	var err error
	if p.PlannedStart, err = parseDate(row.Get("planned_start_date")); err != nil {
		return p, fmt.Errorf("phase %s planned_start_date: %w", p.ID, err)
	}
	if p.PlannedEnd, err = parseDate(row.Get("planned_end_date")); err != nil {
		return p, fmt.Errorf("phase %s planned_end_date: %w", p.ID, err)
	}
	if p.MilestoneDate, err = parseDate(row.Get("milestone_date")); err != nil {
		return p, fmt.Errorf("phase %s milestone_date: %w", p.ID, err)
	}
	return p, nil
}

func parseCostItem(row gjson.Result) (model.CostItem, error) {
	c := model.CostItem{
		ID:       row.Get("id").String(),
		Category: row.Get("category").String(),
		PhaseID:  row.Get("phase_id").String(),
	}
	if c.Category == "" {
		log.Printf("warning: cost item %s has no category, using %q", c.ID, UncategorizedCategory)
		c.Category = UncategorizedCategory
	}

	var err error
	if c.BudgetedAmount, err = parseAmount(row.Get("budgeted_amount")); err != nil {
		return c, fmt.Errorf("cost item %s budgeted_amount: %w", c.ID, err)
	}
	if c.CommittedAmount, err = parseAmount(row.Get("committed_amount")); err != nil {
		return c, fmt.Errorf("cost item %s committed_amount: %w", c.ID, err)
	}
	if c.ActualSpent, err = parseAmount(row.Get("actual_spent")); err != nil {
		return c, fmt.Errorf("cost item %s actual_spent: %w", c.ID, err)
	}
	return c, nil
}

func parseAssignment(row gjson.Result) (model.ResourceAssignment, error) {
	a := model.ResourceAssignment{
		ResourceID:   row.Get("resource_id").String(),
		ResourceType: row.Get("resource_type").String(),
		PlannedHours: row.Get("planned_hours").Float(),
		ProjectID:    row.Get("project_id").String(),
	}
	var err error
	if a.ScheduledOn, err = parseDate(row.Get("scheduled_on")); err != nil {
		return a, fmt.Errorf("assignment %s scheduled_on: %w", a.ResourceID, err)
	}
	return a, nil
}

// parseAmount keeps money columns exact: strings are parsed as decimals,
// numbers from their raw JSON text rather than through float64.
func parseAmount(v gjson.Result) (decimal.Decimal, error) {
	switch v.Type {
	case gjson.Null:
		return decimal.Zero, nil
	case gjson.Number:
		return decimal.NewFromString(v.Raw)
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, fmt.Errorf("unexpected %s value %s", v.Type, v.Raw)
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDate(v gjson.Result) (*time.Time, error) {
	if !v.Exists() || v.Type == gjson.Null {
		return nil, nil
	}
	s := strings.TrimSpace(v.String())
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised date %q", s)
}

func firstString(row gjson.Result, keys ...string) string {
	for _, k := range keys {
		if s := row.Get(k).String(); s != "" {
			return s
		}
	}
	return ""
}
