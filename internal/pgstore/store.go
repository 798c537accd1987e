package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/joshharrison/shopledger/internal/model"
)

// ErrProjectNotFound is returned when the project row does not exist.
var ErrProjectNotFound = errors.New("project not found")

// querier is the subset of pgxpool.Pool the store needs.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store loads analysis snapshots from the shop's PostgreSQL database.
type Store struct {
	db   querier
	pool *pgxpool.Pool
}

// Open connects to the database at url and verifies the connection.
func Open(ctx context.Context, url string) (*Store, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is empty")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: pool, pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const projectSQL = `
SELECT id::text, coalesce(name, ''),
       coalesce(original_budget, 0)::float8, coalesce(approved_budget, 0)::float8,
       coalesce(current_budget, 0)::float8, coalesce(contingency_amount, 0)::float8,
       coalesce(committed_amount, 0)::float8, coalesce(actual_spent, 0)::float8,
       planned_start_date::timestamptz, planned_end_date::timestamptz
FROM projects
WHERE id::text = $1`

const phasesSQL = `
SELECT id::text, coalesce(phase_name, ''),
       planned_start_date::timestamptz, planned_end_date::timestamptz,
       coalesce(depends_on_phase_id::text, ''),
       coalesce(phase_budget, 0)::float8, coalesce(actual_spent, 0)::float8,
       coalesce(percent_complete, 0)::float8, coalesce(status, 'pending'),
       coalesce(is_milestone, false), milestone_date::timestamptz
FROM project_phases
WHERE project_id::text = $1
ORDER BY coalesce(sort_order, 0), created_at`

const costItemsSQL = `
SELECT id::text, coalesce(category, ''), coalesce(phase_id::text, ''),
       coalesce(budgeted_amount, 0)::text, coalesce(committed_amount, 0)::text,
       coalesce(actual_spent, 0)::text
FROM project_cost_items
WHERE project_id::text = $1
ORDER BY created_at`

// Assignments of every resource booked on the project, across all projects,
// so utilization reflects concurrent commitments.
const assignmentsSQL = `
SELECT a.resource_id::text, a.resource_type, coalesce(a.planned_hours, 0)::float8,
       a.project_id::text, a.scheduled_on::timestamptz
FROM project_resource_assignments a
WHERE (a.resource_type, a.resource_id) IN (
    SELECT resource_type, resource_id FROM project_resource_assignments WHERE project_id::text = $1
)
ORDER BY a.resource_type, a.resource_id, a.scheduled_on NULLS LAST`

const projectIDsSQL = `
SELECT id::text
FROM projects
ORDER BY coalesce(name, ''), id`

// ProjectIDs lists every project in the database, ordered by name.
func (s *Store) ProjectIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, projectIDsSQL)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan projects: %w", err)
	}
	return ids, nil
}

// Load reads the project, its phases, its cost ledger and the cross-project
// assignments of its resources.
func (s *Store) Load(ctx context.Context, projectID string) (*model.Snapshot, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project id is required")
	}

	snap := &model.Snapshot{}
	var err error
	if snap.Project, err = s.project(ctx, projectID); err != nil {
		return nil, err
	}
	if snap.Phases, err = s.phases(ctx, projectID); err != nil {
		return nil, err
	}
	if snap.CostItems, err = s.costItems(ctx, projectID); err != nil {
		return nil, err
	}
	if snap.Assignments, err = s.assignments(ctx, projectID); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) project(ctx context.Context, id string) (model.Project, error) {
	var p model.Project
	err := s.db.QueryRow(ctx, projectSQL, id).Scan(
		&p.ID, &p.Name,
		&p.OriginalBudget, &p.ApprovedBudget,
		&p.CurrentBudget, &p.ContingencyAmount,
		&p.CommittedAmount, &p.ActualSpent,
		&p.PlannedStartDate, &p.PlannedEndDate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	if err != nil {
		return p, fmt.Errorf("query project: %w", err)
	}
	return p, nil
}

func (s *Store) phases(ctx context.Context, projectID string) ([]model.Phase, error) {
	rows, err := s.db.Query(ctx, phasesSQL, projectID)
	if err != nil {
		return nil, fmt.Errorf("query phases: %w", err)
	}
	phases, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Phase, error) {
		var p model.Phase
		var status string
		err := row.Scan(
			&p.ID, &p.Name,
			&p.PlannedStart, &p.PlannedEnd,
			&p.DependsOn,
			&p.Budget, &p.ActualSpent,
			&p.PercentComplete, &status,
			&p.IsMilestone, &p.MilestoneDate,
		)
		p.Status = model.Status(status)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan phases: %w", err)
	}
	return phases, nil
}

func (s *Store) costItems(ctx context.Context, projectID string) ([]model.CostItem, error) {
	rows, err := s.db.Query(ctx, costItemsSQL, projectID)
	if err != nil {
		return nil, fmt.Errorf("query cost items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.CostItem, error) {
		var c model.CostItem
		var budgeted, committed, spent string
		if err := row.Scan(&c.ID, &c.Category, &c.PhaseID, &budgeted, &committed, &spent); err != nil {
			return c, err
		}
		var err error
		if c.BudgetedAmount, err = decimal.NewFromString(budgeted); err != nil {
			return c, fmt.Errorf("cost item %s budgeted_amount: %w", c.ID, err)
		}
		if c.CommittedAmount, err = decimal.NewFromString(committed); err != nil {
			return c, fmt.Errorf("cost item %s committed_amount: %w", c.ID, err)
		}
		if c.ActualSpent, err = decimal.NewFromString(spent); err != nil {
			return c, fmt.Errorf("cost item %s actual_spent: %w", c.ID, err)
		}
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan cost items: %w", err)
	}
	return items, nil
}

func (s *Store) assignments(ctx context.Context, projectID string) ([]model.ResourceAssignment, error) {
	rows, err := s.db.Query(ctx, assignmentsSQL, projectID)
	if err != nil {
		return nil, fmt.Errorf("query resource assignments: %w", err)
	}
	assignments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ResourceAssignment, error) {
		var a model.ResourceAssignment
		var scheduled *time.Time
		err := row.Scan(&a.ResourceID, &a.ResourceType, &a.PlannedHours, &a.ProjectID, &scheduled)
		a.ScheduledOn = scheduled
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan resource assignments: %w", err)
	}
	return assignments, nil
}
