package portfolio

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joshharrison/shopledger/internal/analysis"
	"github.com/joshharrison/shopledger/internal/evm"
	"github.com/joshharrison/shopledger/internal/snapshot"
)

// DefaultMaxParallel bounds concurrent project loads when Config leaves it unset.
const DefaultMaxParallel = 4

// Config holds portfolio run configuration.
type Config struct {
	MaxParallel int
	Options     analysis.Options
}

// Job names one project and where to load it from.
type Job struct {
	Name      string // display label, e.g. the snapshot file
	ProjectID string // passed to Source.Load; may be empty for file sources
	Source    snapshot.Source
}

// Status is the outcome of one job.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Result is the outcome of analysing one project.
type Result struct {
	Name    string           `json:"name" yaml:"name"`
	Status  Status           `json:"status" yaml:"status"`
	Report  *analysis.Report `json:"report,omitempty" yaml:"report,omitempty"`
	Error   string           `json:"error,omitempty" yaml:"error,omitempty"`
	Elapsed time.Duration    `json:"elapsed_ns" yaml:"elapsed"`

	err error
}

// Err returns the load or analysis error of a failed job.
func (r Result) Err() error { return r.err }

// jobResult communicates job completion from worker goroutines to Run.
type jobResult struct {
	index  int
	result Result
}

// Run loads and analyses every job with at most cfg.MaxParallel in flight.
// A failing project does not stop the others. Results keep job order. When
// ctx is cancelled, jobs that had not started are marked cancelled and the
// context error is returned alongside the partial results.
func Run(ctx context.Context, jobs []Job, cfg Config) ([]Result, error) {
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}

	results := make([]Result, len(jobs))
	done := make(chan jobResult, len(jobs))
	sem := make(chan struct{}, maxParallel)

	for i, job := range jobs {
		go func(i int, job Job) {
			cancelled := func() {
				err := ctx.Err()
				done <- jobResult{index: i, result: Result{Name: job.Name, Status: StatusCancelled, err: err, Error: err.Error()}}
			}

			select {
			case sem <- struct{}{}: // acquire semaphore
			case <-ctx.Done():
				cancelled()
				return
			}
			defer func() { <-sem }() // release semaphore

			// select picks at random when both cases are ready
			if ctx.Err() != nil {
				cancelled()
				return
			}
			done <- jobResult{index: i, result: runJob(ctx, job, cfg.Options)}
		}(i, job)
	}

	for range jobs {
		jr := <-done
		results[jr.index] = jr.result
		if jr.result.Status == StatusFailed {
			log.Printf("warning: project %s failed: %v", jr.result.Name, jr.result.err)
		}
	}

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("cancelled: %w", err)
	}
	return results, nil
}

func runJob(ctx context.Context, job Job, opts analysis.Options) Result {
	start := time.Now()
	res := Result{Name: job.Name}

	fail := func(err error) Result {
		res.Status = StatusFailed
		res.err = err
		res.Error = err.Error()
		res.Elapsed = time.Since(start)
		return res
	}

	snap, err := job.Source.Load(ctx, job.ProjectID)
	if err != nil {
		return fail(fmt.Errorf("load %s: %w", job.Name, err))
	}
	rpt, err := analysis.Build(snap, opts)
	if err != nil {
		return fail(fmt.Errorf("analyse %s: %w", job.Name, err))
	}

	res.Status = StatusCompleted
	res.Report = rpt
	res.Elapsed = time.Since(start)
	return res
}

// Totals aggregates the completed projects of a portfolio run.
type Totals struct {
	Projects       int     `json:"projects" yaml:"projects"`
	Failed         int     `json:"failed" yaml:"failed"`
	BAC            float64 `json:"bac" yaml:"bac"`
	EV             float64 `json:"ev" yaml:"ev"`
	AC             float64 `json:"ac" yaml:"ac"`
	EAC            float64 `json:"eac" yaml:"eac"`
	CPI            float64 `json:"cpi" yaml:"cpi"`
	ScheduleBehind int     `json:"schedule_behind" yaml:"schedule_behind"`
	CostBehind     int     `json:"cost_behind" yaml:"cost_behind"`
	Overallocated  int     `json:"overallocated_resources" yaml:"overallocated_resources"`
}

// Summarise totals the earned value of completed projects. The portfolio CPI
// is EV over AC across all projects, 1 when nothing has been spent.
func Summarise(results []Result) Totals {
	var t Totals
	for _, r := range results {
		if r.Status != StatusCompleted {
			if r.Status == StatusFailed {
				t.Failed++
			}
			continue
		}
		t.Projects++
		ev := r.Report.EarnedValue
		t.BAC += ev.BAC
		t.EV += ev.EV
		t.AC += ev.AC
		t.EAC += ev.EAC
		if ev.ScheduleHealth == evm.Behind {
			t.ScheduleBehind++
		}
		if ev.CostHealth == evm.Behind {
			t.CostBehind++
		}
		t.Overallocated += len(r.Report.Overallocated())
	}
	t.CPI = 1
	if t.AC > 0 {
		t.CPI = t.EV / t.AC
	}
	return t
}
