package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joshharrison/shopledger/internal/model"
)

// ErrCycleDetected is matched by every *CycleError via errors.Is.
var ErrCycleDetected = errors.New("dependency cycle detected")

// CycleError reports a phase that transitively depends on itself.
type CycleError struct {
	PhaseID string
	Path    []string // forward order, first element repeated at the end
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected at phase %s: %s", e.PhaseID, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// Build constructs a PhaseGraph from a flat phase list. The input slice is
// copied; later changes to it do not affect the graph.
func Build(phases []model.Phase, opts Options) (*PhaseGraph, error) {
	g := &PhaseGraph{
		Phases:          make(map[string]*model.Phase, len(phases)),
		Successors:      make(map[string][]string),
		defaultDuration: opts.DefaultDuration,
		index:           make(map[string]int, len(phases)),
	}
	if g.defaultDuration <= 0 {
		g.defaultDuration = DefaultDurationDays
	}

	// Index all phases
	owned := make([]model.Phase, len(phases))
	copy(owned, phases)
	for i := range owned {
		p := &owned[i]
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := g.Phases[p.ID]; dup {
			return nil, &model.InvalidInputError{Kind: "phase", ID: p.ID, Field: "id", Reason: "is duplicated"}
		}
		g.Phases[p.ID] = p
		g.index[p.ID] = i
		g.Order = append(g.Order, p.ID)
	}

	for _, id := range g.Order {
		pred := g.Phases[id].DependsOn
		if pred == "" {
			g.Roots = append(g.Roots, id)
			continue
		}
		if _, ok := g.Phases[pred]; !ok {
			return nil, &model.InvalidInputError{Kind: "phase", ID: id, Field: "depends_on_phase_id", Reason: fmt.Sprintf("references unknown phase %s", pred)}
		}
		g.Successors[pred] = append(g.Successors[pred], id)
	}

	for _, id := range g.Order {
		if len(g.Successors[id]) == 0 {
			g.Leaves = append(g.Leaves, id)
		}
	}

	if cycle := g.DetectCycle(); cycle != nil {
		return nil, cycle
	}

	return g, nil
}

// Duration returns a phase's duration in whole days. Milestones take no time;
// phases missing a planned date fall back to the default duration.
func (g *PhaseGraph) Duration(id string) int {
	p, ok := g.Phases[id]
	if !ok {
		return 0
	}
	if p.IsMilestone {
		return 0
	}
	if p.PlannedStart == nil || p.PlannedEnd == nil {
		return g.defaultDuration
	}
	days := calendarDays(*p.PlannedStart, *p.PlannedEnd)
	if days < 1 {
		return 1
	}
	return days
}

// calendarDays counts the dates between start and end, each read in its own
// zone, so a DST change inside the span does not add a day. A later clock
// time on the end date than on the start date counts as one more day.
func calendarDays(start, end time.Time) int {
	sd := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	ed := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	days := int(ed.Sub(sd) / (24 * time.Hour))
	if clock(end) > clock(start) {
		days++
	}
	return days
}

func clock(t time.Time) time.Duration {
	return t.Sub(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()))
}

// SuccessorsOf returns the phases that name id as their predecessor, in input order.
func (g *PhaseGraph) SuccessorsOf(id string) []string {
	return g.Successors[id]
}

// Predecessor returns the phase id depends on, or "" for roots.
func (g *PhaseGraph) Predecessor(id string) string {
	if p, ok := g.Phases[id]; ok {
		return p.DependsOn
	}
	return ""
}

// PhaseCount returns the number of phases in the graph.
func (g *PhaseGraph) PhaseCount() int {
	return len(g.Phases)
}

// DetectCycle returns the first cycle found, or nil if the graph is acyclic.
// Uses DFS with coloring: white (unvisited), gray (on the current path), black (done).
// Every phase is a start point, since phases on a cycle are never roots.
func (g *PhaseGraph) DetectCycle() *CycleError {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int, len(g.Phases))
	parent := make(map[string]string)

	var dfs func(node string) *CycleError
	dfs = func(node string) *CycleError {
		color[node] = gray
		for _, next := range g.Successors[node] {
			if color[next] == gray {
				// Walk parents back to next to recover the cycle
				cycle := []string{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return &CycleError{PhaseID: next, Path: cycle}
			}
			if color[next] == white {
				parent[next] = node
				if c := dfs(next); c != nil {
					return c
				}
			}
		}
		color[node] = black
		return nil
	}

	for _, id := range g.Order {
		if color[id] == white {
			if c := dfs(id); c != nil {
				return c
			}
		}
	}
	return nil
}

// TopoOrder returns phase ids with every predecessor before its successors.
// Ties keep input order. Fails with *CycleError if the graph is cyclic.
func (g *PhaseGraph) TopoOrder() ([]string, error) {
	inDegree := make(map[string]int, len(g.Phases))
	for _, id := range g.Order {
		if g.Phases[id].DependsOn != "" {
			inDegree[id] = 1
		}
	}

	queue := append([]string(nil), g.Roots...)
	order := make([]string, 0, len(g.Order))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var ready []string
		for _, succ := range g.Successors[node] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
		sort.Slice(ready, func(a, b int) bool { return g.index[ready[a]] < g.index[ready[b]] })
		queue = append(queue, ready...)
	}

	if len(order) != len(g.Order) {
		if c := g.DetectCycle(); c != nil {
			return nil, c
		}
		return nil, fmt.Errorf("topological sort failed: %d of %d phases sorted", len(order), len(g.Order))
	}
	return order, nil
}
