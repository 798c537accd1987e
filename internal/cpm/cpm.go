package cpm

import (
	"fmt"
	"sort"

	"github.com/joshharrison/shopledger/internal/graph"
)

// Analyze performs critical path method analysis on a phase graph.
// Durations come from g.Duration. A cyclic graph fails with *graph.CycleError
// before any pass runs; nothing partial is returned.
func Analyze(g *graph.PhaseGraph) (*Result, error) {
	order, err := g.TopoOrder()
	if err != nil {
		return nil, fmt.Errorf("order phases: %w", err)
	}

	result := &Result{
		Schedules: make([]PhaseSchedule, len(g.Order)),
		ByID:      make(map[string]*PhaseSchedule, len(g.Order)),
		TopoOrder: order,
	}

	// Schedules are stored in input order; ByID points into that slice
	for i, id := range g.Order {
		result.Schedules[i] = PhaseSchedule{PhaseID: id, Duration: g.Duration(id)}
		result.ByID[id] = &result.Schedules[i]
	}

	// Forward pass: ES = EF of the predecessor
	for _, id := range order {
		ps := result.ByID[id]
		es := 0
		if pred := g.Predecessor(id); pred != "" {
			es = result.ByID[pred].EarliestFinish
		}
		ps.EarliestStart = es
		ps.EarliestFinish = es + ps.Duration
	}

	projectDuration := 0
	for i := range result.Schedules {
		if ef := result.Schedules[i].EarliestFinish; ef > projectDuration {
			projectDuration = ef
		}
	}
	result.ProjectDuration = projectDuration

	// Backward pass in reverse topological order
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		ps := result.ByID[id]

		succs := g.SuccessorsOf(id)
		if len(succs) == 0 {
			ps.LatestFinish = projectDuration
		} else {
			minLS := projectDuration
			for _, succ := range succs {
				if ls := result.ByID[succ].LatestStart; ls < minLS {
					minLS = ls
				}
			}
			ps.LatestFinish = minLS
		}
		ps.LatestStart = ps.LatestFinish - ps.Duration
		ps.Slack = ps.LatestStart - ps.EarliestStart
		ps.IsCritical = ps.Slack == 0
	}

	for _, id := range order {
		if result.ByID[id].IsCritical {
			result.CriticalPath = append(result.CriticalPath, id)
		}
	}
	result.Chains = criticalChains(g, result)
	result.Waves = computeWaves(result)

	return result, nil
}

// criticalChains splits the critical path into disjoint chains. Each critical
// root starts a chain that follows its first critical successor; where tied
// branches fork, every further branch starts a chain of its own at the fork.
func criticalChains(g *graph.PhaseGraph, result *Result) [][]string {
	var chains [][]string

	var walk func(id string, chain []string)
	walk = func(id string, chain []string) {
		chain = append(chain, id)
		var next []string
		for _, succ := range g.SuccessorsOf(id) {
			if result.ByID[succ].IsCritical {
				next = append(next, succ)
			}
		}
		if len(next) == 0 {
			chains = append(chains, chain)
			return
		}
		walk(next[0], chain)
		for _, succ := range next[1:] {
			walk(succ, nil)
		}
	}

	for _, root := range g.Roots {
		if result.ByID[root].IsCritical {
			walk(root, nil)
		}
	}
	return chains
}

// computeWaves groups phases by their earliest start day.
func computeWaves(result *Result) []Wave {
	esGroups := make(map[int][]string)
	for _, id := range result.TopoOrder {
		es := result.ByID[id].EarliestStart
		esGroups[es] = append(esGroups[es], id)
	}

	esValues := make([]int, 0, len(esGroups))
	for es := range esGroups {
		esValues = append(esValues, es)
	}
	sort.Ints(esValues)

	waves := make([]Wave, len(esValues))
	for i, es := range esValues {
		ids := esGroups[es]

		hasCritical := false
		for _, id := range ids {
			result.ByID[id].Wave = i
			if result.ByID[id].IsCritical {
				hasCritical = true
			}
		}

		// Critical phases first within a wave
		sort.SliceStable(ids, func(a, b int) bool {
			return result.ByID[ids[a]].IsCritical && !result.ByID[ids[b]].IsCritical
		})

		waves[i] = Wave{
			Index:      i,
			Start:      es,
			PhaseIDs:   ids,
			IsCritical: hasCritical,
		}
	}
	return waves
}
