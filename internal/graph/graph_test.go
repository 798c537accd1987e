package graph

import (
	"errors"
	"testing"
	"time"

	"github.com/joshharrison/shopledger/internal/model"
)

func day(n int) *time.Time {
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return &t
}

func TestBuild_Chain(t *testing.T) {
	// A -> B -> C
	phases := []model.Phase{
		{ID: "a", Name: "Demolition"},
		{ID: "b", Name: "Framing", DependsOn: "a"},
		{ID: "c", Name: "Drywall", DependsOn: "b"},
	}

	g, err := Build(phases, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.PhaseCount() != 3 {
		t.Errorf("expected 3 phases, got %d", g.PhaseCount())
	}
	if len(g.Roots) != 1 || g.Roots[0] != "a" {
		t.Errorf("expected roots=[a], got %v", g.Roots)
	}
	if len(g.Leaves) != 1 || g.Leaves[0] != "c" {
		t.Errorf("expected leaves=[c], got %v", g.Leaves)
	}
	if succ := g.SuccessorsOf("a"); len(succ) != 1 || succ[0] != "b" {
		t.Errorf("expected successors of a=[b], got %v", succ)
	}
	if pred := g.Predecessor("c"); pred != "b" {
		t.Errorf("expected predecessor of c=b, got %q", pred)
	}
}

func TestBuild_Forest(t *testing.T) {
	// A -> B, A -> C, D standalone
	phases := []model.Phase{
		{ID: "a"},
		{ID: "b", DependsOn: "a"},
		{ID: "c", DependsOn: "a"},
		{ID: "d"},
	}

	g, err := Build(phases, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g.Roots) != 2 || g.Roots[0] != "a" || g.Roots[1] != "d" {
		t.Errorf("expected roots=[a d], got %v", g.Roots)
	}
	if len(g.Leaves) != 3 {
		t.Errorf("expected 3 leaves, got %v", g.Leaves)
	}
	if succ := g.SuccessorsOf("a"); len(succ) != 2 {
		t.Errorf("expected a to have 2 successors, got %v", succ)
	}
}

func TestBuild_Empty(t *testing.T) {
	g, err := Build(nil, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.PhaseCount() != 0 {
		t.Errorf("expected 0 phases, got %d", g.PhaseCount())
	}
	order, err := g.TopoOrder()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("expected empty order, got %v", order)
	}
}

func TestBuild_CycleDetection(t *testing.T) {
	// X depends on Y, Y depends on X
	phases := []model.Phase{
		{ID: "x", DependsOn: "y"},
		{ID: "y", DependsOn: "x"},
	}

	_, err := Build(phases, Options{})
	if err == nil {
		t.Fatal("expected cycle error, got nil")
	}
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if ce.PhaseID != "x" && ce.PhaseID != "y" {
		t.Errorf("expected cycle at x or y, got %s", ce.PhaseID)
	}
	if len(ce.Path) != 3 || ce.Path[0] != ce.Path[2] {
		t.Errorf("expected closed path of length 3, got %v", ce.Path)
	}
}

func TestBuild_CycleHangingOffTree(t *testing.T) {
	// r is a healthy root; a -> b -> c -> a is a cycle with a tail d
	phases := []model.Phase{
		{ID: "r"},
		{ID: "a", DependsOn: "c"},
		{ID: "b", DependsOn: "a"},
		{ID: "c", DependsOn: "b"},
		{ID: "d", DependsOn: "c"},
	}

	_, err := Build(phases, Options{})
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}

func TestBuild_SelfDependency(t *testing.T) {
	_, err := Build([]model.Phase{{ID: "solo", DependsOn: "solo"}}, Options{})
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}

func TestBuild_UnknownPredecessor(t *testing.T) {
	_, err := Build([]model.Phase{{ID: "a", DependsOn: "ghost"}}, Options{})
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestBuild_DuplicateID(t *testing.T) {
	_, err := Build([]model.Phase{{ID: "a"}, {ID: "a"}}, Options{})
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestBuild_InvalidPhase(t *testing.T) {
	_, err := Build([]model.Phase{{ID: "a", PercentComplete: 140}}, Options{})
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestBuild_DoesNotAliasInput(t *testing.T) {
	phases := []model.Phase{{ID: "a", Name: "Before"}}
	g, err := Build(phases, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	phases[0].Name = "After"
	if g.Phases["a"].Name != "Before" {
		t.Errorf("graph should own a copy of the phase, got name %q", g.Phases["a"].Name)
	}
}

func TestDuration(t *testing.T) {
	phases := []model.Phase{
		{ID: "dated", PlannedStart: day(0), PlannedEnd: day(5)},
		{ID: "same-day", PlannedStart: day(3), PlannedEnd: day(3)},
		{ID: "no-end", PlannedStart: day(0)},
		{ID: "no-dates"},
		{ID: "milestone", IsMilestone: true, MilestoneDate: day(9)},
	}

	g, err := Build(phases, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]int{
		"dated":     5,
		"same-day":  1,
		"no-end":    7,
		"no-dates":  7,
		"milestone": 0,
		"missing":   0,
	}
	for id, d := range want {
		if got := g.Duration(id); got != d {
			t.Errorf("duration(%s): expected %d, got %d", id, d, got)
		}
	}
}

func TestDuration_CustomDefault(t *testing.T) {
	g, err := Build([]model.Phase{{ID: "a"}}, Options{DefaultDuration: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := g.Duration("a"); got != 3 {
		t.Errorf("expected duration 3, got %d", got)
	}
}

func TestDuration_PartialDayRoundsUp(t *testing.T) {
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 3, 17, 0, 0, 0, time.UTC)
	g, err := Build([]model.Phase{{ID: "a", PlannedStart: &start, PlannedEnd: &end}}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := g.Duration("a"); got != 3 {
		t.Errorf("expected duration 3, got %d", got)
	}
}

func TestDuration_AcrossDSTChange(t *testing.T) {
	// Seven calendar days spanning the November fall-back are 169 hours.
	edt := time.FixedZone("EDT", -4*60*60)
	est := time.FixedZone("EST", -5*60*60)
	start := time.Date(2025, 11, 1, 0, 0, 0, 0, edt)
	end := time.Date(2025, 11, 8, 0, 0, 0, 0, est)

	springStart := time.Date(2025, 3, 8, 0, 0, 0, 0, est)
	springEnd := time.Date(2025, 3, 15, 0, 0, 0, 0, edt)

	g, err := Build([]model.Phase{
		{ID: "fall", PlannedStart: &start, PlannedEnd: &end},
		{ID: "spring", PlannedStart: &springStart, PlannedEnd: &springEnd},
	}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []string{"fall", "spring"} {
		if got := g.Duration(id); got != 7 {
			t.Errorf("duration(%s): expected 7, got %d", id, got)
		}
	}
}

func TestTopoOrder_PredecessorsFirst(t *testing.T) {
	// Input lists successors before their predecessors
	phases := []model.Phase{
		{ID: "c", DependsOn: "b"},
		{ID: "b", DependsOn: "a"},
		{ID: "z"},
		{ID: "a"},
	}

	g, err := Build(phases, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order, err := g.TopoOrder()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	if len(order) != 4 {
		t.Fatalf("expected 4 phases in order, got %v", order)
	}
	if !(pos["a"] < pos["b"] && pos["b"] < pos["c"]) {
		t.Errorf("expected a before b before c, got %v", order)
	}
	if order[0] != "z" {
		t.Errorf("expected roots in input order (z first), got %v", order)
	}
}

func TestDetectCycle_NoCycle(t *testing.T) {
	g, err := Build([]model.Phase{{ID: "a"}, {ID: "b", DependsOn: "a"}}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c := g.DetectCycle(); c != nil {
		t.Errorf("expected no cycle, got %v", c)
	}
}
