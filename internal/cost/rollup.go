package cost

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/joshharrison/shopledger/internal/model"
)

// GeneralBucket collects ledger items that are not tied to a phase.
const GeneralBucket = "general"

// Bucket is the budget/committed/spent sum of a group of ledger items.
// Variance is positive when the group is under budget.
type Bucket struct {
	Budgeted  decimal.Decimal `json:"budgeted" yaml:"budgeted"`
	Committed decimal.Decimal `json:"committed" yaml:"committed"`
	Spent     decimal.Decimal `json:"spent" yaml:"spent"`
	Variance  decimal.Decimal `json:"variance" yaml:"variance"`
	Items     int             `json:"items" yaml:"items"`
}

func (b Bucket) add(item model.CostItem) Bucket {
	b.Budgeted = b.Budgeted.Add(item.BudgetedAmount)
	b.Committed = b.Committed.Add(item.CommittedAmount)
	b.Spent = b.Spent.Add(item.ActualSpent)
	b.Variance = b.Budgeted.Sub(b.Spent)
	b.Items++
	return b
}

// OverBudget reports whether more was spent than budgeted.
func (b Bucket) OverBudget() bool {
	return b.Variance.IsNegative()
}

// Totals is the cost ledger grouped by category and by phase.
type Totals struct {
	ByCategory map[string]Bucket `json:"by_category" yaml:"by_category"`
	ByPhase    map[string]Bucket `json:"by_phase" yaml:"by_phase"`
}

// Rollup groups a cost ledger into category and phase totals.
// An empty ledger yields empty maps.
func Rollup(items []model.CostItem) (*Totals, error) {
	t := &Totals{
		ByCategory: make(map[string]Bucket),
		ByPhase:    make(map[string]Bucket),
	}

	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
		t.ByCategory[item.Category] = t.ByCategory[item.Category].add(item)

		phase := item.PhaseID
		if phase == "" {
			phase = GeneralBucket
		}
		t.ByPhase[phase] = t.ByPhase[phase].add(item)
	}
	return t, nil
}

// Grand returns the ledger-wide totals.
func (t *Totals) Grand() Bucket {
	var g Bucket
	for _, b := range t.ByCategory {
		g.Budgeted = g.Budgeted.Add(b.Budgeted)
		g.Committed = g.Committed.Add(b.Committed)
		g.Spent = g.Spent.Add(b.Spent)
		g.Items += b.Items
	}
	g.Variance = g.Budgeted.Sub(g.Spent)
	return g
}

// Categories returns category names by budgeted amount, largest first.
func (t *Totals) Categories() []string {
	return sortedKeys(t.ByCategory)
}

// Phases returns phase ids by budgeted amount, largest first.
func (t *Totals) Phases() []string {
	return sortedKeys(t.ByPhase)
}

func sortedKeys(m map[string]Bucket) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if c := m[keys[a]].Budgeted.Cmp(m[keys[b]].Budgeted); c != 0 {
			return c > 0
		}
		return keys[a] < keys[b]
	})
	return keys
}
