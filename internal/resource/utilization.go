package resource

import (
	"sort"
	"time"

	"github.com/joshharrison/shopledger/internal/model"
)

// DefaultCapacityHours is a standard full-time month for one resource.
const DefaultCapacityHours = 160.0

// Window is a half-open time range [From, To).
type Window struct {
	From time.Time `json:"from" yaml:"from"`
	To   time.Time `json:"to" yaml:"to"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// MonthWindow returns the calendar month containing t, in t's location.
func MonthWindow(t time.Time) Window {
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return Window{From: from, To: from.AddDate(0, 1, 0)}
}

// Options tunes utilization analysis.
type Options struct {
	CapacityHours float64 // 0 means DefaultCapacityHours
	Window        *Window // nil counts every assignment
}

// UtilizationRecord is the planned load of one resource across projects.
type UtilizationRecord struct {
	ResourceType       string   `json:"resource_type" yaml:"resource_type"`
	ResourceID         string   `json:"resource_id" yaml:"resource_id"`
	TotalPlannedHours  float64  `json:"total_planned_hours" yaml:"total_planned_hours"`
	UtilizationPercent float64  `json:"utilization_percent" yaml:"utilization_percent"`
	IsOverallocated    bool     `json:"is_overallocated" yaml:"is_overallocated"`
	Assignments        int      `json:"assignments" yaml:"assignments"`
	Projects           []string `json:"projects" yaml:"projects"`
}

type resourceKey struct {
	typ string
	id  string
}

// Analyze sums planned hours per (type, id) resource and rates them against
// the monthly capacity. Records are ordered most utilized first.
func Analyze(assignments []model.ResourceAssignment, opts Options) ([]UtilizationRecord, error) {
	capacity := opts.CapacityHours
	if capacity <= 0 {
		capacity = DefaultCapacityHours
	}

	byKey := make(map[resourceKey]*UtilizationRecord)
	seenProject := make(map[resourceKey]map[string]bool)
	var keys []resourceKey

	for _, a := range assignments {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if opts.Window != nil && (a.ScheduledOn == nil || !opts.Window.Contains(*a.ScheduledOn)) {
			continue
		}

		k := resourceKey{typ: a.ResourceType, id: a.ResourceID}
		rec, ok := byKey[k]
		if !ok {
			rec = &UtilizationRecord{ResourceType: a.ResourceType, ResourceID: a.ResourceID}
			byKey[k] = rec
			seenProject[k] = make(map[string]bool)
			keys = append(keys, k)
		}
		rec.TotalPlannedHours += a.PlannedHours
		rec.Assignments++
		if a.ProjectID != "" && !seenProject[k][a.ProjectID] {
			seenProject[k][a.ProjectID] = true
			rec.Projects = append(rec.Projects, a.ProjectID)
		}
	}

	records := make([]UtilizationRecord, 0, len(keys))
	for _, k := range keys {
		rec := byKey[k]
		rec.UtilizationPercent = rec.TotalPlannedHours / capacity * 100
		rec.IsOverallocated = rec.TotalPlannedHours > capacity
		sort.Strings(rec.Projects)
		records = append(records, *rec)
	}

	sort.SliceStable(records, func(a, b int) bool {
		ra, rb := records[a], records[b]
		if ra.UtilizationPercent != rb.UtilizationPercent {
			return ra.UtilizationPercent > rb.UtilizationPercent
		}
		if ra.ResourceType != rb.ResourceType {
			return ra.ResourceType < rb.ResourceType
		}
		return ra.ResourceID < rb.ResourceID
	})
	return records, nil
}

// Overallocated filters records down to the over-committed resources.
func Overallocated(records []UtilizationRecord) []UtilizationRecord {
	var out []UtilizationRecord
	for _, r := range records {
		if r.IsOverallocated {
			out = append(out, r)
		}
	}
	return out
}
