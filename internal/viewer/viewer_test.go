package viewer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joshharrison/shopledger/internal/analysis"
	"github.com/joshharrison/shopledger/internal/model"
)

const sampleSnapshot = `{
  "project": {"id": "p1", "name": "Barn", "original_budget": 1000, "planned_start_date": "2025-05-01", "planned_end_date": "2025-05-11"},
  "phases": [
    {"id": "a", "phase_name": "Footings", "planned_start_date": "2025-05-01", "planned_end_date": "2025-05-03", "phase_budget": 400, "percent_complete": 100, "status": "completed"},
    {"id": "b", "phase_name": "Frame", "planned_start_date": "2025-05-03", "planned_end_date": "2025-05-08", "depends_on_phase_id": "a", "phase_budget": 600, "status": "in_progress"}
  ],
  "cost_items": [{"id": "c1", "category": "timber", "budgeted_amount": "250.00", "actual_spent": "100.25"}],
  "resource_assignments": [{"resource_id": "r1", "resource_type": "employee", "planned_hours": 40}]
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	now := time.Date(2025, time.May, 6, 0, 0, 0, 0, time.UTC)
	ts := httptest.NewServer(NewHandler(analysis.Options{Now: now}))
	t.Cleanup(ts.Close)
	return ts
}

func TestGetReport_NothingLoaded(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/report", "/graph"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}

func TestPostSnapshot_ThenGet(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/snapshot", "application/json", strings.NewReader(sampleSnapshot))
	if err != nil {
		t.Fatalf("POST /snapshot: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var posted analysis.Report
	if err := json.NewDecoder(resp.Body).Decode(&posted); err != nil {
		t.Fatalf("decode POST response: %v", err)
	}
	if posted.ProjectID != "p1" {
		t.Errorf("expected project p1, got %s", posted.ProjectID)
	}
	if posted.Schedule.ProjectDuration != 7 {
		t.Errorf("expected duration 7, got %d", posted.Schedule.ProjectDuration)
	}

	get, err := http.Get(ts.URL + "/report")
	if err != nil {
		t.Fatalf("GET /report: %v", err)
	}
	defer get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", get.StatusCode)
	}
	var got analysis.Report
	if err := json.NewDecoder(get.Body).Decode(&got); err != nil {
		t.Fatalf("decode GET response: %v", err)
	}
	if got.ProjectName != "Barn" {
		t.Errorf("expected project name Barn, got %q", got.ProjectName)
	}
	if !got.Costs.Grand.Spent.Equal(decimal.RequireFromString("100.25")) {
		t.Errorf("expected spent 100.25, got %s", got.Costs.Grand.Spent)
	}

	g, err := http.Get(ts.URL + "/graph")
	if err != nil {
		t.Fatalf("GET /graph: %v", err)
	}
	defer g.Body.Close()
	var graph Graph
	if err := json.NewDecoder(g.Body).Decode(&graph); err != nil {
		t.Fatalf("decode graph: %v", err)
	}
	if len(graph.Nodes) != 2 || len(graph.Edges) != 1 {
		t.Fatalf("expected 2 nodes and 1 edge, got %d and %d", len(graph.Nodes), len(graph.Edges))
	}
	if graph.Edges[0].From != "a" || graph.Edges[0].To != "b" {
		t.Errorf("expected edge a -> b, got %+v", graph.Edges[0])
	}
	if graph.Nodes[1].Title != "Frame" || !graph.Nodes[1].IsCritical {
		t.Errorf("unexpected node %+v", graph.Nodes[1])
	}
}

func TestPostSnapshot_InvalidJSON(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/snapshot", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST /snapshot: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPostSnapshot_CycleRejected(t *testing.T) {
	ts := newTestServer(t)

	doc := `{"project": {"id": "p"}, "phases": [
	  {"id": "x", "depends_on_phase_id": "y"},
	  {"id": "y", "depends_on_phase_id": "x"}
	]}`
	resp, err := http.Post(ts.URL+"/snapshot", "application/json", strings.NewReader(doc))
	if err != nil {
		t.Fatalf("POST /snapshot: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", resp.StatusCode)
	}

	// A rejected snapshot leaves nothing loaded
	get, err := http.Get(ts.URL + "/report")
	if err != nil {
		t.Fatalf("GET /report: %v", err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after rejected snapshot, got %d", get.StatusCode)
	}
}

func TestPostSnapshot_InvalidRecords(t *testing.T) {
	docs := map[string]string{
		"two predecessors": `{"project": {"id": "p"}, "phases": [{"id": "a"}, {"id": "b"}, {"id": "c", "depends_on_phase_id": ["a", "b"]}]}`,
		"NaN progress":     `{"project": {"id": "p", "original_budget": 100}, "phases": [{"id": "a", "phase_budget": 100, "percent_complete": "NaN"}]}`,
		"infinite hours":   `{"project": {"id": "p"}, "resource_assignments": [{"resource_id": "r", "planned_hours": "Infinity"}]}`,
	}

	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			ts := newTestServer(t)
			resp, err := http.Post(ts.URL+"/snapshot", "application/json", strings.NewReader(doc))
			if err != nil {
				t.Fatalf("POST /snapshot: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnprocessableEntity {
				t.Errorf("expected 422, got %d", resp.StatusCode)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/snapshot")
	if err != nil {
		t.Fatalf("GET /snapshot: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func TestPostSnapshotClient(t *testing.T) {
	ts := newTestServer(t)

	start := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 4)
	snap := &model.Snapshot{
		Project: model.Project{ID: "p2", OriginalBudget: 500},
		Phases: []model.Phase{
			{ID: "only", Name: "Only phase", PlannedStart: &start, PlannedEnd: &end, Budget: 500},
		},
		CostItems: []model.CostItem{
			{Category: "paint", BudgetedAmount: decimal.RequireFromString("99.99")},
		},
	}
	if err := PostSnapshot(ts.URL, snap); err != nil {
		t.Fatalf("PostSnapshot: %v", err)
	}

	resp, err := http.Get(ts.URL + "/report")
	if err != nil {
		t.Fatalf("GET /report: %v", err)
	}
	defer resp.Body.Close()
	var got analysis.Report
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ProjectID != "p2" || got.Schedule.ProjectDuration != 4 {
		t.Errorf("expected p2 with duration 4, got %s/%d", got.ProjectID, got.Schedule.ProjectDuration)
	}
	if !got.Costs.Grand.Budgeted.Equal(decimal.RequireFromString("99.99")) {
		t.Errorf("expected budgeted 99.99 to survive the round trip, got %s", got.Costs.Grand.Budgeted)
	}
}

func TestIsPortOpen(t *testing.T) {
	ts := newTestServer(t)
	addr := strings.TrimPrefix(ts.URL, "http://")
	if !IsPortOpen(addr) {
		t.Errorf("expected %s to be open", addr)
	}
}
