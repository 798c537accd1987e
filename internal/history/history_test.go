package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joshharrison/shopledger/internal/analysis"
	"github.com/joshharrison/shopledger/internal/model"
)

func TestOpen_MissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "nope", "history.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Last("p1") != nil {
		t.Error("expected no entries in a fresh store")
	}
}

func TestRecordAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".shopledger", "history.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	base := time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC)
	if err := s.Record(Entry{ProjectID: "p1", RecordedAt: base, SPI: 0.9, ProjectDuration: 20}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(Entry{ProjectID: "p1", RecordedAt: base.Add(time.Hour), SPI: 1.05, ProjectDuration: 22}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(Entry{ProjectID: "p2", RecordedAt: base, CPI: 0.5}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	loaded, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	last := loaded.Last("p1")
	if last == nil {
		t.Fatal("expected last entry for p1")
	}
	if last.SPI != 1.05 || last.ProjectDuration != 22 {
		t.Errorf("expected newest entry, got %+v", last)
	}
	if got := len(loaded.Entries("p1")); got != 2 {
		t.Errorf("expected 2 entries for p1, got %d", got)
	}
	if got := len(loaded.Entries("p2")); got != 1 {
		t.Errorf("expected 1 entry for p2, got %d", got)
	}
}

func TestRecord_OutOfOrder(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	late := time.Date(2025, time.May, 2, 0, 0, 0, 0, time.UTC)
	early := late.AddDate(0, 0, -1)

	s.Record(Entry{ProjectID: "p", RecordedAt: late, CPI: 2})
	s.Record(Entry{ProjectID: "p", RecordedAt: early, CPI: 1})

	if last := s.Last("p"); last.CPI != 2 {
		t.Errorf("expected the latest recorded entry last, got CPI %v", last.CPI)
	}
}

func TestRecord_Bounded(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < MaxEntriesPerProject+5; i++ {
		if err := s.Record(Entry{ProjectID: "p", RecordedAt: base.Add(time.Duration(i) * time.Hour), ProjectDuration: i}); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}
	entries := s.Entries("p")
	if len(entries) != MaxEntriesPerProject {
		t.Fatalf("expected %d entries, got %d", MaxEntriesPerProject, len(entries))
	}
	if entries[0].ProjectDuration != 5 {
		t.Errorf("expected oldest entries dropped, first is %d", entries[0].ProjectDuration)
	}
}

func TestRecord_RequiresProject(t *testing.T) {
	s, _ := Open(filepath.Join(t.TempDir(), "history.json"))
	if err := s.Record(Entry{}); err == nil {
		t.Fatal("expected error for entry without project id")
	}
}

func TestOpen_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s, _ := Open(path)
	s.Record(Entry{ProjectID: "p", RecordedAt: time.Now()})

	if err := s.Clear("p"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	loaded, _ := Open(path)
	if loaded.Last("p") != nil {
		t.Error("expected history cleared on disk")
	}
}

func TestFromReportAndCompare(t *testing.T) {
	start := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 10)
	rpt, err := analysis.Build(&model.Snapshot{
		Project: model.Project{ID: "p", OriginalBudget: 1000, ActualSpent: 250, PlannedStartDate: &start, PlannedEndDate: &end},
		Phases: []model.Phase{
			{ID: "a", PlannedStart: &start, PlannedEnd: &end, Budget: 1000, PercentComplete: 50},
		},
		Assignments: []model.ResourceAssignment{
			{ResourceID: "r", ResourceType: "employee", PlannedHours: 200},
		},
	}, analysis.Options{Now: start.AddDate(0, 0, 5)})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}

	cur := FromReport(rpt, start.AddDate(0, 0, 5))
	if cur.ProjectID != "p" || cur.ProjectDuration != 10 {
		t.Errorf("unexpected entry %+v", cur)
	}
	if cur.CPI != 2 || cur.Overallocated != 1 {
		t.Errorf("expected CPI 2 and one overallocated resource, got %+v", cur)
	}

	prev := Entry{ProjectID: "p", RecordedAt: start, ProjectDuration: 8, CPI: 1.5, CriticalPath: []string{"a"}}
	d := Compare(prev, cur)
	if d.DurationDays != 2 {
		t.Errorf("expected +2 days, got %d", d.DurationDays)
	}
	if d.CPI != 0.5 {
		t.Errorf("expected CPI +0.5, got %v", d.CPI)
	}
	if d.CriticalChanged {
		t.Error("expected same critical path")
	}
	if !d.Since.Equal(start) {
		t.Errorf("expected since %v, got %v", start, d.Since)
	}
}
