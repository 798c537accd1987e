package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/joshharrison/shopledger/internal/analysis"
)

const (
	historyDir  = ".shopledger"
	historyFile = "history.json"
)

// MaxEntriesPerProject bounds how many runs are kept for each project.
const MaxEntriesPerProject = 50

// Entry is the headline of one analysis run.
type Entry struct {
	ProjectID       string    `json:"project_id"`
	RecordedAt      time.Time `json:"recorded_at"`
	AsOf            time.Time `json:"as_of"`
	ProjectDuration int       `json:"project_duration_days"`
	CriticalPath    []string  `json:"critical_path"`
	PercentComplete float64   `json:"percent_complete"`
	SPI             float64   `json:"spi"`
	CPI             float64   `json:"cpi"`
	EAC             float64   `json:"eac"`
	ActualCost      float64   `json:"ac"`
	Overallocated   int       `json:"overallocated"`
}

// FromReport extracts the headline figures of a report.
func FromReport(rpt *analysis.Report, recordedAt time.Time) Entry {
	return Entry{
		ProjectID:       rpt.ProjectID,
		RecordedAt:      recordedAt,
		AsOf:            rpt.AsOf,
		ProjectDuration: rpt.Schedule.ProjectDuration,
		CriticalPath:    rpt.Schedule.CriticalPath,
		PercentComplete: rpt.EarnedValue.PercentComplete,
		SPI:             rpt.EarnedValue.SPI,
		CPI:             rpt.EarnedValue.CPI,
		EAC:             rpt.EarnedValue.EAC,
		ActualCost:      rpt.EarnedValue.AC,
		Overallocated:   len(rpt.Overallocated()),
	}
}

// Store is the persistent run history, keyed by project id.
type Store struct {
	Projects map[string][]Entry `json:"projects"`

	mu   sync.Mutex
	path string
}

// DefaultPath is the history file under the working directory.
func DefaultPath() string {
	return filepath.Join(historyDir, historyFile)
}

// Open reads the history at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{Projects: make(map[string][]Entry), path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	if s.Projects == nil {
		s.Projects = make(map[string][]Entry)
	}
	return s, nil
}

// Save persists the history to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	return os.WriteFile(s.path, data, 0644)
}

// Record appends an entry and saves. Entries stay ordered by RecordedAt and
// only the newest MaxEntriesPerProject are kept.
func (s *Store) Record(e Entry) error {
	if e.ProjectID == "" {
		return fmt.Errorf("history entry has no project id")
	}

	s.mu.Lock()
	entries := append(s.Projects[e.ProjectID], e)
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].RecordedAt.Before(entries[b].RecordedAt)
	})
	if len(entries) > MaxEntriesPerProject {
		entries = entries[len(entries)-MaxEntriesPerProject:]
	}
	s.Projects[e.ProjectID] = entries
	s.mu.Unlock()

	return s.Save()
}

// Last returns the most recent entry for a project, or nil.
func (s *Store) Last(projectID string) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.Projects[projectID]
	if len(entries) == 0 {
		return nil
	}
	e := entries[len(entries)-1]
	return &e
}

// Entries returns a copy of a project's history, oldest first.
func (s *Store) Entries(projectID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.Projects[projectID]))
	copy(out, s.Projects[projectID])
	return out
}

// Clear removes a project's history and saves.
func (s *Store) Clear(projectID string) error {
	s.mu.Lock()
	delete(s.Projects, projectID)
	s.mu.Unlock()
	return s.Save()
}

// Delta is the change between two runs of the same project.
type Delta struct {
	Since           time.Time `json:"since"`
	DurationDays    int       `json:"duration_days"`
	PercentComplete float64   `json:"percent_complete"`
	SPI             float64   `json:"spi"`
	CPI             float64   `json:"cpi"`
	EAC             float64   `json:"eac"`
	CriticalChanged bool      `json:"critical_path_changed"`
}

// Compare returns cur minus prev.
func Compare(prev, cur Entry) Delta {
	return Delta{
		Since:           prev.RecordedAt,
		DurationDays:    cur.ProjectDuration - prev.ProjectDuration,
		PercentComplete: cur.PercentComplete - prev.PercentComplete,
		SPI:             cur.SPI - prev.SPI,
		CPI:             cur.CPI - prev.CPI,
		EAC:             cur.EAC - prev.EAC,
		CriticalChanged: !sameIDs(prev.CriticalPath, cur.CriticalPath),
	}
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
