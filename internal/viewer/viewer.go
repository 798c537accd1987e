package viewer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/joshharrison/shopledger/internal/analysis"
	"github.com/joshharrison/shopledger/internal/model"
	"github.com/joshharrison/shopledger/internal/snapshot"
)

// maxSnapshotBytes bounds a POSTed snapshot document.
const maxSnapshotBytes = 16 << 20

// --- Graph types (phase timeline for a front end) ---

type GraphNode struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Status          string  `json:"status"`
	IsCritical      bool    `json:"is_critical"`
	IsMilestone     bool    `json:"is_milestone"`
	WaveIndex       int     `json:"wave_index"`
	EarliestStart   int     `json:"earliest_start"`
	EarliestFinish  int     `json:"earliest_finish"`
	Slack           int     `json:"slack"`
	PercentComplete float64 `json:"percent_complete"`
}

type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type GraphMetadata struct {
	ProjectID       string `json:"project_id"`
	ProjectName     string `json:"project_name"`
	AsOf            string `json:"as_of"`
	TotalPhases     int    `json:"total_phases"`
	TotalWaves      int    `json:"total_waves"`
	ProjectDuration int    `json:"project_duration_days"`
}

type Graph struct {
	Nodes        []GraphNode   `json:"nodes"`
	Edges        []GraphEdge   `json:"edges"`
	CriticalPath []string      `json:"critical_path"`
	Metadata     GraphMetadata `json:"metadata"`
}

// toGraph converts a report's schedule into the normalised Graph a UI renders.
func toGraph(rpt *analysis.Report) *Graph {
	s := rpt.Schedule
	nodes := make([]GraphNode, 0, len(s.Phases))
	for _, p := range s.Phases {
		title := p.Name
		if title == "" {
			title = p.PhaseID
		}
		nodes = append(nodes, GraphNode{
			ID:              p.PhaseID,
			Title:           title,
			Status:          p.Status,
			IsCritical:      p.IsCritical,
			IsMilestone:     p.IsMilestone,
			WaveIndex:       p.Wave,
			EarliestStart:   p.EarliestStart,
			EarliestFinish:  p.EarliestFinish,
			Slack:           p.Slack,
			PercentComplete: p.PercentComplete,
		})
	}

	edges := make([]GraphEdge, 0, len(s.Deps.Predecessors))
	for phaseID, pred := range s.Deps.Predecessors {
		edges = append(edges, GraphEdge{From: pred, To: phaseID})
	}
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].From != edges[b].From {
			return edges[a].From < edges[b].From
		}
		return edges[a].To < edges[b].To
	})

	return &Graph{
		Nodes:        nodes,
		Edges:        edges,
		CriticalPath: s.CriticalPath,
		Metadata: GraphMetadata{
			ProjectID:       rpt.ProjectID,
			ProjectName:     rpt.ProjectName,
			AsOf:            rpt.AsOf.Format(time.RFC3339),
			TotalPhases:     len(s.Phases),
			TotalWaves:      len(s.Waves),
			ProjectDuration: s.ProjectDuration,
		},
	}
}

// --- HTTP server ---

type server struct {
	opts analysis.Options

	mu     sync.RWMutex
	report *analysis.Report
}

func (s *server) handlePostSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxSnapshotBytes))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	snap, err := snapshot.Parse(data)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, model.ErrInvalidInput) {
			code = http.StatusUnprocessableEntity
		}
		http.Error(w, "invalid snapshot: "+err.Error(), code)
		return
	}

	opts := s.opts
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	rpt, err := analysis.Build(snap, opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	s.report = rpt
	s.mu.Unlock()

	log.Printf("viewer: loaded project %s (%d phases)", rpt.ProjectID, len(rpt.Schedule.Phases))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(rpt)
}

func (s *server) current() *analysis.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

func (s *server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rpt := s.current()
	if rpt == nil {
		http.Error(w, "no snapshot loaded", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rpt)
}

func (s *server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	rpt := s.current()
	if rpt == nil {
		http.Error(w, "no snapshot loaded", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toGraph(rpt))
}

// NewHandler returns the viewer routes. Reports are built with opts; a zero
// opts.Now means the time each snapshot is received.
func NewHandler(opts analysis.Options) http.Handler {
	srv := &server{opts: opts}
	mux := http.NewServeMux()

	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		srv.handlePostSnapshot(w, r)
	})
	mux.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		srv.handleGetReport(w, r)
	})
	mux.HandleFunc("/graph", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		srv.handleGetGraph(w, r)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("shopledger viewer\n\nPOST /snapshot  load a project snapshot\nGET  /report    last analysis report\nGET  /graph     phase timeline graph\n"))
	})

	return mux
}

// Start launches the viewer HTTP server on the given port in the background.
// Returns the base URL (e.g. "http://localhost:7272") or an error.
func Start(port int, opts analysis.Options) (string, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return "", fmt.Errorf("listen on port %d: %w", port, err)
	}

	go http.Serve(ln, NewHandler(opts))

	addr := fmt.Sprintf("http://localhost:%d", port)
	return addr, nil
}

// PostSnapshot sends a snapshot to a running viewer server.
func PostSnapshot(addr string, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	resp, err := http.Post(addr+"/snapshot", "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("POST /snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("POST /snapshot returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	return nil
}

// IsPortOpen checks if something is listening on the given address.
func IsPortOpen(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
