package pgstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

// Requires a database with the shop schema; set SHOPLEDGER_TEST_DATABASE_URL
// and SHOPLEDGER_TEST_PROJECT_ID to run.
func TestStore_Load(t *testing.T) {
	url := os.Getenv("SHOPLEDGER_TEST_DATABASE_URL")
	projectID := os.Getenv("SHOPLEDGER_TEST_PROJECT_ID")
	if url == "" || projectID == "" {
		t.Skip("SHOPLEDGER_TEST_DATABASE_URL / SHOPLEDGER_TEST_PROJECT_ID not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	snap, err := s.Load(ctx, projectID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Project.ID != projectID {
		t.Errorf("expected project %s, got %s", projectID, snap.Project.ID)
	}

	ids, err := s.ProjectIDs(ctx)
	if err != nil {
		t.Fatalf("project ids: %v", err)
	}
	found := false
	for _, id := range ids {
		if id == projectID {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s among %v", projectID, ids)
	}

	_, err = s.Load(ctx, "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestOpen_EmptyURL(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestLoad_RequiresProjectID(t *testing.T) {
	s := &Store{}
	if _, err := s.Load(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty project id")
	}
}
