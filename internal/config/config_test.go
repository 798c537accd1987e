package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Resource.CapacityHours != 160 {
		t.Errorf("expected capacity 160, got %v", cfg.Resource.CapacityHours)
	}
	if cfg.Schedule.DefaultDurationDays != 7 {
		t.Errorf("expected default duration 7, got %d", cfg.Schedule.DefaultDurationDays)
	}
	if cfg.Narrative.Model != DefaultNarrativeModel {
		t.Errorf("expected model %s, got %s", DefaultNarrativeModel, cfg.Narrative.Model)
	}
	if cfg.Viewer.Port != 7272 {
		t.Errorf("expected port 7272, got %d", cfg.Viewer.Port)
	}
	if cfg.Portfolio.MaxParallel != 4 {
		t.Errorf("expected max parallel 4, got %d", cfg.Portfolio.MaxParallel)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "custom.yaml")
	yml := `resource:
  capacity_hours: 140
schedule:
  default_duration_days: 5
database:
  url: postgres://file/db
`
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SHOPLEDGER_SCHEDULE_DEFAULT_DURATION_DAYS", "10")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Resource.CapacityHours != 140 {
		t.Errorf("expected capacity 140 from file, got %v", cfg.Resource.CapacityHours)
	}
	if cfg.Schedule.DefaultDurationDays != 10 {
		t.Errorf("expected env override 10, got %d", cfg.Schedule.DefaultDurationDays)
	}
	if cfg.Database.URL != "postgres://file/db" {
		t.Errorf("expected database url from file, got %q", cfg.Database.URL)
	}
	if cfg.Narrative.APIKey != "sk-test" {
		t.Errorf("expected api key from ANTHROPIC_API_KEY, got %q", cfg.Narrative.APIKey)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("DATABASE_URL=postgres://dotenv/db\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.URL != "postgres://dotenv/db" {
		t.Errorf("expected database url from .env, got %q", cfg.Database.URL)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load("nope.yaml"); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{Resource: ResourceConfig{CapacityHours: 0}, Viewer: ViewerConfig{Port: 80}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero capacity")
	}
	cfg = &Config{Resource: ResourceConfig{CapacityHours: 160}, Viewer: ViewerConfig{Port: 70000}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for port out of range")
	}
	cfg = &Config{Resource: ResourceConfig{CapacityHours: 160}, Viewer: ViewerConfig{Port: 80}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero portfolio parallelism")
	}
}
