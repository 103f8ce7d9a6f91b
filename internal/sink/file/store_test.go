package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charlaomota/V360/internal/domain"
)

func sampleReport(query string) *domain.ConsolidatedReport {
	return &domain.ConsolidatedReport{
		Query:     query,
		Timestamp: time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC),
		PerProvider: map[string]domain.ProviderResult{
			"tavily": {
				Provider:     "tavily",
				KeyUsed:      "tvly-key-00...",
				Results:      []domain.SearchItem{{Title: "Result", URL: "https://example.com"}},
				TotalResults: 1,
			},
		},
		CollectedSize: 1200,
		Stopped:       domain.StopBudget,
		Success:       true,
	}
}

func TestStore_SaveLoad(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	report := sampleReport("fintech trends 2025")

	name, err := store.Save(ctx, report)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.HasPrefix(name, "RES_BUSCA_") {
		t.Errorf("Save() name = %q, want RES_BUSCA_ prefix", name)
	}

	loaded, err := store.Load(ctx, name)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.Query != report.Query {
		t.Errorf("Query = %q, want %q", loaded.Query, report.Query)
	}
	if loaded.CollectedSize != report.CollectedSize {
		t.Errorf("CollectedSize = %d, want %d", loaded.CollectedSize, report.CollectedSize)
	}
	if loaded.PerProvider["tavily"].TotalResults != 1 {
		t.Error("provider results lost in round trip")
	}
}

func TestStore_SaveOverwritesSameName(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	report := sampleReport("same query")

	if _, err := store.Save(ctx, report); err != nil {
		t.Fatalf("Save() #1 error = %v", err)
	}

	report.CollectedSize = 9999
	name, err := store.Save(ctx, report)
	if err != nil {
		t.Fatalf("Save() #2 error = %v", err)
	}

	loaded, err := store.Load(ctx, name)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.CollectedSize != 9999 {
		t.Errorf("CollectedSize = %d, want overwritten value 9999", loaded.CollectedSize)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d files, want 1 (same name overwrites)", len(entries))
	}
}

func TestStore_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := store.Save(context.Background(), sampleReport("query")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := store.Load(context.Background(), "RES_BUSCA_missing_20250601_000000"); err == nil {
		t.Error("Load() of missing report returned nil error")
	}
}

func TestStore_CanceledContext(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Save(ctx, sampleReport("query")); err == nil {
		t.Error("Save() with canceled context returned nil error")
	}
}
