package engine

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/diogenlabs/semvec/pkg/patterns"
)

func newMemoryEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := Open(DefaultOptions(""))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestOpenInMemory(t *testing.T) {
	eng := newMemoryEngine(t)

	if _, err := eng.AddPattern("p1", "user prefers dark mode", nil); err != nil {
		t.Fatalf("AddPattern: %v", err)
	}
	matches, err := eng.FindSimilar("user prefers dark mode", 1, nil)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(matches) == 0 || matches[0].Pattern.ID != "p1" {
		t.Fatalf("FindSimilar = %v, want p1", matches)
	}

	// Save without a data dir is a no-op, not an error.
	if err := eng.Save(); err != nil {
		t.Fatalf("Save without DataDir: %v", err)
	}
}

func TestStoreAndSearchText(t *testing.T) {
	eng := newMemoryEngine(t)

	if err := eng.StoreText("d1", "the meeting moved to thursday", nil); err != nil {
		t.Fatalf("StoreText: %v", err)
	}
	results, err := eng.SearchText("the meeting moved to thursday", 1, nil)
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(results) == 0 || results[0].ID != "d1" {
		t.Fatalf("SearchText = %v, want d1", results)
	}

	// Plain documents are not patterns.
	matches, err := eng.FindSimilar("the meeting moved to thursday", 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range matches {
		if m.Pattern.ID == "d1" {
			t.Fatal("stored document surfaced as a pattern")
		}
	}

	if !eng.DeleteText("d1") {
		t.Fatal("DeleteText(d1) = false")
	}
	if eng.DeleteText("d1") {
		t.Fatal("second DeleteText(d1) = true")
	}
}

func TestSnapshotRestoreStream(t *testing.T) {
	eng := newMemoryEngine(t)

	if _, err := eng.AddPattern("p1", "retries mask the real failure", nil); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := eng.Snapshot(&buf); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if _, err := eng.AddPattern("p2", "added after the snapshot", nil); err != nil {
		t.Fatal(err)
	}
	if err := eng.Restore(&buf); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if eng.Matcher().Len() != 1 {
		t.Fatalf("Len after restore = %d, want 1", eng.Matcher().Len())
	}
	if _, ok := eng.Matcher().GetPattern("p2"); ok {
		t.Fatal("post-snapshot pattern survived restore")
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	opts := DefaultOptions(dir)
	eng, err := Open(opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := eng.AddPattern("p1", "deploys fail on fridays", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.ExtractFromJudgment(patterns.JudgmentRecord{
		ID:        "j1",
		Verdict:   "GROWL",
		Reasoning: "the claim contradicts the cited source",
	}); err != nil {
		t.Fatal(err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "semvec.snap")); err != nil {
		t.Fatalf("snapshot file missing after Close: %v", err)
	}

	reopened, err := Open(opts)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if reopened.Matcher().Len() != 2 {
		t.Fatalf("Len after reopen = %d, want 2", reopened.Matcher().Len())
	}
	match, err := reopened.MatchExisting("deploys fail on fridays", 0)
	if err != nil {
		t.Fatal(err)
	}
	if match == nil || match.Pattern.ID != "p1" {
		t.Fatalf("MatchExisting after reopen = %v, want p1", match)
	}
}

func TestLoadOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yamlCfg := `
data_dir: /var/lib/semvec
auto_save_interval: 30s
auto_save_threshold: 500
embedder:
  type: local
  dimension: 128
store:
  name: prod
  cache_size: 5000
  index:
    m: 32
    ef_search: 100
matcher:
  name: prod
  match_threshold: 0.5
`
	if err := os.WriteFile(path, []byte(yamlCfg), 0644); err != nil {
		t.Fatal(err)
	}

	opts, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("LoadOptions: %v", err)
	}
	if opts.DataDir != "/var/lib/semvec" {
		t.Errorf("DataDir = %q", opts.DataDir)
	}
	if opts.AutoSaveInterval != 30*time.Second {
		t.Errorf("AutoSaveInterval = %v", opts.AutoSaveInterval)
	}
	if opts.Embedder.Dimension != 128 {
		t.Errorf("Embedder.Dimension = %d", opts.Embedder.Dimension)
	}
	if opts.Store.Index.M != 32 {
		t.Errorf("Index.M = %d", opts.Store.Index.M)
	}
	if opts.Matcher.MatchThreshold != 0.5 {
		t.Errorf("MatchThreshold = %f", opts.Matcher.MatchThreshold)
	}
}

func TestLoadOptionsRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("no_such_field: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOptions(path); err == nil {
		t.Fatal("expected error for unknown config field")
	}
}

func TestOpenRejectsUnknownEmbedder(t *testing.T) {
	opts := DefaultOptions("")
	opts.Embedder.Type = "telepathy"
	if _, err := Open(opts); err == nil {
		t.Fatal("expected error for unknown embedder type")
	}
}
