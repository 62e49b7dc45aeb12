// Package engine provides the high-level, embedded interface for semvec.
//
// It wires an embedder, a vector store and a pattern matcher into a single
// thread-safe instance, and optionally persists the whole state to disk as
// CRC-checked snapshots.
//
// Basic usage:
//
//	opts := engine.DefaultOptions("./data")
//	eng, err := engine.Open(opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
package engine

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/diogenlabs/semvec/pkg/embeddings"
	"github.com/diogenlabs/semvec/pkg/patterns"
	"github.com/diogenlabs/semvec/pkg/persistence"
	"github.com/diogenlabs/semvec/pkg/vectorstore"
)

// Options configures the Engine: the embedding backend, the store and
// matcher parameters, and the snapshot persistence policy.
type Options struct {
	// DataDir is the directory where snapshot files are stored. Empty
	// disables persistence entirely; the engine is then purely in-memory.
	DataDir string `yaml:"data_dir"`

	// SnapshotFilename is the snapshot file name inside DataDir
	// (default: "semvec.snap").
	SnapshotFilename string `yaml:"snapshot_filename"`

	// AutoSaveInterval defines how much time must pass since the last save
	// before a new snapshot is triggered (if AutoSaveThreshold is also met).
	// Set to 0 to disable auto-saving based on time.
	AutoSaveInterval time.Duration `yaml:"auto_save_interval"`

	// AutoSaveThreshold defines how many write operations must occur
	// before a new snapshot is triggered (if AutoSaveInterval is also met).
	// Set to 0 to disable auto-saving based on write count.
	AutoSaveThreshold int64 `yaml:"auto_save_threshold"`

	// Embedder selects and configures the embedding backend.
	Embedder EmbedderConfig `yaml:"embedder"`

	// Store configures the vector store and its HNSW index.
	Store vectorstore.Config `yaml:"store"`

	// Matcher configures the pattern matcher thresholds.
	Matcher patterns.Config `yaml:"matcher"`
}

// DefaultOptions returns a standard configuration suitable for most use
// cases: the deterministic local embedder, default φ thresholds, and
// auto-save every 60s once 1000 writes accumulated.
func DefaultOptions(dataDir string) Options {
	return Options{
		DataDir:           dataDir,
		SnapshotFilename:  "semvec.snap",
		AutoSaveInterval:  60 * time.Second,
		AutoSaveThreshold: 1000,
		Embedder: EmbedderConfig{
			Type:      "local",
			Dimension: embeddings.DefaultLocalDimension,
		},
		Store:   vectorstore.Config{},
		Matcher: patterns.DefaultConfig(),
	}
}

// Engine is the main entry point for semvec.
//
// Use Open() to initialize an Engine and Close() to shut it down gracefully.
type Engine struct {
	opts     Options
	embedder embeddings.Embedder
	snapPath string
	log      *slog.Logger

	// adminMu serializes administrative tasks (Save, Close). Data access
	// goes through the matcher and store, which carry their own locks.
	adminMu sync.Mutex

	// matcher is swapped atomically so reads never block on a restore.
	matcher atomic.Pointer[patterns.Matcher]

	dirtyCounter atomic.Int64
	lastSaveTime time.Time

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open initializes an Engine from the provided options.
//
// If DataDir is set, it is created if missing and the latest snapshot is
// loaded from it. With an auto-save policy configured, a background
// goroutine periodically persists the state.
func Open(opts Options) (*Engine, error) {
	if opts.SnapshotFilename == "" {
		opts.SnapshotFilename = "semvec.snap"
	}

	embedder, err := newEmbedder(opts.Embedder)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		opts:         opts,
		embedder:     embedder,
		log:          slog.Default().With("component", "engine"),
		lastSaveTime: time.Now(),
		closed:       make(chan struct{}),
	}

	var matcher *patterns.Matcher
	if opts.DataDir != "" {
		if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		e.snapPath = filepath.Join(opts.DataDir, opts.SnapshotFilename)

		if _, statErr := os.Stat(e.snapPath); statErr == nil {
			matcher, err = loadMatcher(embedder, e.snapPath)
			if err != nil {
				return nil, err
			}
			e.log.Info("snapshot loaded", "path", e.snapPath, "patterns", matcher.Len())
		}
	}
	if matcher == nil {
		store, err := vectorstore.New(embedder, opts.Store)
		if err != nil {
			return nil, err
		}
		matcher, err = patterns.NewMatcher(store, opts.Matcher)
		if err != nil {
			return nil, err
		}
	}
	e.matcher.Store(matcher)

	if e.snapPath != "" && opts.AutoSaveInterval > 0 && opts.AutoSaveThreshold > 0 {
		e.wg.Add(1)
		go e.backgroundTasks()
	}
	return e, nil
}

// Matcher returns the pattern matcher.
func (e *Engine) Matcher() *patterns.Matcher {
	return e.matcher.Load()
}

// Store returns the vector store backing the matcher.
func (e *Engine) Store() *vectorstore.Store {
	return e.matcher.Load().Store()
}

// Embedder returns the configured embedding backend.
func (e *Engine) Embedder() embeddings.Embedder {
	return e.embedder
}

// Save persists the current state to the snapshot file. It is a no-op when
// persistence is disabled.
func (e *Engine) Save() error {
	if e.snapPath == "" {
		return nil
	}

	e.adminMu.Lock()
	defer e.adminMu.Unlock()

	dirty := e.dirtyCounter.Load()

	var buf bytes.Buffer
	if err := e.matcher.Load().WriteSnapshot(&buf); err != nil {
		return fmt.Errorf("engine: snapshot: %w", err)
	}
	if err := persistence.SaveSnapshot(e.snapPath, buf.Bytes()); err != nil {
		return fmt.Errorf("engine: save snapshot: %w", err)
	}

	e.dirtyCounter.Add(-dirty)
	e.lastSaveTime = time.Now()
	e.log.Info("snapshot saved", "path", e.snapPath, "bytes", buf.Len())
	return nil
}

// Snapshot streams the engine state to w. Unlike Save, it does not touch
// the snapshot file or the dirty counter.
func (e *Engine) Snapshot(w io.Writer) error {
	return e.matcher.Load().WriteSnapshot(w)
}

// Restore discards the current state and replaces it with a snapshot
// previously written by Snapshot or Save.
func (e *Engine) Restore(r io.Reader) error {
	e.adminMu.Lock()
	defer e.adminMu.Unlock()

	matcher, err := patterns.ReadSnapshot(e.embedder, r)
	if err != nil {
		return fmt.Errorf("engine: restore snapshot: %w", err)
	}
	e.matcher.Store(matcher)
	e.dirtyCounter.Store(0)
	return nil
}

// Close performs a clean shutdown: it stops the background saver and, when
// persistence is enabled, writes a final snapshot.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.closed)
		e.wg.Wait()
		err = e.Save()
	})
	return err
}

func loadMatcher(embedder embeddings.Embedder, path string) (*patterns.Matcher, error) {
	payload, err := persistence.LoadSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("engine: load snapshot: %w", err)
	}
	matcher, err := patterns.ReadSnapshot(embedder, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("engine: restore snapshot: %w", err)
	}
	return matcher, nil
}

// backgroundTasks handles automatic saving.
func (e *Engine) backgroundTasks() {
	defer e.wg.Done()
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.closed:
			return
		case <-ticker.C:
			e.checkAutoSave()
		}
	}
}

func (e *Engine) checkAutoSave() {
	dirty := e.dirtyCounter.Load()
	if dirty < e.opts.AutoSaveThreshold {
		return
	}
	e.adminMu.Lock()
	due := time.Since(e.lastSaveTime) >= e.opts.AutoSaveInterval
	e.adminMu.Unlock()
	if !due {
		return
	}
	if err := e.Save(); err != nil {
		e.log.Error("background snapshot failed", "error", err)
	}
}
