package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	runFileExt    = ".json"
	runFileLayout = "2006-01-02T15-04-05"
)

// DiskStore keeps run history as one JSON file per run in a directory.
// Files of runs that fall out of the history are removed.
type DiskStore struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	history history
	files   map[string]string // run ID -> file name
}

// NewDiskStore opens dir, creating it when missing, and loads the runs
// already stored there. Unreadable run files are skipped with a warning.
func NewDiskStore(dir string, limit int, logger *slog.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	s := &DiskStore{
		dir:     dir,
		logger:  logger.With("component", "history", "dir", dir),
		history: newHistory(limit),
		files:   make(map[string]string),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// History implements StateStore.
func (s *DiskStore) History() []RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.summaries()
}

// Stages implements StateStore.
func (s *DiskStore) Stages(id string) ([]StageExecution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.stages(id)
}

// Save writes the run to <start>_<id>.json and adds it to the history.
func (s *DiskStore) Save(summary RunSummary, stages []StageExecution) error {
	if summary.StartedAt == nil {
		return errors.New("cannot save run without start time")
	}
	if summary.ID == "" {
		return errors.New("cannot save run without id")
	}
	rec := runRecord{RunSummary: summary, Stages: stages}
	name := summary.StartedAt.Format(runFileLayout) + "_" + summary.ID + runFileExt

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(name, rec); err != nil {
		return err
	}
	s.files[summary.ID] = name
	s.remove(s.history.add(rec))
	s.logger.Debug("saved run", "run_id", summary.ID, "file", name)
	return nil
}

// Reload replaces the history with the run files currently on disk.
func (s *DiskStore) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read state directory: %w", err)
	}

	var runs []runRecord
	files := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != runFileExt {
			continue
		}
		rec, err := s.read(e.Name())
		if err != nil {
			s.logger.Warn("skipping run file", "file", e.Name(), "error", err)
			continue
		}
		runs = append(runs, rec)
		files[rec.ID] = e.Name()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = files
	s.remove(s.history.replace(runs))
	s.logger.Info("loaded run history", "count", len(s.history.runs))
	return nil
}

func (s *DiskStore) read(name string) (runRecord, error) {
	var rec runRecord
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, err
	}
	if rec.ID == "" {
		return rec, errors.New("run has no id")
	}
	return rec, nil
}

// write replaces name atomically so readers never see a partial file.
func (s *DiskStore) write(name string, rec runRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+strings.TrimSuffix(name, runFileExt)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write run file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}
	return nil
}

// remove deletes the files of evicted runs. s.mu must be held.
func (s *DiskStore) remove(evicted []runRecord) {
	for _, rec := range evicted {
		name, ok := s.files[rec.ID]
		if !ok {
			continue
		}
		delete(s.files, rec.ID)
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove old run file", "file", name, "error", err)
		}
	}
}
