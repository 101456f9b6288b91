package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	runsDir    = "runs"
	objectsDir = "objects"
	indexFile  = "index.json"
	runFile    = "run.json"
)

// Store keeps processing runs on disk. Node documents are stored once per
// distinct content.
type Store struct {
	mu      sync.RWMutex
	rootDir string
	index   *RunIndex
}

// NewStore creates or opens a store at rootDir.
func NewStore(rootDir string) (*Store, error) {
	s := &Store{rootDir: rootDir}
	for _, dir := range []string{filepath.Join(rootDir, runsDir), filepath.Join(rootDir, objectsDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", dir, err)
		}
	}
	if err := s.loadIndex(); err != nil {
		s.index = &RunIndex{Runs: []RunSummary{}, UpdatedAt: time.Now()}
	}
	return s, nil
}

// Save persists run and its node documents.
func (s *Store) Save(run *Run, objects []Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range objects {
		if err := s.writeObject(ContentHash(o.Content), o.Content); err != nil {
			return fmt.Errorf("store node %s: %w", o.Hostname, err)
		}
	}
	if err := s.writeRun(run); err != nil {
		return err
	}
	s.index.Runs = append(s.index.Runs, run.Summary())
	s.index.UpdatedAt = time.Now()
	return s.saveIndex()
}

// Load returns the run with the given ID.
func (s *Store) Load(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readRun(id)
}

// LoadNode returns the stored document of one node of run.
func (s *Store) LoadNode(run *Run, hostname string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range run.Nodes {
		if n.Hostname == hostname {
			return s.readObject(n.ContentHash)
		}
	}
	return nil, fmt.Errorf("run %s has no node %q", run.ID, hostname)
}

// List returns every run, newest first.
func (s *Store) List() []RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RunSummary, len(s.index.Runs))
	copy(out, s.index.Runs)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Latest returns the newest run over a snapshot with the given fingerprint.
func (s *Store) Latest(fingerprint string) (*Run, error) {
	for _, summary := range s.List() {
		if summary.Fingerprint == fingerprint {
			return s.Load(summary.ID)
		}
	}
	return nil, fmt.Errorf("no run for snapshot %s", fingerprint)
}

// FindByTag returns the run tagged tag.
func (s *Store) FindByTag(tag string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, summary := range s.index.Runs {
		if summary.Tag == tag {
			return s.readRun(summary.ID)
		}
	}
	return nil, fmt.Errorf("run with tag %q not found", tag)
}

// Tag assigns tag to the run with the given ID.
func (s *Store) Tag(id, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, err := s.readRun(id)
	if err != nil {
		return err
	}
	run.Tag = tag
	if err := s.writeRun(run); err != nil {
		return err
	}
	for i := range s.index.Runs {
		if s.index.Runs[i].ID == id {
			s.index.Runs[i].Tag = tag
			break
		}
	}
	s.index.UpdatedAt = time.Now()
	return s.saveIndex()
}

// Delete removes a run. Objects are left in place since other runs may
// share them.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(s.rootDir, runsDir, id)); err != nil {
		return fmt.Errorf("remove run %s: %w", id, err)
	}
	kept := s.index.Runs[:0]
	for _, summary := range s.index.Runs {
		if summary.ID != id {
			kept = append(kept, summary)
		}
	}
	s.index.Runs = kept
	s.index.UpdatedAt = time.Now()
	return s.saveIndex()
}

func (s *Store) readRun(id string) (*Run, error) {
	data, err := os.ReadFile(filepath.Join(s.rootDir, runsDir, id, runFile))
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &run, nil
}

func (s *Store) writeRun(run *Run) error {
	dir := filepath.Join(s.rootDir, runsDir, run.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, runFile), data, 0o644); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

func (s *Store) writeObject(hash string, content []byte) error {
	dir := filepath.Join(s.rootDir, objectsDir, hash[:2])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, hash[2:])
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, content, 0o644)
}

func (s *Store) readObject(hash string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.rootDir, objectsDir, hash[:2], hash[2:]))
}

func (s *Store) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.rootDir, indexFile))
	if err != nil {
		return err
	}
	s.index = &RunIndex{}
	return json.Unmarshal(data, s.index)
}

func (s *Store) saveIndex() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.rootDir, indexFile), data, 0o644)
}
