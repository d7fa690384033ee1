// Package store persists run results as JSON files under the data
// directory, one file per run. The store is the backing for `runs list`
// and the HTTP API; it never holds anything a stage result does not,
// so redaction has already happened by the time data lands here.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/slipway-io/slipway/pipeline"
)

// Store reads and writes run results below one directory.
type Store struct {
	dir string
}

// New creates a store rooted at dataDir. Nothing is created until the
// first Save.
func New(dataDir string) *Store {
	return &Store{dir: filepath.Join(dataDir, "runs")}
}

// Dir returns the directory run files live in.
func (s *Store) Dir() string { return s.dir }

// Save writes one run result and a log file per stage that produced
// output, and returns the result file path.
func (s *Store) Save(res *pipeline.RunResult) (string, error) {
	if res.ID == "" {
		return "", errors.New("run result has no ID")
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("creating runs directory: %w", err)
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding run %s: %w", res.ID, err)
	}
	path := filepath.Join(s.dir, res.ID+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing run %s: %w", res.ID, err)
	}

	if err := s.saveLogs(res); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) saveLogs(res *pipeline.RunResult) error {
	logDir := filepath.Join(s.dir, res.ID+".logs")
	for _, st := range res.Stages {
		if st.Output == "" {
			continue
		}
		if err := os.MkdirAll(logDir, 0o700); err != nil {
			return fmt.Errorf("creating log directory for run %s: %w", res.ID, err)
		}
		path := filepath.Join(logDir, st.Stage+".log")
		if err := os.WriteFile(path, []byte(st.Output), 0o600); err != nil {
			return fmt.Errorf("writing %s log of run %s: %w", st.Stage, res.ID, err)
		}
	}
	return nil
}

// StageLog reads back one stage's captured output. Stages that produced
// no output have no log file; that satisfies errors.Is(err, os.ErrNotExist).
func (s *Store) StageLog(id, stage string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w %q", ErrInvalidID, id)
	}
	if stage == "" || strings.ContainsAny(stage, `/\`) {
		return "", fmt.Errorf("invalid stage name %q", stage)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, id+".logs", stage+".log"))
	if err != nil {
		return "", fmt.Errorf("reading %s log of run %s: %w", stage, id, err)
	}
	return string(data), nil
}

// ErrInvalidID marks run IDs the store refuses to touch, such as IDs
// containing path separators.
var ErrInvalidID = errors.New("invalid run id")

// Get loads one run by ID. A missing run satisfies
// errors.Is(err, os.ErrNotExist).
func (s *Store) Get(id string) (*pipeline.RunResult, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%w %q", ErrInvalidID, id)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("reading run %s: %w", id, err)
	}
	var res pipeline.RunResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", id, err)
	}
	return &res, nil
}

// List returns all stored runs, newest first. Run IDs start with a
// UTC timestamp, so reverse lexicographic order is reverse chronological.
// Unreadable entries are skipped rather than failing the whole listing.
func (s *Store) List() ([]*pipeline.RunResult, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	var runs []*pipeline.RunResult
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		res, err := s.Get(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		runs = append(runs, res)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	return runs, nil
}
