// Package storage exports finished runs to disk and reads them back. Each run
// lives in its own directory named by a time-ordered UUID:
//
//	<dir>/<id>/metadata.json
//	<dir>/<id>/series.csv
//	<dir>/<id>/series.xlsx   (optional)
package storage

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/atlanticdynamic/simkernel/internal/config"
	"github.com/atlanticdynamic/simkernel/internal/sim/datalog"
	"github.com/atlanticdynamic/simkernel/internal/sim/simulator"
)

const (
	MetadataFile = "metadata.json"
	SeriesCSV    = "series.csv"
	SeriesXLSX   = "series.xlsx"
)

// Run is everything a finished run leaves behind in a kernel.
type Run struct {
	Config   *config.Config
	Status   simulator.Status
	Runners  []simulator.RunnerInfo
	Snapshot datalog.Snapshot
}

// Metadata is the content of metadata.json.
type Metadata struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	StartedAt time.Time      `json:"started_at,omitzero"`
	Mode      string         `json:"mode"`
	Step      float64        `json:"step"`
	Duration  float64        `json:"duration,omitempty"`
	Steps     uint64         `json:"steps"`
	Time      float64        `json:"time"`
	Logs      []string       `json:"logs"`
	Samples   int            `json:"samples"`
	Files     []string       `json:"files"`
	Runners   []RunnerRecord `json:"runners,omitempty"`
	Config    *config.Config `json:"config,omitempty"`
}

// RunnerRecord is the exported state of one module runner.
type RunnerRecord struct {
	Name     string          `json:"name"`
	File     string          `json:"file"`
	Failures int             `json:"failures"`
	Messages []MessageRecord `json:"messages,omitempty"`
}

// MessageRecord is one line a plugin printed.
type MessageRecord struct {
	Time  time.Time `json:"time"`
	Level string    `json:"level"`
	Text  string    `json:"text"`
}

// Store reads and writes run exports under one directory.
type Store struct {
	dir    string
	xlsx   bool
	logger *slog.Logger
}

// New returns a Store rooted at dir. The directory is created on first Save.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:    dir,
		logger: slog.Default().WithGroup("storage.Store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes run under a new run id and returns its metadata.
func (s *Store) Save(run Run) (*Metadata, error) {
	id, err := uuid.NewV6()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}

	table := tableFromSnapshot(run.Snapshot, run.Status.Steps)
	meta := &Metadata{
		ID:        id.String(),
		CreatedAt: time.Now().UTC(),
		StartedAt: run.Status.StartedAt.UTC(),
		Mode:      run.Status.Mode.String(),
		Steps:     run.Status.Steps,
		Time:      run.Status.Time,
		Logs:      table.Names,
		Samples:   len(table.Time),
		Files:     []string{SeriesCSV},
		Runners:   runnerRecords(run.Runners),
	}
	if run.Config != nil {
		meta.Config = run.Config.Clone()
		meta.Step = run.Config.Simulation.Step
		meta.Duration = run.Config.Simulation.Duration
	}
	if s.xlsx {
		meta.Files = append(meta.Files, SeriesXLSX)
	}

	runDir := filepath.Join(s.dir, meta.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	if err := s.writeRun(runDir, table, meta); err != nil {
		if rmErr := os.RemoveAll(runDir); rmErr != nil {
			s.logger.Warn("Failed to remove partial run", "dir", runDir, "error", rmErr)
		}
		return nil, err
	}

	s.logger.Info("Run saved", "id", meta.ID, "samples", meta.Samples, "logs", len(meta.Logs), "dir", runDir)
	return meta, nil
}

// List returns the metadata of every readable run, oldest first. Directories
// without readable metadata are skipped.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	runs := make([]Metadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			s.logger.Debug("Skipping directory", "name", entry.Name(), "error", err)
			continue
		}
		runs = append(runs, *meta)
	}

	slices.SortFunc(runs, func(a, b Metadata) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return runs, nil
}

// Latest returns the most recent run.
func (s *Store) Latest() (*Metadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no runs in %s", ErrRunNotFound, s.dir)
	}
	return &runs[len(runs)-1], nil
}

// Load reads the metadata of run id.
func (s *Store) Load(id string) (*Metadata, error) {
	runDir, err := s.runDir(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(runDir, MetadataFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRun, err)
	}
	return &meta, nil
}

// LoadSeries reads series.csv of run id.
func (s *Store) LoadSeries(id string) (*Table, error) {
	runDir, err := s.runDir(id)
	if err != nil {
		return nil, err
	}

	table, err := readCSV(filepath.Join(runDir, SeriesCSV))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}
	return table, nil
}

// runDir checks that id is a run id so it cannot name a path outside the store.
func (s *Store) runDir(id string) (string, error) {
	if _, err := uuid.FromString(id); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidRunID, id)
	}
	return filepath.Join(s.dir, id), nil
}

// writeRun writes the files of one run into runDir, metadata last.
func (s *Store) writeRun(runDir string, table *Table, meta *Metadata) error {
	if err := writeCSV(filepath.Join(runDir, SeriesCSV), table); err != nil {
		return err
	}
	if s.xlsx {
		if err := writeXLSX(filepath.Join(runDir, SeriesXLSX), table); err != nil {
			return err
		}
	}
	return writeMetadata(filepath.Join(runDir, MetadataFile), meta)
}

func writeMetadata(path string, meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

func runnerRecords(infos []simulator.RunnerInfo) []RunnerRecord {
	if len(infos) == 0 {
		return nil
	}
	out := make([]RunnerRecord, 0, len(infos))
	for _, info := range infos {
		rec := RunnerRecord{Name: info.Name, File: info.File, Failures: info.Failures}
		for _, m := range info.Messages {
			rec.Messages = append(rec.Messages, MessageRecord{
				Time:  m.Time.UTC(),
				Level: m.Level.String(),
				Text:  m.Text,
			})
		}
		out = append(out, rec)
	}
	return out
}
