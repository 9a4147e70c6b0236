package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"cryptobrain/internal/engine"
)

// Store persists the full engine state as one JSON snapshot file.
// Writes go through a temp file and an atomic rename so a crash
// mid-write can never leave a truncated snapshot behind.
type Store struct {
	path string
	log  zerolog.Logger
}

// NewStore creates a store for the given snapshot path.
func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{
		path: path,
		log:  logger.With().Str("component", "persistence").Logger(),
	}
}

// Save writes the snapshot to disk.
func (s *Store) Save(st engine.State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	s.log.Debug().Int("bytes", len(data)).Msg("state snapshot saved")
	return nil
}

// Load reads the snapshot back. Callers treat any error as "start from
// seed state"; a missing file is the normal first run.
func (s *Store) Load() (engine.State, error) {
	var st engine.State

	data, err := os.ReadFile(s.path)
	if err != nil {
		return st, fmt.Errorf("reading snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parsing snapshot: %w", err)
	}

	s.log.Info().Int("agents", len(st.Agents)).Int("executions", len(st.Executions)).Msg("state snapshot loaded")
	return st, nil
}

// AutoSave writes a fresh snapshot every interval until the context is
// cancelled, then takes one final snapshot on the way out. It reads
// only deep-copied state, so a slow disk never stalls a tick.
func (s *Store) AutoSave(ctx context.Context, interval time.Duration, snapshot func() engine.State) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.Save(snapshot()); err != nil {
				s.log.Error().Err(err).Msg("final snapshot failed")
			}
			return
		case <-ticker.C:
			if err := s.Save(snapshot()); err != nil {
				s.log.Error().Err(err).Msg("periodic snapshot failed")
			}
		}
	}
}
