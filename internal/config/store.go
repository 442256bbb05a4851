package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"esphub/internal/repository"
)

// Store owns the in-memory configuration snapshot and its persistence. All
// reads and writes go through it; mutation is serialized by the mutex so
// concurrent ingestion pipelines cannot lose updates.
type Store struct {
	mu      sync.RWMutex
	current Config
	repo    repository.ConfigRepo
}

func NewStore(repo repository.ConfigRepo) *Store {
	return &Store{current: Defaults(), repo: repo}
}

// Load reads the persisted snapshot and merges it over the defaults. When no
// snapshot exists yet the defaults are persisted, so the device sees a
// complete config from first boot.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = Defaults()
	if raw == nil {
		return s.persistLocked(ctx)
	}

	merged := s.current
	if err := json.Unmarshal(normalizeLegacyWifi(raw), &merged); err != nil {
		return fmt.Errorf("parse config snapshot: %w", err)
	}
	s.current = merged
	return nil
}

// Get returns a copy of the current snapshot.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update overlays a partial JSON document onto the current snapshot and
// persists the result. Unknown keys are ignored; the nested mqtt object is
// merged key-wise rather than replaced, since unmarshalling into the existing
// struct leaves omitted fields untouched.
func (s *Store) Update(ctx context.Context, partial []byte) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.current
	if err := json.Unmarshal(partial, &merged); err != nil {
		return Config{}, fmt.Errorf("parse config update: %w", err)
	}
	s.current = merged

	if err := s.persistLocked(ctx); err != nil {
		return Config{}, err
	}
	return s.current, nil
}

// DisableAutomation clears both automation flags, persisting the config when
// either was set. Returns the resulting snapshot and whether anything changed.
func (s *Store) DisableAutomation(ctx context.Context) (Config, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current.AutomationEnabled() {
		return s.current, false, nil
	}
	s.current.EnableAutoLight = false
	s.current.EnableLightThreshold = false

	if err := s.persistLocked(ctx); err != nil {
		return Config{}, false, err
	}
	return s.current, true, nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(s.current)
	if err != nil {
		return fmt.Errorf("marshal config snapshot: %w", err)
	}
	if err := s.repo.Save(ctx, raw); err != nil {
		return fmt.Errorf("persist config snapshot: %w", err)
	}
	return nil
}

// normalizeLegacyWifi upgrades snapshots written before wifi became a list,
// where it was a single object.
func normalizeLegacyWifi(raw []byte) []byte {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return raw
	}
	w, ok := doc["wifi"]
	if !ok {
		return raw
	}
	trimmed := bytes.TrimSpace(w)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw
	}
	doc["wifi"] = append(append([]byte{'['}, trimmed...), ']')
	upgraded, err := json.Marshal(doc)
	if err != nil {
		return raw
	}
	return upgraded
}
