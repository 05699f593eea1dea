package match

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"emberfield/internal/sim/tuning"
)

// Manager owns every match a host process runs. Peers address a match by ID
// on connect; an empty ID resolves to the default (first created) match.
// Each match keeps its own loop goroutine, grid and peer set.
type Manager struct {
	mu        sync.RWMutex
	matches   map[string]*Match
	cancels   map[string]context.CancelFunc
	defaultID string
}

func NewManager() *Manager {
	return &Manager{
		matches: map[string]*Match{},
		cancels: map[string]context.CancelFunc{},
	}
}

// Create builds and registers a match without starting its loop; the caller
// decides whether to Run it (hosting) or drive it with StepOnce (replay,
// tests). The first match created becomes the default.
func (mgr *Manager) Create(cfg Config, tune tuning.Tuning, logger *log.Logger) (*Match, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("match id must not be empty")
	}
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if _, exists := mgr.matches[cfg.ID]; exists {
		return nil, fmt.Errorf("match %q already exists", cfg.ID)
	}
	m := New(cfg, tune, logger)
	mgr.matches[cfg.ID] = m
	if mgr.defaultID == "" {
		mgr.defaultID = cfg.ID
	}
	return m, nil
}

// Start runs a registered match's loop until StopAll (or Stop on the match).
func (mgr *Manager) Start(id string) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	m, ok := mgr.matches[id]
	if !ok {
		return fmt.Errorf("unknown match %q", id)
	}
	if _, running := mgr.cancels[id]; running {
		return fmt.Errorf("match %q already running", id)
	}
	ctx, cancel := context.WithCancel(context.Background())
	mgr.cancels[id] = cancel
	go m.Run(ctx)
	return nil
}

// Get resolves a match by ID; the empty string resolves to the default.
func (mgr *Manager) Get(id string) *Match {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	if id == "" {
		id = mgr.defaultID
	}
	return mgr.matches[id]
}

// IDs lists registered matches in stable order.
func (mgr *Manager) IDs() []string {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	ids := make([]string, 0, len(mgr.matches))
	for id := range mgr.matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StopAll cancels every running match loop.
func (mgr *Manager) StopAll() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	for id, cancel := range mgr.cancels {
		cancel()
		delete(mgr.cancels, id)
	}
}
