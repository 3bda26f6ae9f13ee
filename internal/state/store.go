package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/treasury-sim/internal/types"
)

var (
	ErrSnapshotNotFound = errors.New("month snapshot not found")
	ErrNoSummary        = errors.New("run summary not available")
)

// Store keeps month snapshots of the current run in memory. Safe for concurrent use:
// the simulator writes while the web server reads.
type Store struct {
	mu         sync.RWMutex
	runID      string
	snapshots  map[int]types.MonthSnapshot
	summary    *types.RunSummary
	parameters *types.SimulationParameters
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{snapshots: make(map[int]types.MonthSnapshot)}
}

// Reset clears the store for a new run.
func (s *Store) Reset(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = runID
	s.snapshots = make(map[int]types.MonthSnapshot)
	s.summary = nil
}

// RunID is the id of the run currently held.
func (s *Store) RunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runID
}

// SaveMonthSnapshot stores a month, replacing any earlier snapshot of the same month.
func (s *Store) SaveMonthSnapshot(snapshot types.MonthSnapshot) error {
	if snapshot.Month < 0 {
		return fmt.Errorf("invalid snapshot month %d", snapshot.Month)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID != "" && snapshot.RunID != "" && snapshot.RunID != s.runID {
		return fmt.Errorf("snapshot run %s does not match store run %s", snapshot.RunID, s.runID)
	}
	s.snapshots[snapshot.Month] = snapshot

	log.Debug().
		Str("run_id", snapshot.RunID).
		Int("month", snapshot.Month).
		Float64("price", snapshot.Price).
		Msg("Month snapshot saved")
	return nil
}

// GetRecentMonths returns the latest snapshots, newest first.
func (s *Store) GetRecentMonths(limit int) []types.MonthSnapshot {
	if limit <= 0 || limit > 120 {
		limit = 12 // Default limit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	months := s.sortedMonths()
	out := make([]types.MonthSnapshot, 0, limit)
	for i := len(months) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.snapshots[months[i]])
	}
	return out
}

// GetAllMonths returns every snapshot in month order.
func (s *Store) GetAllMonths() []types.MonthSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	months := s.sortedMonths()
	out := make([]types.MonthSnapshot, 0, len(months))
	for _, m := range months {
		out = append(out, s.snapshots[m])
	}
	return out
}

// GetMonth returns the snapshot of one month.
func (s *Store) GetMonth(month int) (types.MonthSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[month]
	if !ok {
		return types.MonthSnapshot{}, fmt.Errorf("%w: month %d", ErrSnapshotNotFound, month)
	}
	return snapshot, nil
}

// GetLatestMonth returns the most recent snapshot.
func (s *Store) GetLatestMonth() (types.MonthSnapshot, error) {
	recent := s.GetRecentMonths(1)
	if len(recent) == 0 {
		return types.MonthSnapshot{}, ErrSnapshotNotFound
	}
	return recent[0], nil
}

// SaveRunSummary stores the summary of a finished run.
func (s *Store) SaveRunSummary(summary types.RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = &summary
}

// GetRunSummary returns the summary once the run finished.
func (s *Store) GetRunSummary() (types.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.summary == nil {
		return types.RunSummary{}, ErrNoSummary
	}
	return *s.summary, nil
}

// SaveParameters records the parameters the run uses.
func (s *Store) SaveParameters(params types.SimulationParameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parameters = &params
}

// GetParameters returns the recorded parameters, if any.
func (s *Store) GetParameters() (types.SimulationParameters, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.parameters == nil {
		return types.SimulationParameters{}, false
	}
	return *s.parameters, true
}

func (s *Store) sortedMonths() []int {
	months := make([]int, 0, len(s.snapshots))
	for m := range s.snapshots {
		months = append(months, m)
	}
	sort.Ints(months)
	return months
}
