package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"market-intel-bot/internal/logging"
	"market-intel-bot/internal/market"
	"market-intel-bot/internal/state"
)

// File names under the data directory
const (
	StateCacheFile     = "state-cache.json"
	SignalVersionsFile = "signal-versions.json"
	EarningsCacheFile  = "earnings-cache.json"

	// EarningsTTL bounds how long the cached earnings calendar is trusted
	EarningsTTL = 6 * time.Hour
)

// Manager owns the JSON files in the data directory. All writes go through
// a temp file and rename so a crash never leaves a torn document.
type Manager struct {
	dir    string
	logger *logging.Logger
}

// New creates a manager rooted at dir, creating it if needed
func New(dir string, logger *logging.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Manager{dir: dir, logger: logger.WithComponent("persistence")}, nil
}

// Dir returns the data directory
func (m *Manager) Dir() string { return m.dir }

func (m *Manager) writeAtomic(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(m.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// readInto decodes name into v. Returns os.ErrNotExist when absent.
func (m *Manager) readInto(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(m.dir, name))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ===== State cache =====

// StateCache is the warm-restart snapshot: the market state plus the budget
// counters needed to resume the day without double-spending API calls.
type StateCache struct {
	SavedAt        time.Time    `json:"savedAt"`
	SavedDate      string       `json:"savedDate"` // ET calendar date
	CycleCount     int          `json:"cycleCount"`
	DailyCallCount int          `json:"dailyCallCount"`
	State          *state.State `json:"state"`
}

// SaveState snapshots the store and counters
func (m *Manager) SaveState(st *state.Store, cycleCount, dailyCallCount int, savedDate string) error {
	doc := StateCache{
		SavedAt:        time.Now().UTC(),
		SavedDate:      savedDate,
		CycleCount:     cycleCount,
		DailyCallCount: dailyCallCount,
		State:          st.Snapshot(),
	}
	if err := m.writeAtomic(StateCacheFile, doc); err != nil {
		return fmt.Errorf("save state cache: %w", err)
	}
	return nil
}

// LoadState reads the cached snapshot. A missing file returns (nil, nil);
// a corrupted one is discarded with a warning since market state is
// reconstructable from upstream.
func (m *Manager) LoadState() (*StateCache, error) {
	var doc StateCache
	if err := m.readInto(StateCacheFile, &doc); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		m.logger.Warn("state cache unreadable, starting cold", "error", err.Error())
		return nil, nil
	}
	return &doc, nil
}

// ===== Signal versions =====

type versionsFile struct {
	ActiveVersion string    `json:"activeVersion"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// DefaultSignalVersion tags trades when no versions file exists yet
const DefaultSignalVersion = "v1.0"

// ActiveSignalVersion returns the persisted A/B bucket tag
func (m *Manager) ActiveSignalVersion() string {
	var doc versionsFile
	if err := m.readInto(SignalVersionsFile, &doc); err != nil || doc.ActiveVersion == "" {
		return DefaultSignalVersion
	}
	return doc.ActiveVersion
}

// SaveSignalVersion records a version promotion
func (m *Manager) SaveSignalVersion(version string) error {
	return m.writeAtomic(SignalVersionsFile, versionsFile{
		ActiveVersion: version,
		UpdatedAt:     time.Now().UTC(),
	})
}

// ===== Earnings cache =====

type earningsFile struct {
	LastUpdated time.Time                       `json:"lastUpdated"`
	Entries     map[string]*market.EarningsInfo `json:"entries"`
}

// LoadEarnings returns the cached earnings calendar when it is still fresh.
// Stale or missing caches return nil so the caller refetches.
func (m *Manager) LoadEarnings() map[string]*market.EarningsInfo {
	var doc earningsFile
	if err := m.readInto(EarningsCacheFile, &doc); err != nil {
		return nil
	}
	if time.Since(doc.LastUpdated) > EarningsTTL {
		return nil
	}
	return doc.Entries
}

// SaveEarnings caches the earnings calendar
func (m *Manager) SaveEarnings(entries map[string]*market.EarningsInfo) error {
	return m.writeAtomic(EarningsCacheFile, earningsFile{
		LastUpdated: time.Now().UTC(),
		Entries:     entries,
	})
}
