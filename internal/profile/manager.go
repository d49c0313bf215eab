package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// profilesKey is the single storage key holding the ordered JSON array of
// records. The list is always read and written wholesale.
const profilesKey = "profiles"

// KV is the storage surface the Manager needs. Implemented by store.Store.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

var (
	// ErrEmptyField rejects logins with a blank name or jersey.
	ErrEmptyField = errors.New("name and jersey must not be empty")
	// ErrInvalidRole rejects unknown roles.
	ErrInvalidRole = errors.New("role must be athlete or coach")
)

// Manager provides find-or-create and listing over the persisted profile
// list. A corrupt stored blob is recovered as an empty list, never surfaced
// as an error.
type Manager struct {
	kv  KV
	now func() time.Time

	mu sync.Mutex
}

// NewManager creates a Manager over kv.
func NewManager(kv KV) *Manager {
	return &Manager{kv: kv, now: time.Now}
}

// FindOrCreate looks up the record with the given jersey, creating and
// persisting a zero-pointed record if none exists. The stored name and role
// win over the login form on subsequent logins.
func (m *Manager) FindOrCreate(jersey, name string, role Role) (Record, error) {
	jersey = strings.TrimSpace(jersey)
	name = strings.TrimSpace(name)
	if jersey == "" || name == "" {
		return Record{}, ErrEmptyField
	}
	if !role.Valid() {
		return Record{}, ErrInvalidRole
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.loadLocked()
	if err != nil {
		return Record{}, err
	}
	for _, r := range records {
		if r.Jersey == jersey {
			return r, nil
		}
	}

	rec := Record{
		ID:        uuid.NewString(),
		Name:      name,
		Jersey:    jersey,
		Role:      role,
		CreatedAt: m.now().UTC(),
	}
	records = append(records, rec)
	if err := m.saveLocked(records); err != nil {
		return Record{}, err
	}
	slog.Info("profile created", "jersey", jersey, "role", role)
	return rec, nil
}

// ListAll returns every persisted record ordered for the leaderboard:
// points descending, then jersey ascending for a stable display.
func (m *Manager) ListAll() ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.loadLocked()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Points != records[j].Points {
			return records[i].Points > records[j].Points
		}
		return jerseyLess(records[i].Jersey, records[j].Jersey)
	})
	return records, nil
}

// jerseyLess orders numeric jerseys numerically ("9" before "10") ahead of
// non-numeric ones, which compare as strings.
func jerseyLess(a, b string) bool {
	ai, errA := strconv.Atoi(a)
	bi, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		if ai != bi {
			return ai < bi
		}
		return a < b // "07" vs "7"
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

func (m *Manager) loadLocked() ([]Record, error) {
	raw, ok, err := m.kv.Get(profilesKey)
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		// Unparseable state is silently recovered as an empty list.
		slog.Warn("stored profile list is malformed, starting empty", "error", err)
		return nil, nil
	}
	return records, nil
}

func (m *Manager) saveLocked(records []Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding profiles: %w", err)
	}
	if err := m.kv.Set(profilesKey, string(raw)); err != nil {
		return fmt.Errorf("persisting profiles: %w", err)
	}
	return nil
}
