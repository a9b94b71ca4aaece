// Package guestid manages the pseudonymous identifier of an anonymous
// shopper. The identifier lives in client-side storage together with its
// creation time and is silently regenerated once it is older than Retention.
package guestid

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// StorageKey is the single slot the record is persisted under.
	StorageKey = "pg_guest_id"

	// Prefix starts every guest identifier.
	Prefix = "guest_"

	// Retention is how long an identifier stays valid after creation.
	Retention = 30 * 24 * time.Hour
)

var pattern = regexp.MustCompile(`^guest_[A-Za-z0-9]{16,}$`)

// Valid reports whether id has the shape of a generated guest identifier.
func Valid(id string) bool {
	return pattern.MatchString(id)
}

// Record is the persisted form: {"id": "...", "createdAt": "<RFC 3339>"}.
type Record struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
}

// Storage is a string key/value slot store, e.g. a file or browser-like
// local storage. Get reports false when the key is absent.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

type Manager struct {
	storage Storage
	now     func() time.Time
	newID   func() (string, error)
}

type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithGenerator overrides identifier generation.
func WithGenerator(gen func() (string, error)) Option {
	return func(m *Manager) { m.newID = gen }
}

func NewManager(storage Storage, opts ...Option) *Manager {
	m := &Manager{
		storage: storage,
		now:     time.Now,
		newID:   NewID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewID returns a fresh random identifier.
func NewID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return Prefix + strings.ReplaceAll(u.String(), "-", ""), nil
}

// Peek returns the stored identifier if it is present, well formed and not
// expired. Corrupt records are cleared.
func (m *Manager) Peek() (id string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			id, ok = "", false
		}
	}()

	raw, found, err := m.storage.Get(StorageKey)
	if err != nil || !found {
		return "", false
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || !Valid(rec.ID) || rec.CreatedAt == "" {
		_ = m.storage.Remove(StorageKey)
		return "", false
	}
	if IsExpired(rec.CreatedAt, m.now()) {
		return "", false
	}
	return rec.ID, true
}

// GetOrCreate returns the current identifier, creating and persisting a new
// one when none is valid. It reports false only when the identifier cannot be
// generated or stored.
func (m *Manager) GetOrCreate() (id string, ok bool) {
	if id, ok := m.Peek(); ok {
		return id, true
	}

	defer func() {
		if r := recover(); r != nil {
			id, ok = "", false
		}
	}()

	id, err := m.newID()
	if err != nil || id == "" {
		return "", false
	}
	rec := Record{ID: id, CreatedAt: m.now().UTC().Format(time.RFC3339Nano)}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", false
	}
	if err := m.storage.Set(StorageKey, string(data)); err != nil {
		return "", false
	}
	return id, true
}

// Clear forgets the stored identifier, e.g. after a successful merge.
func (m *Manager) Clear() error {
	return m.storage.Remove(StorageKey)
}

// IsExpired reports whether createdAt is missing, unparseable or older than
// Retention relative to now. createdAt is RFC 3339 or epoch milliseconds.
func IsExpired(createdAt string, now time.Time) bool {
	created, err := parseCreatedAt(createdAt)
	if err != nil {
		return true
	}
	return now.Sub(created) > Retention
}

var errEmptyTimestamp = errors.New("empty timestamp")

func parseCreatedAt(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyTimestamp
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
