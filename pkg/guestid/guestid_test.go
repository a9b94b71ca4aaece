package guestid

import (
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStorage struct {
	MemoryStorage
	setErr error
}

func (f *failingStorage) Set(string, string) error { return f.setErr }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewID_Format(t *testing.T) {
	id, err := NewID()
	require.NoError(t, err)
	assert.True(t, Valid(id), id)

	other, err := NewID()
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("guest_0123456789abcdef"))
	assert.False(t, Valid("guest_short"))
	assert.False(t, Valid("user_0123456789abcdef"))
	assert.False(t, Valid("guest_0123456789abcdef!"))
	assert.False(t, Valid(""))
}

func TestIsExpired_Boundaries(t *testing.T) {
	now := time.Now()
	ms := func(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

	assert.True(t, IsExpired(ms(now.Add(-Retention-time.Millisecond)), now))
	assert.False(t, IsExpired(ms(now.Add(-Retention/2)), now))
	assert.True(t, IsExpired("", now))
	assert.True(t, IsExpired("not a date", now))

	assert.True(t, IsExpired(now.Add(-Retention-time.Second).Format(time.RFC3339Nano), now))
	assert.False(t, IsExpired(now.Add(-time.Hour).Format(time.RFC3339Nano), now))
}

func TestGetOrCreate_CreatesOnceThenReuses(t *testing.T) {
	storage := NewMemoryStorage()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	m := NewManager(storage, WithClock(fixedClock(now)), WithGenerator(func() (string, error) {
		calls++
		return NewID()
	}))

	first, ok := m.GetOrCreate()
	require.True(t, ok)
	second, ok := m.GetOrCreate()
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	raw, found, err := storage.Get(StorageKey)
	require.NoError(t, err)
	require.True(t, found)
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	assert.Equal(t, first, rec.ID)
	assert.Equal(t, now.Format(time.RFC3339Nano), rec.CreatedAt)
}

func TestGetOrCreate_RegeneratesExpired(t *testing.T) {
	storage := NewMemoryStorage()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManager(storage, WithClock(fixedClock(created)))
	old, ok := m.GetOrCreate()
	require.True(t, ok)

	later := NewManager(storage, WithClock(fixedClock(created.Add(Retention+time.Minute))))
	_, ok = later.Peek()
	assert.False(t, ok)

	fresh, ok := later.GetOrCreate()
	require.True(t, ok)
	assert.NotEqual(t, old, fresh)
}

func TestPeek_CorruptRecordIsCleared(t *testing.T) {
	for _, raw := range []string{"{not json", `{"id":"guest_0123456789abcdef"}`, `{"id":"bad","createdAt":"2026-01-01T00:00:00Z"}`} {
		storage := NewMemoryStorage()
		require.NoError(t, storage.Set(StorageKey, raw))
		m := NewManager(storage)

		_, ok := m.Peek()
		assert.False(t, ok, raw)
		_, found, _ := storage.Get(StorageKey)
		assert.False(t, found, raw)
	}
}

func TestPeek_Empty(t *testing.T) {
	_, ok := NewManager(NewMemoryStorage()).Peek()
	assert.False(t, ok)
}

func TestGetOrCreate_StorageFailure(t *testing.T) {
	storage := &failingStorage{MemoryStorage: *NewMemoryStorage(), setErr: errors.New("quota exceeded")}
	_, ok := NewManager(storage).GetOrCreate()
	assert.False(t, ok)
}

func TestGetOrCreate_GeneratorFailure(t *testing.T) {
	m := NewManager(NewMemoryStorage(), WithGenerator(func() (string, error) {
		return "", errors.New("no entropy")
	}))
	_, ok := m.GetOrCreate()
	assert.False(t, ok)
}

func TestFileStorage_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(NewFileStorage(dir))

	id, ok := m.GetOrCreate()
	require.True(t, ok)

	again, ok := NewManager(NewFileStorage(dir)).Peek()
	require.True(t, ok)
	assert.Equal(t, id, again)

	require.NoError(t, m.Clear())
	_, ok = m.Peek()
	assert.False(t, ok)
	require.NoError(t, m.Clear())
}
