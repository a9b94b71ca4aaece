package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errBoom   = errors.New("boom")
	errBenign = errors.New("benign")
)

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	b := New[int](Config{Name: "test", MaxFailures: 2, OpenTimeout: time.Hour})

	for i := 0; i < 2; i++ {
		_, err := b.Execute(func() (int, error) { return 0, errBoom })
		require.ErrorIs(t, err, errBoom)
	}

	called := false
	_, err := b.Execute(func() (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
	assert.Equal(t, "open", b.State())
}

func TestBreaker_IgnoredErrorsDoNotTrip(t *testing.T) {
	b := New[int](Config{
		Name:        "test",
		MaxFailures: 1,
		Ignore:      func(err error) bool { return errors.Is(err, errBenign) },
	})

	for i := 0; i < 3; i++ {
		_, err := b.Execute(func() (int, error) { return 0, errBenign })
		assert.ErrorIs(t, err, errBenign)
	}
	assert.Equal(t, "closed", b.State())

	v, err := b.Execute(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	b := New[string](Config{Name: "test", MaxFailures: 1, OpenTimeout: 10 * time.Millisecond})

	_, err := b.Execute(func() (string, error) { return "", errBoom })
	require.ErrorIs(t, err, errBoom)

	require.Eventually(t, func() bool {
		v, err := b.Execute(func() (string, error) { return "ok", nil })
		return err == nil && v == "ok"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "closed", b.State())
}
