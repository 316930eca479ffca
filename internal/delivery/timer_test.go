package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimer_InitialBudget(t *testing.T) {
	timer := NewTimer(5, nil)
	assert.Equal(t, 300, timer.Remaining())
}

func TestTimer_ExpiresExactlyOnce(t *testing.T) {
	expirations := 0
	timer := NewTimer(5, func() { expirations++ })

	for i := 0; i < 299; i++ {
		assert.False(t, timer.Tick(), "tick %d should not finish the timer", i)
	}
	assert.Equal(t, 1, timer.Remaining())
	assert.Equal(t, 0, expirations)

	assert.True(t, timer.Tick(), "final tick finishes the timer")
	assert.Equal(t, 0, timer.Remaining())
	assert.Equal(t, 1, expirations)

	// Late ticks after expiry must not re-fire the signal.
	for i := 0; i < 10; i++ {
		assert.True(t, timer.Tick())
	}
	assert.Equal(t, 1, expirations)
	assert.Equal(t, 0, timer.Remaining())
}

func TestTimer_WarningWindow(t *testing.T) {
	timer := NewTimer(6, nil) // 360 seconds
	assert.False(t, timer.InWarning())

	for i := 0; i < 60; i++ {
		timer.Tick()
	}
	// Exactly 300 remaining: warning is strictly below the threshold.
	assert.Equal(t, 300, timer.Remaining())
	assert.False(t, timer.InWarning())

	timer.Tick()
	assert.True(t, timer.InWarning())
}

func TestTimer_StopSuppressesExpiry(t *testing.T) {
	expirations := 0
	timer := NewTimer(1, func() { expirations++ })

	for i := 0; i < 59; i++ {
		timer.Tick()
	}
	timer.Stop()

	// Ticks after teardown are no-ops: no zombie callbacks.
	for i := 0; i < 5; i++ {
		assert.True(t, timer.Tick())
	}
	assert.Equal(t, 0, expirations)
}

func TestTimer_StopIsIdempotent(t *testing.T) {
	timer := NewTimer(1, nil)
	timer.Stop()
	assert.NotPanics(t, func() { timer.Stop() })
}
