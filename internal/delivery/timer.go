package delivery

import (
	"sync"
	"time"
)

// DefaultWarningSeconds is the threshold below which a session is considered
// in its warning window. Display-only: it never alters submission logic.
const DefaultWarningSeconds = 300

// Timer counts down the wall-clock budget of a timed session. It ticks once
// per second, signals expiry exactly once, and stops cleanly on Stop so no
// callback fires after teardown or completion.
type Timer struct {
	mu        sync.Mutex
	remaining int
	warning   int
	stopped   bool

	stopCh     chan struct{}
	stopOnce   sync.Once
	expireOnce sync.Once
	onExpire   func()
}

// NewTimer creates a timer for limitMinutes. The expiry callback runs at most
// once, from the goroutine that observed the final tick.
func NewTimer(limitMinutes int, onExpire func()) *Timer {
	return &Timer{
		remaining: limitMinutes * 60,
		warning:   DefaultWarningSeconds,
		stopCh:    make(chan struct{}),
		onExpire:  onExpire,
	}
}

// Start launches the once-per-second tick loop.
func (t *Timer) Start() {
	go t.run()
}

func (t *Timer) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			if t.Tick() {
				return
			}
		}
	}
}

// Tick decrements the remaining budget by one second and reports whether the
// timer has finished. Exposed so tests can drive simulated time without a
// wall clock. The expiry signal fires exactly once, on the tick that reaches
// zero.
func (t *Timer) Tick() bool {
	t.mu.Lock()
	if t.stopped || t.remaining <= 0 {
		t.mu.Unlock()
		return true
	}
	t.remaining--
	remaining := t.remaining
	t.mu.Unlock()

	if remaining > 0 {
		return false
	}

	t.expireOnce.Do(func() {
		t.Stop()
		if t.onExpire != nil {
			t.onExpire()
		}
	})
	return true
}

// Remaining returns the current budget in seconds.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// InWarning reports whether the session is inside the warning window.
func (t *Timer) InWarning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining < t.warning
}

// Stop halts the tick loop and suppresses any further expiry callback. Safe
// to call multiple times and from the expiry path itself.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()

	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
}
