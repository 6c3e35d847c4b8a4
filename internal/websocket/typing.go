package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type typingKey struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
}

// typingTimers holds one cancellable reset timer per (conversation,
// user). Scheduling again before the timer fires replaces it, so the
// stop indicator only goes out after the window elapses with no
// further typing events.
type typingTimers struct {
	mu     sync.Mutex
	timers map[typingKey]*time.Timer
}

func newTypingTimers() *typingTimers {
	return &typingTimers{timers: make(map[typingKey]*time.Timer)}
}

// Schedule arms (or re-arms) the reset timer for key. fn runs once the
// window elapses without another Schedule call for the same key.
func (t *typingTimers) Schedule(key typingKey, window time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[key]; ok {
		timer.Stop()
	}
	t.timers[key] = time.AfterFunc(window, func() {
		t.mu.Lock()
		delete(t.timers, key)
		t.mu.Unlock()
		fn()
	})
}

// Cancel stops a pending reset without firing it
func (t *typingTimers) Cancel(key typingKey) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}
}

func (t *typingTimers) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}
