package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hubso/backend/internal/models"
)

func recvTyping(t *testing.T, c *Client) models.WSTypingIndicatorPayload {
	t.Helper()
	msg := recvEvent(t, c)
	if msg.Event != models.EventTypingIndicator {
		t.Fatalf("expected typing-indicator, got %s", msg.Event)
	}
	data, _ := json.Marshal(msg.Payload)
	var payload models.WSTypingIndicatorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal typing payload: %v", err)
	}
	return payload
}

func TestTypingAutoReset(t *testing.T) {
	h := newTestHub(50 * time.Millisecond)

	convID := uuid.New()
	typist := uuid.New()
	watcher := newTestClient(uuid.New())
	h.registry.Register(watcher)
	h.registry.Join(watcher, ConversationRoom(convID))

	h.Typing(convID, typist)

	payload := recvTyping(t, watcher)
	if !payload.IsTyping || payload.UserID != typist {
		t.Fatalf("unexpected start payload: %+v", payload)
	}

	payload = recvTyping(t, watcher)
	if payload.IsTyping {
		t.Fatal("expected auto-reset to report not typing")
	}
	if h.typing.pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", h.typing.pending())
	}
}

func TestTypingRepeatedEventsExtendWindow(t *testing.T) {
	h := newTestHub(100 * time.Millisecond)

	convID := uuid.New()
	typist := uuid.New()
	watcher := newTestClient(uuid.New())
	h.registry.Register(watcher)
	h.registry.Join(watcher, ConversationRoom(convID))

	h.Typing(convID, typist)
	recvTyping(t, watcher) // start

	// Retype before the window elapses; the reset must be pushed back
	time.Sleep(40 * time.Millisecond)
	h.Typing(convID, typist)
	payload := recvTyping(t, watcher)
	if !payload.IsTyping {
		t.Fatal("retype broadcast a stop indicator")
	}

	// Original deadline passes with no stop indicator
	time.Sleep(40 * time.Millisecond)
	select {
	case b := <-watcher.send:
		var msg models.WSMessage
		json.Unmarshal(b, &msg)
		data, _ := json.Marshal(msg.Payload)
		var p models.WSTypingIndicatorPayload
		json.Unmarshal(data, &p)
		if !p.IsTyping {
			t.Fatal("stop indicator fired before extended window elapsed")
		}
	default:
	}

	payload = recvTyping(t, watcher)
	if payload.IsTyping {
		t.Fatal("expected stop indicator after extended window")
	}
}

func TestTypingDistinctUsersKeepSeparateTimers(t *testing.T) {
	timers := newTypingTimers()
	convID := uuid.New()

	fired := make(chan uuid.UUID, 2)
	u1, u2 := uuid.New(), uuid.New()

	timers.Schedule(typingKey{ConversationID: convID, UserID: u1}, 20*time.Millisecond, func() { fired <- u1 })
	timers.Schedule(typingKey{ConversationID: convID, UserID: u2}, 20*time.Millisecond, func() { fired <- u2 })

	if timers.pending() != 2 {
		t.Fatalf("expected 2 pending timers, got %d", timers.pending())
	}

	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 2; i++ {
		select {
		case id := <-fired:
			seen[id] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for timers")
		}
	}
	if !seen[u1] || !seen[u2] {
		t.Fatalf("expected both users to fire, got %v", seen)
	}
}

func TestTypingCancelStopsTimer(t *testing.T) {
	timers := newTypingTimers()
	key := typingKey{ConversationID: uuid.New(), UserID: uuid.New()}

	fired := make(chan struct{}, 1)
	timers.Schedule(key, 20*time.Millisecond, func() { fired <- struct{}{} })
	timers.Cancel(key)

	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(60 * time.Millisecond):
	}
	if timers.pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", timers.pending())
	}
}
