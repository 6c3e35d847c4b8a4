package websocket

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hubso/backend/internal/models"
)

// newDispatchClient builds a client wired to a hub but no transport,
// so handleEvent can be driven directly with raw frames. Repos are
// left nil: any validation path that reached them would panic the
// test, proving the drop happened first.
func newDispatchClient(h *Hub) *Client {
	return &Client{
		id:            uuid.New(),
		hub:           h,
		send:          make(chan []byte, 8),
		userID:        uuid.New(),
		communityID:   "default",
		maxContentLen: 64,
		limiter:       rate.NewLimiter(10, 20),
	}
}

func frame(t *testing.T, event string, payload interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(models.WSMessage{Event: event, Payload: payload})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return b
}

func assertNoReply(t *testing.T, c *Client) {
	t.Helper()
	select {
	case b := <-c.send:
		t.Fatalf("expected silent drop, got reply: %s", b)
	default:
	}
}

func TestHandleEventMalformedFrameDropped(t *testing.T) {
	h := newTestHub(time.Second)
	c := newDispatchClient(h)

	c.handleEvent([]byte(`{"event": "message:send", "payload`))
	assertNoReply(t, c)
}

func TestHandleEventUnknownEventDropped(t *testing.T) {
	h := newTestHub(time.Second)
	c := newDispatchClient(h)

	c.handleEvent(frame(t, "presence:levitate", nil))
	assertNoReply(t, c)
}

func TestHandleMessageSendValidation(t *testing.T) {
	h := newTestHub(time.Second)

	tests := []struct {
		name    string
		payload interface{}
	}{
		{"missing conversation", map[string]string{"content": "hello"}},
		{"empty content", models.WSMessageSendPayload{ConversationID: uuid.New()}},
		{"oversized content", models.WSMessageSendPayload{
			ConversationID: uuid.New(),
			Content:        strings.Repeat("a", 65),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newDispatchClient(h)
			c.handleEvent(frame(t, models.EventMessageSend, tt.payload))
			assertNoReply(t, c)
		})
	}
}

func TestHandleMessageSendOverBudgetDropped(t *testing.T) {
	h := newTestHub(time.Second)
	c := newDispatchClient(h)
	c.limiter = rate.NewLimiter(1, 0) // budget exhausted from the start

	c.handleEvent(frame(t, models.EventMessageSend, models.WSMessageSendPayload{
		ConversationID: uuid.New(),
		Content:        "hello",
	}))
	assertNoReply(t, c)
}

func TestHandleEventNilConversationDropped(t *testing.T) {
	h := newTestHub(time.Second)

	events := []string{
		models.EventConversationJoin,
		models.EventConversationLeave,
		models.EventMessageRead,
		models.EventTyping,
	}
	for _, event := range events {
		t.Run(event, func(t *testing.T) {
			c := newDispatchClient(h)
			c.handleEvent(frame(t, event, map[string]string{"conversation_id": ""}))
			assertNoReply(t, c)
		})
	}
}

func TestHandleConversationJoinSubscribesRoom(t *testing.T) {
	h := newTestHub(time.Second)
	c := newDispatchClient(h)
	h.registry.Register(c)

	convID := uuid.New()
	c.handleEvent(frame(t, models.EventConversationJoin, models.WSConversationPayload{ConversationID: convID}))

	got := recvEvent(t, c)
	if got.Event != models.EventUserJoined {
		t.Fatalf("expected user-joined, got %s", got.Event)
	}
	found := false
	for _, member := range h.registry.MembersOf(ConversationRoom(convID)) {
		if member.id == c.id {
			found = true
		}
	}
	if !found {
		t.Fatal("client not subscribed to the conversation room")
	}
}

func TestHandleHeartbeatAcked(t *testing.T) {
	h := newTestHub(time.Second)
	c := newDispatchClient(h)

	c.handleEvent(frame(t, models.EventPresenceHeartbeat, nil))

	got := recvEvent(t, c)
	if got.Event != models.EventHeartbeatAck {
		t.Fatalf("expected heartbeat ack, got %s", got.Event)
	}
}

func TestTrySendAfterTeardownRefused(t *testing.T) {
	c := newTestClient(uuid.New())

	if !c.trySend([]byte("before")) {
		t.Fatal("expected send to succeed before teardown")
	}

	c.closeSend()
	c.closeSend() // second teardown is a no-op

	if c.trySend([]byte("after")) {
		t.Fatal("expected send to be refused after teardown")
	}
	if _, ok := <-c.send; !ok {
		t.Fatal("expected buffered frame to remain drainable")
	}
	if _, ok := <-c.send; ok {
		t.Fatal("expected channel closed after draining")
	}
}
