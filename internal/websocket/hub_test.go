package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hubso/backend/internal/models"
)

func newTestHub(typingWindow time.Duration) *Hub {
	return &Hub{
		registry:     NewRoomRegistry(),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		typing:       newTypingTimers(),
		typingWindow: typingWindow,
	}
}

func recvEvent(t *testing.T, c *Client) models.WSMessage {
	t.Helper()
	select {
	case b := <-c.send:
		var got models.WSMessage
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return got
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return models.WSMessage{}
	}
}

func TestHubBroadcastReachesRoomMembersOnly(t *testing.T) {
	h := newTestHub(time.Second)

	member := newTestClient(uuid.New())
	outsider := newTestClient(uuid.New())
	h.registry.Register(member)
	h.registry.Register(outsider)

	convID := uuid.New()
	h.registry.Join(member, ConversationRoom(convID))

	h.Broadcast(ConversationRoom(convID), models.EventMessageReceive, map[string]string{"hello": "world"})

	got := recvEvent(t, member)
	if got.Event != models.EventMessageReceive {
		t.Fatalf("unexpected event: %s", got.Event)
	}

	select {
	case b := <-outsider.send:
		t.Fatalf("outsider received broadcast: %s", b)
	default:
	}
}

func TestHubBroadcastSkipsSlowClient(t *testing.T) {
	h := newTestHub(time.Second)

	fast := newTestClient(uuid.New())
	slow := &Client{id: uuid.New(), userID: uuid.New(), send: make(chan []byte)} // unbuffered, nobody reading
	h.registry.Register(fast)
	h.registry.Register(slow)

	room := CommunityRoom("default")
	h.registry.Join(fast, room)
	h.registry.Join(slow, room)

	done := make(chan struct{})
	go func() {
		h.Broadcast(room, models.EventPresenceOnline, models.WSPresencePayload{UserID: fast.userID})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on slow client")
	}

	recvEvent(t, fast)
}

func TestHubSendToUserReachesAllConnections(t *testing.T) {
	h := newTestHub(time.Second)

	userID := uuid.New()
	c1 := newTestClient(userID)
	c2 := newTestClient(userID)
	for _, c := range []*Client{c1, c2} {
		h.registry.Register(c)
		h.registry.Join(c, UserRoom(userID))
	}

	h.SendToUser(userID, models.EventNotificationReceive, map[string]string{"title": "hi"})

	for _, c := range []*Client{c1, c2} {
		got := recvEvent(t, c)
		if got.Event != models.EventNotificationReceive {
			t.Fatalf("unexpected event: %s", got.Event)
		}
	}
}

func TestHubRunPresenceTransitions(t *testing.T) {
	h := newTestHub(time.Second)
	go h.Run()

	userID := uuid.New()
	watcher := newTestClient(uuid.New())
	watcher.communityID = "default"
	h.register <- watcher
	recvEvent(t, watcher) // watcher's own presence:online

	c1 := newTestClient(userID)
	c1.communityID = "default"
	c2 := newTestClient(userID)
	c2.communityID = "default"

	// First connection goes online; the second must not re-announce
	h.register <- c1
	got := recvEvent(t, watcher)
	if got.Event != models.EventPresenceOnline {
		t.Fatalf("expected presence:online, got %s", got.Event)
	}

	h.register <- c2
	recvEvent(t, c1) // c1 sees its own online event from registration ordering
	select {
	case b := <-watcher.send:
		var msg models.WSMessage
		json.Unmarshal(b, &msg)
		if msg.Event == models.EventPresenceOnline {
			t.Fatal("second connection re-announced presence:online")
		}
	case <-time.After(200 * time.Millisecond):
	}

	// Dropping one connection must not announce offline
	h.unregister <- c1
	select {
	case b := <-watcher.send:
		var msg models.WSMessage
		json.Unmarshal(b, &msg)
		if msg.Event == models.EventPresenceOffline {
			t.Fatal("offline announced while a connection remains")
		}
	case <-time.After(200 * time.Millisecond):
	}

	// Last connection gone: now offline
	h.unregister <- c2
	got = recvEvent(t, watcher)
	if got.Event != models.EventPresenceOffline {
		t.Fatalf("expected presence:offline, got %s", got.Event)
	}
}

func TestHubJoinLeaveConversationEvents(t *testing.T) {
	h := newTestHub(time.Second)

	convID := uuid.New()
	resident := newTestClient(uuid.New())
	h.registry.Register(resident)
	h.registry.Join(resident, ConversationRoom(convID))

	joiner := newTestClient(uuid.New())
	h.registry.Register(joiner)

	h.JoinConversation(joiner, convID)
	got := recvEvent(t, resident)
	if got.Event != models.EventUserJoined {
		t.Fatalf("expected user-joined, got %s", got.Event)
	}
	recvEvent(t, joiner) // joiner is in the room by the time the event fires

	h.LeaveConversation(joiner, convID)
	got = recvEvent(t, resident)
	if got.Event != models.EventUserLeft {
		t.Fatalf("expected user-left, got %s", got.Event)
	}
	select {
	case b := <-joiner.send:
		t.Fatalf("leaver received its own departure event: %s", b)
	default:
	}
}

func TestHubBroadcastDuringConnectionChurn(t *testing.T) {
	h := newTestHub(time.Minute)
	go h.Run()

	room := CommunityRoom("default")

	// Long-lived members soak up the broadcast traffic
	members := make([]*Client, 32)
	for i := range members {
		c := newTestClient(uuid.New())
		c.communityID = "default"
		members[i] = c
		h.register <- c
		go func(ch chan []byte) {
			for range ch {
			}
		}(c.send)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					h.Broadcast(room, models.EventMessageReceive, map[string]string{"content": "hi"})
				}
			}
		}()
	}

	// Churn connections through the lifecycle loop: every teardown
	// races the broadcasters holding pre-drop member snapshots
	for i := 0; i < 500; i++ {
		c := newTestClient(uuid.New())
		c.communityID = "default"
		h.register <- c
		h.unregister <- c
	}

	close(stop)
	wg.Wait()

	for _, c := range members {
		h.unregister <- c
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(h.GetOnlineUsers()) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("registry still holds %d online users", len(h.GetOnlineUsers()))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubIsUserOnline(t *testing.T) {
	h := newTestHub(time.Second)

	userID := uuid.New()
	c := newTestClient(userID)
	h.registry.Register(c)

	if !h.IsUserOnline(userID) {
		t.Fatal("expected user online")
	}
	if h.IsUserOnline(uuid.New()) {
		t.Fatal("expected unknown user offline")
	}

	h.registry.DropConnection(c)
	if h.IsUserOnline(userID) {
		t.Fatal("expected user offline after drop")
	}
}
