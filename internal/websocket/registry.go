package websocket

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

// Room name helpers. A room is a broadcast group, not an authorization
// boundary: joining one grants no data access.

func UserRoom(userID uuid.UUID) string {
	return "user:" + userID.String()
}

func CommunityRoom(communityID string) string {
	return "community:" + communityID
}

func ConversationRoom(conversationID uuid.UUID) string {
	return "conversation:" + conversationID.String()
}

const registryShardCount = 16

// RoomRegistry tracks which live connections belong to which rooms.
// Purely in memory: it is rebuilt empty on restart and is never
// authoritative for anything but fan-out targets. Room membership is
// sharded by room name so a hot conversation room does not serialize
// joins and broadcasts for unrelated rooms.
type RoomRegistry struct {
	shards [registryShardCount]roomShard

	// mu guards the per-connection and per-user views
	mu        sync.Mutex
	conns     map[uuid.UUID]map[string]bool
	userConns map[uuid.UUID]int
}

type roomShard struct {
	mu    sync.RWMutex
	rooms map[string]map[uuid.UUID]*Client
}

func NewRoomRegistry() *RoomRegistry {
	r := &RoomRegistry{
		conns:     make(map[uuid.UUID]map[string]bool),
		userConns: make(map[uuid.UUID]int),
	}
	for i := range r.shards {
		r.shards[i].rooms = make(map[string]map[uuid.UUID]*Client)
	}
	return r
}

func (r *RoomRegistry) shard(room string) *roomShard {
	h := fnv.New32a()
	h.Write([]byte(room))
	return &r.shards[h.Sum32()%registryShardCount]
}

// Register starts tracking a connection and returns how many live
// connections its user now has. A result of 1 is an offline→online
// transition.
func (r *RoomRegistry) Register(c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c.id]; ok {
		return r.userConns[c.userID]
	}
	r.conns[c.id] = make(map[string]bool)
	r.userConns[c.userID]++
	return r.userConns[c.userID]
}

// Join adds a connection to a room. Idempotent.
func (r *RoomRegistry) Join(c *Client, room string) {
	r.mu.Lock()
	rooms, ok := r.conns[c.id]
	if !ok {
		// Connection already dropped; nothing to join.
		r.mu.Unlock()
		return
	}
	rooms[room] = true
	r.mu.Unlock()

	s := r.shard(room)
	s.mu.Lock()
	members, ok := s.rooms[room]
	if !ok {
		members = make(map[uuid.UUID]*Client)
		s.rooms[room] = members
	}
	members[c.id] = c
	s.mu.Unlock()
}

// Leave removes a connection from a room. Idempotent.
func (r *RoomRegistry) Leave(c *Client, room string) {
	r.mu.Lock()
	if rooms, ok := r.conns[c.id]; ok {
		delete(rooms, room)
	}
	r.mu.Unlock()

	r.removeFromRoom(c.id, room)
}

func (r *RoomRegistry) removeFromRoom(connID uuid.UUID, room string) {
	s := r.shard(room)
	s.mu.Lock()
	if members, ok := s.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(s.rooms, room)
		}
	}
	s.mu.Unlock()
}

// MembersOf returns a snapshot of the connections in a room. The empty
// slice is valid: broadcasting to nobody is a no-op, not an error.
// Iterating the snapshot tolerates concurrent join/leave.
func (r *RoomRegistry) MembersOf(room string) []*Client {
	s := r.shard(room)
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.rooms[room]
	snapshot := make([]*Client, 0, len(members))
	for _, c := range members {
		snapshot = append(snapshot, c)
	}
	return snapshot
}

// DropConnection removes a connection from every room it joined and
// stops tracking it. Returns the user's remaining connection count and
// whether the connection was still tracked; presence:offline should
// only follow when the count reaches zero.
func (r *RoomRegistry) DropConnection(c *Client) (remaining int, existed bool) {
	r.mu.Lock()
	rooms, ok := r.conns[c.id]
	if !ok {
		remaining = r.userConns[c.userID]
		r.mu.Unlock()
		return remaining, false
	}
	delete(r.conns, c.id)
	r.userConns[c.userID]--
	remaining = r.userConns[c.userID]
	if remaining <= 0 {
		delete(r.userConns, c.userID)
		remaining = 0
	}
	r.mu.Unlock()

	for room := range rooms {
		r.removeFromRoom(c.id, room)
	}
	return remaining, true
}

// ConnectionCount reports how many live connections a user holds
func (r *RoomRegistry) ConnectionCount(userID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userConns[userID]
}

// OnlineUsers returns the users with at least one live connection on
// this process
func (r *RoomRegistry) OnlineUsers() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	userIDs := make([]uuid.UUID, 0, len(r.userConns))
	for userID := range r.userConns {
		userIDs = append(userIDs, userID)
	}
	return userIDs
}
