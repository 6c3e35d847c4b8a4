package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hubso/backend/internal/models"
)

const (
	onlineSetKey = "presence:online"

	// presenceTTL bounds how long a crashed connection can look online.
	// The gateway refreshes it on every heartbeat.
	presenceTTL = 60 * time.Second
)

type RedisClient struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisClient creates a new Redis client
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		ctx:    ctx,
	}, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

func presenceKey(userID uuid.UUID) string {
	return fmt.Sprintf("presence:user:%s", userID.String())
}

// Presence Management
//
// Keys carry a TTL so presence survives neither a crashed client nor a
// restarted server: the room registry is rebuilt from scratch, Redis
// just expires.

// SetUserOnline marks a user online with an auto-expiring key
func (r *RedisClient) SetUserOnline(userID uuid.UUID) error {
	presence := models.UserPresence{
		UserID:   userID,
		Status:   "online",
		LastSeen: time.Now(),
	}

	data, err := json.Marshal(presence)
	if err != nil {
		return err
	}

	if err := r.client.Set(r.ctx, presenceKey(userID), data, presenceTTL).Err(); err != nil {
		return err
	}
	return r.client.ZAdd(r.ctx, onlineSetKey, redis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: userID.String(),
	}).Err()
}

// SetUserOffline removes a user's online key
func (r *RedisClient) SetUserOffline(userID uuid.UUID) error {
	if err := r.client.Del(r.ctx, presenceKey(userID)).Err(); err != nil {
		return err
	}
	return r.client.ZRem(r.ctx, onlineSetKey, userID.String()).Err()
}

// Heartbeat refreshes the TTL on a user's online key
func (r *RedisClient) Heartbeat(userID uuid.UUID) error {
	exists, err := r.client.Exists(r.ctx, presenceKey(userID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return r.SetUserOnline(userID)
	}

	if err := r.client.Expire(r.ctx, presenceKey(userID), presenceTTL).Err(); err != nil {
		return err
	}
	return r.client.ZAdd(r.ctx, onlineSetKey, redis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: userID.String(),
	}).Err()
}

// IsUserOnline checks a single user's online key
func (r *RedisClient) IsUserOnline(userID uuid.UUID) (bool, error) {
	exists, err := r.client.Exists(r.ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

// GetPresence returns online status for multiple users in one round trip
func (r *RedisClient) GetPresence(userIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.Exists(r.ctx, presenceKey(id))
	}
	if _, err := pipe.Exec(r.ctx); err != nil {
		return nil, fmt.Errorf("failed to check presence: %w", err)
	}

	for i, id := range userIDs {
		result[id] = cmds[i].Val() == 1
	}
	return result, nil
}

// GetOnlineUserIDs returns all users with a live online key, dropping
// entries whose score is older than the TTL
func (r *RedisClient) GetOnlineUserIDs() ([]uuid.UUID, error) {
	cutoff := time.Now().Add(-presenceTTL).UnixMilli()
	if err := r.client.ZRemRangeByScore(r.ctx, onlineSetKey, "-inf", fmt.Sprintf("%d", cutoff)).Err(); err != nil {
		return nil, err
	}

	members, err := r.client.ZRange(r.ctx, onlineSetKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	userIDs := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		userID, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		userIDs = append(userIDs, userID)
	}

	return userIDs, nil
}

// AllowAction implements a Redis-backed token-bucket limiter per key (user+action).
// Returns true if the action is allowed, false if rate-limited.
func (r *RedisClient) AllowAction(userID uuid.UUID, action string, rate int, burst int) (bool, error) {
	key := fmt.Sprintf("rl:%s:%s", action, userID.String())
	// Lua script: manage tokens and last timestamp
	script := `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local vals = redis.call('HMGET', key, 'tokens', 'last')
local tokens = tonumber(vals[1])
local last = tonumber(vals[2])
if tokens == nil then tokens = burst end
if last == nil then last = now end
local delta = math.max(0, now - last)
local new_tokens = math.min(burst, tokens + (delta * rate / 1000))
if new_tokens >= 1 then
	new_tokens = new_tokens - 1
	redis.call('HMSET', key, 'tokens', new_tokens, 'last', now)
	redis.call('PEXPIRE', key, 60000)
	return 1
else
	redis.call('HMSET', key, 'tokens', new_tokens, 'last', now)
	redis.call('PEXPIRE', key, 60000)
	return 0
end
`

	now := time.Now().UnixNano() / int64(time.Millisecond)
	res, err := r.client.Eval(r.ctx, script, []string{key}, rate, burst, now).Result()
	if err != nil {
		return false, err
	}
	// Eval returns int64 (1 or 0)
	switch v := res.(type) {
	case int64:
		return v == 1, nil
	case int:
		return v == 1, nil
	default:
		return false, fmt.Errorf("unexpected result from rate limiter: %T %v", res, res)
	}
}
