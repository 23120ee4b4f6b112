// Package admincache mirrors each chat's administrator/owner id set into
// Redis. The bot writes the sets after each admin refresh; IsAdmin and
// IsOwner read them back for other processes. The worker pool itself
// consults only the in-memory registry, never this mirror.
package admincache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ttl bounds how long a mirrored admin set is trusted before a reader
// should prefer the registry's own live data instead.
const ttl = 2 * time.Hour

// Mirror wraps a Redis client used only for the admin/owner id mirror.
type Mirror struct {
	client *redis.Client
}

// Connect builds a Mirror from a redis:// URL and verifies connectivity.
func Connect(ctx context.Context, url string) (*Mirror, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &Mirror{client: client}, nil
}

// Close releases the underlying connection pool.
func (m *Mirror) Close() error {
	return m.client.Close()
}

func adminsKey(chatID int64) string {
	return "telebot:admins:" + strconv.FormatInt(chatID, 10)
}

func ownersKey(chatID int64) string {
	return "telebot:owners:" + strconv.FormatInt(chatID, 10)
}

// SetAdmins overwrites the mirrored admin and owner id sets for chatID.
func (m *Mirror) SetAdmins(ctx context.Context, chatID int64, adminIDs, ownerIDs []int64) error {
	pipe := m.client.TxPipeline()
	writeSet(ctx, pipe, adminsKey(chatID), adminIDs)
	writeSet(ctx, pipe, ownersKey(chatID), ownerIDs)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("mirroring admins for chat %d: %w", chatID, err)
	}
	return nil
}

func writeSet(ctx context.Context, pipe redis.Pipeliner, key string, ids []int64) {
	pipe.Del(ctx, key)
	if len(ids) == 0 {
		return
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, ttl)
}

// IsAdmin reports whether userID is in the mirrored admin set for chatID.
func (m *Mirror) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	ok, err := m.client.SIsMember(ctx, adminsKey(chatID), userID).Result()
	if err != nil {
		return false, fmt.Errorf("checking mirrored admin status: %w", err)
	}
	return ok, nil
}

// IsOwner reports whether userID is in the mirrored owner set for chatID.
func (m *Mirror) IsOwner(ctx context.Context, chatID, userID int64) (bool, error) {
	ok, err := m.client.SIsMember(ctx, ownersKey(chatID), userID).Result()
	if err != nil {
		return false, fmt.Errorf("checking mirrored owner status: %w", err)
	}
	return ok, nil
}
