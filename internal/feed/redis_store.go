package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/steemit/chirp/internal/cache"
)

const maxUpdateRetries = 5

// RedisStore keeps FeedCaches in Redis so several web processes share them.
// Each feed is one JSON value; a per-session set indexes the feeds for Discard.
type RedisStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewRedisStore creates a Redis-backed store whose entries expire after ttl idle time
func NewRedisStore(c *cache.Cache, ttl time.Duration) *RedisStore {
	return &RedisStore{cache: c, ttl: ttl}
}

func feedKey(session string, key Key) string {
	return "feed:" + cache.HashKey(session) + ":" + key.String()
}

func indexKey(session string) string {
	return "feed:" + cache.HashKey(session) + ":keys"
}

// Load returns the cached pages of one feed, or nil
func (s *RedisStore) Load(ctx context.Context, session string, key Key) (*Infinite, error) {
	var in Infinite
	if err := s.cache.GetJSON(ctx, feedKey(session, key), &in); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	_ = s.cache.Expire(ctx, feedKey(session, key), s.ttl)
	return &in, nil
}

// Update applies fn inside WATCH/MULTI and retries when the feed changed concurrently
func (s *RedisStore) Update(ctx context.Context, session string, key Key, fn UpdateFunc) (*Infinite, error) {
	name := feedKey(session, key)
	index := indexKey(session)

	var result *Infinite
	txf := func(tx *redis.Tx) error {
		var old *Infinite
		raw, err := tx.Get(ctx, s.cache.Key(name)).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			old = &Infinite{}
			if err := json.Unmarshal(raw, old); err != nil {
				return fmt.Errorf("decode cached feed: %w", err)
			}
		}

		updated := fn(old)
		result = updated
		if updated == old {
			return nil
		}

		var data []byte
		if updated != nil {
			if data, err = json.Marshal(updated); err != nil {
				return fmt.Errorf("encode cached feed: %w", err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if updated == nil {
				pipe.Del(ctx, s.cache.Key(name))
				pipe.SRem(ctx, s.cache.Key(index), key.String())
				return nil
			}
			pipe.Set(ctx, s.cache.Key(name), data, s.ttl)
			pipe.SAdd(ctx, s.cache.Key(index), key.String())
			pipe.Expire(ctx, s.cache.Key(index), s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := s.cache.Watch(ctx, txf, name)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("update %s feed: too much contention", key)
}

// Discard deletes every feed of a session
func (s *RedisStore) Discard(ctx context.Context, session string) error {
	members, err := s.cache.Members(ctx, indexKey(session))
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		k, err := ParseKey(m)
		if err != nil {
			continue
		}
		keys = append(keys, feedKey(session, k))
	}
	keys = append(keys, indexKey(session))
	return s.cache.Delete(ctx, keys...)
}
