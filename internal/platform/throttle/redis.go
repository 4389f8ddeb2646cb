package throttle

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "throttle:"

type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore keeps one sorted set per key, scored by hit time in microseconds.
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 || window <= 0 {
		return Decision{Allowed: true}, nil
	}
	now := s.now()
	k := s.prefix + key
	member, err := hitID(now)
	if err != nil {
		return Decision{}, err
	}
	cutoff := strconv.FormatInt(now.Add(-window).UnixMicro(), 10)

	// Add first, count, and roll the hit back when over limit so concurrent callers
	// across instances can never both slip under the limit.
	pipe := s.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", "("+cutoff)
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMicro()), Member: member})
	card := pipe.ZCard(ctx, k)
	oldest := pipe.ZRangeWithScores(ctx, k, 0, 0)
	pipe.PExpire(ctx, k, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}

	count := int(card.Val())
	if count <= limit {
		return Decision{Allowed: true, Count: count}, nil
	}
	if err := s.rdb.ZRem(ctx, k, member).Err(); err != nil {
		return Decision{}, err
	}
	retry := window
	if zs := oldest.Val(); len(zs) > 0 {
		first := time.UnixMicro(int64(zs[0].Score))
		retry = first.Add(window).Sub(now)
	}
	return Decision{Allowed: false, Count: count - 1, RetryAfter: retry}, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

func hitID(t time.Time) (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strconv.FormatInt(t.UnixNano(), 36) + "-" + hex.EncodeToString(b), nil
}
