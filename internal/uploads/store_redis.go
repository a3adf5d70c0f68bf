package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/beyou-storefront/internal/redisx"
)

// RedisStore keeps sessions in two keys sharing one TTL: the metadata as JSON and the chunks
// as a hash keyed by slot index. HSET makes each slot write atomic; the TTL is refreshed on
// every chunk so only idle sessions expire.
type RedisStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = redisx.TTLUploadSession
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, sessionID string, meta Meta, index int, data string) (Meta, int, error) {
	metaKey := fmt.Sprintf(redisx.KeyUploadMeta, sessionID)
	chunksKey := fmt.Sprintf(redisx.KeyUploadChunks, sessionID)

	if meta.TotalChunks > 0 {
		if index < 0 || index >= meta.TotalChunks {
			return Meta{}, 0, ErrChunkOutOfRange
		}
		if meta.CreatedAt.IsZero() {
			meta.CreatedAt = time.Now().UTC()
		}
		b, err := json.Marshal(meta)
		if err != nil {
			return Meta{}, 0, err
		}
		// first writer wins; later chunks keep the original metadata
		if err := s.rdb.SetNX(ctx, metaKey, b, s.ttl).Err(); err != nil {
			return Meta{}, 0, err
		}
	}

	raw, err := s.rdb.Get(ctx, metaKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Meta{}, 0, ErrSessionUnknown
	}
	if err != nil {
		return Meta{}, 0, err
	}
	var stored Meta
	if err := json.Unmarshal(raw, &stored); err != nil {
		return Meta{}, 0, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	if err := checkChunk(stored, meta.TotalChunks, index); err != nil {
		return Meta{}, 0, err
	}

	var filled *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, chunksKey, strconv.Itoa(index), data)
		p.Expire(ctx, chunksKey, s.ttl)
		p.Expire(ctx, metaKey, s.ttl)
		filled = p.HLen(ctx, chunksKey)
		return nil
	})
	if err != nil {
		return Meta{}, 0, err
	}
	return stored, int(filled.Val()), nil
}

func (s *RedisStore) Take(ctx context.Context, sessionID string) (Meta, []string, error) {
	metaKey := fmt.Sprintf(redisx.KeyUploadMeta, sessionID)
	chunksKey := fmt.Sprintf(redisx.KeyUploadChunks, sessionID)

	var (
		metaCmd   *redis.StringCmd
		chunksCmd *redis.MapStringStringCmd
	)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		metaCmd = p.Get(ctx, metaKey)
		chunksCmd = p.HGetAll(ctx, chunksKey)
		p.Del(ctx, metaKey, chunksKey)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return Meta{}, nil, err
	}

	raw, err := metaCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return Meta{}, nil, ErrSessionUnknown
	}
	if err != nil {
		return Meta{}, nil, err
	}
	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Meta{}, nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}

	chunks := make([]string, meta.TotalChunks)
	for k, v := range chunksCmd.Val() {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= len(chunks) {
			return Meta{}, nil, fmt.Errorf("%w: bad slot %q", ErrAssembly, k)
		}
		chunks[i] = v
	}
	return meta, chunks, nil
}
