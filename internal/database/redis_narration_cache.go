package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gamebook-server/internal/interfaces"
	"gamebook-server/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Compile-time check
var _ interfaces.NarrationCacheRepository = (*redisNarrationCache)(nil)

// redisNarrationCache — read-through декоратор над постоянным хранилищем
// кеша озвучки. Postgres остается источником истины; Redis снимает с него
// горячие чтения (каждый показ узла — два чтения кеша). Промах и любая
// ошибка Redis прозрачно уходят в нижний слой.
type redisNarrationCache struct {
	client *redis.Client
	next   interfaces.NarrationCacheRepository
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisNarrationCache(client *redis.Client, next interfaces.NarrationCacheRepository, ttl time.Duration, logger *zap.Logger) interfaces.NarrationCacheRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisNarrationCache{
		client: client,
		next:   next,
		ttl:    ttl,
		logger: logger.Named("RedisNarrationCache"),
	}
}

func narrationKey(storyID uuid.UUID, nodeKey string, kind models.NarrationKind) string {
	return fmt.Sprintf("narration:%s:%s:%s", storyID, nodeKey, kind)
}

func (r *redisNarrationCache) Get(ctx context.Context, storyID uuid.UUID, nodeKey string, kind models.NarrationKind) (*models.NarrationCacheEntry, error) {
	key := narrationKey(storyID, nodeKey, kind)

	raw, err := r.client.Get(ctx, key).Result()
	if err == nil {
		entry := &models.NarrationCacheEntry{}
		if jsonErr := json.Unmarshal([]byte(raw), entry); jsonErr == nil {
			return entry, nil
		}
		// Битая запись — выкидываем и идем в постоянное хранилище.
		r.logger.Warn("Corrupted narration cache entry in Redis, dropping", zap.String("key", key))
		r.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		r.logger.Warn("Redis get failed, falling through to persistent store",
			zap.String("key", key), zap.Error(err))
	}

	entry, err := r.next.Get(ctx, storyID, nodeKey, kind)
	if err != nil {
		return nil, err
	}
	r.put(ctx, entry)
	return entry, nil
}

func (r *redisNarrationCache) Upsert(ctx context.Context, entry *models.NarrationCacheEntry) error {
	if err := r.next.Upsert(ctx, entry); err != nil {
		return err
	}
	r.put(ctx, entry)
	return nil
}

func (r *redisNarrationCache) DeleteByStory(ctx context.Context, storyID uuid.UUID) error {
	if err := r.next.DeleteByStory(ctx, storyID); err != nil {
		return err
	}
	pattern := fmt.Sprintf("narration:%s:*", storyID)
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.logger.Warn("Redis scan failed while dropping story narration keys",
			zap.String("storyID", storyID.String()), zap.Error(err))
		return nil
	}
	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			r.logger.Warn("Redis del failed while dropping story narration keys",
				zap.String("storyID", storyID.String()), zap.Error(err))
		}
	}
	return nil
}

func (r *redisNarrationCache) put(ctx context.Context, entry *models.NarrationCacheEntry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	key := narrationKey(entry.StoryID, entry.NodeKey, entry.Kind)
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		r.logger.Warn("Redis set failed", zap.String("key", key), zap.Error(err))
	}
}
