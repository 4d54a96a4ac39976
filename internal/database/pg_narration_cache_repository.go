package database

import (
	"context"
	"errors"
	"fmt"

	"gamebook-server/internal/interfaces"
	"gamebook-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check
var _ interfaces.NarrationCacheRepository = (*pgNarrationCacheRepository)(nil)

type pgNarrationCacheRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

func NewPgNarrationCacheRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.NarrationCacheRepository {
	return &pgNarrationCacheRepository{
		db:     db,
		logger: logger.Named("PgNarrationCacheRepo"),
	}
}

const getNarrationEntryQuery = `
	SELECT story_id, node_key, kind, content_hash, audio_url, byte_length, cached_at
	FROM narration_cache
	WHERE story_id = $1 AND node_key = $2 AND kind = $3
`

func (r *pgNarrationCacheRepository) Get(ctx context.Context, storyID uuid.UUID, nodeKey string, kind models.NarrationKind) (*models.NarrationCacheEntry, error) {
	entry := &models.NarrationCacheEntry{}
	err := pgxscan.Get(ctx, r.db, entry, getNarrationEntryQuery, storyID, nodeKey, kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get narration cache entry",
			zap.String("storyID", storyID.String()),
			zap.String("nodeKey", nodeKey),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil, fmt.Errorf("ошибка чтения кеша озвучки узла %s (%s): %w", nodeKey, kind, err)
	}
	return entry, nil
}

const upsertNarrationEntryQuery = `
	INSERT INTO narration_cache (story_id, node_key, kind, content_hash, audio_url, byte_length, cached_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (story_id, node_key, kind)
	DO UPDATE SET content_hash = EXCLUDED.content_hash,
	              audio_url    = EXCLUDED.audio_url,
	              byte_length  = EXCLUDED.byte_length,
	              cached_at    = EXCLUDED.cached_at
`

// Upsert заменяет запись кеша целиком: последняя запись побеждает.
func (r *pgNarrationCacheRepository) Upsert(ctx context.Context, entry *models.NarrationCacheEntry) error {
	_, err := r.db.Exec(ctx, upsertNarrationEntryQuery,
		entry.StoryID, entry.NodeKey, entry.Kind,
		entry.ContentHash, entry.AudioURL, entry.ByteLength, entry.CachedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert narration cache entry",
			zap.String("storyID", entry.StoryID.String()),
			zap.String("nodeKey", entry.NodeKey),
			zap.String("kind", string(entry.Kind)),
			zap.Error(err))
		return fmt.Errorf("ошибка записи кеша озвучки узла %s (%s): %w", entry.NodeKey, entry.Kind, err)
	}
	r.logger.Debug("Narration cache entry upserted",
		zap.String("nodeKey", entry.NodeKey),
		zap.String("kind", string(entry.Kind)),
		zap.String("hash", entry.ContentHash[:8]))
	return nil
}

const deleteNarrationByStoryQuery = `
	DELETE FROM narration_cache WHERE story_id = $1
`

// DeleteByStory сбрасывает кеш озвучки истории целиком (например, при смене
// голоса или провайдера: текст тот же, аудио должно пересобраться).
func (r *pgNarrationCacheRepository) DeleteByStory(ctx context.Context, storyID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, deleteNarrationByStoryQuery, storyID)
	if err != nil {
		r.logger.Error("Failed to delete narration cache for story",
			zap.String("storyID", storyID.String()), zap.Error(err))
		return fmt.Errorf("ошибка сброса кеша озвучки истории %s: %w", storyID, err)
	}
	r.logger.Info("Narration cache dropped for story",
		zap.String("storyID", storyID.String()),
		zap.Int64("entries", tag.RowsAffected()))
	return nil
}
