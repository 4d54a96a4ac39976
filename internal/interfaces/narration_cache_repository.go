package interfaces

import (
	"context"

	"gamebook-server/internal/models"

	"github.com/google/uuid"
)

// NarrationCacheRepository — хранилище записей кеша озвучки, по одной на
// (история, узел, вид). Читается перед любой попыткой синтеза и пишется один
// раз после успешной; писатели не координируются — последняя успешная запись
// по ключу побеждает (идемпотентно: одинаковый хеш означает семантически
// эквивалентную озвучку).
type NarrationCacheRepository interface {
	// Get возвращает запись кеша или models.ErrNotFound.
	Get(ctx context.Context, storyID uuid.UUID, nodeKey string, kind models.NarrationKind) (*models.NarrationCacheEntry, error)

	// Upsert создает или целиком заменяет запись по ключу (story, node, kind).
	Upsert(ctx context.Context, entry *models.NarrationCacheEntry) error

	// DeleteByStory удаляет все записи истории. Вызывается только при
	// явном удалении истории целиком.
	DeleteByStory(ctx context.Context, storyID uuid.UUID) error
}
