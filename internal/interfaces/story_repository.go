package interfaces

import (
	"context"

	"gamebook-server/internal/models"

	"github.com/google/uuid"
)

// StoryRepository отвечает за загрузку историй и их графов из персистентного
// хранилища, а также за обновление производных маркеров валидности озвучки.
type StoryRepository interface {
	// GetBySlug возвращает опубликованную историю по slug.
	// Возвращает models.ErrStoryNotFound, если истории нет или она снята с публикации.
	GetBySlug(ctx context.Context, slug string) (*models.Story, error)

	// GetGraphNodes загружает все узлы и выборы истории одним заходом,
	// выборы упорядочены по sort_index. Сборка и валидация графа — забота
	// engine.LoadGraph, репозиторий отдает строки как есть (включая
	// возможные дубликаты ключей).
	GetGraphNodes(ctx context.Context, storyID uuid.UUID) ([]*models.StoryNode, error)

	// UpdateNarrationHash записывает отпечаток текста узла после успешного
	// синтеза озвучки соответствующего вида.
	UpdateNarrationHash(ctx context.Context, storyID uuid.UUID, nodeKey string, kind models.NarrationKind, hash string) error
}
