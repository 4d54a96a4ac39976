package messaging

import (
	"github.com/google/uuid"

	"gamebook-server/internal/models"
)

// NarrationTaskPayload — задача фоновой прегенерации озвучки одного узла.
// Публикуется сервером при правке текста или явном запросе прогрева,
// потребляется воркером narrator.
type NarrationTaskPayload struct {
	TaskID    uuid.UUID              `json:"task_id"`
	StorySlug string                 `json:"story_slug"`
	NodeKey   string                 `json:"node_key"`
	Kinds     []models.NarrationKind `json:"kinds"`
}
