package models

import (
	"time"

	"github.com/google/uuid"
)

// NarrationKind различает два независимых текста озвучки одного узла:
// основной текст и озвученный список выборов. У каждого свой хеш и своя
// запись кеша, поэтому правка выборов не инвалидирует озвучку основного
// текста и наоборот.
type NarrationKind string

const (
	NarrationKindBody    NarrationKind = "body"
	NarrationKindChoices NarrationKind = "choices"
)

// NarrationCacheEntry — запись кеша синтезированной озвучки,
// одна на (история, узел, вид). Создается при первом успешном синтезе,
// целиком заменяется при смене хеша текста, никогда не сливается.
type NarrationCacheEntry struct {
	StoryID     uuid.UUID     `json:"story_id" db:"story_id"`
	NodeKey     string        `json:"node_key" db:"node_key"`
	Kind        NarrationKind `json:"kind" db:"kind"`
	ContentHash string        `json:"content_hash" db:"content_hash"`
	AudioURL    string        `json:"audio_url" db:"audio_url"`
	ByteLength  int           `json:"byte_length" db:"byte_length"`
	CachedAt    time.Time     `json:"cached_at" db:"cached_at"`
}
