package database

import (
	"context"
	"sync"

	"gamebook-server/internal/interfaces"
	"gamebook-server/internal/models"

	"github.com/google/uuid"
)

// Compile-time check
var _ interfaces.NarrationCacheRepository = (*memoryNarrationCache)(nil)

type memoryCacheKey struct {
	storyID uuid.UUID
	nodeKey string
	kind    models.NarrationKind
}

// memoryNarrationCache — потокобезопасная in-memory реализация кеша озвучки
// для разработки и тестов.
type memoryNarrationCache struct {
	mu      sync.RWMutex
	entries map[memoryCacheKey]models.NarrationCacheEntry
}

func NewMemoryNarrationCache() interfaces.NarrationCacheRepository {
	return &memoryNarrationCache{
		entries: make(map[memoryCacheKey]models.NarrationCacheEntry),
	}
}

func (m *memoryNarrationCache) Get(_ context.Context, storyID uuid.UUID, nodeKey string, kind models.NarrationKind) (*models.NarrationCacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[memoryCacheKey{storyID, nodeKey, kind}]
	if !ok {
		return nil, models.ErrNotFound
	}
	// Копия, чтобы вызывающий не мутировал содержимое кеша.
	out := entry
	return &out, nil
}

func (m *memoryNarrationCache) Upsert(_ context.Context, entry *models.NarrationCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memoryCacheKey{entry.StoryID, entry.NodeKey, entry.Kind}] = *entry
	return nil
}

func (m *memoryNarrationCache) DeleteByStory(_ context.Context, storyID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if key.storyID == storyID {
			delete(m.entries, key)
		}
	}
	return nil
}
