package database_test

import (
	"context"
	"sync"
	"testing"

	"gamebook-server/internal/database"
	"gamebook-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryNarrationCache(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()

	entry := &models.NarrationCacheEntry{
		StoryID:     storyID,
		NodeKey:     "start",
		Kind:        models.NarrationKindBody,
		ContentHash: "abc123",
		AudioURL:    "https://cdn.example.com/start.mp3",
		ByteLength:  42,
	}

	t.Run("miss returns ErrNotFound", func(t *testing.T) {
		cache := database.NewMemoryNarrationCache()
		_, err := cache.Get(ctx, storyID, "start", models.NarrationKindBody)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("upsert then get", func(t *testing.T) {
		cache := database.NewMemoryNarrationCache()
		require.NoError(t, cache.Upsert(ctx, entry))

		got, err := cache.Get(ctx, storyID, "start", models.NarrationKindBody)
		require.NoError(t, err)
		assert.Equal(t, entry.AudioURL, got.AudioURL)

		// Виды независимы.
		_, err = cache.Get(ctx, storyID, "start", models.NarrationKindChoices)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("upsert replaces the entry wholesale", func(t *testing.T) {
		cache := database.NewMemoryNarrationCache()
		require.NoError(t, cache.Upsert(ctx, entry))

		updated := *entry
		updated.ContentHash = "def456"
		updated.AudioURL = "https://cdn.example.com/start_v2.mp3"
		require.NoError(t, cache.Upsert(ctx, &updated))

		got, err := cache.Get(ctx, storyID, "start", models.NarrationKindBody)
		require.NoError(t, err)
		assert.Equal(t, "def456", got.ContentHash)
	})

	t.Run("returned entry is a copy", func(t *testing.T) {
		cache := database.NewMemoryNarrationCache()
		require.NoError(t, cache.Upsert(ctx, entry))
		got, err := cache.Get(ctx, storyID, "start", models.NarrationKindBody)
		require.NoError(t, err)
		got.AudioURL = "mutated"

		again, err := cache.Get(ctx, storyID, "start", models.NarrationKindBody)
		require.NoError(t, err)
		assert.Equal(t, entry.AudioURL, again.AudioURL)
	})

	t.Run("delete by story", func(t *testing.T) {
		cache := database.NewMemoryNarrationCache()
		otherStory := uuid.New()
		other := *entry
		other.StoryID = otherStory
		require.NoError(t, cache.Upsert(ctx, entry))
		require.NoError(t, cache.Upsert(ctx, &other))

		require.NoError(t, cache.DeleteByStory(ctx, storyID))
		_, err := cache.Get(ctx, storyID, "start", models.NarrationKindBody)
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = cache.Get(ctx, otherStory, "start", models.NarrationKindBody)
		assert.NoError(t, err)
	})

	t.Run("concurrent writers and readers", func(t *testing.T) {
		cache := database.NewMemoryNarrationCache()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				e := *entry
				_ = cache.Upsert(ctx, &e)
			}()
			go func() {
				defer wg.Done()
				_, _ = cache.Get(ctx, storyID, "start", models.NarrationKindBody)
			}()
		}
		wg.Wait()
	})
}
