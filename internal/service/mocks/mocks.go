package mocks

import (
	"context"

	"gamebook-server/internal/messaging"
	"gamebook-server/internal/models"
	"gamebook-server/internal/narration"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock StoryRepository
type StoryRepository struct {
	mock.Mock
}

func (m *StoryRepository) GetBySlug(ctx context.Context, slug string) (*models.Story, error) {
	args := m.Called(ctx, slug)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}
func (m *StoryRepository) GetGraphNodes(ctx context.Context, storyID uuid.UUID) ([]*models.StoryNode, error) {
	args := m.Called(ctx, storyID)
	nodes, _ := args.Get(0).([]*models.StoryNode)
	return nodes, args.Error(1)
}
func (m *StoryRepository) UpdateNarrationHash(ctx context.Context, storyID uuid.UUID, nodeKey string, kind models.NarrationKind, hash string) error {
	args := m.Called(ctx, storyID, nodeKey, kind, hash)
	return args.Error(0)
}

// Mock NarrationCacheRepository
type NarrationCacheRepository struct {
	mock.Mock
}

func (m *NarrationCacheRepository) Get(ctx context.Context, storyID uuid.UUID, nodeKey string, kind models.NarrationKind) (*models.NarrationCacheEntry, error) {
	args := m.Called(ctx, storyID, nodeKey, kind)
	entry, _ := args.Get(0).(*models.NarrationCacheEntry)
	return entry, args.Error(1)
}
func (m *NarrationCacheRepository) Upsert(ctx context.Context, entry *models.NarrationCacheEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
func (m *NarrationCacheRepository) DeleteByStory(ctx context.Context, storyID uuid.UUID) error {
	args := m.Called(ctx, storyID)
	return args.Error(0)
}

// Mock NarrationPipeline
type NarrationPipeline struct {
	mock.Mock
}

func (m *NarrationPipeline) Synthesize(ctx context.Context, req narration.SynthesisRequest, cached *models.NarrationCacheEntry) (*models.NarrationCacheEntry, bool, error) {
	args := m.Called(ctx, req, cached)
	entry, _ := args.Get(0).(*models.NarrationCacheEntry)
	return entry, args.Bool(1), args.Error(2)
}

// Mock NarrationTaskPublisher
type NarrationTaskPublisher struct {
	mock.Mock
}

func (m *NarrationTaskPublisher) PublishNarrationTask(ctx context.Context, payload messaging.NarrationTaskPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}
