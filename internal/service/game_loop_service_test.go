package service_test

import (
	"context"
	"errors"
	"testing"

	"gamebook-server/internal/engine"
	"gamebook-server/internal/messaging"
	"gamebook-server/internal/models"
	"gamebook-server/internal/narration"
	"gamebook-server/internal/service"
	"gamebook-server/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testDeps struct {
	storyRepo *mocks.StoryRepository
	cacheRepo *mocks.NarrationCacheRepository
	pipeline  *mocks.NarrationPipeline
	publisher *mocks.NarrationTaskPublisher
}

func newService(t *testing.T, roller engine.Roller) (service.GameLoopService, *testDeps) {
	t.Helper()
	deps := &testDeps{
		storyRepo: new(mocks.StoryRepository),
		cacheRepo: new(mocks.NarrationCacheRepository),
		pipeline:  new(mocks.NarrationPipeline),
		publisher: new(mocks.NarrationTaskPublisher),
	}
	svc := service.NewGameLoopService(deps.storyRepo, deps.cacheRepo, deps.pipeline, deps.publisher, engine.New(roller), zap.NewNop())
	return svc, deps
}

func fixtureStory() *models.Story {
	return &models.Story{
		ID:           uuid.New(),
		Slug:         "eventyret",
		Title:        "Eventyret",
		Version:      1,
		StartNodeKey: "start",
		InitialStats: map[string]int{"Evner": 10, "Udholdenhed": 18, "Held": 10},
	}
}

func fixtureNodes(storyID uuid.UUID) []*models.StoryNode {
	return []*models.StoryNode{
		{
			StoryID:  storyID,
			NodeKey:  "start",
			BodyText: "Du står ved en dør.",
			Choices: []models.Choice{
				{Label: "Gå ind", ToNodeKey: "slut", SortIndex: 0},
			},
		},
		{StoryID: storyID, NodeKey: "slut", BodyText: "Slutningen."},
	}
}

func entryFor(storyID uuid.UUID, nodeKey string, kind models.NarrationKind, text string) *models.NarrationCacheEntry {
	return &models.NarrationCacheEntry{
		StoryID:     storyID,
		NodeKey:     nodeKey,
		Kind:        kind,
		ContentHash: narration.HashText(text),
		AudioURL:    "https://cdn.example.com/" + nodeKey + "_" + string(kind) + ".mp3",
	}
}

func TestGameLoopService_StartSession(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the start node with narration", func(t *testing.T) {
		svc, deps := newService(t, nil)
		story := fixtureStory()
		nodes := fixtureNodes(story.ID)

		deps.storyRepo.On("GetBySlug", ctx, "eventyret").Return(story, nil)
		deps.storyRepo.On("GetGraphNodes", ctx, story.ID).Return(nodes, nil)

		bodyEntry := entryFor(story.ID, "start", models.NarrationKindBody, "Du står ved en dør.")
		choicesText := narration.FormatChoices([]models.VisibleChoice{{Label: "Gå ind", ToNodeKey: "slut"}})
		choicesEntry := entryFor(story.ID, "start", models.NarrationKindChoices, choicesText)

		deps.cacheRepo.On("Get", ctx, story.ID, "start", models.NarrationKindBody).Return(bodyEntry, nil)
		deps.cacheRepo.On("Get", ctx, story.ID, "start", models.NarrationKindChoices).Return(choicesEntry, nil)
		// Совпавший отпечаток: пайплайн вернет запись как есть, produced=false.
		deps.pipeline.On("Synthesize", ctx, mock.MatchedBy(func(req narration.SynthesisRequest) bool {
			return req.Kind == models.NarrationKindBody
		}), bodyEntry).Return(bodyEntry, false, nil)
		deps.pipeline.On("Synthesize", ctx, mock.MatchedBy(func(req narration.SynthesisRequest) bool {
			return req.Kind == models.NarrationKindChoices
		}), choicesEntry).Return(choicesEntry, false, nil)

		session, view, err := svc.StartSession(ctx, "eventyret")
		require.NoError(t, err)
		assert.Equal(t, "start", session.CurrentNodeKey)
		assert.Equal(t, 10, session.Stats["Evner"])
		require.NotNil(t, view)
		assert.Equal(t, "Du står ved en dør.", view.NodeText)
		require.NotNil(t, view.BodyAudioURL)
		assert.Equal(t, bodyEntry.AudioURL, *view.BodyAudioURL)
		require.NotNil(t, view.ChoicesAudioURL)

		// Ничего нового не синтезировано — ничего не сохранено.
		deps.cacheRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
		deps.storyRepo.AssertNotCalled(t, "UpdateNarrationHash", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown story", func(t *testing.T) {
		svc, deps := newService(t, nil)
		deps.storyRepo.On("GetBySlug", ctx, "findes-ikke").Return(nil, models.ErrStoryNotFound)
		_, _, err := svc.StartSession(ctx, "findes-ikke")
		assert.ErrorIs(t, err, models.ErrStoryNotFound)
	})

	t.Run("invalid graph is rejected", func(t *testing.T) {
		svc, deps := newService(t, nil)
		story := fixtureStory()
		deps.storyRepo.On("GetBySlug", ctx, "eventyret").Return(story, nil)
		deps.storyRepo.On("GetGraphNodes", ctx, story.ID).Return([]*models.StoryNode{
			{StoryID: story.ID, NodeKey: "start", Choices: []models.Choice{{Label: "x", ToNodeKey: "mangler"}}},
		}, nil)

		_, _, err := svc.StartSession(ctx, "eventyret")
		var validationErr *engine.GraphValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}

func TestGameLoopService_GetNodeView(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh narration is persisted after synthesis", func(t *testing.T) {
		svc, deps := newService(t, nil)
		story := fixtureStory()
		deps.storyRepo.On("GetBySlug", ctx, "eventyret").Return(story, nil)
		deps.storyRepo.On("GetGraphNodes", ctx, story.ID).Return(fixtureNodes(story.ID), nil)

		// Кеш пуст, обе озвучки собираются заново.
		deps.cacheRepo.On("Get", ctx, story.ID, "start", mock.Anything).Return(nil, models.ErrNotFound)
		bodyEntry := entryFor(story.ID, "start", models.NarrationKindBody, "Du står ved en dør.")
		choicesText := narration.FormatChoices([]models.VisibleChoice{{Label: "Gå ind", ToNodeKey: "slut"}})
		choicesEntry := entryFor(story.ID, "start", models.NarrationKindChoices, choicesText)
		deps.pipeline.On("Synthesize", ctx, mock.MatchedBy(func(req narration.SynthesisRequest) bool {
			return req.Kind == models.NarrationKindBody
		}), (*models.NarrationCacheEntry)(nil)).Return(bodyEntry, true, nil)
		deps.pipeline.On("Synthesize", ctx, mock.MatchedBy(func(req narration.SynthesisRequest) bool {
			return req.Kind == models.NarrationKindChoices
		}), (*models.NarrationCacheEntry)(nil)).Return(choicesEntry, true, nil)
		deps.cacheRepo.On("Upsert", ctx, bodyEntry).Return(nil)
		deps.cacheRepo.On("Upsert", ctx, choicesEntry).Return(nil)
		deps.storyRepo.On("UpdateNarrationHash", ctx, story.ID, "start", models.NarrationKindBody, bodyEntry.ContentHash).Return(nil)
		deps.storyRepo.On("UpdateNarrationHash", ctx, story.ID, "start", models.NarrationKindChoices, choicesEntry.ContentHash).Return(nil)

		state := models.NewSessionState("start", story.InitialStats)
		view, err := svc.GetNodeView(ctx, "eventyret", state)
		require.NoError(t, err)
		require.NotNil(t, view.BodyAudioURL)
		require.NotNil(t, view.ChoicesAudioURL)
		deps.cacheRepo.AssertCalled(t, "Upsert", ctx, bodyEntry)
		deps.storyRepo.AssertCalled(t, "UpdateNarrationHash", ctx, story.ID, "start", models.NarrationKindBody, bodyEntry.ContentHash)
	})

	t.Run("choices narration failure is a partial success", func(t *testing.T) {
		svc, deps := newService(t, nil)
		story := fixtureStory()
		deps.storyRepo.On("GetBySlug", ctx, "eventyret").Return(story, nil)
		deps.storyRepo.On("GetGraphNodes", ctx, story.ID).Return(fixtureNodes(story.ID), nil)

		deps.cacheRepo.On("Get", ctx, story.ID, "start", mock.Anything).Return(nil, models.ErrNotFound)
		bodyEntry := entryFor(story.ID, "start", models.NarrationKindBody, "Du står ved en dør.")
		deps.pipeline.On("Synthesize", ctx, mock.MatchedBy(func(req narration.SynthesisRequest) bool {
			return req.Kind == models.NarrationKindBody
		}), (*models.NarrationCacheEntry)(nil)).Return(bodyEntry, true, nil)
		deps.pipeline.On("Synthesize", ctx, mock.MatchedBy(func(req narration.SynthesisRequest) bool {
			return req.Kind == models.NarrationKindChoices
		}), (*models.NarrationCacheEntry)(nil)).Return(nil, false, errors.New("provider exploded"))
		deps.cacheRepo.On("Upsert", ctx, bodyEntry).Return(nil)
		deps.storyRepo.On("UpdateNarrationHash", ctx, story.ID, "start", models.NarrationKindBody, bodyEntry.ContentHash).Return(nil)

		view, err := svc.GetNodeView(ctx, "eventyret", models.NewSessionState("start", story.InitialStats))
		require.NoError(t, err)
		require.NotNil(t, view.BodyAudioURL)
		assert.Nil(t, view.ChoicesAudioURL)
	})

	t.Run("body narration failure fails the view", func(t *testing.T) {
		svc, deps := newService(t, nil)
		story := fixtureStory()
		deps.storyRepo.On("GetBySlug", ctx, "eventyret").Return(story, nil)
		deps.storyRepo.On("GetGraphNodes", ctx, story.ID).Return(fixtureNodes(story.ID), nil)

		deps.cacheRepo.On("Get", ctx, story.ID, "start", mock.Anything).Return(nil, models.ErrNotFound)
		deps.pipeline.On("Synthesize", ctx, mock.Anything, (*models.NarrationCacheEntry)(nil)).
			Return(nil, false, errors.New("provider exploded"))

		_, err := svc.GetNodeView(ctx, "eventyret", models.NewSessionState("start", story.InitialStats))
		assert.Error(t, err)
	})
}

func TestGameLoopService_Advance(t *testing.T) {
	ctx := context.Background()

	setupTerminal := func(deps *testDeps, story *models.Story) {
		deps.storyRepo.On("GetBySlug", ctx, "eventyret").Return(story, nil)
		deps.storyRepo.On("GetGraphNodes", ctx, story.ID).Return(fixtureNodes(story.ID), nil)
		deps.cacheRepo.On("Get", ctx, story.ID, "slut", models.NarrationKindBody).Return(nil, models.ErrNotFound)
		slutEntry := entryFor(story.ID, "slut", models.NarrationKindBody, "Slutningen.")
		deps.pipeline.On("Synthesize", ctx, mock.Anything, (*models.NarrationCacheEntry)(nil)).Return(slutEntry, true, nil)
		deps.cacheRepo.On("Upsert", ctx, slutEntry).Return(nil)
		deps.storyRepo.On("UpdateNarrationHash", ctx, story.ID, "slut", models.NarrationKindBody, slutEntry.ContentHash).Return(nil)
	}

	t.Run("choice moves the session", func(t *testing.T) {
		svc, deps := newService(t, nil)
		story := fixtureStory()
		setupTerminal(deps, story)

		state := models.NewSessionState("start", story.InitialStats)
		result, err := svc.Advance(ctx, "eventyret", state, engine.Action{Type: engine.ActionChoice, ChoiceLabel: "Gå ind"})
		require.NoError(t, err)
		assert.Equal(t, "slut", result.Session.CurrentNodeKey)
		assert.True(t, result.View.IsTerminal)
		assert.Nil(t, result.Check)
		assert.Empty(t, result.CheckNarration)
	})

	t.Run("invalid choice surfaces as ErrInvalidChoice", func(t *testing.T) {
		svc, deps := newService(t, nil)
		story := fixtureStory()
		deps.storyRepo.On("GetBySlug", ctx, "eventyret").Return(story, nil)
		deps.storyRepo.On("GetGraphNodes", ctx, story.ID).Return(fixtureNodes(story.ID), nil)

		state := models.NewSessionState("start", story.InitialStats)
		_, err := svc.Advance(ctx, "eventyret", state, engine.Action{Type: engine.ActionChoice, ChoiceLabel: "Findes ikke"})
		assert.ErrorIs(t, err, models.ErrInvalidChoice)
	})

	t.Run("skill check produces a narrated outcome", func(t *testing.T) {
		svc, deps := newService(t, func() int { return 3 }) // 3 + 10 < 15 — провал
		story := fixtureStory()
		nodes := []*models.StoryNode{
			{StoryID: story.ID, NodeKey: "start", BodyText: "Broen.",
				SkillCheck: &models.SkillCheck{Stat: "Evner", DifficultyClass: 15, SuccessNodeKey: "sejr", FailNodeKey: "fald"}},
			{StoryID: story.ID, NodeKey: "sejr", BodyText: "Du klarede det."},
			{StoryID: story.ID, NodeKey: "fald", BodyText: "Du falder."},
		}
		deps.storyRepo.On("GetBySlug", ctx, "eventyret").Return(story, nil)
		deps.storyRepo.On("GetGraphNodes", ctx, story.ID).Return(nodes, nil)
		deps.cacheRepo.On("Get", ctx, story.ID, "fald", models.NarrationKindBody).Return(nil, models.ErrNotFound)
		faldEntry := entryFor(story.ID, "fald", models.NarrationKindBody, "Du falder.")
		deps.pipeline.On("Synthesize", ctx, mock.Anything, (*models.NarrationCacheEntry)(nil)).Return(faldEntry, true, nil)
		deps.cacheRepo.On("Upsert", ctx, faldEntry).Return(nil)
		deps.storyRepo.On("UpdateNarrationHash", ctx, story.ID, "fald", models.NarrationKindBody, faldEntry.ContentHash).Return(nil)

		state := models.NewSessionState("start", story.InitialStats)
		result, err := svc.Advance(ctx, "eventyret", state, engine.Action{Type: engine.ActionResolveCheck})
		require.NoError(t, err)
		require.NotNil(t, result.Check)
		assert.False(t, result.Check.Success)
		assert.Equal(t, "fald", result.Session.CurrentNodeKey)
		assert.Equal(t, 8, result.Session.Stats["Evner"])
		assert.Equal(t,
			"Du kaster terningerne og får 3. Med din Evner på 10 bliver det i alt 13. Det mislykkes! Du mister 2 point i Evner.",
			result.CheckNarration)
	})
}

func TestGameLoopService_Pregeneration(t *testing.T) {
	ctx := context.Background()

	t.Run("queues a task for an existing node", func(t *testing.T) {
		svc, deps := newService(t, nil)
		story := fixtureStory()
		deps.storyRepo.On("GetBySlug", ctx, "eventyret").Return(story, nil)
		deps.storyRepo.On("GetGraphNodes", ctx, story.ID).Return(fixtureNodes(story.ID), nil)
		deps.publisher.On("PublishNarrationTask", ctx, mock.MatchedBy(func(p messaging.NarrationTaskPayload) bool {
			return p.StorySlug == "eventyret" && p.NodeKey == "start" && len(p.Kinds) == 2
		})).Return(nil)

		taskID, err := svc.RequestPregeneration(ctx, "eventyret", "start", nil)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, taskID)
	})

	t.Run("rejects unknown node before queueing", func(t *testing.T) {
		svc, deps := newService(t, nil)
		story := fixtureStory()
		deps.storyRepo.On("GetBySlug", ctx, "eventyret").Return(story, nil)
		deps.storyRepo.On("GetGraphNodes", ctx, story.ID).Return(fixtureNodes(story.ID), nil)

		_, err := svc.RequestPregeneration(ctx, "eventyret", "findes-ikke", nil)
		assert.ErrorIs(t, err, models.ErrNodeNotFound)
		deps.publisher.AssertNotCalled(t, "PublishNarrationTask", mock.Anything, mock.Anything)
	})

	t.Run("worker handler synthesizes the requested kinds", func(t *testing.T) {
		svc, deps := newService(t, nil)
		story := fixtureStory()
		deps.storyRepo.On("GetBySlug", ctx, "eventyret").Return(story, nil)
		deps.storyRepo.On("GetGraphNodes", ctx, story.ID).Return(fixtureNodes(story.ID), nil)
		deps.cacheRepo.On("Get", ctx, story.ID, "start", models.NarrationKindBody).Return(nil, models.ErrNotFound)
		bodyEntry := entryFor(story.ID, "start", models.NarrationKindBody, "Du står ved en dør.")
		deps.pipeline.On("Synthesize", ctx, mock.Anything, (*models.NarrationCacheEntry)(nil)).Return(bodyEntry, true, nil)
		deps.cacheRepo.On("Upsert", ctx, bodyEntry).Return(nil)
		deps.storyRepo.On("UpdateNarrationHash", ctx, story.ID, "start", models.NarrationKindBody, bodyEntry.ContentHash).Return(nil)

		handler, ok := svc.(messaging.NarrationTaskHandler)
		require.True(t, ok)
		err := handler.HandleNarrationTask(ctx, messaging.NarrationTaskPayload{
			TaskID:    uuid.New(),
			StorySlug: "eventyret",
			NodeKey:   "start",
			Kinds:     []models.NarrationKind{models.NarrationKindBody},
		})
		require.NoError(t, err)
	})
}
