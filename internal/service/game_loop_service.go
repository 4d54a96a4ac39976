package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gamebook-server/internal/engine"
	"gamebook-server/internal/interfaces"
	"gamebook-server/internal/messaging"
	"gamebook-server/internal/models"
	"gamebook-server/internal/narration"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NarrationPipeline — то, что сервису нужно от конвейера синтеза.
// Выделено в интерфейс ради подмены в тестах.
type NarrationPipeline interface {
	Synthesize(ctx context.Context, req narration.SynthesisRequest, cached *models.NarrationCacheEntry) (*models.NarrationCacheEntry, bool, error)
}

// AdvanceResult — итог одного шага читателя: новый снапшот сессии, вид
// следующего узла и, если разрешалась проверка навыка, её исход вместе с
// озвучиваемой репликой.
type AdvanceResult struct {
	Session        models.SessionState  `json:"session"`
	View           *models.NodeView     `json:"view"`
	Check          *engine.CheckOutcome `json:"check,omitempty"`
	CheckNarration string               `json:"check_narration,omitempty"`
}

// GameLoopService — игровой цикл поверх графа истории: старт сессии, показ
// узла с озвучкой, переходы и фоновая прегенерация озвучки.
type GameLoopService interface {
	// StartSession создает новую сессию истории и возвращает вид стартового узла.
	StartSession(ctx context.Context, slug string) (models.SessionState, *models.NodeView, error)

	// GetNodeView возвращает вид текущего узла сессии, дополненный ссылками
	// на озвучку (синтезируется на месте при промахе кеша).
	GetNodeView(ctx context.Context, slug string, state models.SessionState) (*models.NodeView, error)

	// Advance выполняет один переход и возвращает вид нового узла.
	Advance(ctx context.Context, slug string, state models.SessionState, action engine.Action) (*AdvanceResult, error)

	// RequestPregeneration ставит фоновую задачу прогрева озвучки узла.
	RequestPregeneration(ctx context.Context, slug, nodeKey string, kinds []models.NarrationKind) (uuid.UUID, error)

	// SynthesizeNode синтезирует озвучку узла указанных видов (рабочая
	// лошадка воркера narrator).
	SynthesizeNode(ctx context.Context, slug, nodeKey string, kinds []models.NarrationKind) error
}

type gameLoopServiceImpl struct {
	storyRepo interfaces.StoryRepository
	cacheRepo interfaces.NarrationCacheRepository
	pipeline  NarrationPipeline
	publisher messaging.NarrationTaskPublisher
	engine    *engine.Engine
	logger    *zap.Logger
}

// Compile-time checks
var (
	_ GameLoopService                = (*gameLoopServiceImpl)(nil)
	_ messaging.NarrationTaskHandler = (*gameLoopServiceImpl)(nil)
)

// NewGameLoopService собирает сервис. publisher может быть nil (воркер
// narrator сам задачи не ставит).
func NewGameLoopService(
	storyRepo interfaces.StoryRepository,
	cacheRepo interfaces.NarrationCacheRepository,
	pipeline NarrationPipeline,
	publisher messaging.NarrationTaskPublisher,
	eng *engine.Engine,
	logger *zap.Logger,
) GameLoopService {
	return &gameLoopServiceImpl{
		storyRepo: storyRepo,
		cacheRepo: cacheRepo,
		pipeline:  pipeline,
		publisher: publisher,
		engine:    eng,
		logger:    logger.Named("GameLoopService"),
	}
}

// loadGraph загружает историю и собирает провалидированный граф.
func (s *gameLoopServiceImpl) loadGraph(ctx context.Context, slug string) (*models.Story, *models.StoryGraph, error) {
	story, err := s.storyRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	nodes, err := s.storyRepo.GetGraphNodes(ctx, story.ID)
	if err != nil {
		return nil, nil, err
	}
	graph, err := engine.LoadGraph(story, nodes)
	if err != nil {
		s.logger.Error("Story graph failed validation",
			zap.String("slug", slug), zap.Error(err))
		return nil, nil, err
	}
	return story, graph, nil
}

func (s *gameLoopServiceImpl) StartSession(ctx context.Context, slug string) (models.SessionState, *models.NodeView, error) {
	story, graph, err := s.loadGraph(ctx, slug)
	if err != nil {
		return models.SessionState{}, nil, err
	}

	state := models.NewSessionState(story.StartNodeKey, story.InitialStats)
	view, err := s.buildView(ctx, story, graph, state)
	if err != nil {
		return models.SessionState{}, nil, err
	}
	s.logger.Info("Session started",
		zap.String("slug", slug), zap.String("startNode", story.StartNodeKey))
	return state, view, nil
}

func (s *gameLoopServiceImpl) GetNodeView(ctx context.Context, slug string, state models.SessionState) (*models.NodeView, error) {
	story, graph, err := s.loadGraph(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, story, graph, state)
}

func (s *gameLoopServiceImpl) Advance(ctx context.Context, slug string, state models.SessionState, action engine.Action) (*AdvanceResult, error) {
	story, graph, err := s.loadGraph(ctx, slug)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Advance(graph, state, action)
	if err != nil {
		return nil, err
	}

	view, err := s.buildView(ctx, story, graph, result.Session)
	if err != nil {
		return nil, err
	}

	out := &AdvanceResult{
		Session: result.Session,
		View:    view,
		Check:   result.Check,
	}
	if result.Check != nil {
		out.CheckNarration = narration.FormatCheckResult(narration.CheckNarrationInput{
			Stat:      result.Check.Stat,
			StatValue: result.Check.StatValue,
			Roll:      result.Check.Roll,
			Total:     result.Check.Total,
			Success:   result.Check.Success,
		})
	}
	return out, nil
}

// buildView строит вид узла и дополняет его озвучкой. Озвучка тела и озвучка
// выборов независимы и синтезируются параллельно. Провал озвучки тела валит
// весь запрос; провал озвучки выборов — частичный успех: вид отдается без
// ChoicesAudioURL, инцидент остается в логах и метриках.
func (s *gameLoopServiceImpl) buildView(ctx context.Context, story *models.Story, graph *models.StoryGraph, state models.SessionState) (*models.NodeView, error) {
	view, err := s.engine.View(graph, state)
	if err != nil {
		return nil, err
	}
	node, _ := graph.Node(view.NodeKey)

	choicesText := narration.FormatChoices(view.Choices)

	var (
		wg                  sync.WaitGroup
		bodyURL, choicesURL *string
		bodyErr, choicesErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		bodyURL, bodyErr = s.ensureNarration(ctx, story, node.NodeKey, models.NarrationKindBody, node.BodyText)
	}()

	if choicesText != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			choicesURL, choicesErr = s.ensureNarration(ctx, story, node.NodeKey, models.NarrationKindChoices, choicesText)
		}()
	}
	wg.Wait()

	if bodyErr != nil {
		return nil, fmt.Errorf("narration for node %s: %w", node.NodeKey, bodyErr)
	}
	if choicesErr != nil {
		s.logger.Warn("Choices narration failed, serving view without it",
			zap.String("slug", story.Slug),
			zap.String("nodeKey", node.NodeKey),
			zap.Error(choicesErr))
		choicesURL = nil
	}

	view.BodyAudioURL = bodyURL
	view.ChoicesAudioURL = choicesURL
	return view, nil
}

// ensureNarration возвращает URL актуальной озвучки, при необходимости
// синтезируя и сохраняя её. Пустой текст — не ошибка вида: узлу просто
// нечего озвучивать.
func (s *gameLoopServiceImpl) ensureNarration(ctx context.Context, story *models.Story, nodeKey string, kind models.NarrationKind, text string) (*string, error) {
	if text == "" {
		return nil, nil
	}

	cached, err := s.cacheRepo.Get(ctx, story.ID, nodeKey, kind)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	entry, produced, err := s.pipeline.Synthesize(ctx, narration.SynthesisRequest{
		StoryID:   story.ID,
		StorySlug: story.Slug,
		NodeKey:   nodeKey,
		Kind:      kind,
		Text:      text,
	}, cached)
	if err != nil {
		return nil, err
	}

	if produced {
		// Пока шел синтез, тот же отпечаток мог собрать конкурентный запрос.
		if current, getErr := s.cacheRepo.Get(ctx, story.ID, nodeKey, kind); getErr == nil && current.ContentHash == entry.ContentHash {
			narration.MarkDuplicateBuild()
		}
		if err := s.cacheRepo.Upsert(ctx, entry); err != nil {
			return nil, err
		}
		if err := s.storyRepo.UpdateNarrationHash(ctx, story.ID, nodeKey, kind, entry.ContentHash); err != nil {
			return nil, err
		}
	}

	url := entry.AudioURL
	return &url, nil
}

func (s *gameLoopServiceImpl) RequestPregeneration(ctx context.Context, slug, nodeKey string, kinds []models.NarrationKind) (uuid.UUID, error) {
	if s.publisher == nil {
		return uuid.Nil, fmt.Errorf("pregeneration is not available: %w", models.ErrProviderUnavailable)
	}
	// Валидируем вход до постановки задачи, чтобы очередь не копила мусор.
	story, graph, err := s.loadGraph(ctx, slug)
	if err != nil {
		return uuid.Nil, err
	}
	if _, ok := graph.Node(nodeKey); !ok {
		return uuid.Nil, fmt.Errorf("node %q: %w", nodeKey, models.ErrNodeNotFound)
	}
	if len(kinds) == 0 {
		kinds = []models.NarrationKind{models.NarrationKindBody, models.NarrationKindChoices}
	}

	taskID := uuid.New()
	err = s.publisher.PublishNarrationTask(ctx, messaging.NarrationTaskPayload{
		TaskID:    taskID,
		StorySlug: story.Slug,
		NodeKey:   nodeKey,
		Kinds:     kinds,
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.logger.Info("Narration pregeneration task queued",
		zap.String("taskID", taskID.String()),
		zap.String("slug", slug),
		zap.String("nodeKey", nodeKey))
	return taskID, nil
}

func (s *gameLoopServiceImpl) SynthesizeNode(ctx context.Context, slug, nodeKey string, kinds []models.NarrationKind) error {
	story, graph, err := s.loadGraph(ctx, slug)
	if err != nil {
		return err
	}
	node, ok := graph.Node(nodeKey)
	if !ok {
		return fmt.Errorf("node %q: %w", nodeKey, models.ErrNodeNotFound)
	}
	if len(kinds) == 0 {
		kinds = []models.NarrationKind{models.NarrationKindBody, models.NarrationKindChoices}
	}

	for _, kind := range kinds {
		var text string
		switch kind {
		case models.NarrationKindBody:
			text = node.BodyText
		case models.NarrationKindChoices:
			// Прогреваем реплику свежей сессии: без флагов видны все
			// безусловные выборы, это самый частый вариант списка.
			text = narration.FormatChoices(s.engine.VisibleChoices(node, models.NewSessionState(nodeKey, story.InitialStats)))
		default:
			return fmt.Errorf("unknown narration kind %q: %w", kind, models.ErrInvalidInput)
		}
		if text == "" {
			continue
		}
		if _, err := s.ensureNarration(ctx, story, nodeKey, kind, text); err != nil {
			return fmt.Errorf("pregeneration of %s/%s (%s): %w", slug, nodeKey, kind, err)
		}
	}
	return nil
}

// HandleNarrationTask реализует messaging.NarrationTaskHandler.
func (s *gameLoopServiceImpl) HandleNarrationTask(ctx context.Context, payload messaging.NarrationTaskPayload) error {
	return s.SynthesizeNode(ctx, payload.StorySlug, payload.NodeKey, payload.Kinds)
}
