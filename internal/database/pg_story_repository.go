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
var _ interfaces.StoryRepository = (*pgStoryRepository)(nil)

type pgStoryRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

func NewPgStoryRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.StoryRepository {
	return &pgStoryRepository{
		db:     db,
		logger: logger.Named("PgStoryRepo"),
	}
}

const getStoryBySlugQuery = `
	SELECT id, slug, title, lang, is_published, version, initial_stats, start_node_key, created_at, updated_at
	FROM stories
	WHERE slug = $1 AND is_published = TRUE
`

func (r *pgStoryRepository) GetBySlug(ctx context.Context, slug string) (*models.Story, error) {
	story := &models.Story{}
	err := pgxscan.Get(ctx, r.db, story, getStoryBySlugQuery, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Story not found by slug", zap.String("slug", slug))
			return nil, models.ErrStoryNotFound
		}
		r.logger.Error("Failed to get story by slug", zap.String("slug", slug), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения истории %s: %w", slug, err)
	}
	return story, nil
}

const getStoryNodesQuery = `
	SELECT story_id, node_key, body_text, dice_check, narration_hash, choices_narration_hash, image_url, video_url, sort_index
	FROM story_nodes
	WHERE story_id = $1
	ORDER BY sort_index, node_key
`

const getStoryChoicesQuery = `
	SELECT from_node_key, label, to_node_key, conditions, effect, sort_index
	FROM story_choices
	WHERE story_id = $1
	ORDER BY from_node_key, sort_index
`

// GetGraphNodes возвращает сырые строки узлов с подвешенными выборами.
// Намеренно НЕ собирает map: дубликаты node_key должны дойти до загрузчика
// графа и стать ошибкой валидации, а не молча схлопнуться.
func (r *pgStoryRepository) GetGraphNodes(ctx context.Context, storyID uuid.UUID) ([]*models.StoryNode, error) {
	rows, err := r.db.Query(ctx, getStoryNodesQuery, storyID)
	if err != nil {
		r.logger.Error("Failed to query story nodes", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка запроса узлов истории %s: %w", storyID, err)
	}
	defer rows.Close()

	var nodes []*models.StoryNode
	for rows.Next() {
		node := &models.StoryNode{}
		err := rows.Scan(
			&node.StoryID, &node.NodeKey, &node.BodyText, &node.SkillCheck,
			&node.NarrationHash, &node.ChoicesNarrationHash,
			&node.ImageURL, &node.VideoURL, &node.SortIndex,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения узла истории %s: %w", storyID, err)
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по узлам истории %s: %w", storyID, err)
	}

	choicesByNode, err := r.getChoices(ctx, storyID)
	if err != nil {
		return nil, err
	}
	for _, node := range nodes {
		node.Choices = choicesByNode[node.NodeKey]
	}

	r.logger.Debug("Story graph nodes loaded",
		zap.String("storyID", storyID.String()),
		zap.Int("nodes", len(nodes)))
	return nodes, nil
}

func (r *pgStoryRepository) getChoices(ctx context.Context, storyID uuid.UUID) (map[string][]models.Choice, error) {
	rows, err := r.db.Query(ctx, getStoryChoicesQuery, storyID)
	if err != nil {
		r.logger.Error("Failed to query story choices", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка запроса выборов истории %s: %w", storyID, err)
	}
	defer rows.Close()

	choices := make(map[string][]models.Choice)
	for rows.Next() {
		var fromKey string
		var choice models.Choice
		err := rows.Scan(&fromKey, &choice.Label, &choice.ToNodeKey, &choice.Conditions, &choice.Effect, &choice.SortIndex)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения выбора истории %s: %w", storyID, err)
		}
		choices[fromKey] = append(choices[fromKey], choice)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по выборам истории %s: %w", storyID, err)
	}
	return choices, nil
}

const updateBodyNarrationHashQuery = `
	UPDATE story_nodes
	SET narration_hash = $3, updated_at = NOW()
	WHERE story_id = $1 AND node_key = $2
`

const updateChoicesNarrationHashQuery = `
	UPDATE story_nodes
	SET choices_narration_hash = $3, updated_at = NOW()
	WHERE story_id = $1 AND node_key = $2
`

// UpdateNarrationHash фиксирует отпечаток текста, под который синтезирована
// актуальная озвучка узла.
func (r *pgStoryRepository) UpdateNarrationHash(ctx context.Context, storyID uuid.UUID, nodeKey string, kind models.NarrationKind, hash string) error {
	var query string
	switch kind {
	case models.NarrationKindBody:
		query = updateBodyNarrationHashQuery
	case models.NarrationKindChoices:
		query = updateChoicesNarrationHashQuery
	default:
		return fmt.Errorf("unknown narration kind %q: %w", kind, models.ErrInvalidInput)
	}
	_, err := r.db.Exec(ctx, query, storyID, nodeKey, hash)
	if err != nil {
		r.logger.Error("Failed to update narration hash",
			zap.String("storyID", storyID.String()),
			zap.String("nodeKey", nodeKey),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return fmt.Errorf("ошибка обновления отпечатка озвучки узла %s: %w", nodeKey, err)
	}
	return nil
}
