package engine

import (
	"fmt"
	"sort"
	"strings"

	"gamebook-server/internal/models"

	"github.com/google/uuid"
)

// GraphValidationError — граф истории не прошел валидацию при загрузке.
// Собирает ВСЕ найденные проблемы, чтобы автор увидел их за один заход.
// Граф с такой ошибкой отклоняется целиком: висячее ребро, найденное
// посреди обхода, — худший режим отказа, чем отказ на загрузке.
type GraphValidationError struct {
	StoryID  uuid.UUID
	Problems []string
}

func (e *GraphValidationError) Error() string {
	return fmt.Sprintf("story %s: graph validation failed: %s", e.StoryID, strings.Join(e.Problems, "; "))
}

// LoadGraph собирает граф истории из загруженных строк узлов и валидирует
// его. Дубликаты node_key ловятся здесь же, при укладке в map: граф с
// дубликатом отклоняется, а не молча схлопывается до последней строки.
func LoadGraph(story *models.Story, nodes []*models.StoryNode) (*models.StoryGraph, error) {
	graph := &models.StoryGraph{
		StoryID:      story.ID,
		Version:      story.Version,
		StartNodeKey: story.StartNodeKey,
		Nodes:        make(map[string]*models.StoryNode, len(nodes)),
	}

	var problems []string
	for _, node := range nodes {
		if _, exists := graph.Nodes[node.NodeKey]; exists {
			problems = append(problems, fmt.Sprintf("duplicate node key %q", node.NodeKey))
			continue
		}
		graph.Nodes[node.NodeKey] = node
	}
	if len(problems) > 0 {
		return nil, &GraphValidationError{StoryID: story.ID, Problems: problems}
	}

	if err := ValidateGraph(graph); err != nil {
		return nil, err
	}
	return graph, nil
}

// ValidateGraph проверяет структурную целостность графа:
//   - ключи узлов уникальны (дубликаты репозиторий схлопывает по map,
//     поэтому проверяются отдельно на этапе загрузки строк);
//   - каждая цель выбора указывает на существующий узел;
//   - обе цели каждой проверки навыка существуют;
//   - условия и эффекты выборов структурно корректны;
//   - стартовый узел существует.
func ValidateGraph(graph *models.StoryGraph) error {
	var problems []string

	if graph.StartNodeKey != "" {
		if _, ok := graph.Nodes[graph.StartNodeKey]; !ok {
			problems = append(problems, fmt.Sprintf("start node %q does not exist", graph.StartNodeKey))
		}
	}

	// Обходим узлы в отсортированном порядке: список проблем должен быть
	// стабилен между запусками, иначе автору истории тяжело сверять вывод.
	keys := make([]string, 0, len(graph.Nodes))
	for key := range graph.Nodes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		node := graph.Nodes[key]
		for i, choice := range node.Choices {
			if _, ok := graph.Nodes[choice.ToNodeKey]; !ok {
				problems = append(problems, fmt.Sprintf("node %q choice %d: dangling edge to %q", key, i, choice.ToNodeKey))
			}
			for j, cond := range choice.Conditions {
				if err := cond.Validate(); err != nil {
					problems = append(problems, fmt.Sprintf("node %q choice %d condition %d: %v", key, i, j, err))
				}
			}
			if choice.Effect != nil {
				if err := choice.Effect.Validate(); err != nil {
					problems = append(problems, fmt.Sprintf("node %q choice %d effect: %v", key, i, err))
				}
			}
		}
		if check := node.SkillCheck; check != nil {
			if _, ok := graph.Nodes[check.SuccessNodeKey]; !ok {
				problems = append(problems, fmt.Sprintf("node %q skill check: success target %q does not exist", key, check.SuccessNodeKey))
			}
			if _, ok := graph.Nodes[check.FailNodeKey]; !ok {
				problems = append(problems, fmt.Sprintf("node %q skill check: fail target %q does not exist", key, check.FailNodeKey))
			}
			if check.Stat == "" {
				problems = append(problems, fmt.Sprintf("node %q skill check: empty stat", key))
			}
		}
	}

	if len(problems) > 0 {
		return &GraphValidationError{StoryID: graph.StoryID, Problems: problems}
	}
	return nil
}
