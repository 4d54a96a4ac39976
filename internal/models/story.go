package models

import (
	"time"

	"github.com/google/uuid"
)

// Story представляет опубликованную историю (строка таблицы stories).
type Story struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	Slug         string         `json:"slug" db:"slug"`
	Title        string         `json:"title" db:"title"`
	Language     string         `json:"language" db:"lang"`
	IsPublished  bool           `json:"is_published" db:"is_published"`
	Version      int            `json:"version" db:"version"`
	InitialStats map[string]int `json:"initial_stats" db:"initial_stats"`
	StartNodeKey string         `json:"start_node_key" db:"start_node_key"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// Choice — помеченное ребро к другому узлу. Порядок среди выборов узла
// задается SortIndex: и отображение, и озвучка обязаны использовать его.
type Choice struct {
	Label      string      `json:"label"`
	ToNodeKey  string      `json:"to_node_key"`
	Conditions []Condition `json:"conditions,omitempty"`
	Effect     *Effect     `json:"effect,omitempty"`
	SortIndex  int         `json:"sort_index"`
}

// SkillCheck — случайная бинарная развилка узла: 2d6 + значение стата
// против порога сложности. У узла не больше одной проверки.
type SkillCheck struct {
	Stat            string `json:"stat"`
	DifficultyClass int    `json:"dc"`
	SuccessNodeKey  string `json:"success"`
	FailNodeKey     string `json:"fail"`
}

// StoryNode — один нарративный такт истории.
// NarrationHash и ChoicesNarrationHash — отпечатки текста на момент
// последнего успешного синтеза озвучки; это производные маркеры валидности
// кеша, автор их не задает.
type StoryNode struct {
	StoryID              uuid.UUID   `json:"story_id"`
	NodeKey              string      `json:"node_key"`
	BodyText             string      `json:"body_text"`
	Choices              []Choice    `json:"choices"`
	SkillCheck           *SkillCheck `json:"skill_check,omitempty"`
	NarrationHash        string      `json:"narration_hash,omitempty"`
	ChoicesNarrationHash string      `json:"choices_narration_hash,omitempty"`
	ImageURL             *string     `json:"image_url,omitempty"`
	VideoURL             *string     `json:"video_url,omitempty"`
	SortIndex            int         `json:"sort_index"`
}

// StoryGraph — неизменяемое in-memory представление графа одной истории
// (для одной версии). После загрузки и валидации граф не мутирует;
// правки автора приводят к перезагрузке новой версии целиком.
type StoryGraph struct {
	StoryID      uuid.UUID
	Version      int
	StartNodeKey string
	Nodes        map[string]*StoryNode
}

// Node возвращает узел по ключу.
func (g *StoryGraph) Node(key string) (*StoryNode, bool) {
	node, ok := g.Nodes[key]
	return node, ok
}

// VisibleChoice — выбор, прошедший фильтрацию условий, в том виде,
// в котором он отдается читателю.
type VisibleChoice struct {
	Label     string `json:"label"`
	ToNodeKey string `json:"to_node_key"`
	SortIndex int    `json:"sort_index"`
}

// NodeView — то, что видит (и слышит) читатель на текущем узле.
type NodeView struct {
	NodeKey         string          `json:"node_key"`
	NodeText        string          `json:"node_text"`
	Choices         []VisibleChoice `json:"choices"`
	HasSkillCheck   bool            `json:"has_skill_check"`
	IsTerminal      bool            `json:"is_terminal"`
	ImageURL        *string         `json:"image_url,omitempty"`
	VideoURL        *string         `json:"video_url,omitempty"`
	BodyAudioURL    *string         `json:"body_audio_url,omitempty"`
	ChoicesAudioURL *string         `json:"choices_audio_url,omitempty"`
}
