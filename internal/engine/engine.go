package engine

import (
	"fmt"
	"math/rand"

	"gamebook-server/internal/models"
)

// Штраф к проверяемому стату за проваленную проверку.
const failedCheckPenalty = 2

// Roller — источник случайного броска для проверки навыка. Каждый вызов —
// независимое испытание: результаты не запоминаются и не переигрываются.
// Инъецируется, чтобы тесты могли подставить детерминированный бросок.
type Roller func() int

// Roll2d6 — стандартный бросок двух шестигранных кубиков.
func Roll2d6() int {
	return rand.Intn(6) + 1 + rand.Intn(6) + 1
}

// ActionType определяет вид входного действия читателя.
type ActionType string

const (
	// ActionChoice — явный выбор одного из видимых вариантов.
	ActionChoice ActionType = "choice"
	// ActionResolveCheck — разрешение проверки навыка текущего узла.
	ActionResolveCheck ActionType = "resolve_check"
)

// Action — входное действие перехода. Выбор адресуется либо индексом в
// видимом списке, либо точной меткой; индекс имеет приоритет.
type Action struct {
	Type        ActionType `json:"type"`
	ChoiceIndex *int       `json:"choice_index,omitempty"`
	ChoiceLabel string     `json:"choice_label,omitempty"`
}

// CheckOutcome — результат одной разрешенной проверки навыка.
type CheckOutcome struct {
	Stat      string `json:"stat"`
	StatValue int    `json:"stat_value"` // значение стата ДО применения штрафа
	Roll      int    `json:"roll"`
	Total     int    `json:"total"`
	DC        int    `json:"dc"`
	Success   bool   `json:"success"`
}

// Result — итог одного перехода: новый снапшот состояния и, если
// разрешалась проверка навыка, её исход.
type Result struct {
	Session models.SessionState
	Check   *CheckOutcome
}

// Engine реализует машину состояний обхода графа истории. Сам по себе он
// не хранит ничего: каждый Advance получает снапшот сессии и возвращает новый.
type Engine struct {
	roll Roller
}

// New создает движок обхода. roller == nil означает стандартный бросок 2d6.
func New(roller Roller) *Engine {
	if roller == nil {
		roller = Roll2d6
	}
	return &Engine{roll: roller}
}

// VisibleChoices возвращает выборы узла, все условия которых выполняются
// против флагов сессии, с сохранением порядка sort_index. Репозиторий уже
// отдает выборы отсортированными, фильтрация порядок не меняет.
func (e *Engine) VisibleChoices(node *models.StoryNode, state models.SessionState) []models.VisibleChoice {
	visible := make([]models.VisibleChoice, 0, len(node.Choices))
	for _, choice := range node.Choices {
		if !conditionsHold(choice.Conditions, state) {
			continue
		}
		visible = append(visible, models.VisibleChoice{
			Label:     choice.Label,
			ToNodeKey: choice.ToNodeKey,
			SortIndex: choice.SortIndex,
		})
	}
	return visible
}

// View строит представление текущего узла для читателя: текст, видимые
// выборы и признак терминальности. Узел без единого видимого выбора и без
// проверки навыка терминален — в том числе узел, все выборы которого
// отфильтрованы условиями: скрытые выборы читателю не подставляются.
func (e *Engine) View(graph *models.StoryGraph, state models.SessionState) (*models.NodeView, error) {
	node, ok := graph.Node(state.CurrentNodeKey)
	if !ok {
		return nil, fmt.Errorf("node %q: %w", state.CurrentNodeKey, models.ErrNodeNotFound)
	}

	visible := e.VisibleChoices(node, state)
	return &models.NodeView{
		NodeKey:       node.NodeKey,
		NodeText:      node.BodyText,
		Choices:       visible,
		HasSkillCheck: node.SkillCheck != nil,
		IsTerminal:    len(visible) == 0 && node.SkillCheck == nil,
		ImageURL:      node.ImageURL,
		VideoURL:      node.VideoURL,
	}, nil
}

// Advance выполняет один переход машины состояний.
//
//  1. Текущий узел ищется по ключу из сессии; отсутствие — ErrNodeNotFound
//     (граф мутировал после старта сессии).
//  2. Для ActionResolveCheck бросается кубик и сравнивается с порогом;
//     успех ведет в success-узел, провал — в fail-узел и снимает
//     failedCheckPenalty очков с проверяемого стата.
//  3. Для ActionChoice выбранный вариант обязан входить в видимый список;
//     выбор отфильтрованного условия — ErrInvalidChoice, не сбой.
//  4. Эффект выбора применяется к копии состояния; исходный снапшот
//     не мутирует.
func (e *Engine) Advance(graph *models.StoryGraph, state models.SessionState, action Action) (*Result, error) {
	node, ok := graph.Node(state.CurrentNodeKey)
	if !ok {
		return nil, fmt.Errorf("node %q: %w", state.CurrentNodeKey, models.ErrNodeNotFound)
	}

	switch action.Type {
	case ActionResolveCheck:
		return e.resolveCheck(node, state)
	case ActionChoice:
		return e.takeChoice(node, state, action)
	default:
		return nil, fmt.Errorf("action type %q: %w", action.Type, models.ErrInvalidInput)
	}
}

func (e *Engine) resolveCheck(node *models.StoryNode, state models.SessionState) (*Result, error) {
	check := node.SkillCheck
	if check == nil {
		return nil, fmt.Errorf("node %q: %w", node.NodeKey, models.ErrNoSkillCheck)
	}

	statValue := state.Stats[check.Stat]
	roll := e.roll()
	total := roll + statValue
	success := total >= check.DifficultyClass

	next := state.Clone()
	if success {
		next.CurrentNodeKey = check.SuccessNodeKey
	} else {
		next.CurrentNodeKey = check.FailNodeKey
		penalized := next.Stats[check.Stat] - failedCheckPenalty
		if penalized < 0 {
			penalized = 0
		}
		next.Stats[check.Stat] = penalized
	}

	return &Result{
		Session: next,
		Check: &CheckOutcome{
			Stat:      check.Stat,
			StatValue: statValue,
			Roll:      roll,
			Total:     total,
			DC:        check.DifficultyClass,
			Success:   success,
		},
	}, nil
}

func (e *Engine) takeChoice(node *models.StoryNode, state models.SessionState, action Action) (*Result, error) {
	chosen, err := e.pickVisibleChoice(node, state, action)
	if err != nil {
		return nil, err
	}

	next := state
	if chosen.Effect != nil {
		next = chosen.Effect.Apply(state)
	} else {
		next = state.Clone()
	}
	next.CurrentNodeKey = chosen.ToNodeKey

	return &Result{Session: next}, nil
}

// pickVisibleChoice находит выбранный вариант среди ВИДИМЫХ выборов узла.
// Клиент, выбравший скрытый условиями вариант, получает ErrInvalidChoice.
func (e *Engine) pickVisibleChoice(node *models.StoryNode, state models.SessionState, action Action) (*models.Choice, error) {
	visibleIdx := 0
	for i := range node.Choices {
		choice := &node.Choices[i]
		if !conditionsHold(choice.Conditions, state) {
			continue
		}
		if action.ChoiceIndex != nil {
			if visibleIdx == *action.ChoiceIndex {
				return choice, nil
			}
		} else if choice.Label == action.ChoiceLabel {
			return choice, nil
		}
		visibleIdx++
	}
	if action.ChoiceIndex != nil {
		return nil, fmt.Errorf("choice index %d: %w", *action.ChoiceIndex, models.ErrInvalidChoice)
	}
	return nil, fmt.Errorf("choice %q: %w", action.ChoiceLabel, models.ErrInvalidChoice)
}

func conditionsHold(conditions []models.Condition, state models.SessionState) bool {
	for _, cond := range conditions {
		if !cond.Evaluate(state) {
			return false
		}
	}
	return true
}
