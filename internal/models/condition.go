package models

import "fmt"

// ConditionType определяет вид условия видимости выбора.
// Совпадает со значением поля "type" в JSONB колонке story_choices.conditions.
type ConditionType string

const (
	ConditionFlagEquals  ConditionType = "flag_equals"
	ConditionStatAtLeast ConditionType = "stat_at_least"
	ConditionAnd         ConditionType = "and"
	ConditionOr          ConditionType = "or"
)

// Condition — маленькое дерево выражений вместо свободных key-value карт:
// условие либо листовое (flag_equals / stat_at_least), либо комбинатор
// (and / or) над дочерними условиями. Вычисляется чистой рекурсивной
// функцией Evaluate, без какой-либо интерпретации строк во время игры.
type Condition struct {
	Type      ConditionType `json:"type"`
	Key       string        `json:"key,omitempty"`
	Value     bool          `json:"value,omitempty"`
	Threshold int           `json:"threshold,omitempty"`
	Children  []Condition   `json:"children,omitempty"`
}

// Evaluate вычисляет условие против снапшота состояния сессии.
// Флаг, который ни разу не выставлялся, считается равным false.
func (c Condition) Evaluate(state SessionState) bool {
	switch c.Type {
	case ConditionFlagEquals:
		return state.Flags[c.Key] == c.Value
	case ConditionStatAtLeast:
		return state.Stats[c.Key] >= c.Threshold
	case ConditionAnd:
		for _, child := range c.Children {
			if !child.Evaluate(state) {
				return false
			}
		}
		return true
	case ConditionOr:
		for _, child := range c.Children {
			if child.Evaluate(state) {
				return true
			}
		}
		return false
	default:
		// Неизвестный тип отбрасывается еще при валидации графа,
		// сюда он попасть не должен. Ведем себя закрыто: условие не выполнено.
		return false
	}
}

// Validate проверяет, что условие структурно корректно.
// Вызывается при загрузке графа: граф с некорректным условием отклоняется целиком.
func (c Condition) Validate() error {
	switch c.Type {
	case ConditionFlagEquals:
		if c.Key == "" {
			return fmt.Errorf("condition %q: empty flag key", c.Type)
		}
	case ConditionStatAtLeast:
		if c.Key == "" {
			return fmt.Errorf("condition %q: empty stat key", c.Type)
		}
	case ConditionAnd, ConditionOr:
		if len(c.Children) == 0 {
			return fmt.Errorf("condition %q: no children", c.Type)
		}
		for i, child := range c.Children {
			if err := child.Validate(); err != nil {
				return fmt.Errorf("child %d: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unknown condition type %q", c.Type)
	}
	return nil
}

// EffectType определяет вид эффекта, применяемого к состоянию сессии при выборе.
type EffectType string

const (
	EffectSetFlag EffectType = "set_flag"
	EffectAddStat EffectType = "add_stat"
)

// Effect — мутация состояния сессии, привязанная к выбору.
// Применяется copy-on-write: Apply возвращает новый снапшот, исходный не трогается.
type Effect struct {
	Type  EffectType `json:"type"`
	Key   string     `json:"key"`
	Value bool       `json:"value,omitempty"`
	Delta int        `json:"delta,omitempty"`
}

// Apply применяет эффект к копии состояния и возвращает её.
// Статы не опускаются ниже нуля.
func (e Effect) Apply(state SessionState) SessionState {
	next := state.Clone()
	switch e.Type {
	case EffectSetFlag:
		next.Flags[e.Key] = e.Value
	case EffectAddStat:
		v := next.Stats[e.Key] + e.Delta
		if v < 0 {
			v = 0
		}
		next.Stats[e.Key] = v
	}
	return next
}

// Validate проверяет структурную корректность эффекта при загрузке графа.
func (e Effect) Validate() error {
	switch e.Type {
	case EffectSetFlag, EffectAddStat:
		if e.Key == "" {
			return fmt.Errorf("effect %q: empty key", e.Type)
		}
	default:
		return fmt.Errorf("unknown effect type %q", e.Type)
	}
	return nil
}
