package engine_test

import (
	"testing"

	"gamebook-server/internal/engine"
	"gamebook-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testGraph — маленькая история с условным выбором, эффектом и проверкой
// навыка. har_noglen открывает дверь только владельцу ключа.
func testGraph(t *testing.T) *models.StoryGraph {
	t.Helper()
	story := &models.Story{
		ID:           uuid.New(),
		Slug:         "eventyret",
		Version:      1,
		StartNodeKey: "start",
	}
	nodes := []*models.StoryNode{
		{
			NodeKey:  "start",
			BodyText: "Du står ved en dør.",
			Choices: []models.Choice{
				{Label: "Åbn døren", ToNodeKey: "rum", SortIndex: 0,
					Conditions: []models.Condition{{Type: models.ConditionFlagEquals, Key: "har_noglen", Value: true}}},
				{Label: "Led efter nøglen", ToNodeKey: "gang", SortIndex: 1,
					Effect: &models.Effect{Type: models.EffectSetFlag, Key: "har_noglen", Value: true}},
			},
		},
		{
			NodeKey:  "gang",
			BodyText: "Du finder en nøgle.",
			Choices: []models.Choice{
				{Label: "Tilbage til døren", ToNodeKey: "start", SortIndex: 0},
			},
		},
		{
			NodeKey:    "rum",
			BodyText:   "En smal bro over afgrunden.",
			SkillCheck: &models.SkillCheck{Stat: "Evner", DifficultyClass: 15, SuccessNodeKey: "sejr", FailNodeKey: "fald"},
		},
		{NodeKey: "sejr", BodyText: "Du klarede det."},
		{NodeKey: "fald", BodyText: "Du falder."},
	}
	graph, err := engine.LoadGraph(story, nodes)
	require.NoError(t, err)
	return graph
}

func freshState(stats map[string]int) models.SessionState {
	return models.NewSessionState("start", stats)
}

func TestEngine_View(t *testing.T) {
	graph := testGraph(t)
	e := engine.New(nil)

	t.Run("conditional choice is hidden without the flag", func(t *testing.T) {
		view, err := e.View(graph, freshState(nil))
		require.NoError(t, err)
		require.Len(t, view.Choices, 1)
		assert.Equal(t, "Led efter nøglen", view.Choices[0].Label)
		assert.False(t, view.IsTerminal)
	})

	t.Run("conditional choice appears with the flag", func(t *testing.T) {
		state := freshState(nil)
		state.Flags["har_noglen"] = true
		view, err := e.View(graph, state)
		require.NoError(t, err)
		require.Len(t, view.Choices, 2)
		assert.Equal(t, "Åbn døren", view.Choices[0].Label)
	})

	t.Run("node with only a skill check is not terminal", func(t *testing.T) {
		state := freshState(nil)
		state.CurrentNodeKey = "rum"
		view, err := e.View(graph, state)
		require.NoError(t, err)
		assert.Empty(t, view.Choices)
		assert.True(t, view.HasSkillCheck)
		assert.False(t, view.IsTerminal)
	})

	t.Run("node without choices or check is terminal", func(t *testing.T) {
		state := freshState(nil)
		state.CurrentNodeKey = "sejr"
		view, err := e.View(graph, state)
		require.NoError(t, err)
		assert.True(t, view.IsTerminal)
	})

	t.Run("node with all choices filtered out is terminal", func(t *testing.T) {
		story := &models.Story{ID: uuid.New(), StartNodeKey: "a"}
		nodes := []*models.StoryNode{
			{NodeKey: "a", Choices: []models.Choice{
				{Label: "skjult", ToNodeKey: "b",
					Conditions: []models.Condition{{Type: models.ConditionFlagEquals, Key: "umulig", Value: true}}},
			}},
			{NodeKey: "b"},
		}
		g, err := engine.LoadGraph(story, nodes)
		require.NoError(t, err)
		view, err := e.View(g, models.NewSessionState("a", nil))
		require.NoError(t, err)
		assert.True(t, view.IsTerminal)
	})

	t.Run("unknown current node", func(t *testing.T) {
		state := freshState(nil)
		state.CurrentNodeKey = "findes_ikke"
		_, err := e.View(graph, state)
		assert.ErrorIs(t, err, models.ErrNodeNotFound)
	})
}

func TestEngine_Advance_Choice(t *testing.T) {
	graph := testGraph(t)
	e := engine.New(nil)

	t.Run("choice by label applies effect and moves", func(t *testing.T) {
		state := freshState(nil)
		result, err := e.Advance(graph, state, engine.Action{Type: engine.ActionChoice, ChoiceLabel: "Led efter nøglen"})
		require.NoError(t, err)
		assert.Equal(t, "gang", result.Session.CurrentNodeKey)
		assert.True(t, result.Session.Flags["har_noglen"])
		// Исходный снапшот не тронут.
		assert.Equal(t, "start", state.CurrentNodeKey)
		assert.Empty(t, state.Flags)
	})

	t.Run("choice by visible index skips hidden choices", func(t *testing.T) {
		// Без флага видим только "Led efter nøglen", значит индекс 0 — это он.
		idx := 0
		result, err := e.Advance(graph, freshState(nil), engine.Action{Type: engine.ActionChoice, ChoiceIndex: &idx})
		require.NoError(t, err)
		assert.Equal(t, "gang", result.Session.CurrentNodeKey)
	})

	t.Run("picking a hidden choice is rejected", func(t *testing.T) {
		_, err := e.Advance(graph, freshState(nil), engine.Action{Type: engine.ActionChoice, ChoiceLabel: "Åbn døren"})
		assert.ErrorIs(t, err, models.ErrInvalidChoice)
	})

	t.Run("out of range index is rejected", func(t *testing.T) {
		idx := 5
		_, err := e.Advance(graph, freshState(nil), engine.Action{Type: engine.ActionChoice, ChoiceIndex: &idx})
		assert.ErrorIs(t, err, models.ErrInvalidChoice)
	})

	t.Run("unknown action type", func(t *testing.T) {
		_, err := e.Advance(graph, freshState(nil), engine.Action{Type: "dance"})
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})
}

func TestEngine_Advance_SkillCheck(t *testing.T) {
	graph := testGraph(t)

	atCheck := func(stats map[string]int) models.SessionState {
		state := models.NewSessionState("rum", stats)
		return state
	}

	t.Run("success routes to the success node", func(t *testing.T) {
		e := engine.New(func() int { return 7 }) // 7 + 10 >= 15
		result, err := e.Advance(graph, atCheck(map[string]int{"Evner": 10}), engine.Action{Type: engine.ActionResolveCheck})
		require.NoError(t, err)
		require.NotNil(t, result.Check)
		assert.True(t, result.Check.Success)
		assert.Equal(t, 7, result.Check.Roll)
		assert.Equal(t, 17, result.Check.Total)
		assert.Equal(t, "sejr", result.Session.CurrentNodeKey)
		assert.Equal(t, 10, result.Session.Stats["Evner"])
	})

	t.Run("total equal to dc succeeds", func(t *testing.T) {
		e := engine.New(func() int { return 5 }) // 5 + 10 == 15
		result, err := e.Advance(graph, atCheck(map[string]int{"Evner": 10}), engine.Action{Type: engine.ActionResolveCheck})
		require.NoError(t, err)
		assert.True(t, result.Check.Success)
	})

	t.Run("failure routes to the fail node and costs 2 points", func(t *testing.T) {
		e := engine.New(func() int { return 2 }) // 2 + 10 < 15
		state := atCheck(map[string]int{"Evner": 10})
		result, err := e.Advance(graph, state, engine.Action{Type: engine.ActionResolveCheck})
		require.NoError(t, err)
		assert.False(t, result.Check.Success)
		assert.Equal(t, "fald", result.Session.CurrentNodeKey)
		assert.Equal(t, 8, result.Session.Stats["Evner"])
		// Штраф применяется к копии.
		assert.Equal(t, 10, state.Stats["Evner"])
	})

	t.Run("penalty never drives the stat below zero", func(t *testing.T) {
		e := engine.New(func() int { return 2 })
		result, err := e.Advance(graph, atCheck(map[string]int{"Evner": 1}), engine.Action{Type: engine.ActionResolveCheck})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Session.Stats["Evner"])
	})

	t.Run("resolve on a node without a check", func(t *testing.T) {
		e := engine.New(nil)
		_, err := e.Advance(graph, freshState(nil), engine.Action{Type: engine.ActionResolveCheck})
		assert.ErrorIs(t, err, models.ErrNoSkillCheck)
	})
}

func TestRoll2d6(t *testing.T) {
	for i := 0; i < 1000; i++ {
		roll := engine.Roll2d6()
		require.GreaterOrEqual(t, roll, 2)
		require.LessOrEqual(t, roll, 12)
	}
}
