package narration_test

import (
	"testing"

	"gamebook-server/internal/models"
	"gamebook-server/internal/narration"

	"github.com/stretchr/testify/assert"
)

func TestFormatChoices(t *testing.T) {
	t.Run("single choice", func(t *testing.T) {
		got := narration.FormatChoices([]models.VisibleChoice{
			{Label: "Åbn døren", SortIndex: 0},
		})
		assert.Equal(t, "Valgmuligheder: Valg 1: Åbn døren. Hvad vælger du?", got)
	})

	t.Run("choices are numbered in order", func(t *testing.T) {
		got := narration.FormatChoices([]models.VisibleChoice{
			{Label: "Gå til venstre", SortIndex: 0},
			{Label: "Gå til højre", SortIndex: 1},
		})
		assert.Equal(t, "Valgmuligheder: Valg 1: Gå til venstre. Valg 2: Gå til højre. Hvad vælger du?", got)
	})

	t.Run("empty list yields empty string", func(t *testing.T) {
		assert.Equal(t, "", narration.FormatChoices(nil))
	})

	t.Run("byte identical for identical input", func(t *testing.T) {
		choices := []models.VisibleChoice{
			{Label: "Kæmp", SortIndex: 0},
			{Label: "Flygt", SortIndex: 1},
		}
		assert.Equal(t, narration.FormatChoices(choices), narration.FormatChoices(choices))
	})

	t.Run("different order gives a different fingerprint", func(t *testing.T) {
		a := narration.FormatChoices([]models.VisibleChoice{{Label: "Kæmp"}, {Label: "Flygt"}})
		b := narration.FormatChoices([]models.VisibleChoice{{Label: "Flygt"}, {Label: "Kæmp"}})
		assert.NotEqual(t, narration.HashText(a), narration.HashText(b))
	})
}

func TestFormatCheckResult(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		got := narration.FormatCheckResult(narration.CheckNarrationInput{
			Stat: "Evner", StatValue: 10, Roll: 8, Total: 18, Success: true,
		})
		assert.Equal(t, "Du kaster terningerne og får 8. Med din Evner på 10 bliver det i alt 18. Det lykkes! Du kan fortsætte.", got)
	})

	t.Run("failure mentions the penalty", func(t *testing.T) {
		got := narration.FormatCheckResult(narration.CheckNarrationInput{
			Stat: "Held", StatValue: 7, Roll: 3, Total: 10, Success: false,
		})
		assert.Equal(t, "Du kaster terningerne og får 3. Med din Held på 7 bliver det i alt 10. Det mislykkes! Du mister 2 point i Held.", got)
	})
}
