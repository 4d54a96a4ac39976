package narration

import (
	"fmt"
	"strings"

	"gamebook-server/internal/models"
)

// FormatChoices форматирует ВИДИМЫЙ (уже отфильтрованный и упорядоченный по
// sort_index) список выборов узла в одну озвучиваемую реплику по фиксированному
// датскому шаблону:
//
//	Valgmuligheder: Valg 1: <label>. Valg 2: <label>. Hvad vælger du?
//
// Функция референциально прозрачна: одинаковый список (те же метки, тот же
// порядок) всегда дает байт-в-байт одинаковую строку — именно она попадает в
// ContentHasher как ключ кеша озвучки выборов.
func FormatChoices(choices []models.VisibleChoice) string {
	if len(choices) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Valgmuligheder: ")
	for i, choice := range choices {
		fmt.Fprintf(&b, "Valg %d: %s. ", i+1, choice.Label)
	}
	b.WriteString("Hvad vælger du?")
	return b.String()
}

// FormatCheckResult форматирует исход проверки навыка в озвучиваемую реплику
// (тот же датский шаблон, что и у плеера).
func FormatCheckResult(outcome CheckNarrationInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Du kaster terningerne og får %d. Med din %s på %d bliver det i alt %d. ",
		outcome.Roll, outcome.Stat, outcome.StatValue, outcome.Total)
	if outcome.Success {
		b.WriteString("Det lykkes! Du kan fortsætte.")
	} else {
		fmt.Fprintf(&b, "Det mislykkes! Du mister 2 point i %s.", outcome.Stat)
	}
	return b.String()
}

// CheckNarrationInput — минимум данных об исходе проверки, нужный для реплики.
// Отдельный тип, чтобы не тянуть engine в narration.
type CheckNarrationInput struct {
	Stat      string
	StatValue int
	Roll      int
	Total     int
	Success   bool
}
