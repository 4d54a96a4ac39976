package narration

import (
	"regexp"
	"strings"
)

// DefaultChunkLimit — лимит символов на один вызов синтеза у ElevenLabs.
const DefaultChunkLimit = 5000

var (
	// Предложение: последовательность без терминаторов, затем один или
	// несколько терминаторов (. ! ? :) c возможной закрывающей кавычкой/скобкой
	// и хвостовым пробелом/переводом строки.
	sentenceRe = regexp.MustCompile(`[^.!?:]+[.!?:]+["')\]]*\s*`)

	// Абзацы разделяются пустой строкой.
	paragraphRe = regexp.MustCompile(`\n\s*\n`)
)

// SplitText режет текст озвучки на сегменты не длиннее limit символов,
// сохраняя порядок чтения и не теряя ничего, кроме нормализации краевых
// пробелов сегментов. Стратегии пробуются по приоритету:
//
//  1. Текст целиком влезает в лимит — один сегмент, без резки.
//  2. Жадная упаковка предложений: буфер сбрасывается, когда следующее
//     предложение его переполнило бы.
//  3. Если границ предложений нет вовсе — абзацы по пустой строке,
//     с рекурсией внутрь абзаца, который сам не влезает.
//  4. Жадная упаковка слов; внутри слова резка не происходит никогда.
//
// Единственный токен длиннее лимита пропускается как есть — документированное
// ограничение, не сбой.
func SplitText(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultChunkLimit
	}
	if len(trimmed) <= limit {
		return []string{trimmed}
	}

	if sentences := splitSentences(text); len(sentences) > 1 {
		return packUnits(sentences, limit)
	}

	if paragraphs := paragraphRe.Split(text, -1); len(paragraphs) > 1 {
		var segments []string
		for _, paragraph := range paragraphs {
			segments = append(segments, SplitText(paragraph, limit)...)
		}
		return segments
	}

	return packUnits(strings.Fields(text), limit)
}

// splitSentences режет текст по границам предложений, сохраняя и спаны,
// которые под sentenceRe не попали: хвост без терминатора или пролог из
// одних терминаторов — тоже текст, терять его нельзя.
func splitSentences(text string) []string {
	matches := sentenceRe.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	var units []string
	lastEnd := 0
	for _, m := range matches {
		if m[0] > lastEnd {
			units = append(units, text[lastEnd:m[0]])
		}
		units = append(units, text[m[0]:m[1]])
		lastEnd = m[1]
	}
	if lastEnd < len(text) {
		units = append(units, text[lastEnd:])
	}
	return units
}

// packUnits жадно укладывает единицы (предложения или слова) в сегменты,
// не превышающие лимит. Единица, которая сама больше лимита, дорезается по
// словам; неделимое слово больше лимита проходит насквозь.
func packUnits(units []string, limit int) []string {
	var segments []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() > 0 {
			segments = append(segments, strings.TrimSpace(buf.String()))
			buf.Reset()
		}
	}

	for _, unit := range units {
		unit = strings.TrimSpace(unit)
		if unit == "" {
			continue
		}

		if len(unit) > limit {
			flush()
			if strings.ContainsAny(unit, " \t\n") {
				segments = append(segments, packUnits(strings.Fields(unit), limit)...)
			} else {
				// Неделимый токен длиннее лимита
				segments = append(segments, unit)
			}
			continue
		}

		if buf.Len() > 0 && buf.Len()+1+len(unit) > limit {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(unit)
	}
	flush()

	return segments
}
