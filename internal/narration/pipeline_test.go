package narration_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gamebook-server/internal/models"
	"gamebook-server/internal/narration"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSynth — провайдер, который отдает предсказуемые байты и считает вызовы.
type fakeSynth struct {
	calls     int
	limit     int
	failAt    int // номер вызова, на котором падать; 0 — не падать
	readyErr  error
	lastTexts []string
}

func (f *fakeSynth) SynthesizeChunk(_ context.Context, text string) ([]byte, error) {
	f.calls++
	f.lastTexts = append(f.lastTexts, text)
	if f.failAt != 0 && f.calls == f.failAt {
		return nil, errors.New("provider exploded")
	}
	return []byte(fmt.Sprintf("<mp3:%d>", len(text))), nil
}

func (f *fakeSynth) MaxChunkSize() int {
	if f.limit == 0 {
		return narration.DefaultChunkLimit
	}
	return f.limit
}

func (f *fakeSynth) Ready() error { return f.readyErr }

// fakeStore запоминает загруженные данные и отдает URL из pathHint.
type fakeStore struct {
	stored   [][]byte
	lastHint string
}

func (f *fakeStore) Store(_ context.Context, data []byte, pathHint string) (string, error) {
	f.stored = append(f.stored, data)
	f.lastHint = pathHint
	return "https://cdn.example.com/" + pathHint + ".mp3", nil
}

func testRequest(text string) narration.SynthesisRequest {
	return narration.SynthesisRequest{
		StoryID:   uuid.New(),
		StorySlug: "eventyret",
		NodeKey:   "start",
		Kind:      models.NarrationKindBody,
		Text:      text,
	}
}

func TestPipeline_Synthesize(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh text is synthesized and stored", func(t *testing.T) {
		synth := &fakeSynth{}
		store := &fakeStore{}
		p := narration.NewPipeline(synth, store, zap.NewNop())

		entry, produced, err := p.Synthesize(ctx, testRequest("Du står ved en dør."), nil)
		require.NoError(t, err)
		assert.True(t, produced)
		assert.Equal(t, 1, synth.calls)
		assert.Equal(t, narration.HashText("Du står ved en dør."), entry.ContentHash)
		assert.Contains(t, entry.AudioURL, "tts/eventyret/audio/node_start_body_")
		assert.Contains(t, store.lastHint, narration.ShortHash(entry.ContentHash))
		assert.WithinDuration(t, time.Now().UTC(), entry.CachedAt, time.Minute)
	})

	t.Run("matching cache entry short-circuits without provider calls", func(t *testing.T) {
		synth := &fakeSynth{}
		store := &fakeStore{}
		p := narration.NewPipeline(synth, store, zap.NewNop())

		req := testRequest("Samme tekst som før.")
		cached := &models.NarrationCacheEntry{
			ContentHash: narration.HashText("Samme tekst som før."),
			AudioURL:    "https://cdn.example.com/existing.mp3",
		}

		entry, produced, err := p.Synthesize(ctx, req, cached)
		require.NoError(t, err)
		assert.False(t, produced)
		assert.Zero(t, synth.calls)
		assert.Empty(t, store.stored)
		assert.Equal(t, "https://cdn.example.com/existing.mp3", entry.AudioURL)
	})

	t.Run("stale cache entry triggers a rebuild", func(t *testing.T) {
		synth := &fakeSynth{}
		store := &fakeStore{}
		p := narration.NewPipeline(synth, store, zap.NewNop())

		cached := &models.NarrationCacheEntry{
			ContentHash: narration.HashText("Gammel tekst."),
			AudioURL:    "https://cdn.example.com/old.mp3",
		}
		entry, produced, err := p.Synthesize(ctx, testRequest("Ny tekst."), cached)
		require.NoError(t, err)
		assert.True(t, produced)
		assert.Equal(t, 1, synth.calls)
		assert.NotEqual(t, cached.AudioURL, entry.AudioURL)
	})

	t.Run("long text is chunked and concatenated in order", func(t *testing.T) {
		synth := &fakeSynth{limit: 40}
		store := &fakeStore{}
		p := narration.NewPipeline(synth, store, zap.NewNop())

		text := "Første sætning her. Anden sætning her. Tredje sætning her."
		entry, produced, err := p.Synthesize(ctx, testRequest(text), nil)
		require.NoError(t, err)
		assert.True(t, produced)
		assert.Greater(t, synth.calls, 1)

		// Результат — конкатенация всех фрагментов, длина сходится.
		require.Len(t, store.stored, 1)
		var expected []byte
		for _, chunk := range synth.lastTexts {
			expected = append(expected, []byte(fmt.Sprintf("<mp3:%d>", len(chunk)))...)
		}
		assert.Equal(t, expected, store.stored[0])
		assert.Equal(t, len(expected), entry.ByteLength)
	})

	t.Run("chunk failure aborts the whole asset", func(t *testing.T) {
		synth := &fakeSynth{limit: 40, failAt: 2}
		store := &fakeStore{}
		p := narration.NewPipeline(synth, store, zap.NewNop())

		text := "Første sætning her. Anden sætning her. Tredje sætning her."
		_, produced, err := p.Synthesize(ctx, testRequest(text), nil)
		require.Error(t, err)
		assert.False(t, produced)
		// Ничего не сохранено: частичное аудио не существует.
		assert.Empty(t, store.stored)

		var chunkErr *narration.ChunkSynthesisError
		require.ErrorAs(t, err, &chunkErr)
		assert.Equal(t, 2, chunkErr.Chunk)
		assert.Contains(t, chunkErr.Error(), "chunk 2/")
	})

	t.Run("empty text is rejected", func(t *testing.T) {
		p := narration.NewPipeline(&fakeSynth{}, &fakeStore{}, zap.NewNop())
		_, _, err := p.Synthesize(ctx, testRequest("   \n "), nil)
		assert.ErrorIs(t, err, models.ErrEmptyText)
	})

	t.Run("provider readiness is checked before any call", func(t *testing.T) {
		synth := &fakeSynth{readyErr: fmt.Errorf("no key: %w", models.ErrProviderUnavailable)}
		p := narration.NewPipeline(synth, &fakeStore{}, zap.NewNop())
		_, _, err := p.Synthesize(ctx, testRequest("Noget tekst."), nil)
		assert.ErrorIs(t, err, models.ErrProviderUnavailable)
		assert.Zero(t, synth.calls)
	})

	t.Run("same text twice gives the same fingerprint and path", func(t *testing.T) {
		synth := &fakeSynth{}
		store := &fakeStore{}
		p := narration.NewPipeline(synth, store, zap.NewNop())

		req := testRequest("Identisk tekst.")
		first, _, err := p.Synthesize(ctx, req, nil)
		require.NoError(t, err)
		second, _, err := p.Synthesize(ctx, req, nil)
		require.NoError(t, err)
		assert.Equal(t, first.ContentHash, second.ContentHash)
		assert.Equal(t, first.AudioURL, second.AudioURL)
	})

	t.Run("hashing ignores surrounding whitespace only", func(t *testing.T) {
		synth := &fakeSynth{}
		p := narration.NewPipeline(synth, &fakeStore{}, zap.NewNop())

		entry, _, err := p.Synthesize(ctx, testRequest("  Tekst.  "), nil)
		require.NoError(t, err)
		assert.Equal(t, narration.HashText("Tekst."), entry.ContentHash)
		assert.Equal(t, []string{"Tekst."}, synth.lastTexts[:1])
	})
}
