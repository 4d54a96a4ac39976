package narration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gamebook-server/internal/assets"
	"gamebook-server/internal/models"
	"gamebook-server/internal/tts"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChunkSynthesisError — провал синтеза одного фрагмента. Сборка ассета
// атомарна: падение любого фрагмента отменяет весь ассет, частичное аудио
// никогда не сохраняется и не кешируется.
type ChunkSynthesisError struct {
	Chunk int // номер упавшего фрагмента, с единицы
	Total int
	Err   error
}

func (e *ChunkSynthesisError) Error() string {
	return fmt.Sprintf("synthesis of chunk %d/%d failed: %v", e.Chunk, e.Total, e.Err)
}

func (e *ChunkSynthesisError) Unwrap() error { return e.Err }

// SynthesisRequest описывает одну единицу озвучки: текст конкретного вида
// (тело узла либо реплика выборов) конкретного узла.
type SynthesisRequest struct {
	StoryID   uuid.UUID
	StorySlug string
	NodeKey   string
	Kind      models.NarrationKind
	Text      string
}

// Pipeline — контент-адресуемый конвейер синтеза озвучки: отпечаток текста,
// сверка с кешем, нарезка, пофрагментный синтез, конкатенация, загрузка.
type Pipeline struct {
	synth  tts.Synthesizer
	assets assets.Store
	logger *zap.Logger
}

func NewPipeline(synth tts.Synthesizer, store assets.Store, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		synth:  synth,
		assets: store,
		logger: logger.Named("narration"),
	}
}

// Synthesize возвращает запись кеша для текста запроса. cached — текущая
// запись из хранилища (nil, если ее нет); при совпадении отпечатков она
// возвращается как есть без единого вызова провайдера. produced=true значит,
// что запись свежесобрана и ее нужно сохранить.
//
// Вызовы не дедуплицируются: два конкурентных запроса одного отпечатка
// синтезируют дважды, последняя запись побеждает (записи с одним отпечатком
// эквивалентны, поэтому это трата денег, а не порча данных).
func (p *Pipeline) Synthesize(ctx context.Context, req SynthesisRequest, cached *models.NarrationCacheEntry) (*models.NarrationCacheEntry, bool, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		synthesisFailed.WithLabelValues("empty_text").Inc()
		return nil, false, fmt.Errorf("node %s (%s): %w", req.NodeKey, req.Kind, models.ErrEmptyText)
	}

	hash := HashText(text)
	if cached != nil && cached.ContentHash == hash && cached.AudioURL != "" {
		cacheHits.Inc()
		return cached, false, nil
	}

	if err := p.synth.Ready(); err != nil {
		synthesisFailed.WithLabelValues("provider_unavailable").Inc()
		return nil, false, err
	}

	chunks := SplitText(text, p.synth.MaxChunkSize())
	p.logger.Info("Синтезируем озвучку",
		zap.String("node_key", req.NodeKey),
		zap.String("kind", string(req.Kind)),
		zap.String("hash", ShortHash(hash)),
		zap.Int("chars", len(text)),
		zap.Int("chunks", len(chunks)))

	// Все или ничего: фрагменты синтезируются строго по порядку, первая же
	// ошибка отменяет сборку целиком.
	var audio []byte
	for i, chunk := range chunks {
		providerCalls.Inc()
		data, err := p.synth.SynthesizeChunk(ctx, chunk)
		if err != nil {
			synthesisFailed.WithLabelValues("chunk_failed").Inc()
			return nil, false, &ChunkSynthesisError{Chunk: i + 1, Total: len(chunks), Err: err}
		}
		// Склейка сырых mp3-потоков: плееры ее переживают, хотя результат
		// формально не каноничен. Честный ремукс — вопрос к ffmpeg, не сюда.
		audio = append(audio, data...)
	}

	pathHint := fmt.Sprintf("tts/%s/audio/node_%s_%s_%s", req.StorySlug, req.NodeKey, req.Kind, ShortHash(hash))
	url, err := p.assets.Store(ctx, audio, pathHint)
	if err != nil {
		synthesisFailed.WithLabelValues("upload_failed").Inc()
		return nil, false, fmt.Errorf("failed to store narration asset for node %s: %w", req.NodeKey, err)
	}

	synthesisSucceeded.Inc()

	entry := &models.NarrationCacheEntry{
		StoryID:     req.StoryID,
		NodeKey:     req.NodeKey,
		Kind:        req.Kind,
		ContentHash: hash,
		AudioURL:    url,
		ByteLength:  len(audio),
		CachedAt:    time.Now().UTC(),
	}
	return entry, true, nil
}
