package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gamebook-server/internal/models"

	"github.com/rs/zerolog"
)

var log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

const (
	elevenLabsBaseURL = "https://api.elevenlabs.io/v1/text-to-speech"

	// Adam — мультиязычный голос, хорошо читает датский
	defaultVoiceID = "pNInz6obpgDQGcFmaJgB"
	defaultModelID = "eleven_multilingual_v2"

	// Лимит символов на один запрос ElevenLabs
	elevenLabsChunkLimit = 5000

	defaultTimeout = 120 * time.Second
)

// ElevenLabsConfig содержит настройки клиента ElevenLabs.
type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	ModelID string
	Timeout time.Duration
}

// ElevenLabsClient — клиент ElevenLabs text-to-speech. Выход — mp3.
type ElevenLabsClient struct {
	apiKey     string
	voiceID    string
	modelID    string
	httpClient *http.Client
}

// Compile-time check
var _ Synthesizer = (*ElevenLabsClient)(nil)

// NewElevenLabsClient создает клиента. Пустой APIKey не ошибка на этапе
// конструирования: клиент создается, но Ready() будет возвращать
// models.ErrProviderUnavailable, и пайплайн откажет до каких-либо вызовов.
func NewElevenLabsClient(cfg ElevenLabsConfig) *ElevenLabsClient {
	if cfg.VoiceID == "" {
		cfg.VoiceID = defaultVoiceID
	}
	if cfg.ModelID == "" {
		cfg.ModelID = defaultModelID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &ElevenLabsClient{
		apiKey:  cfg.APIKey,
		voiceID: cfg.VoiceID,
		modelID: cfg.ModelID,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *ElevenLabsClient) Ready() error {
	if c.apiKey == "" {
		return fmt.Errorf("elevenlabs: missing API key: %w", models.ErrProviderUnavailable)
	}
	return nil
}

func (c *ElevenLabsClient) MaxChunkSize() int {
	return elevenLabsChunkLimit
}

// voiceSettings — параметры голоса, подобранные под ровное повествование.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// SynthesizeChunk отправляет один фрагмент текста и возвращает mp3-байты.
func (c *ElevenLabsClient) SynthesizeChunk(ctx context.Context, text string) ([]byte, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(synthesizeRequest{
		Text:    text,
		ModelID: c.modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Style:           0.0,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", elevenLabsBaseURL, c.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		log.Error().Int("status", resp.StatusCode).Str("body", string(errText)).Msg("ElevenLabs returned an error")
		return nil, fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, string(errText))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: failed to read audio body: %w", err)
	}

	log.Debug().
		Int("chars", len(text)).
		Int("bytes", len(audio)).
		Dur("took", time.Since(start)).
		Msg("Chunk synthesized")

	return audio, nil
}
