package tts

import (
	"context"
	"fmt"
	"io"
	"time"

	"gamebook-server/internal/models"

	openai "github.com/sashabaranov/go-openai"
)

// Лимит входа OpenAI TTS
const openAIChunkLimit = 4096

// OpenAIConfig — настройки запасного провайдера синтеза.
type OpenAIConfig struct {
	APIKey string
	Model  string
	Voice  string
}

// OpenAIClient — запасной провайдер озвучки через OpenAI TTS. Тоже отдает mp3,
// поэтому взаимозаменяем с ElevenLabs на уровне пайплайна.
type OpenAIClient struct {
	client *openai.Client
	apiKey string
	model  openai.SpeechModel
	voice  openai.SpeechVoice
}

var _ Synthesizer = (*OpenAIClient)(nil)

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	model := openai.SpeechModel(cfg.Model)
	if cfg.Model == "" {
		model = openai.TTSModel1
	}
	voice := openai.SpeechVoice(cfg.Voice)
	if cfg.Voice == "" {
		voice = openai.VoiceAlloy
	}
	return &OpenAIClient{
		client: openai.NewClient(cfg.APIKey),
		apiKey: cfg.APIKey,
		model:  model,
		voice:  voice,
	}
}

func (c *OpenAIClient) Ready() error {
	if c.apiKey == "" {
		return fmt.Errorf("openai tts: missing API key: %w", models.ErrProviderUnavailable)
	}
	return nil
}

func (c *OpenAIClient) MaxChunkSize() int {
	return openAIChunkLimit
}

func (c *OpenAIClient) SynthesizeChunk(ctx context.Context, text string) ([]byte, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          c.model,
		Input:          text,
		Voice:          c.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai tts: request failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("openai tts: failed to read audio body: %w", err)
	}

	log.Debug().
		Int("chars", len(text)).
		Int("bytes", len(audio)).
		Dur("took", time.Since(start)).
		Msg("Chunk synthesized via OpenAI")

	return audio, nil
}
