package config

import (
	"fmt"
	"log"
	"time"

	"gamebook-server/internal/utils"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию сервера игровой книги и воркера озвучки.
type Config struct {
	// Настройки сервера
	Port     string `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Настройки PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" required:"true"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" required:"true"`
	DBName        string        `envconfig:"DB_NAME" required:"true"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	// Секретное поле БЕЗ envconfig тега
	DBPassword string

	// Настройки Redis (пусто — кеш озвучки работает только через Postgres)
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	NarrationTTL  time.Duration `envconfig:"NARRATION_REDIS_TTL" default:"24h"`
	RedisPassword string

	// Настройки RabbitMQ
	RabbitMQURL        string `envconfig:"RABBITMQ_URL" required:"true"`
	NarrationTaskQueue string `envconfig:"NARRATION_TASK_QUEUE" default:"narration_tasks"`

	// Настройки синтеза речи
	TTSProvider       string `envconfig:"TTS_PROVIDER" default:"elevenlabs"` // elevenlabs | openai
	ElevenLabsVoiceID string `envconfig:"ELEVENLABS_VOICE_ID" default:""`
	ElevenLabsModelID string `envconfig:"ELEVENLABS_MODEL_ID" default:""`
	OpenAITTSModel    string `envconfig:"OPENAI_TTS_MODEL" default:""`
	OpenAITTSVoice    string `envconfig:"OPENAI_TTS_VOICE" default:""`
	// Секретные поля БЕЗ envconfig тегов
	ElevenLabsAPIKey string
	OpenAIAPIKey     string

	// Настройки хранилища ассетов
	AssetStore          string `envconfig:"ASSET_STORE" default:"cloudinary"` // cloudinary | local
	CloudinaryCloudName string `envconfig:"CLOUDINARY_CLOUD_NAME" default:""`
	CloudinaryAPIKey    string `envconfig:"CLOUDINARY_API_KEY" default:""`
	LocalAssetDir       string `envconfig:"LOCAL_ASSET_DIR" default:"./data/assets"`
	LocalAssetBaseURL   string `envconfig:"LOCAL_ASSET_BASE_URL" default:"http://localhost:8080/assets"`
	// Секретное поле БЕЗ envconfig тега
	CloudinaryAPISecret string
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов
func LoadConfig() (*Config, error) {
	var cfg Config
	// Загружаем НЕсекретные переменные
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Загружаем ОБЯЗАТЕЛЬНЫЕ секреты
	var loadErr error
	cfg.DBPassword, loadErr = utils.ReadSecret("db_password")
	if loadErr != nil {
		return nil, loadErr
	}

	// Секреты провайдеров НЕобязательны: без ключа соответствующий провайдер
	// просто не готов (Ready вернет ошибку при первой попытке синтеза),
	// текстовая часть сервиса продолжает работать.
	cfg.ElevenLabsAPIKey = utils.ReadSecretOrEnv("elevenlabs_api_key", "ELEVENLABS_API_KEY")
	cfg.OpenAIAPIKey = utils.ReadSecretOrEnv("openai_api_key", "OPENAI_API_KEY")
	cfg.CloudinaryAPISecret = utils.ReadSecretOrEnv("cloudinary_api_secret", "CLOUDINARY_API_SECRET")
	cfg.RedisPassword = utils.ReadSecretOrEnv("redis_password", "REDIS_PASSWORD")

	if cfg.ElevenLabsAPIKey == "" && cfg.OpenAIAPIKey == "" {
		log.Println("ВНИМАНИЕ: ключи TTS-провайдеров не заданы, синтез озвучки будет недоступен")
	}

	log.Printf("Конфигурация загружена (секреты из файлов):")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  DB DSN: postgres://%s:***@%s:%s/%s?sslmode=%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
	log.Printf("  Redis Addr: %q", cfg.RedisAddr)
	log.Printf("  RabbitMQ URL: %s", cfg.RabbitMQURL)
	log.Printf("  Narration Task Queue: %s", cfg.NarrationTaskQueue)
	log.Printf("  TTS Provider: %s", cfg.TTSProvider)
	log.Printf("  Asset Store: %s", cfg.AssetStore)

	return &cfg, nil
}
