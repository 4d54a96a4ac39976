package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamebook-server/internal/assets"
	"gamebook-server/internal/config"
	"gamebook-server/internal/database"
	"gamebook-server/internal/engine"
	"gamebook-server/internal/logger"
	"gamebook-server/internal/messaging"
	"gamebook-server/internal/narration"
	"gamebook-server/internal/service"
	"gamebook-server/internal/tts"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// narrator — фоновый воркер прегенерации озвучки: читает задачи из очереди
// и прогревает кеш до того, как читатель дойдет до узла.
func main() {
	_ = godotenv.Load()
	log.Println("Запуск Narrator Worker...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level: cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	dbPool, err := setupDatabase(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось подключиться к БД", zap.Error(err))
	}
	defer dbPool.Close()
	zapLogger.Info("Успешное подключение к PostgreSQL")

	rabbitConn, err := connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось подключиться к RabbitMQ", zap.Error(err))
	}
	defer rabbitConn.Close()
	zapLogger.Info("Успешное подключение к RabbitMQ")

	storyRepo := database.NewPgStoryRepository(dbPool, zapLogger)
	cacheRepo := database.NewPgNarrationCacheRepository(dbPool, zapLogger)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		cacheRepo = database.NewRedisNarrationCache(redisClient, cacheRepo, cfg.NarrationTTL, zapLogger)
		zapLogger.Info("Redis narration cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	synth := buildSynthesizer(cfg)
	if err := synth.Ready(); err != nil {
		// Воркер без провайдера бесполезен, в отличие от сервера.
		zapLogger.Fatal("TTS-провайдер не готов", zap.Error(err))
	}
	assetStore := buildAssetStore(cfg, zapLogger)
	pipeline := narration.NewPipeline(synth, assetStore, zapLogger)

	// Воркер задач не публикует: publisher == nil.
	gameLoop := service.NewGameLoopService(storyRepo, cacheRepo, pipeline, nil, engine.New(nil), zapLogger)
	taskHandler, ok := gameLoop.(messaging.NarrationTaskHandler)
	if !ok {
		zapLogger.Fatal("GameLoopService не реализует NarrationTaskHandler")
	}

	consumer := messaging.NewNarrationTaskConsumer(rabbitConn, cfg.NarrationTaskQueue, taskHandler, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- consumer.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		zapLogger.Info("Получен сигнал завершения, останавливаем воркер...")
		cancel()
		select {
		case <-done:
		case <-time.After(30 * time.Second):
			zapLogger.Warn("Воркер не завершился за отведенное время")
		}
	case err := <-done:
		if err != nil && err != context.Canceled {
			zapLogger.Fatal("Консьюмер завершился с ошибкой", zap.Error(err))
		}
	}

	log.Println("Narrator Worker успешно остановлен")
}

// setupDatabase инициализирует пул соединений (миграции применяет сервер).
func setupDatabase(cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	dsn := cfg.GetDSN()
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	poolConfig.MaxConnIdleTime = cfg.DBIdleTimeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать пул соединений: %w", err)
	}
	if err = dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("не удалось подключиться к БД (ping failed): %w", err)
	}
	logger.Debug("Пул соединений создан")
	return dbPool, nil
}

// connectRabbitMQ пытается подключиться к RabbitMQ с несколькими попытками
func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 5
	retryDelay := 5 * time.Second
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Не удалось подключиться к RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, err
}

func buildSynthesizer(cfg *config.Config) tts.Synthesizer {
	switch cfg.TTSProvider {
	case "openai":
		return tts.NewOpenAIClient(tts.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAITTSModel,
			Voice:  cfg.OpenAITTSVoice,
		})
	default:
		return tts.NewElevenLabsClient(tts.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			VoiceID: cfg.ElevenLabsVoiceID,
			ModelID: cfg.ElevenLabsModelID,
		})
	}
}

func buildAssetStore(cfg *config.Config, logger *zap.Logger) assets.Store {
	if cfg.AssetStore == "local" {
		return assets.NewLocalStore(cfg.LocalAssetDir, cfg.LocalAssetBaseURL)
	}
	return assets.NewCloudinaryStore(assets.CloudinaryConfig{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
	}, logger)
}
