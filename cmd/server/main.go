package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamebook-server/internal/assets"
	"gamebook-server/internal/config"
	"gamebook-server/internal/database"
	"gamebook-server/internal/engine"
	"gamebook-server/internal/handler"
	"gamebook-server/internal/logger"
	"gamebook-server/internal/messaging"
	"gamebook-server/internal/middleware"
	"gamebook-server/internal/narration"
	"gamebook-server/internal/service"
	"gamebook-server/internal/tts"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	log.Println("Запуск Gamebook Server...")

	// <<< Загружаем конфиг ДО инициализации логгера
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

	// Подключение к PostgreSQL (с миграциями)
	dbPool, err := setupDatabase(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось подключиться к БД", zap.Error(err))
	}
	defer dbPool.Close()
	zapLogger.Info("Успешное подключение к PostgreSQL")

	// Подключение к RabbitMQ
	rabbitConn, err := connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось подключиться к RabbitMQ", zap.Error(err))
	}
	defer rabbitConn.Close()
	zapLogger.Info("Успешное подключение к RabbitMQ")

	// Инициализация зависимостей
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
	assetStore := buildAssetStore(cfg, zapLogger)
	pipeline := narration.NewPipeline(synth, assetStore, zapLogger)

	taskPublisher, err := messaging.NewRabbitMQNarrationTaskPublisher(rabbitConn, cfg.NarrationTaskQueue, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось создать NarrationTaskPublisher", zap.Error(err))
	}

	gameLoop := service.NewGameLoopService(storyRepo, cacheRepo, pipeline, taskPublisher, engine.New(nil), zapLogger)
	gameLoopHandler := handler.NewGameLoopHandler(gameLoop, zapLogger)

	// Настройка Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.EchoZapLogger(zapLogger))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	gameLoopHandler.RegisterRoutes(e)

	// Локальные ассеты раздаем сами; с Cloudinary клиент ходит напрямую.
	if cfg.AssetStore == "local" {
		e.Static("/assets", cfg.LocalAssetDir)
	}

	zapLogger.Info("Gamebook сервер слушает", zap.String("port", cfg.Port))

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("Ошибка запуска HTTP сервера: ", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Получен сигнал завершения, начинаем graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal("Ошибка при graceful shutdown Echo: ", err)
	}

	log.Println("Gamebook Server успешно остановлен")
}

// setupDatabase инициализирует пул соединений и применяет миграции.
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
	if err := database.ApplyMigrations(dbPool); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("не удалось применить миграции: %w", err)
	}
	logger.Info("Миграции применены")
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
