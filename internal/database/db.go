package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// InitDB инициализирует пул соединений и применяет миграции.
func InitDB(ctx context.Context, connString string, logger *zap.Logger) (*pgxpool.Pool, error) {
	db, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Successfully connected to database")

	if err := ApplyMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Database migrations applied")

	return db, nil
}

// CloseDB закрывает соединение с базой данных
func CloseDB(db *pgxpool.Pool, logger *zap.Logger) {
	if db != nil {
		db.Close()
		logger.Info("Database connection closed")
	}
}
