// Package assets отвечает за долговременное хранение синтезированных
// аудио-ассетов и выдачу публичных URL на них.
package assets

import "context"

// Store — интерфейс хранилища бинарных ассетов.
type Store interface {
	// Store загружает данные и возвращает публичный URL. pathHint — желаемый
	// путь/идентификатор ассета без расширения (например
	// "tts/eventyret/audio/node_start_a1b2c3d4"); хранилище вправе
	// нормализовать его под свои правила именования.
	Store(ctx context.Context, data []byte, pathHint string) (string, error)
}
