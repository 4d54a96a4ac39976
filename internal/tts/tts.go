// Package tts содержит клиентов внешних провайдеров синтеза речи.
// Контракт провайдера: один вызов — один фрагмент текста в пределах
// символьного лимита, на выходе сырые байты аудио (mp3), пригодные для
// прямой конкатенации потоков.
package tts

import "context"

// Synthesizer — интерфейс провайдера синтеза речи.
type Synthesizer interface {
	// SynthesizeChunk синтезирует один фрагмент текста. Фрагмент обязан
	// укладываться в MaxChunkSize; вызов блокируется на сетевом I/O и
	// может занимать секунды. Отмены нет: начатый вызов идет до
	// завершения или ошибки в пределах таймаута HTTP-клиента.
	SynthesizeChunk(ctx context.Context, text string) ([]byte, error)

	// MaxChunkSize возвращает максимальную длину текста одного вызова
	// в символах.
	MaxChunkSize() int

	// Ready сообщает, готов ли провайдер принимать вызовы. Отсутствие
	// учетных данных — models.ErrProviderUnavailable, до каких-либо
	// сетевых обращений.
	Ready() error
}
