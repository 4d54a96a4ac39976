package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// NarrationTaskPublisher defines the interface for publishing narration
// pre-generation tasks.
type NarrationTaskPublisher interface {
	PublishNarrationTask(ctx context.Context, payload NarrationTaskPayload) error
}

type rabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// Compile-time check
var _ NarrationTaskPublisher = (*rabbitMQPublisher)(nil)

// NewRabbitMQNarrationTaskPublisher открывает канал и объявляет очередь задач.
// Очередь durable и объявляется с теми же параметрами, что и у консьюмера,
// чтобы порядок запуска сервисов не имел значения.
func NewRabbitMQNarrationTaskPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (NarrationTaskPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("narration task publisher: не удалось открыть канал: %w", err)
	}
	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("narration task publisher: не удалось объявить очередь '%s': %w", queueName, err)
	}
	logger.Info("Narration task queue declared", zap.String("queue", queueName))
	return &rabbitMQPublisher{channel: ch, queueName: queueName, logger: logger.Named("NarrationPublisher")}, nil
}

// PublishNarrationTask publishes one pre-generation task.
func (p *rabbitMQPublisher) PublishNarrationTask(ctx context.Context, payload NarrationTaskPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("Ошибка сериализации NarrationTaskPayload",
			zap.String("taskID", payload.TaskID.String()), zap.Error(err))
		return fmt.Errorf("ошибка сериализации задачи озвучки %s: %w", payload.TaskID, err)
	}
	if err := p.publishMessage(ctx, body); err != nil {
		return fmt.Errorf("ошибка публикации задачи озвучки %s: %w", payload.TaskID, err)
	}
	p.logger.Debug("Narration task published",
		zap.String("taskID", payload.TaskID.String()),
		zap.String("slug", payload.StorySlug),
		zap.String("nodeKey", payload.NodeKey))
	return nil
}

func (p *rabbitMQPublisher) publishMessage(ctx context.Context, body []byte) error {
	if p.channel == nil {
		return errors.New("канал RabbitMQ не инициализирован")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	// Попытка публикации с retry до 3 раз
	for attempt := 1; attempt <= 3; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // exchange (используем default)
			p.queueName, // routing key (имя очереди)
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        "gamebook-server",
			},
		)
		if err == nil {
			return nil
		}
		p.logger.Warn("Ошибка публикации, повтор",
			zap.Int("attempt", attempt), zap.String("queue", p.queueName), zap.Error(err))
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return fmt.Errorf("ошибка публикации в очередь %s после retries: %w", p.queueName, err)
}
