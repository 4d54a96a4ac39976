package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// NarrationTaskHandler обрабатывает одну задачу прегенерации озвучки.
// Реализуется сервисным слоем.
type NarrationTaskHandler interface {
	HandleNarrationTask(ctx context.Context, payload NarrationTaskPayload) error
}

// NarrationTaskConsumer читает задачи озвучки из RabbitMQ и передает их
// обработчику. Один воркер — одна неподтвержденная задача (Qos 1): синтез
// долгий, копить prefetch смысла нет.
type NarrationTaskConsumer struct {
	conn      *amqp.Connection
	queueName string
	handler   NarrationTaskHandler
	logger    *zap.Logger
}

func NewNarrationTaskConsumer(conn *amqp.Connection, queueName string, handler NarrationTaskHandler, logger *zap.Logger) *NarrationTaskConsumer {
	return &NarrationTaskConsumer{
		conn:      conn,
		queueName: queueName,
		handler:   handler,
		logger:    logger.Named("NarrationConsumer"),
	}
}

// Run блокируется до отмены контекста или закрытия канала доставки.
func (c *NarrationTaskConsumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("narration consumer: не удалось открыть канал: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(c.queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("narration consumer: не удалось объявить очередь '%s': %w", c.queueName, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("narration consumer: не удалось установить QoS: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("narration consumer: не удалось начать потребление: %w", err)
	}

	c.logger.Info("Narration task consumer started", zap.String("queue", c.queueName))
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Narration task consumer stopping")
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("narration consumer: канал доставки закрыт")
			}
			c.process(ctx, delivery)
		}
	}
}

func (c *NarrationTaskConsumer) process(ctx context.Context, delivery amqp.Delivery) {
	var payload NarrationTaskPayload
	if err := json.Unmarshal(delivery.Body, &payload); err != nil {
		c.logger.Error("Не удалось распарсить NarrationTaskPayload, сообщение отбрасывается", zap.Error(err))
		// Битое сообщение: requeue бессмысленен, оно не станет валидным.
		_ = delivery.Nack(false, false)
		return
	}

	logFields := []zap.Field{
		zap.String("taskID", payload.TaskID.String()),
		zap.String("slug", payload.StorySlug),
		zap.String("nodeKey", payload.NodeKey),
	}
	c.logger.Info("Processing narration task", logFields...)

	if err := c.handler.HandleNarrationTask(ctx, payload); err != nil {
		c.logger.Error("Narration task failed", append(logFields, zap.Error(err))...)
		// Один повтор через requeue; повторно упавшая задача отбрасывается,
		// след остается в логах и метриках синтеза.
		_ = delivery.Nack(false, !delivery.Redelivered)
		return
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.Error("Failed to ack narration task", append(logFields, zap.Error(err))...)
		return
	}
	c.logger.Info("Narration task completed", logFields...)
}
