package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"volume/internal/domain"
)

// RabbitMQ publishes new-article events and push notifications to a direct
// exchange. A separate push worker consumes the notification queue and
// talks to APNs/FCM.
type RabbitMQ struct {
	conn            *amqp.Connection
	channel         *amqp.Channel
	exchange        string
	articleKey      string
	notificationKey string
	logger          *slog.Logger
}

type Config struct {
	URL               string
	Exchange          string
	ArticleKey        string
	ArticleQueue      string
	NotificationKey   string
	NotificationQueue string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	bindings := map[string]string{
		cfg.ArticleQueue:      cfg.ArticleKey,
		cfg.NotificationQueue: cfg.NotificationKey,
	}
	for queue, key := range bindings {
		if err := bindQueue(ch, cfg.Exchange, queue, key); err != nil {
			ch.Close()
			conn.Close()
			return nil, err
		}
	}

	logger = logger.With("component", "rabbitmq")
	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"article_queue", cfg.ArticleQueue,
		"notification_queue", cfg.NotificationQueue,
	)

	return &RabbitMQ{
		conn:            conn,
		channel:         ch,
		exchange:        cfg.Exchange,
		articleKey:      cfg.ArticleKey,
		notificationKey: cfg.NotificationKey,
		logger:          logger,
	}, nil
}

func bindQueue(ch *amqp.Channel, exchange, queue, key string) error {
	q, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}

	if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", queue, err)
	}
	return nil
}

type ArticleMessage struct {
	Action    string         `json:"action"`
	Article   domain.Article `json:"article"`
	Timestamp time.Time      `json:"timestamp"`
}

type NotificationMessage struct {
	Notification domain.Notification `json:"notification"`
	Timestamp    time.Time           `json:"timestamp"`
}

func newArticleMessage(article *domain.Article, now time.Time) ArticleMessage {
	return ArticleMessage{
		Action:    "create",
		Article:   *article,
		Timestamp: now.UTC(),
	}
}

// PublishArticle announces a newly stored article.
func (r *RabbitMQ) PublishArticle(ctx context.Context, article *domain.Article) error {
	if err := r.publish(ctx, r.articleKey, newArticleMessage(article, time.Now())); err != nil {
		return err
	}
	r.logger.Debug("published article", "article_id", article.ID)
	return nil
}

// Send queues a push notification for delivery to one device.
func (r *RabbitMQ) Send(ctx context.Context, n domain.Notification) error {
	msg := NotificationMessage{Notification: n, Timestamp: time.Now().UTC()}
	if err := r.publish(ctx, r.notificationKey, msg); err != nil {
		return err
	}
	r.logger.Debug("queued notification", "device_type", n.DeviceType, "article_id", n.ArticleID)
	return nil
}

func (r *RabbitMQ) publish(ctx context.Context, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
