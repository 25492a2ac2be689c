//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"volume/internal/domain"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) config(name string) Config {
	return Config{
		URL:               s.amqpURL,
		Exchange:          "volume-" + name,
		ArticleKey:        "articles",
		ArticleQueue:      name + "-articles",
		NotificationKey:   "notifications",
		NotificationQueue: name + "-push",
	}
}

func (s *RabbitMQIntegrationSuite) TestPublisher_Connection() {
	pub, err := NewRabbitMQ(s.config("connect"), s.logger)
	s.NoError(err)
	s.NotNil(pub)

	s.NoError(pub.Close())
}

func (s *RabbitMQIntegrationSuite) TestPublishArticle() {
	cfg := s.config("article")
	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	article := &domain.Article{
		ID:              "a1",
		Title:           "Slope Day",
		ArticleURL:      "https://cornellsun.com/slope-day",
		PublicationSlug: "cornell-daily-sun",
		Date:            time.Now().Truncate(time.Millisecond),
		Tags:            []string{"Arts", "News"},
	}
	s.Require().NoError(pub.PublishArticle(s.ctx, article))

	msg := s.consumeMessage(cfg.ArticleQueue)
	s.Require().NotNil(msg)
	s.Equal("application/json", msg.ContentType)
	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)

	var received ArticleMessage
	s.Require().NoError(json.Unmarshal(msg.Body, &received))
	s.Equal("create", received.Action)
	s.Equal("a1", received.Article.ID)
	s.Equal([]string{"Arts", "News"}, received.Article.Tags)
	s.False(received.Timestamp.IsZero())
}

func (s *RabbitMQIntegrationSuite) TestSendNotification() {
	cfg := s.config("push")
	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	n := domain.Notification{
		DeviceToken: "tok-1",
		DeviceType:  domain.DeviceAndroid,
		Title:       "The Cornell Daily Sun",
		Body:        "Slope Day",
		ArticleID:   "a1",
	}
	s.Require().NoError(pub.Send(s.ctx, n))

	msg := s.consumeMessage(cfg.NotificationQueue)
	s.Require().NotNil(msg)

	var received NotificationMessage
	s.Require().NoError(json.Unmarshal(msg.Body, &received))
	s.Equal(n, received.Notification)
}

func (s *RabbitMQIntegrationSuite) consumeMessage(queue string) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(queue, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
		return nil
	}
}
