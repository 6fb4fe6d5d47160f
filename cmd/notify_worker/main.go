package main

import (
	"context"
	"encoding/json"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-post-feed/config"
	"github.com/oksasatya/go-post-feed/internal/application"
	"github.com/oksasatya/go-post-feed/internal/domain/entity"
	pginfra "github.com/oksasatya/go-post-feed/internal/infrastructure/postgres"
	"github.com/oksasatya/go-post-feed/pkg/helpers"
	"github.com/oksasatya/go-post-feed/pkg/mailer"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-notify", cfg.Env)

	if !cfg.MailSendEnabled {
		logger.Info("MAIL_SEND_ENABLED=false; notify worker disabled (no real emails will be sent)")
		return
	}
	if cfg.RabbitMQURL == "" || cfg.RabbitMQEventsQueue == "" {
		log.Fatal("RabbitMQ not configured")
	}
	if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.MailgunSender == "" {
		log.Fatal("Mailgun not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, 1, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	conn, ch, err := helpers.DialQueue(cfg.RabbitMQURL, cfg.RabbitMQEventsQueue)
	if err != nil {
		log.Fatalf("amqp: %v", err)
	}
	defer func() { _ = ch.Close(); _ = conn.Close() }()

	msgs, err := helpers.Consume(ch, cfg.RabbitMQEventsQueue, 16)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	svc := application.NewNotifyService(
		pginfra.NewUserRepository(pool),
		pginfra.NewPostRepository(pool),
		mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender),
		logger,
		cfg.CompanyName,
		cfg.PostURLBase,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range msgs {
			handle(ctx, svc, logger, msg)
		}
	}()

	logger.Infof("notify worker listening on queue=%s", cfg.RabbitMQEventsQueue)
	select {
	case <-ctx.Done():
	case <-done:
		logger.Warn("delivery channel closed")
	}
	logger.Info("shutting down...")
	_ = ch.Cancel("", false)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

// handle acks processed events, drops undecodable ones and requeues a failed
// event once before giving up on it.
func handle(ctx context.Context, svc *application.NotifyService, logger *logrus.Logger, msg amqp.Delivery) {
	var evt entity.PostEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		logger.WithError(err).Warn("bad message")
		_ = msg.Nack(false, false)
		return
	}

	c, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := svc.HandleEvent(c, evt); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"post_id":     evt.PostID,
			"type":        evt.Type,
			"redelivered": msg.Redelivered,
		}).Error("notify failed")
		_ = msg.Nack(false, !msg.Redelivered)
		return
	}
	_ = msg.Ack(false)
}
