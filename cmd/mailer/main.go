package main

import (
	"context"
	"github.com/ariefcatur/go-piano-orders/internal/config"
	kafkax "github.com/ariefcatur/go-piano-orders/internal/kafka"
	"github.com/ariefcatur/go-piano-orders/internal/logx"
	"github.com/ariefcatur/go-piano-orders/internal/notify"
	"github.com/ariefcatur/go-piano-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, syncLog := logx.Init(cfg.ServiceName+"-mailer", cfg.LogLevel, cfg.LogDev)
	defer syncLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis (dedup event_id)
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	w := &notify.Worker{
		Mailer:      notify.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom),
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-mailer",
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.MailerGroup, notify.TopicEmailRequested, cfg.MailerWorkers)
	logger.Info("mailer consumer started",
		zap.String("group", cfg.MailerGroup),
		zap.String("topic", notify.TopicEmailRequested),
		zap.Int("workers", cfg.MailerWorkers))

	// Start blocks until ctx is cancelled or the reader fails
	if err := cons.Start(ctx, w.HandleEmailRequested); err != nil {
		logger.Error("consumer exit", zap.Error(err))
	}
	logger.Info("mailer stopped")
}
