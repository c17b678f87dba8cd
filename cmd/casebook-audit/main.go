package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wisefido-casebook/internal/audit"
	"wisefido-casebook/internal/config"
	"wisefido-casebook/owl-common/logger"
	rediscommon "wisefido-casebook/owl-common/redis"

	"go.uber.org/zap"
)

// casebook-audit 消费病例事件流并写入结构化日志
func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "casebook-audit")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := rediscommon.NewRedisClient(&cfg.Redis)
	defer rediscommon.Close(client)
	if err := rediscommon.Ping(ctx, client); err != nil {
		log.Fatal("Redis unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	consumer := audit.NewConsumer(client, audit.ConsumerConfig{
		Stream:   cfg.Audit.Stream,
		Group:    cfg.Audit.Group,
		Consumer: cfg.Audit.Consumer,
	}, audit.LogHandler(log), log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- consumer.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Fatal("Audit consumer error", zap.Error(err))
		}
	}
	log.Info("casebook-audit stopped")
}
