package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"wisefido-casebook/owl-common/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// casebook-smoke 对运行中的服务跑一遍端到端场景，任何一步不符合预期即非零退出
func main() {
	baseURL := flag.String("base-url", envOr("CASEBOOK_BASE_URL", "http://localhost:8080"), "casebook API base URL")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	flag.Parse()

	log, err := logger.NewLogger("info", "console", "casebook-smoke")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	run := newScenario(*baseURL, *timeout, uuid.NewString()[:8], log)
	if err := run.Execute(); err != nil {
		log.Error("Smoke test failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("Smoke test passed", zap.Int("steps", run.steps))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
