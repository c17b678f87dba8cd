package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisefido-casebook/internal/audit"
	"wisefido-casebook/internal/auth"
	"wisefido-casebook/internal/config"
	httpapi "wisefido-casebook/internal/http"
	"wisefido-casebook/internal/repository"
	"wisefido-casebook/internal/service"
	"wisefido-casebook/internal/store"
	"wisefido-casebook/owl-common/database"
	"wisefido-casebook/owl-common/logger"
	rediscommon "wisefido-casebook/owl-common/redis"

	"go.uber.org/zap"
)

func main() {
	// 1. 配置
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid config: %v", err))
	}

	// 2. 日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-casebook")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()
	if cfg.GeneratedSecret() {
		log.Warn("JWT_SECRET not set, using a random development secret; credentials will not survive a restart")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 存储：DB 不可用时回退到内存
	var (
		db    *sql.DB
		users repository.UsersRepository
		cases repository.CaseHistoriesRepository
	)
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
		} else {
			log.Warn("DB enabled but connection failed, falling back to in-memory store", zap.Error(err))
		}
	}
	if db != nil {
		if err := repository.EnsureSchema(ctx, db, log); err != nil {
			log.Fatal("Failed to ensure schema", zap.Error(err))
		}
		users = repository.NewPostgresUsersRepository(db, log)
		cases = repository.NewPostgresCaseHistoriesRepository(db, log)
		log.Info("DB enabled for wisefido-casebook", zap.String("database", cfg.Database.URL(true)))
	} else {
		mem := repository.NewMemoryStore()
		users, cases = mem, mem
		log.Warn("Using in-memory record store; data is lost on restart")
	}

	// 4. Redis：吊销列表 + 事件流；不可用时回退
	var (
		redisClient *rediscommon.Client
		kv          store.KV
		events      audit.Publisher
	)
	if cfg.RedisEnabled {
		c := rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, c); err == nil {
			redisClient = c
		} else {
			_ = c.Close()
			log.Warn("Redis enabled but unreachable, falling back to in-memory revocation list", zap.Error(err))
		}
	}
	if redisClient != nil {
		kv = store.NewRedisKV(redisClient)
		events = audit.NewStreamPublisher(redisClient, cfg.Audit.Stream, cfg.Audit.MaxLen, log)
	} else {
		kv = store.NewMemoryKV()
		events = audit.NopPublisher{}
	}

	// 5. 凭证
	hasher, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		log.Fatal("Invalid bcrypt cost", zap.Error(err))
	}
	sessions := auth.NewSessions(
		auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		auth.NewRevocationList(kv),
	)

	// 6. 服务 + 路由
	authService := service.NewAuthService(users, hasher, sessions, log)
	caseService := service.NewCaseHistoryService(cases, events, log)
	logService := service.NewSessionLogService(cases, events, log)

	authn := httpapi.NewAuthenticator(sessions, cfg.Auth.CookieName, log)
	cookie := httpapi.CookieConfig{Name: cfg.Auth.CookieName, Secure: cfg.SecureCookies()}

	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes()
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(authService, authn, cookie, log))
	router.RegisterCaseHistoryRoutes(httpapi.NewCaseHistoryHandler(caseService, authn, log))
	router.RegisterSessionLogRoutes(httpapi.NewSessionLogHandler(logService, authn, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server error", zap.Error(err))
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}
	if redisClient != nil {
		_ = rediscommon.Close(redisClient)
	}
	if db != nil {
		_ = database.Close(db)
	}
	log.Info("wisefido-casebook stopped")
}
