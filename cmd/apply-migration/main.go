package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"wisefido-casebook/internal/config"
	"wisefido-casebook/internal/repository"
	"wisefido-casebook/owl-common/database"
	"wisefido-casebook/owl-common/logger"

	"go.uber.org/zap"
)

// Usage:
//
//	apply-migration                  # 内置 schema（幂等）
//	apply-migration <file.sql>       # 执行指定 SQL 文件
func main() {
	log, err := logger.NewLogger(os.Getenv("LOG_LEVEL"), "console", "apply-migration")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	cfg := config.Load()
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Cannot connect to database", zap.Error(err))
	}
	defer database.Close(db)
	log.Info("Connected to database", zap.String("database", cfg.Database.URL(true)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if len(os.Args) < 2 {
		if err := repository.EnsureSchema(ctx, db, log); err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
		log.Info("Migration completed successfully")
		return
	}

	migrationFile := os.Args[1]
	sqlContent, err := os.ReadFile(migrationFile)
	if err != nil {
		log.Fatal("Failed to read migration file", zap.String("file", migrationFile), zap.Error(err))
	}

	statements := splitStatements(string(sqlContent))
	for i, stmt := range statements {
		log.Info("Executing statement", zap.Int("n", i+1), zap.Int("total", len(statements)))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			log.Fatal("Failed to execute statement",
				zap.Int("n", i+1),
				zap.String("statement", stmt[:min(100, len(stmt))]),
				zap.Error(err),
			)
		}
	}
	log.Info("Migration completed successfully", zap.String("file", migrationFile))
}

// splitStatements 按分号切分；忽略空语句与纯注释行
func splitStatements(content string) []string {
	var out []string
	for _, raw := range strings.Split(content, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
