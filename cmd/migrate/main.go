package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/576576/hadesstar-bot/pkg/database"
	"github.com/576576/hadesstar-bot/pkg/logger"
	"github.com/joho/godotenv"
)

func main() {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not set in environment")
	}

	logger.Init(os.Getenv("LOG_LEVEL"), os.Getenv("ENV"))
	defer logger.Sync()

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal("Failed to apply schema:", err)
	}
	fmt.Println("Schema applied")

	// 적용 결과 확인
	for _, table := range []string{"players", "queue_entries", "runs", "player_ranks"} {
		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			log.Fatalf("Failed to verify table %s: %v", table, err)
		}
		fmt.Printf("  %-14s %d rows\n", table, count)
	}

	var next int64
	var called bool
	if err := db.QueryRowContext(ctx, "SELECT last_value, is_called FROM run_id_seq").Scan(&next, &called); err != nil {
		log.Fatal("Failed to read run id sequence:", err)
	}
	if called {
		next++
	}
	fmt.Printf("  next run id    %d\n", next)
}
