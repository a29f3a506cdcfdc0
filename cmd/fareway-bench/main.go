// README: Smoke and load runner for a live FareWay API; prints one line per check.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	results := NewRunner(cfg).RunAll(ctx)

	fmt.Println("\n== Summary ==")
	counts := map[Status]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", counts[StatusPass], counts[StatusFail], counts[StatusSkip])
	if counts[StatusFail] > 0 {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL        string
	DSN            string
	RedisAddr      string
	MigrationPath  string
	ApplyMigration bool
	Source         string
	Destination    string
	Timeout        time.Duration
	Concurrency    int
	Duration       time.Duration
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("FAREWAY_BENCH_BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.DSN, "dsn", envOrDefault("FAREWAY_DB_DSN", ""), "Postgres DSN (optional)")
	flag.StringVar(&cfg.RedisAddr, "redis", envOrDefault("FAREWAY_REDIS_ADDR", ""), "Redis address (optional)")
	flag.StringVar(&cfg.MigrationPath, "migration", "migrations/0001_init.sql", "Migration SQL path")
	flag.BoolVar(&cfg.ApplyMigration, "apply-migration", false, "Apply migration SQL before checks")
	flag.StringVar(&cfg.Source, "source", "1600 Pennsylvania Ave, Dallas, TX", "Quote source address")
	flag.StringVar(&cfg.Destination, "destination", "2000 Ross Ave, Dallas, TX", "Quote destination address")
	flag.DurationVar(&cfg.Timeout, "timeout", 60*time.Second, "Total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", 20, "Concurrent clients for race and load checks")
	flag.DurationVar(&cfg.Duration, "duration", 10*time.Second, "Duration of the load check")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
