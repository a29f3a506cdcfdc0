// README: Checks run by the bench: environment, API contract, booking race, quote throughput.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusSkip Status = "SKIP"
)

type Result struct {
	Status  Status
	Latency time.Duration
	Note    string
}

type Check struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
	// run scopes user ids so repeated runs do not collide on the daily limit.
	run string
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 15 * time.Second},
		run:   uuid.NewString()[:8],
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
			defer db.Close()
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
		defer r.redis.Close()
	}

	checks := r.checks()
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		res := c.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, c.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency.Round(time.Microsecond))
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}
	return results
}

func (r *Runner) user(name string) string {
	return fmt.Sprintf("bench-%s-%s", r.run, name)
}

func (r *Runner) checks() []Check {
	return []Check{
		{"Env: Postgres reachable", checkPostgres},
		{"Env: Redis reachable", checkRedis},
		{"Migration: apply", checkMigration},
		{"API: health", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/health", nil, "", http.StatusOK)
		}},
		{"API: hub", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/api/hub", nil, "", http.StatusOK)
		}},
		{"Quote: valid addresses -> 201", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, "/api/quotes", r.quoteBody(), "", http.StatusCreated)
		}},
		{"Quote: empty source -> 400", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, "/api/quotes", map[string]string{"source": "", "destination": r.cfg.Destination}, "", http.StatusBadRequest)
		}},
		{"Book: no token -> 401", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, "/api/rides", map[string]string{"quote_id": "x"}, "", http.StatusUnauthorized)
		}},
		{"Book: unknown quote -> 404", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, "/api/rides", map[string]string{"quote_id": "missing"}, r.user("missing"), http.StatusNotFound)
		}},
		{"Book: carpool out of range -> 400", checkCarpoolBounds},
		{"Book: once then duplicate -> 201, 409", checkDuplicate},
		{"Race: concurrent bookings for one user", checkBookingRace},
		{"Perf: quote throughput", checkQuoteLoad},
	}
}

func checkPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: StatusSkip, Note: "dsn not set"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	var exists bool
	if err := r.db.QueryRow(ctx, "SELECT to_regclass('public.rides') IS NOT NULL").Scan(&exists); err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	if !exists {
		return Result{Status: StatusFail, Note: "rides table missing"}
	}
	return Result{Status: StatusPass}
}

func checkRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: StatusSkip, Note: "redis not set"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	return Result{Status: StatusPass}
}

func checkMigration(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: StatusSkip, Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: StatusFail, Note: "dsn not set"}
	}
	sql, err := os.ReadFile(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	for _, stmt := range splitSQL(string(sql)) {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return Result{Status: StatusFail, Note: err.Error()}
		}
	}
	return Result{Status: StatusPass}
}

func checkCarpoolBounds(ctx context.Context, r *Runner) Result {
	quoteID, err := r.quote(ctx)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	for _, n := range []int{1, 6} {
		res := r.expect(ctx, http.MethodPost, "/api/rides", map[string]any{"quote_id": quoteID, "carpool_count": n}, r.user("carpool"), http.StatusBadRequest)
		if res.Status != StatusPass {
			res.Note = fmt.Sprintf("carpool_count=%d: %s", n, res.Note)
			return res
		}
	}
	return Result{Status: StatusPass}
}

func checkDuplicate(ctx context.Context, r *Runner) Result {
	quoteID, err := r.quote(ctx)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	uid := r.user("dup")
	body := map[string]any{"quote_id": quoteID, "carpool_count": 2}
	if res := r.expect(ctx, http.MethodPost, "/api/rides", body, uid, http.StatusCreated); res.Status != StatusPass {
		return res
	}
	return r.expect(ctx, http.MethodPost, "/api/rides", body, uid, http.StatusConflict)
}

// checkBookingRace fires Concurrency bookings for the same user at once.
// Exactly one may succeed; the rest must be 409.
func checkBookingRace(ctx context.Context, r *Runner) Result {
	quoteID, err := r.quote(ctx)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	uid := r.user("race")
	body, _ := json.Marshal(map[string]string{"quote_id": quoteID})

	var created, conflict, other int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			status, err := r.do(ctx, http.MethodPost, "/api/rides", body, uid)
			switch {
			case err != nil:
				atomic.AddInt32(&other, 1)
			case status == http.StatusCreated:
				atomic.AddInt32(&created, 1)
			case status == http.StatusConflict:
				atomic.AddInt32(&conflict, 1)
			default:
				atomic.AddInt32(&other, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	note := fmt.Sprintf("created=%d conflict=%d other=%d", created, conflict, other)
	if created != 1 || other != 0 {
		return Result{Status: StatusFail, Note: note}
	}
	return Result{Status: StatusPass, Note: note}
}

func checkQuoteLoad(ctx context.Context, r *Runner) Result {
	body, _ := json.Marshal(r.quoteBody())
	end := time.Now().Add(r.cfg.Duration)
	var ok, failed int64
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, err := r.do(ctx, http.MethodPost, "/api/quotes", body, "")
				if err != nil || status != http.StatusCreated {
					atomic.AddInt64(&failed, 1)
					continue
				}
				atomic.AddInt64(&ok, 1)
			}
		}()
	}
	wg.Wait()

	if ok == 0 {
		return Result{Status: StatusFail, Note: "no quotes completed"}
	}
	rps := float64(ok) / r.cfg.Duration.Seconds()
	return Result{Status: StatusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, failed)}
}

func (r *Runner) quoteBody() map[string]string {
	return map[string]string{"source": r.cfg.Source, "destination": r.cfg.Destination}
}

func (r *Runner) quote(ctx context.Context) (string, error) {
	b, _ := json.Marshal(r.quoteBody())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/api/quotes", strings.NewReader(string(b)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("quote status=%d", resp.StatusCode)
	}
	var q struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return "", fmt.Errorf("decode quote: %w", err)
	}
	return q.ID, nil
}

func (r *Runner) expect(ctx context.Context, method, path string, body any, uid string, want int) Result {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	start := time.Now()
	status, err := r.do(ctx, method, path, payload, uid)
	latency := time.Since(start)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	note := fmt.Sprintf("status=%d", status)
	if status != want {
		return Result{Status: StatusFail, Latency: latency, Note: fmt.Sprintf("%s want=%d", note, want)}
	}
	return Result{Status: StatusPass, Latency: latency, Note: note}
}

func (r *Runner) do(ctx context.Context, method, path string, body []byte, uid string) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(string(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+uid)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if l := strings.TrimSpace(line); l == "" || strings.HasPrefix(l, "--") {
			continue
		}
		kept = append(kept, line)
	}
	parts := strings.Split(strings.Join(kept, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
