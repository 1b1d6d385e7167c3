package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skpttrack/tracker/internal/analytics"
	"github.com/skpttrack/tracker/internal/auth"
	"github.com/skpttrack/tracker/internal/cache"
	"github.com/skpttrack/tracker/internal/db"
	"github.com/skpttrack/tracker/internal/delivery"
	"github.com/skpttrack/tracker/internal/handlers"
	"github.com/skpttrack/tracker/internal/ingest"
	"github.com/skpttrack/tracker/internal/logging"
	"github.com/skpttrack/tracker/internal/metrics"
	"github.com/skpttrack/tracker/internal/models"
	"github.com/skpttrack/tracker/internal/registry"
	"github.com/skpttrack/tracker/internal/reports"
	"github.com/skpttrack/tracker/internal/utmify"
)

const linkCount = 200

// stats collects one worker's results; workers merge into a shared copy.
type stats struct {
	latencies []time.Duration
	failures  int64
}

func (s *stats) merge(o stats) {
	s.latencies = append(s.latencies, o.latencies...)
	s.failures += o.failures
}

func (s *stats) percentile(p int) time.Duration {
	if len(s.latencies) == 0 {
		return 0
	}
	idx := len(s.latencies) * p / 100
	if idx >= len(s.latencies) {
		idx = len(s.latencies) - 1
	}
	return s.latencies[idx]
}

func main() {
	concurrency := flag.Int("c", 50, "number of concurrent workers")
	duration := flag.Duration("d", 10*time.Second, "benchmark duration")
	saleRatio := flag.Float64("sales", 0.05, "fraction of requests sent as sale events")
	utmifyDelay := flag.Duration("utmify-delay", 0, "artificial latency of the utmify stand-in")
	drain := flag.Duration("drain", 5*time.Second, "how long to wait for delivery after the run")
	flag.Parse()

	logging.Setup("warn", "text")
	log := logging.For("bench")

	tmpDir, err := os.MkdirTemp("", "tracker-bench-*")
	if err != nil {
		log.Fatalf("create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	database, err := db.Open(filepath.Join(tmpDir, "tracker.db"))
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer database.Close()

	var forwarded atomic.Int64
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		if *utmifyDelay > 0 {
			time.Sleep(*utmifyDelay)
		}
		forwarded.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer sink.Close()

	m := metrics.New()
	dispatcher := delivery.NewDispatcher(database, utmify.NewClient(sink.URL, 10*time.Second, true), m, delivery.Options{
		Workers:       4,
		QueueSize:     100000,
		MaxAttempts:   5,
		Backoff:       time.Second,
		SweepInterval: time.Second,
	})

	linkCache, err := cache.New(linkCount*2, cache.DefaultTTL)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	verifier, err := auth.NewVerifier(auth.VerifierConfig{Secret: "bench"})
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	var baseURL string
	reg := registry.New(database, linkCache, func(tok string) string { return baseURL + "/track?token=" + tok })
	srv := httptest.NewServer(handlers.NewRouter(handlers.Routes{
		DB:       database,
		Verifier: verifier,
		Links:    &handlers.LinkHandler{Registry: reg},
		Track: &handlers.TrackHandler{
			Pipeline: ingest.New(database, linkCache, analytics.NewEnricher(nil, nil), nil, dispatcher, m),
		},
		Events:  &handlers.EventHandler{DB: database},
		Reports: &handlers.ReportHandler{Aggregator: reports.NewAggregator(database, m)},
		Health:  &handlers.HealthHandler{DB: database, Version: "bench", Environment: "bench"},
		Metrics: m.Handler(),
	}))
	defer srv.Close()
	baseURL = srv.URL

	tokens, err := seed(context.Background(), database, reg)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	fmt.Println("Tracker Ingest Benchmark")
	fmt.Println("========================")
	fmt.Printf("%d links, %d workers, %s\n\n", len(tokens), *concurrency, *duration)

	client := &http.Client{Transport: &http.Transport{MaxIdleConnsPerHost: *concurrency}}
	var (
		mu    sync.Mutex
		total stats
		wg    sync.WaitGroup
	)
	deadline := time.Now().Add(*duration)
	for i := range *concurrency {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			var local stats
			for time.Now().Before(deadline) {
				tok := tokens[rng.Intn(len(tokens))]
				url := baseURL + "/track?event=click&token=" + tok
				if rng.Float64() < *saleRatio {
					url = fmt.Sprintf("%s/track?event=sale&value=%d.90&token=%s", baseURL, rng.Intn(500)+1, tok)
				}

				start := time.Now()
				resp, err := client.Get(url)
				elapsed := time.Since(start)
				if err != nil {
					local.failures++
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					local.failures++
					continue
				}
				local.latencies = append(local.latencies, elapsed)
			}
			mu.Lock()
			total.merge(local)
			mu.Unlock()
		}(int64(i) + 42)
	}
	wg.Wait()

	accepted := int64(len(total.latencies))
	waitDelivered(database, accepted, *drain)
	dispatcher.Shutdown()

	slices.Sort(total.latencies)
	fmt.Println("Results")
	fmt.Println("-------")
	fmt.Printf("Requests:    %d\n", accepted+total.failures)
	fmt.Printf("Errors:      %d\n", total.failures)
	fmt.Printf("RPS:         %.1f\n", float64(accepted+total.failures)/duration.Seconds())
	fmt.Printf("Latency p50: %s\n", fmtDur(total.percentile(50)))
	fmt.Printf("Latency p95: %s\n", fmtDur(total.percentile(95)))
	fmt.Printf("Latency p99: %s\n", fmtDur(total.percentile(99)))
	fmt.Printf("Forwarded:   %d\n", forwarded.Load())

	counts, err := statusCounts(database)
	if err != nil {
		log.WithError(err).Warn("count delivery statuses")
		return
	}
	for _, s := range []models.DeliveryStatus{models.StatusPending, models.StatusSuccess, models.StatusFailed} {
		fmt.Printf("  %-10s %d\n", s, counts[s])
	}
}

func seed(ctx context.Context, database *sql.DB, reg *registry.Registry) ([]string, error) {
	user := &models.User{Email: "bench@example.com", Name: "Bench", BotID: "bench-bot", BotToken: "bench"}
	if err := models.CreateUser(ctx, database, user); err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}
	tokens := make([]string, linkCount)
	for i := range linkCount {
		link, err := reg.Create(ctx, user.ID, registry.CreateInput{
			CampaignID: fmt.Sprintf("bench-%03d", i+1),
			BotID:      user.BotID,
		})
		if err != nil {
			return nil, fmt.Errorf("link %d: %w", i+1, err)
		}
		tokens[i] = link.Token
	}
	return tokens, nil
}

// waitDelivered polls until every accepted event left pending or the
// timeout passes.
func waitDelivered(database *sql.DB, accepted int64, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		counts, err := statusCounts(database)
		if err != nil || counts[models.StatusPending] == 0 && counts[models.StatusSuccess]+counts[models.StatusFailed] >= accepted {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	logrus.WithField("timeout", timeout).Warn("delivery still draining")
}

func statusCounts(database *sql.DB) (map[models.DeliveryStatus]int64, error) {
	rows, err := database.Query(`SELECT utmify_status, COUNT(*) FROM tracking_events GROUP BY utmify_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[models.DeliveryStatus]int64)
	for rows.Next() {
		var status models.DeliveryStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func fmtDur(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
}
