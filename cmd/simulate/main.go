// Simulation tool for exercising Harrier with synthetic banking behavior.
//
// Usage:
//   go run cmd/simulate/main.go -url http://localhost:8080 -users 50 -days 30
//
// This tool:
//  1. Generates synthetic users with stable behavioral habits
//  2. Seeds each user's profile by ingesting days of habitual events
//  3. Injects anomalous logins and transactions for a fraction of users
//  4. Reports how the scored anomalies separated from the baseline
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/gen"
)

// IngestResponse mirrors the server's synchronous ingest response.
type IngestResponse struct {
	AssessmentID string  `json:"assessmentId"`
	Status       string  `json:"status"`
	Score        float64 `json:"score"`
}

// Metrics tracks simulation results.
type Metrics struct {
	EventsSent     int64
	Errors         int64
	BaselineAlerts int64
	AnomalyAlerts  int64
	AnomaliesSent  int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Harrier base URL")
	users := flag.Int("users", 50, "Number of synthetic users")
	days := flag.Int("days", 30, "Days of habitual history per user")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	seed := flag.Int64("seed", 42, "Generator seed (0 = random)")
	anomalyRate := flag.Float64("anomaly-rate", 0.2, "Fraction of users receiving anomalies")
	verbose := flag.Bool("verbose", false, "Print each anomaly result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        HARRIER SIMULATION - Synthetic Banking Behavior        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nHarrier URL:  %s\n", *baseURL)
	fmt.Printf("Users:        %d\n", *users)
	fmt.Printf("History:      %d days\n", *days)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Printf("Anomaly Rate: %.2f\n", *anomalyRate)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Harrier not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Harrier is running:")
		fmt.Println("  go run cmd/harrier/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Harrier is healthy")

	g := gen.New(gen.Config{NumUsers: *users, Seed: *seed})
	client := &http.Client{Timeout: 30 * time.Second}
	metrics := &Metrics{}

	// Phase 1: seed habitual histories
	fmt.Printf("\nSeeding %d users with %d days of history...\n", *users, *days)
	start := time.Now()

	userCh := make(chan string, len(g.Users()))
	for _, u := range g.Users() {
		userCh <- u
	}
	close(userCh)

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range userCh {
				for _, ev := range g.History(userID, *days) {
					resp, err := sendEvent(client, *baseURL, ev)
					if err != nil {
						atomic.AddInt64(&metrics.Errors, 1)
						continue
					}
					atomic.AddInt64(&metrics.EventsSent, 1)
					if resp.Status == domain.StatusAlert {
						atomic.AddInt64(&metrics.BaselineAlerts, 1)
					}
				}
			}
		}()
	}
	wg.Wait()

	fmt.Printf("✓ Seeded %d events in %s (%d errors)\n",
		metrics.EventsSent, time.Since(start).Round(time.Millisecond), metrics.Errors)

	// Phase 2: inject anomalies
	anomalyUsers := int(float64(*users) * *anomalyRate)
	fmt.Printf("\nInjecting anomalies for %d users...\n", anomalyUsers)
	now := time.Now().UTC()

	for _, userID := range g.Users()[:anomalyUsers] {
		for _, ev := range []domain.Event{
			g.AnomalousLogin(userID, now),
			g.AnomalousTransaction(userID, now),
		} {
			resp, err := sendEvent(client, *baseURL, ev)
			if err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				continue
			}
			atomic.AddInt64(&metrics.AnomaliesSent, 1)
			if resp.Status == domain.StatusAlert {
				atomic.AddInt64(&metrics.AnomalyAlerts, 1)
			}
			if *verbose {
				fmt.Printf("  %-12s %s score=%.3f status=%s\n",
					ev.Kind(), userID, resp.Score, resp.Status)
			}
		}
	}

	// Report
	fmt.Println("\n═══════════════════════ RESULTS ═══════════════════════")
	fmt.Printf("Baseline events:   %d (%d alerted)\n", metrics.EventsSent, metrics.BaselineAlerts)
	fmt.Printf("Anomalous events:  %d (%d alerted)\n", metrics.AnomaliesSent, metrics.AnomalyAlerts)
	fmt.Printf("Errors:            %d\n", metrics.Errors)

	if metrics.AnomaliesSent > 0 {
		detection := float64(metrics.AnomalyAlerts) / float64(metrics.AnomaliesSent) * 100
		fmt.Printf("Anomaly detection: %.1f%%\n", detection)
	}
	if metrics.EventsSent > 0 {
		falseAlarm := float64(metrics.BaselineAlerts) / float64(metrics.EventsSent) * 100
		fmt.Printf("Baseline alarms:   %.1f%%\n", falseAlarm)
	}
}

func sendEvent(client *http.Client, baseURL string, ev domain.Event) (*IngestResponse, error) {
	env, err := domain.Wrap(ev)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}

	resp, err := client.Post(baseURL+"/events", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out IngestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}
