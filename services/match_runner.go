package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// LocalMatchRunner resolves matches in-process: battle resolution and
// persistence through BattleService, then a leaderboard broadcast through
// StatsService. A failed broadcast is logged but never fails the cycle;
// the battle already happened.
type LocalMatchRunner struct {
	Battles *BattleService
	Stats   *StatsService
}

func NewLocalMatchRunner(battles *BattleService, stats *StatsService) *LocalMatchRunner {
	return &LocalMatchRunner{Battles: battles, Stats: stats}
}

func (r *LocalMatchRunner) RunMatch(ctx context.Context, player1, player2 QueueEntry) error {
	outcome, err := r.Battles.ResolveAndRecord(ctx, player1.PlayerID, player2.PlayerID)
	if err != nil {
		return fmt.Errorf("battle resolution failed: %w", err)
	}
	log.Printf("🏆 [RUNNER] Battle completed: %s wins!", outcome.Winner)

	if err := r.Stats.RefreshAndBroadcast(); err != nil {
		log.Printf("⚠️ [RUNNER] Could not refresh leaderboard: %v", err)
	}
	return nil
}

// RemoteMatchRunner resolves matches through a separate battle service over
// HTTP, then asks the stats service to refresh. Calls carry the client
// timeout plus a single retry; anything beyond that is a failed cycle;
// circuit breaking is out of scope.
type RemoteMatchRunner struct {
	BattleServiceURL string
	StatsServiceURL  string
	HTTPClient       *http.Client
}

func NewRemoteMatchRunner(battleServiceURL, statsServiceURL string) *RemoteMatchRunner {
	return &RemoteMatchRunner{
		BattleServiceURL: battleServiceURL,
		StatsServiceURL:  statsServiceURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (r *RemoteMatchRunner) RunMatch(ctx context.Context, player1, player2 QueueEntry) error {
	payload, err := json.Marshal(map[string]string{
		"player1Id": player1.PlayerID,
		"player2Id": player2.PlayerID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal simulate request: %w", err)
	}

	if err := r.postWithRetry(ctx, r.BattleServiceURL+"/battle/simulate", payload); err != nil {
		return fmt.Errorf("remote battle simulation failed: %w", err)
	}

	if r.StatsServiceURL != "" {
		if err := r.postWithRetry(ctx, r.StatsServiceURL+"/stats/refresh", nil); err != nil {
			log.Printf("⚠️ [RUNNER] Could not refresh leaderboard: %v", err)
		}
	}
	return nil
}

// postWithRetry POSTs once and retries once more on transport or 5xx
// failure.
func (r *RemoteMatchRunner) postWithRetry(ctx context.Context, url string, payload []byte) error {
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if attempt > 1 {
			log.Printf("🔁 [RUNNER] Retrying POST %s (attempt %d)", url, attempt)
		}
		lastErr = r.post(ctx, url, payload)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (r *RemoteMatchRunner) post(ctx context.Context, url string, payload []byte) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("non-2xx response %d from %s: %s", resp.StatusCode, url, string(snippet))
	}
	return nil
}
