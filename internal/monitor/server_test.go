// internal/monitor/server_test.go
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestMonitor(t *testing.T, stats StatsFunc) (*Server, *Hub) {
	t.Helper()

	hub := NewHub()
	server := NewServer(Config{Addr: "127.0.0.1:0", Version: "test"}, hub, stats)
	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Stop(ctx)
	})
	return server, hub
}

func getJSON(t *testing.T, url string) map[string]any {
	t.Helper()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %s", url, resp.Status)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	return out
}

func TestMonitorStartStop(t *testing.T) {
	server, _ := newTestMonitor(t, nil)

	if server.Addr() == "" {
		t.Error("expected a bound address")
	}
	if err := server.Start(); err != ErrAlreadyRunning {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := server.Stop(ctx); err != ErrNotRunning {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}

func TestMonitorHealth(t *testing.T) {
	server, _ := newTestMonitor(t, nil)

	health := getJSON(t, "http://"+server.Addr()+"/health")
	if health["status"] != "ok" {
		t.Errorf("expected ok status, got %v", health["status"])
	}
	if _, ok := health["uptime_seconds"]; !ok {
		t.Error("expected an uptime field")
	}
}

func TestMonitorStats(t *testing.T) {
	server, _ := newTestMonitor(t, func() any {
		return map[string]int{"jobs_succeeded": 7}
	})

	stats := getJSON(t, "http://"+server.Addr()+"/stats")

	bridgeStats, ok := stats["bridge"].(map[string]any)
	if !ok {
		t.Fatalf("expected bridge stats object, got %v", stats["bridge"])
	}
	if bridgeStats["jobs_succeeded"] != float64(7) {
		t.Errorf("expected injected counter, got %v", bridgeStats["jobs_succeeded"])
	}
	if _, ok := stats["events_published"]; !ok {
		t.Error("expected events_published field")
	}
}

func TestMonitorEventsFeed(t *testing.T) {
	server, hub := newTestMonitor(t, nil)

	url := "ws://" + server.Addr() + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial error = %v", err)
	}
	defer conn.Close()

	// The subscription registers before events flow.
	waitFor(t, func() bool { return hub.Count() == 1 })

	hub.JobEvent("job-1", "running", "")
	hub.JobEvent("job-1", "progress", "halfway")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first Event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if first.JobID != "job-1" || first.Status != "running" {
		t.Errorf("unexpected first event %+v", first)
	}

	var second Event
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if second.Status != "progress" || second.Message != "halfway" {
		t.Errorf("unexpected second event %+v", second)
	}

	if hub.Published() != 2 {
		t.Errorf("expected 2 published events, got %d", hub.Published())
	}
}

func TestHubDropsClosedSubscriber(t *testing.T) {
	server, hub := newTestMonitor(t, nil)

	url := "ws://" + server.Addr() + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial error = %v", err)
	}

	waitFor(t, func() bool { return hub.Count() == 1 })
	conn.Close()

	// The server's read loop notices the disconnect and unregisters.
	waitFor(t, func() bool { return hub.Count() == 0 })

	// Publishing with no subscribers still counts.
	hub.JobEvent("job-2", "ok", "")
	if hub.Published() != 1 {
		t.Errorf("expected 1 published event, got %d", hub.Published())
	}
}

func TestHubPublishNeverBlocksOnStalledObserver(t *testing.T) {
	hub := NewHub()

	// A subscriber with no writer draining it simulates an observer
	// stalled mid-write.
	hub.subs[nil] = &subscriber{events: make(chan Event, 2)}

	start := time.Now()
	for i := 0; i < 1000; i++ {
		hub.JobEvent("job-1", "progress", "tick")
	}
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Errorf("publishing took %v, expected well under a second", elapsed)
	}
	if hub.Published() != 1000 {
		t.Errorf("expected 1000 published events, got %d", hub.Published())
	}
	if hub.Dropped() != 998 {
		t.Errorf("expected 998 dropped events, got %d", hub.Dropped())
	}
}

func TestHubRemoveTwice(t *testing.T) {
	hub := NewHub()
	hub.subs[nil] = &subscriber{events: make(chan Event, 1)}

	hub.Remove(nil)
	hub.Remove(nil)

	if hub.Count() != 0 {
		t.Errorf("expected 0 observers, got %d", hub.Count())
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never held")
}
