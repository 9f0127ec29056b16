package metrics

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/stats"
)

func TestServer_Endpoints(t *testing.T) {
	c, reg := newTestCollector(CollectorConfig{Version: "test"})
	c.SetProgress(stats.Progress{TotalLines: 42})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewServer("127.0.0.1:0", reg, logger)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	}()

	testCases := []struct {
		path     string
		contains string
	}{
		{"/metrics", "log_analyzer_lines_processed 42"},
		{"/health", "ok"},
		{"/healthz", "ok"},
	}

	client := &http.Client{Timeout: 2 * time.Second}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := client.Get("http://" + s.Addr() + tc.path)
			if err != nil {
				t.Fatalf("GET %s: %v", tc.path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d, want 200", resp.StatusCode)
			}
			body, _ := io.ReadAll(resp.Body)
			if !strings.Contains(string(body), tc.contains) {
				t.Errorf("body missing %q:\n%s", tc.contains, body)
			}
		})
	}
}

func TestServer_StartFailsOnBadAddr(t *testing.T) {
	s := NewServer("256.0.0.1:bad", prometheus.NewRegistry(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := s.Start(); err == nil {
		t.Error("Start() on invalid address succeeded")
	}
}
