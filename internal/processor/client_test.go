package processor

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("Expected error for empty endpoint")
	}

	c, err := NewClient(Config{Endpoint: "http://localhost:9999/ingest"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.config.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", c.config.Timeout)
	}
	if c.config.MaxConcurrent != 10 {
		t.Errorf("Expected default max_concurrent 10, got %d", c.config.MaxConcurrent)
	}
}

func TestProcessPostsPayload(t *testing.T) {
	var gotBody []byte
	var gotStreamID string
	var gotContentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotStreamID = r.Header.Get("X-Stream-ID")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 0})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	payload := []byte{1, 2, 3, 4}
	if err := client.Process(context.Background(), "stream-1", payload); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if !bytes.Equal(gotBody, payload) {
		t.Errorf("Expected payload %v, got %v", payload, gotBody)
	}
	if gotStreamID != "stream-1" {
		t.Errorf("Expected X-Stream-ID stream-1, got %s", gotStreamID)
	}
	if gotContentType != "application/octet-stream" {
		t.Errorf("Expected octet-stream content type, got %s", gotContentType)
	}

	stats := client.GetStats()
	if stats.TotalRequests != 1 || stats.SuccessRequests != 1 {
		t.Errorf("Expected 1 total / 1 success, got %+v", stats)
	}
}

func TestProcessRetriesOnServerError(t *testing.T) {
	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 2})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if err := client.Process(context.Background(), "stream-1", []byte{1}); err != nil {
		t.Fatalf("Process should succeed after retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 requests, got %d", calls.Load())
	}

	stats := client.GetStats()
	if stats.TotalRetries != 1 {
		t.Errorf("Expected 1 retry, got %d", stats.TotalRetries)
	}
}

func TestProcessFailsAfterRetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rejected", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 0})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if err := client.Process(context.Background(), "stream-1", []byte{1}); err == nil {
		t.Fatal("Expected error after retries exhausted")
	}

	stats := client.GetStats()
	if stats.FailedRequests != 1 {
		t.Errorf("Expected 1 failed request, got %d", stats.FailedRequests)
	}
}

func TestProcessRespectsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, MaxRetries: 0})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := client.Process(ctx, "stream-1", []byte{1}); err == nil {
		t.Error("Expected error for expired context")
	}
}

func TestLogProcessor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewLogProcessor(logger)

	if err := p.Process(context.Background(), "stream-1", []byte{1, 2, 3}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if err := p.Process(context.Background(), "stream-2", []byte{4}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	stats := p.GetStats()
	if stats.TotalRequests != 2 {
		t.Errorf("Expected 2 payloads, got %d", stats.TotalRequests)
	}
	if stats.SuccessRate != 100 {
		t.Errorf("Expected success rate 100, got %f", stats.SuccessRate)
	}
}
