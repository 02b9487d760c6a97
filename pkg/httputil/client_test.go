package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/weichenlin/twchip/pkg/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Crawler.Timeout = 5 * time.Second
	cfg.Crawler.MaxRetries = 3
	cfg.Crawler.InitialDelay = 10 * time.Millisecond
	return cfg
}

func TestGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := New(testConfig())
	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestGetBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	client := New(testConfig())
	body, err := client.GetBody(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetBody() failed: %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("Expected body hello, got %s", body)
	}
}

func TestGetBodyNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(testConfig()).DisableRetry()
	_, err := client.GetBody(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error for 404 response, got nil")
	}

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Expected StatusError, got %T: %v", err, err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", se.StatusCode)
	}
}

func TestPostFormRetriesWithBody(t *testing.T) {
	var attempts int
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(testConfig())
	form := url.Values{"queryDate": {"2026/08/28"}}
	resp, err := client.PostForm(context.Background(), server.URL, form)
	if err != nil {
		t.Fatalf("PostForm() failed: %v", err)
	}
	defer resp.Body.Close()

	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	for i, b := range bodies {
		if b != "queryDate=2026%2F08%2F28" {
			t.Errorf("Attempt %d body = %q, body not resent intact", i+1, b)
		}
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected final status 200, got %d", resp.StatusCode)
	}
}

func TestRetryExhaustion(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Crawler.MaxRetries = 2
	client := New(cfg)

	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get() returned transport error: %v", err)
	}
	defer resp.Body.Close()

	if attempts != 3 {
		t.Errorf("Expected 3 attempts (1 + 2 retries), got %d", attempts)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected final status 503, got %d", resp.StatusCode)
	}
}

func TestIsRetryableStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected bool
	}{
		{200, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}

	for _, tt := range tests {
		if got := IsRetryableStatus(tt.status); got != tt.expected {
			t.Errorf("IsRetryableStatus(%d) = %v, want %v", tt.status, got, tt.expected)
		}
	}
}
