package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sparrowretail/shelfline-backend/pkg/config"
)

func TestNewHTTPEmbedderUnconfigured(t *testing.T) {
	if _, err := NewHTTPEmbedder(config.AIConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestEmbedText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embed/text" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("auth header = %q", got)
		}
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["text"] != "Whole Milk 1L" {
			t.Errorf("text = %q", req["text"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"vector": []float32{0.1, 0.2}})
	}))
	defer server.Close()

	embedder, err := NewHTTPEmbedder(config.AIConfig{BaseURL: server.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("NewHTTPEmbedder: %v", err)
	}
	vector, err := embedder.EmbedText(context.Background(), "Whole Milk 1L")
	if err != nil {
		t.Fatalf("EmbedText: %v", err)
	}
	if len(vector) != 2 {
		t.Fatalf("vector = %v", vector)
	}
}

func TestEmbedServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	embedder, err := NewHTTPEmbedder(config.AIConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewHTTPEmbedder: %v", err)
	}
	if _, err := embedder.EmbedText(context.Background(), "x"); err == nil {
		t.Fatal("expected error from 503")
	}
}
