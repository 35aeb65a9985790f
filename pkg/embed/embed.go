package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sparrowretail/shelfline-backend/pkg/config"
)

// Embedder produces vectors for catalog text and imagery. Implementations
// must be safe for concurrent use.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, imageURL string) ([]float32, error)
	HybridEmbed(ctx context.Context, text, imageURL string) ([]float32, error)
	ExtractLabel(ctx context.Context, imageURL string) (string, error)
}

// ErrNotConfigured means no embedding service URL was provided. Callers fall
// back to deterministic placeholder vectors.
var ErrNotConfigured = errors.New("embedding service not configured")

type httpEmbedder struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPEmbedder builds an Embedder backed by the external embedding
// service, or returns ErrNotConfigured when no URL is set.
func NewHTTPEmbedder(cfg config.AIConfig) (Embedder, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrNotConfigured
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpEmbedder{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (e *httpEmbedder) post(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read embed response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("embed service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	return json.Unmarshal(payload, out)
}

func (e *httpEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var resp struct {
		Vector []float32 `json:"vector"`
	}
	if err := e.post(ctx, "/v1/embed/text", map[string]any{"text": text}, &resp); err != nil {
		return nil, err
	}
	return resp.Vector, nil
}

func (e *httpEmbedder) EmbedImage(ctx context.Context, imageURL string) ([]float32, error) {
	var resp struct {
		Vector []float32 `json:"vector"`
	}
	if err := e.post(ctx, "/v1/embed/image", map[string]any{"imageUrl": imageURL}, &resp); err != nil {
		return nil, err
	}
	return resp.Vector, nil
}

func (e *httpEmbedder) HybridEmbed(ctx context.Context, text, imageURL string) ([]float32, error) {
	var resp struct {
		Vector []float32 `json:"vector"`
	}
	body := map[string]any{"text": text, "imageUrl": imageURL}
	if err := e.post(ctx, "/v1/embed/hybrid", body, &resp); err != nil {
		return nil, err
	}
	return resp.Vector, nil
}

func (e *httpEmbedder) ExtractLabel(ctx context.Context, imageURL string) (string, error) {
	var resp struct {
		Label string `json:"label"`
	}
	if err := e.post(ctx, "/v1/extract/label", map[string]any{"imageUrl": imageURL}, &resp); err != nil {
		return "", err
	}
	return resp.Label, nil
}
