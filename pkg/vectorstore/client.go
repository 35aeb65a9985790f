package vectorstore

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
	pkgerrors "github.com/sparrowretail/shelfline-backend/pkg/errors"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
	"github.com/sparrowretail/shelfline-backend/pkg/metrics"
)

// ErrFilterRejected marks a filtered query the store refused with a client
// error, typically because a payload index is missing.
var ErrFilterRejected = errors.New("store rejected filtered query")

// Point is one addressable record in the store: id, vector, JSON payload.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ScoredPoint is a nearest-neighbor hit.
type ScoredPoint struct {
	Point
	Score float64 `json:"score"`
}

// DecodePayload unmarshals the point payload into a typed struct.
func (p Point) DecodePayload(target any) error {
	raw, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("re-encode payload: %w", err)
	}
	return json.Unmarshal(raw, target)
}

// PayloadOf encodes an entity into a point payload map.
func PayloadOf(entity any) (map[string]any, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}

// CollectionInfo is the subset of collection configuration the readiness
// gate validates.
type CollectionInfo struct {
	VectorSize int
	Distance   string
}

// Client talks to the external collection-oriented vector store over HTTP.
// A nil Client is the "store unavailable" degraded mode: callers must treat
// it as writable-as-no-op and readable-as-empty.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cfg     config.VectorStoreConfig
	logg    *logger.Logger
	metrics *metrics.StoreMetrics

	readiness readinessCache
}

// NewClient constructs a store client. Callers should consult
// cfg.Configured() first; an empty base URL is an error here.
func NewClient(cfg config.VectorStoreConfig, logg *logger.Logger, m *metrics.StoreMetrics) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("vector store base url is required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		cfg:     cfg,
		logg:    logg,
		metrics: m,
	}, nil
}

// Available reports whether a client is configured at all.
func (c *Client) Available() bool {
	return c != nil
}

// VectorDim returns the configured vector dimensionality.
func (c *Client) VectorDim() int {
	if c == nil {
		return 0
	}
	return c.cfg.VectorDim
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("store returned %d: %s", e.status, e.body)
}

func isClientError(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 400 && se.status < 500
	}
	return false
}

func (c *Client) do(ctx context.Context, op, collection, method, path string, body any, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeStoreUnavailable, "no store client configured")
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.ObserveRequest(op, collection, time.Since(start))
	if err != nil {
		c.metrics.IncFailure(op, collection)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		c.metrics.IncFailure(op, collection)
		return fmt.Errorf("read store response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.IncFailure(op, collection)
		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode store response: %w", err)
		}
	}
	return nil
}

// CollectionInfo fetches the collection's vector configuration.
func (c *Client) CollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error) {
	var resp struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := c.do(ctx, "info", collection, http.MethodGet, "/collections/"+collection, nil, &resp)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.status == http.StatusNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeCollectionNotReady, fmt.Sprintf("collection %q missing", collection))
		}
		return nil, err
	}
	return &CollectionInfo{
		VectorSize: resp.Result.Config.Params.Vectors.Size,
		Distance:   resp.Result.Config.Params.Vectors.Distance,
	}, nil
}

// Upsert writes points in place; identical ids overwrite the existing point.
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	return c.do(ctx, "upsert", collection, http.MethodPut, "/collections/"+collection+"/points?wait=true", body, nil)
}

// DeleteByIDs removes the identified points.
func (c *Client) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"points": ids}
	return c.do(ctx, "delete", collection, http.MethodPost, "/collections/"+collection+"/points/delete?wait=true", body, nil)
}

// DeleteByFilter removes every point matching the structural filter.
func (c *Client) DeleteByFilter(ctx context.Context, collection string, filter *Filter) error {
	wire, err := filter.MarshalWire()
	if err != nil {
		return err
	}
	if wire == nil {
		return errors.New("refusing unfiltered delete")
	}
	body := map[string]any{"filter": wire}
	return c.do(ctx, "delete", collection, http.MethodPost, "/collections/"+collection+"/points/delete?wait=true", body, nil)
}

// GetPoint retrieves one point with payload and vector, or nil when absent.
func (c *Client) GetPoint(ctx context.Context, collection, id string) (*Point, error) {
	body := map[string]any{
		"ids":          []string{id},
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result []Point `json:"result"`
	}
	if err := c.do(ctx, "get", collection, http.MethodPost, "/collections/"+collection+"/points", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 {
		return nil, nil
	}
	point := resp.Result[0]
	return &point, nil
}

// Scroll retrieves one page of points. The returned offset is an opaque
// cursor; nil means the scan is exhausted.
func (c *Client) Scroll(ctx context.Context, collection string, filter *Filter, limit int, offset json.RawMessage) ([]Point, json.RawMessage, error) {
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  true,
	}
	wire, err := filter.MarshalWire()
	if err != nil {
		return nil, nil, err
	}
	if wire != nil {
		body["filter"] = wire
	}
	if len(offset) > 0 {
		body["offset"] = offset
	}

	var resp struct {
		Result struct {
			Points         []Point         `json:"points"`
			NextPageOffset json.RawMessage `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := c.do(ctx, "scroll", collection, http.MethodPost, "/collections/"+collection+"/points/scroll", body, &resp); err != nil {
		if wire != nil && isClientError(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrFilterRejected, err.Error())
		}
		return nil, nil, err
	}
	next := resp.Result.NextPageOffset
	if string(next) == "null" {
		next = nil
	}
	return resp.Result.Points, next, nil
}

// Search performs a nearest-neighbor query constrained by the filter.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, filter *Filter, limit int) ([]ScoredPoint, error) {
	if c == nil {
		return nil, nil
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	wire, err := filter.MarshalWire()
	if err != nil {
		return nil, err
	}
	if wire != nil {
		body["filter"] = wire
	}
	var resp struct {
		Result []ScoredPoint `json:"result"`
	}
	if err := c.do(ctx, "search", collection, http.MethodPost, "/collections/"+collection+"/points/search", body, &resp); err != nil {
		if wire != nil && isClientError(err) {
			return nil, fmt.Errorf("%w: %s", ErrFilterRejected, err.Error())
		}
		return nil, err
	}
	return resp.Result, nil
}
