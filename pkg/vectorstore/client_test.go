package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sparrowretail/shelfline-backend/pkg/config"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
	"github.com/sparrowretail/shelfline-backend/pkg/metrics"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.VectorStoreConfig{
		BaseURL:        server.URL,
		APIKey:         "test-key",
		VectorDim:      4,
		Distance:       "Cosine",
		ScrollPageSize: 2,
		MaxScrollTotal: 10,
	}, logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard}), metrics.NewStoreMetrics(nil))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(config.VectorStoreConfig{}, nil, nil); err == nil {
		t.Fatal("expected error for empty base url")
	}
}

func TestUpsertSendsPoints(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, http.StatusOK, `{"result":{"status":"acknowledged"}}`)
	}))

	err := client.Upsert(context.Background(), CollectionItems, []Point{
		{ID: "p1", Vector: []float32{1, 0, 0, 0}, Payload: map[string]any{"shopId": "shop-a"}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if gotPath != "/collections/items/points" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api-key header = %q", gotKey)
	}
	points, ok := gotBody["points"].([]any)
	if !ok || len(points) != 1 {
		t.Fatalf("points body = %v", gotBody["points"])
	}
}

func TestUpsertEmptyIsNoop(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request for empty upsert")
	}))
	if err := client.Upsert(context.Background(), CollectionItems, nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func TestNilClientDegradesToEmpty(t *testing.T) {
	var client *Client
	if client.Available() {
		t.Error("nil client reported available")
	}
	if client.EnsureReady(context.Background(), CollectionItems) {
		t.Error("nil client reported ready")
	}
	points, err := client.ScrollAll(context.Background(), CollectionItems, TenantFilter("shop-a"))
	if err != nil || points != nil {
		t.Errorf("ScrollAll on nil client = %v, %v", points, err)
	}
}

func TestScrollAllPaginates(t *testing.T) {
	pages := map[string]string{
		"": `{"result":{"points":[{"id":"a","payload":{"shopId":"s"}},{"id":"b","payload":{"shopId":"s"}}],"next_page_offset":"cur-2"}}`,
		`"cur-2"`: `{"result":{"points":[{"id":"c","payload":{"shopId":"s"}}],"next_page_offset":null}}`,
	}
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Offset json.RawMessage `json:"offset"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, pages[string(req.Offset)])
	}))

	points, err := client.ScrollAll(context.Background(), CollectionItems, TenantFilter("s"))
	if err != nil {
		t.Fatalf("ScrollAll: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}
	if points[2].ID != "c" {
		t.Errorf("last point = %q", points[2].ID)
	}
}

func TestScrollAllFallsBackOnRejectedFilter(t *testing.T) {
	var filteredCalls, unfilteredCalls int
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Filter json.RawMessage `json:"filter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Filter) > 0 {
			filteredCalls++
			writeJSON(w, http.StatusBadRequest, `{"status":{"error":"index required"}}`)
			return
		}
		unfilteredCalls++
		writeJSON(w, http.StatusOK, `{"result":{"points":[
			{"id":"a","payload":{"shopId":"shop-a","quantity":3}},
			{"id":"b","payload":{"shopId":"shop-b","quantity":5}}
		],"next_page_offset":null}}`)
	}))

	points, err := client.ScrollAll(context.Background(), CollectionItems, TenantFilter("shop-a"))
	if err != nil {
		t.Fatalf("ScrollAll: %v", err)
	}
	if filteredCalls != 3 {
		t.Errorf("filtered attempts = %d, want 3", filteredCalls)
	}
	if unfilteredCalls != 1 {
		t.Errorf("unfiltered scans = %d, want 1", unfilteredCalls)
	}
	if len(points) != 1 || points[0].ID != "a" {
		t.Fatalf("fallback points = %+v", points)
	}
}

func TestScrollAllServerErrorPropagates(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"status":{"error":"boom"}}`)
	}))
	if _, err := client.ScrollAll(context.Background(), CollectionItems, TenantFilter("s")); err == nil {
		t.Fatal("expected server error to propagate")
	}
}

func TestScrollAllStopsAtPointCap(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Always hands back a full page with a cursor, never exhausting.
		writeJSON(w, http.StatusOK, `{"result":{"points":[
			{"id":"x","payload":{"shopId":"s"}},
			{"id":"y","payload":{"shopId":"s"}}
		],"next_page_offset":"again"}}`)
	}))

	points, err := client.ScrollAll(context.Background(), CollectionItems, TenantFilter("s"))
	if err != nil {
		t.Fatalf("ScrollAll: %v", err)
	}
	if len(points) != 10 {
		t.Fatalf("got %d points, want cap of 10", len(points))
	}
}

func TestGetPoint(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"result":[{"id":"p1","payload":{"productName":"Milk"}}]}`)
	}))
	point, err := client.GetPoint(context.Background(), CollectionItems, "p1")
	if err != nil {
		t.Fatalf("GetPoint: %v", err)
	}
	if point == nil || point.Payload["productName"] != "Milk" {
		t.Fatalf("point = %+v", point)
	}
}

func TestGetPointMissingReturnsNil(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"result":[]}`)
	}))
	point, err := client.GetPoint(context.Background(), CollectionItems, "nope")
	if err != nil {
		t.Fatalf("GetPoint: %v", err)
	}
	if point != nil {
		t.Fatalf("expected nil point, got %+v", point)
	}
}

func TestEnsureReady(t *testing.T) {
	infoBody := func(size int, distance string) string {
		return fmt.Sprintf(`{"result":{"config":{"params":{"vectors":{"size":%d,"distance":%q}}}}}`, size, distance)
	}

	t.Run("caches a ready verdict", func(t *testing.T) {
		var calls int
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			writeJSON(w, http.StatusOK, infoBody(4, "Cosine"))
		}))
		for i := 0; i < 3; i++ {
			if !client.EnsureReady(context.Background(), CollectionProducts) {
				t.Fatal("expected ready")
			}
		}
		if calls != 1 {
			t.Errorf("probe calls = %d, want 1", calls)
		}
	})

	t.Run("caches a dimension mismatch", func(t *testing.T) {
		var calls int
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			writeJSON(w, http.StatusOK, infoBody(768, "Cosine"))
		}))
		for i := 0; i < 2; i++ {
			if client.EnsureReady(context.Background(), CollectionProducts) {
				t.Fatal("expected not ready on size mismatch")
			}
		}
		if calls != 1 {
			t.Errorf("probe calls = %d, want 1", calls)
		}
	})

	t.Run("does not cache probe failures", func(t *testing.T) {
		var calls int
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			writeJSON(w, http.StatusInternalServerError, `{}`)
		}))
		for i := 0; i < 2; i++ {
			if client.EnsureReady(context.Background(), CollectionProducts) {
				t.Fatal("expected not ready on probe failure")
			}
		}
		if calls != 2 {
			t.Errorf("probe calls = %d, want 2 (no caching)", calls)
		}
	})

	t.Run("reset clears the cache", func(t *testing.T) {
		var calls int
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			writeJSON(w, http.StatusOK, infoBody(4, "Cosine"))
		}))
		client.EnsureReady(context.Background(), CollectionProducts)
		client.resetReadiness()
		client.EnsureReady(context.Background(), CollectionProducts)
		if calls != 2 {
			t.Errorf("probe calls = %d, want 2 after reset", calls)
		}
	})
}

func TestDecodePayloadRoundtrip(t *testing.T) {
	point := Point{Payload: map[string]any{"productName": "Milk", "quantity": float64(7)}}
	var decoded struct {
		ProductName string `json:"productName"`
		Quantity    int    `json:"quantity"`
	}
	if err := point.DecodePayload(&decoded); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if decoded.ProductName != "Milk" || decoded.Quantity != 7 {
		t.Errorf("decoded = %+v", decoded)
	}
}
