package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"statusbot/internal/cache"
)

const samplePayload = `{"serverStatuses":[{"gameTitle":"Call of Duty: Warzone","platform":"PC"}],"updatedTime":"2024-11-05T18:20:00Z"}`

// mockClient returns canned responses in order and counts calls. When
// the script runs out, the last response repeats.
type mockClient struct {
	responses []mockResponse
	calls     int
}

type mockResponse struct {
	status int
	body   string
	err    error
}

func (m *mockClient) Do(req *http.Request) (*http.Response, error) {
	i := m.calls
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	m.calls++

	r := m.responses[i]
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{
		StatusCode: r.status,
		Body:       io.NopCloser(bytes.NewBufferString(r.body)),
	}, nil
}

func newTestFetcher(t *testing.T, client HTTPClient, cacheAge time.Duration) (*Fetcher, *cache.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := cache.New(filepath.Join(t.TempDir(), "cache.json"), log)
	return New(client, store, "http://example.invalid/status", cacheAge, log), store
}

func TestFetchDownloadsAndCaches(t *testing.T) {
	client := &mockClient{responses: []mockResponse{{status: http.StatusOK, body: samplePayload}}}
	f, store := newTestFetcher(t, client, 5*time.Minute)

	snap, err := f.Fetch(context.Background(), false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if diff := cmp.Diff(samplePayload, string(snap.Raw)); diff != "" {
		t.Errorf("snapshot payload mismatch (-want +got):\n%s", diff)
	}
	if client.calls != 1 {
		t.Errorf("expected 1 request, got %d", client.calls)
	}

	rec, err := store.Load()
	if err != nil {
		t.Fatalf("load cache: %v", err)
	}
	if rec == nil {
		t.Fatal("expected fetch to populate the cache")
	}
	if diff := cmp.Diff(samplePayload, string(rec.Data)); diff != "" {
		t.Errorf("cached payload mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchPrefersFreshCache(t *testing.T) {
	client := &mockClient{responses: []mockResponse{{status: http.StatusOK, body: samplePayload}}}
	f, store := newTestFetcher(t, client, 5*time.Minute)

	if err := store.Save(json.RawMessage(samplePayload)); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	snap, err := f.Fetch(context.Background(), false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if client.calls != 0 {
		t.Errorf("expected no network requests, got %d", client.calls)
	}
	if diff := cmp.Diff(samplePayload, string(snap.Raw)); diff != "" {
		t.Errorf("snapshot payload mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchRefetchesWhenCacheExpired(t *testing.T) {
	fresh := `{"serverStatuses":[],"updatedTime":"2024-11-05T19:00:00Z"}`
	client := &mockClient{responses: []mockResponse{{status: http.StatusOK, body: fresh}}}
	f, store := newTestFetcher(t, client, 0)

	if err := store.Save(json.RawMessage(samplePayload)); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	snap, err := f.Fetch(context.Background(), false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if client.calls != 1 {
		t.Errorf("expected 1 request, got %d", client.calls)
	}
	if diff := cmp.Diff(fresh, string(snap.Raw)); diff != "" {
		t.Errorf("snapshot payload mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchForceBypassesCache(t *testing.T) {
	fresh := `{"serverStatuses":[],"updatedTime":"2024-11-05T19:00:00Z"}`
	client := &mockClient{responses: []mockResponse{{status: http.StatusOK, body: fresh}}}
	f, store := newTestFetcher(t, client, 5*time.Minute)

	if err := store.Save(json.RawMessage(samplePayload)); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	snap, err := f.Fetch(context.Background(), true)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if client.calls != 1 {
		t.Errorf("expected 1 request, got %d", client.calls)
	}
	if diff := cmp.Diff(fresh, string(snap.Raw)); diff != "" {
		t.Errorf("snapshot payload mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	client := &mockClient{responses: []mockResponse{
		{status: http.StatusBadGateway, body: "bad gateway"},
		{status: http.StatusOK, body: samplePayload},
	}}
	f, _ := newTestFetcher(t, client, 0)

	snap, err := f.Fetch(context.Background(), false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if client.calls != 2 {
		t.Errorf("expected 2 requests, got %d", client.calls)
	}
	if diff := cmp.Diff(samplePayload, string(snap.Raw)); diff != "" {
		t.Errorf("snapshot payload mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchRetriesTransportErrors(t *testing.T) {
	client := &mockClient{responses: []mockResponse{
		{err: errors.New("connection reset")},
		{status: http.StatusOK, body: samplePayload},
	}}
	f, _ := newTestFetcher(t, client, 0)

	if _, err := f.Fetch(context.Background(), false); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if client.calls != 2 {
		t.Errorf("expected 2 requests, got %d", client.calls)
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	client := &mockClient{responses: []mockResponse{{status: http.StatusForbidden, body: "nope"}}}
	f, _ := newTestFetcher(t, client, 0)

	if _, err := f.Fetch(context.Background(), false); err == nil {
		t.Fatal("expected error for 403 response")
	}
	if client.calls != 1 {
		t.Errorf("expected 1 request, got %d", client.calls)
	}
}

func TestFetchGivesUpAfterRetries(t *testing.T) {
	client := &mockClient{responses: []mockResponse{{status: http.StatusInternalServerError, body: "boom"}}}
	f, _ := newTestFetcher(t, client, 0)

	if _, err := f.Fetch(context.Background(), false); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if client.calls != maxRetries+1 {
		t.Errorf("expected %d requests, got %d", maxRetries+1, client.calls)
	}
}

func TestFetchRejectsMalformedBody(t *testing.T) {
	client := &mockClient{responses: []mockResponse{{status: http.StatusOK, body: "not json"}}}
	f, store := newTestFetcher(t, client, 0)

	if _, err := f.Fetch(context.Background(), false); err == nil {
		t.Fatal("expected error for malformed body")
	}

	rec, err := store.Load()
	if err != nil {
		t.Fatalf("load cache: %v", err)
	}
	if rec != nil {
		t.Errorf("malformed payload must not be cached, got %+v", rec)
	}
}

func TestFetchIgnoresUnparseableCache(t *testing.T) {
	client := &mockClient{responses: []mockResponse{{status: http.StatusOK, body: samplePayload}}}
	f, store := newTestFetcher(t, client, 5*time.Minute)

	// Valid cache envelope, unparseable payload inside.
	if err := store.Save(json.RawMessage(`"just a string"`)); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	if _, err := f.Fetch(context.Background(), false); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if client.calls != 1 {
		t.Errorf("expected fallback to network, got %d requests", client.calls)
	}
}

func TestSetCacheAgeExtendsValidity(t *testing.T) {
	client := &mockClient{responses: []mockResponse{{status: http.StatusOK, body: samplePayload}}}
	f, store := newTestFetcher(t, client, 0)

	if err := store.Save(json.RawMessage(samplePayload)); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	f.SetCacheAge(time.Hour)
	if _, err := f.Fetch(context.Background(), false); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if client.calls != 0 {
		t.Errorf("expected cached payload, got %d requests", client.calls)
	}
}
