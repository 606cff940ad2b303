// Package fetcher obtains status snapshots from the cache or the network.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"statusbot/internal/cache"
	"statusbot/internal/status"
)

// DefaultURL is the Activision status landing-page endpoint.
const DefaultURL = "https://prod-psapi.infra-ext.activision.com/open/api/apexrest/oshp/landingpage"

const (
	requestTimeout = 10 * time.Second
	maxBodySize    = 5 * 1024 * 1024
	maxRetries     = 2
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher returns status snapshots, preferring the disk cache while it
// is fresh. A mutex serializes all fetches so a scheduled poll and an
// operator-forced refresh can never race to write the cache.
type Fetcher struct {
	client HTTPClient
	store  *cache.Store
	url    string
	log    *slog.Logger

	mu       sync.Mutex
	cacheAge time.Duration
}

// New creates a Fetcher over the given HTTP client and cache store.
func New(client HTTPClient, store *cache.Store, url string, cacheAge time.Duration, log *slog.Logger) *Fetcher {
	return &Fetcher{
		client:   client,
		store:    store,
		url:      url,
		cacheAge: cacheAge,
		log:      log,
	}
}

// SetCacheAge adjusts the cache validity window; it applies to the next
// Fetch call.
func (f *Fetcher) SetCacheAge(d time.Duration) {
	f.mu.Lock()
	f.cacheAge = d
	f.mu.Unlock()
}

// Fetch returns the current snapshot. Unless force is set, a cached
// payload younger than the cache age is returned without touching the
// network. A successful network fetch is persisted to the cache before
// returning; a failed cache write is logged and swallowed.
func (f *Fetcher) Fetch(ctx context.Context, force bool) (*status.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !force {
		if snap := f.fromCache(); snap != nil {
			return snap, nil
		}
	}

	raw, err := f.download(ctx)
	if err != nil {
		return nil, err
	}

	snap, err := status.Parse(raw, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := f.store.Save(snap.Raw); err != nil {
		f.log.Warn("cache write failed", "error", err)
	}
	return snap, nil
}

func (f *Fetcher) fromCache() *status.Snapshot {
	rec, err := f.store.Load()
	if err != nil {
		f.log.Warn("cache read failed", "error", err)
		return nil
	}
	if rec == nil {
		return nil
	}

	age := time.Since(rec.CachedAt)
	if age >= f.cacheAge {
		f.log.Debug("cache expired", "age", age, "max", f.cacheAge)
		return nil
	}

	snap, err := status.Parse(rec.Data, rec.CachedAt)
	if err != nil {
		f.log.Warn("discarding unparseable cached payload", "error", err)
		return nil
	}
	f.log.Debug("using cached payload", "age", age)
	return snap
}

// download GETs the status endpoint with a bounded timeout, retrying
// transport errors and 5xx responses with fibonacci back-off. Non-200
// client responses are not retried.
func (f *Fetcher) download(ctx context.Context) ([]byte, error) {
	var body []byte
	backoff := retry.WithMaxRetries(maxRetries, retry.NewFibonacci(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, f.url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("http get: %w", err))
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read body: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	return body, nil
}
