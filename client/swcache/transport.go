// Package swcache caches HTTP responses for offline use, the way the web app's service worker does:
// cache first for static assets, network first for API reads and stale while revalidate for pages.
package swcache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-app-sub019/client/offlinedb"
	"github.com/simonmuehling/educafric-app-sub019/core"
)

type Strategy int

const (
	PassThrough Strategy = iota
	CacheFirst
	NetworkFirst
	StaleWhileRevalidate
)

func (s Strategy) String() string {
	switch s {
	case CacheFirst:
		return "cache-first"
	case NetworkFirst:
		return "network-first"
	case StaleWhileRevalidate:
		return "stale-while-revalidate"
	}
	return "pass-through"
}

const (
	// HeaderCache tells how a response was served: hit, stale or miss.
	HeaderCache = "X-Educafric-Cache"

	// VersionKey is the metadata key of the cached deployment version.
	VersionKey = "cache_version"
)

var (
	staticExtensions = map[string]bool{
		".js": true, ".css": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
		".svg": true, ".webp": true, ".ico": true, ".woff": true, ".woff2": true, ".ttf": true,
		".json": true,
	}

	// APIPrefixes are the API reads worth keeping for offline use.
	APIPrefixes = []string{
		"/api/classes",
		"/api/students",
		"/api/teachers",
		"/api/academic-data",
		"/api/notifications",
		"/api/schools/current",
		"/api/bulletins/types",
	}
)

// Cache is the storage of the responses, offlinedb.DB in the client.
type Cache interface {
	GetCached(ctx context.Context, url string) (offlinedb.CachedResponse, error)
	PutCached(ctx context.Context, resp offlinedb.CachedResponse) error
	PurgeCache(ctx context.Context) (int, error)
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
}

// Transport is an http.RoundTripper applying the caching strategy of each request.
type Transport struct {
	base   http.RoundTripper
	cache  Cache
	logger core.Logger

	wg sync.WaitGroup // background revalidations
}

var _ http.RoundTripper = (*Transport)(nil)

func NewTransport(cache Cache, base http.RoundTripper, logger core.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, cache: cache, logger: logger}
}

// StrategyFor picks the caching strategy of req.
func StrategyFor(req *http.Request) Strategy {
	if req.Method != http.MethodGet {
		return PassThrough
	}
	p := req.URL.Path
	for _, prefix := range APIPrefixes {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return NetworkFirst
		}
	}
	if strings.HasPrefix(p, "/api/") {
		return PassThrough
	}
	if p == "/version.json" {
		return PassThrough
	}
	if strings.HasPrefix(p, "/assets/") || staticExtensions[strings.ToLower(path.Ext(p))] {
		return CacheFirst
	}
	if p == "/" || strings.HasSuffix(p, ".html") || path.Ext(p) == "" || strings.Contains(req.Header.Get("Accept"), "text/html") {
		return StaleWhileRevalidate
	}
	return PassThrough
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	switch StrategyFor(req) {
	case CacheFirst:
		return t.cacheFirst(req)
	case NetworkFirst:
		return t.networkFirst(req)
	case StaleWhileRevalidate:
		return t.staleWhileRevalidate(req)
	}
	return t.base.RoundTrip(req)
}

// Wait blocks until the background revalidations are done.
func (t *Transport) Wait() {
	t.wg.Wait()
}

func cacheKey(req *http.Request) string {
	return req.URL.String()
}

func (t *Transport) lookup(req *http.Request) (*http.Response, bool) {
	cached, err := t.cache.GetCached(req.Context(), cacheKey(req))
	if err != nil {
		if err != offlinedb.ErrNotFound {
			t.logger.Warn(fmt.Sprintf("reading cache of %s: %v", req.URL, err))
		}
		return nil, false
	}
	header := cached.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", cached.Status, http.StatusText(cached.Status)),
		StatusCode:    cached.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(cached.Body)),
		ContentLength: int64(len(cached.Body)),
		Request:       req,
	}, true
}

// fetch does the network round trip and stores successful answers.
func (t *Transport) fetch(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	err = t.cache.PutCached(req.Context(), offlinedb.CachedResponse{
		URL:      cacheKey(req),
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: core.Millis(core.NowUTC()),
	})
	if err != nil {
		t.logger.Warn(fmt.Sprintf("caching %s: %v", req.URL, err))
	}
	resp.Header.Set(HeaderCache, "miss")
	return resp, nil
}

func (t *Transport) cacheFirst(req *http.Request) (*http.Response, error) {
	if resp, ok := t.lookup(req); ok {
		resp.Header.Set(HeaderCache, "hit")
		return resp, nil
	}
	return t.fetch(req)
}

func (t *Transport) networkFirst(req *http.Request) (*http.Response, error) {
	resp, err := t.fetch(req)
	if err == nil && resp.StatusCode < http.StatusInternalServerError {
		return resp, nil
	}
	cached, ok := t.lookup(req)
	if !ok {
		return resp, err
	}
	if resp != nil {
		resp.Body.Close()
	}
	cached.Header.Set(HeaderCache, "stale")
	return cached, nil
}

func (t *Transport) staleWhileRevalidate(req *http.Request) (*http.Response, error) {
	cached, ok := t.lookup(req)
	if !ok {
		return t.fetch(req)
	}

	bg := req.Clone(context.Background())
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		resp, err := t.fetch(bg)
		if err != nil {
			t.logger.Debug(fmt.Sprintf("revalidating %s: %v", bg.URL, err))
			return
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	cached.Header.Set(HeaderCache, "stale")
	return cached, nil
}

// Precache fetches urls into the cache, whatever their strategy.
func (t *Transport) Precache(ctx context.Context, urls []string) (int, error) {
	var cnt int
	for _, u := range urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return cnt, errors.Wrapf(err, "precaching %s", u)
		}
		resp, err := t.fetch(req)
		if err != nil {
			return cnt, errors.Wrapf(err, "precaching %s", u)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return cnt, errors.Errorf("precaching %s: server answered %d", u, resp.StatusCode)
		}
		cnt++
	}
	return cnt, nil
}

// CheckVersion reads the deployed version at versionURL. When it differs from the cached one
// the cache is purged and the new version recorded.
func (t *Transport) CheckVersion(ctx context.Context, versionURL string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, versionURL, nil)
	if err != nil {
		return "", false, errors.Wrap(err, "checking version")
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return "", false, errors.Wrap(err, "checking version")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false, errors.Errorf("checking version: server answered %d", resp.StatusCode)
	}
	var payload struct {
		Version string `json:"version"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", false, errors.Wrap(err, "decoding version")
	}

	current, err := t.cache.GetMeta(ctx, VersionKey)
	if err != nil {
		return "", false, err
	}
	if current == payload.Version {
		return current, false, nil
	}
	cnt, err := t.cache.PurgeCache(ctx)
	if err != nil {
		return "", false, err
	}
	if err = t.cache.SetMeta(ctx, VersionKey, payload.Version); err != nil {
		return "", false, err
	}
	t.logger.Info(fmt.Sprintf("new version %q (was %q), %d cached responses dropped", payload.Version, current, cnt))
	return payload.Version, true, nil
}
