package swcache_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonmuehling/educafric-app-sub019/client/offlinedb"
	"github.com/simonmuehling/educafric-app-sub019/client/swcache"
	"github.com/simonmuehling/educafric-app-sub019/testutil"
)

const baseURL = "http://educafric.test"

var ctxBg = context.Background()

func setup(t *testing.T) (*swcache.Transport, *httpmock.MockTransport, *offlinedb.DB) {
	store, err := offlinedb.Open(filepath.Join(t.TempDir(), "offline.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	network := httpmock.NewMockTransport()
	return swcache.NewTransport(store, network, testutil.NewLogger()), network, store
}

// counted answers status and body, counting the round trips in n.
func counted(n *int32, status int, body string) httpmock.Responder {
	return func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(n, 1)
		return httpmock.NewStringResponse(status, body), nil
	}
}

func get(t *testing.T, tr http.RoundTripper, path string) (*http.Response, string, error) {
	req, err := http.NewRequest(http.MethodGet, baseURL+path, nil)
	require.NoError(t, err)
	resp, err := tr.RoundTrip(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body), nil
}

func TestStrategyFor(t *testing.T) {
	tests := []struct {
		method, path, accept string
		want                 swcache.Strategy
	}{
		{http.MethodGet, "/assets/index-4f2a.js", "", swcache.CacheFirst},
		{http.MethodGet, "/logo.PNG", "", swcache.CacheFirst},
		{http.MethodGet, "/fonts/inter.woff2", "", swcache.CacheFirst},
		{http.MethodGet, "/api/classes", "", swcache.NetworkFirst},
		{http.MethodGet, "/api/students/123", "", swcache.NetworkFirst},
		{http.MethodGet, "/api/schools/current", "", swcache.NetworkFirst},
		{http.MethodGet, "/api/classesroom", "", swcache.PassThrough},
		{http.MethodGet, "/api/users", "", swcache.PassThrough},
		{http.MethodGet, "/version.json", "", swcache.PassThrough},
		{http.MethodGet, "/", "", swcache.StaleWhileRevalidate},
		{http.MethodGet, "/index.html", "", swcache.StaleWhileRevalidate},
		{http.MethodGet, "/dashboard", "", swcache.StaleWhileRevalidate},
		{http.MethodGet, "/report.pdf", "text/html,application/xhtml+xml", swcache.StaleWhileRevalidate},
		{http.MethodGet, "/report.pdf", "", swcache.PassThrough},
		{http.MethodPost, "/api/classes", "", swcache.PassThrough},
		{http.MethodPatch, "/assets/app.css", "", swcache.PassThrough},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, baseURL+tt.path, nil)
			require.NoError(t, err)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			assert.Equal(t, tt.want, swcache.StrategyFor(req), swcache.StrategyFor(req).String())
		})
	}
}

func TestTransport_cacheFirst(t *testing.T) {
	tr, network, _ := setup(t)
	var calls int32
	network.RegisterResponder(http.MethodGet, baseURL+"/assets/app.js", counted(&calls, http.StatusOK, "console.log(1)"))

	cnt, err := tr.Precache(ctxBg, []string{baseURL + "/assets/app.js"})
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
	assert.EqualValues(t, 1, calls)

	// served from the cache, no round trip even with the network down
	network.RegisterResponder(http.MethodGet, baseURL+"/assets/app.js", httpmock.NewErrorResponder(errors.New("offline")))
	resp, body, err := get(t, tr, "/assets/app.js")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "console.log(1)", body)
	assert.Equal(t, "hit", resp.Header.Get(swcache.HeaderCache))
	assert.EqualValues(t, 1, calls)
}

func TestTransport_cacheFirstMiss(t *testing.T) {
	tr, network, _ := setup(t)
	var calls int32
	network.RegisterResponder(http.MethodGet, baseURL+"/assets/missing.css", counted(&calls, http.StatusNotFound, "not found"))
	network.RegisterResponder(http.MethodGet, baseURL+"/assets/app.css", counted(&calls, http.StatusOK, "body{}"))

	// errors are not cached
	for i := 0; i < 2; i++ {
		resp, _, err := get(t, tr, "/assets/missing.css")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
	assert.EqualValues(t, 2, calls)

	resp, body, err := get(t, tr, "/assets/app.css")
	require.NoError(t, err)
	assert.Equal(t, "miss", resp.Header.Get(swcache.HeaderCache))
	assert.Equal(t, "body{}", body)
	_, _, err = get(t, tr, "/assets/app.css")
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls)
}

func TestTransport_networkFirst(t *testing.T) {
	tr, network, _ := setup(t)
	var calls int32
	network.RegisterResponder(http.MethodGet, baseURL+"/api/classes", counted(&calls, http.StatusOK, `[{"id":"c1"}]`))

	resp, body, err := get(t, tr, "/api/classes")
	require.NoError(t, err)
	assert.Equal(t, "miss", resp.Header.Get(swcache.HeaderCache))
	assert.Equal(t, `[{"id":"c1"}]`, body)

	network.RegisterResponder(http.MethodGet, baseURL+"/api/classes", counted(&calls, http.StatusOK, `[{"id":"c1"},{"id":"c2"}]`))
	_, body, err = get(t, tr, "/api/classes")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"c1"},{"id":"c2"}]`, body)
	assert.EqualValues(t, 2, calls)

	t.Run("offline falls back to cache", func(t *testing.T) {
		network.RegisterResponder(http.MethodGet, baseURL+"/api/classes", httpmock.NewErrorResponder(errors.New("offline")))
		resp, body, err := get(t, tr, "/api/classes")
		require.NoError(t, err)
		assert.Equal(t, "stale", resp.Header.Get(swcache.HeaderCache))
		assert.Equal(t, `[{"id":"c1"},{"id":"c2"}]`, body)
	})

	t.Run("server error falls back to cache", func(t *testing.T) {
		network.RegisterResponder(http.MethodGet, baseURL+"/api/classes", httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway"))
		resp, _, err := get(t, tr, "/api/classes")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("nothing cached", func(t *testing.T) {
		network.RegisterResponder(http.MethodGet, baseURL+"/api/teachers", httpmock.NewErrorResponder(errors.New("offline")))
		_, _, err := get(t, tr, "/api/teachers")
		assert.Error(t, err)

		network.RegisterResponder(http.MethodGet, baseURL+"/api/teachers", httpmock.NewStringResponder(http.StatusServiceUnavailable, "down"))
		resp, _, err := get(t, tr, "/api/teachers")
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("client errors are not replaced", func(t *testing.T) {
		network.RegisterResponder(http.MethodGet, baseURL+"/api/classes", httpmock.NewStringResponder(http.StatusUnauthorized, "unauthorized"))
		resp, _, err := get(t, tr, "/api/classes")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestTransport_staleWhileRevalidate(t *testing.T) {
	tr, network, _ := setup(t)
	var calls int32
	network.RegisterResponder(http.MethodGet, baseURL+"/", counted(&calls, http.StatusOK, "<html>v1</html>"))

	resp, body, err := get(t, tr, "/")
	require.NoError(t, err)
	assert.Equal(t, "miss", resp.Header.Get(swcache.HeaderCache))
	assert.Equal(t, "<html>v1</html>", body)

	network.RegisterResponder(http.MethodGet, baseURL+"/", counted(&calls, http.StatusOK, "<html>v2</html>"))
	resp, body, err = get(t, tr, "/")
	require.NoError(t, err)
	assert.Equal(t, "stale", resp.Header.Get(swcache.HeaderCache))
	assert.Equal(t, "<html>v1</html>", body)

	tr.Wait()
	assert.EqualValues(t, 2, calls)

	network.RegisterResponder(http.MethodGet, baseURL+"/", httpmock.NewErrorResponder(errors.New("offline")))
	_, body, err = get(t, tr, "/")
	require.NoError(t, err)
	assert.Equal(t, "<html>v2</html>", body)
	tr.Wait()
}

func TestTransport_passThrough(t *testing.T) {
	tr, network, store := setup(t)
	var calls int32
	network.RegisterResponder(http.MethodPost, baseURL+"/api/classes", counted(&calls, http.StatusCreated, `{"id":"c1"}`))

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/classes", nil)
	require.NoError(t, err)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	_, err = store.GetCached(ctxBg, baseURL+"/api/classes")
	assert.Equal(t, offlinedb.ErrNotFound, err)
}

func TestTransport_Precache(t *testing.T) {
	tr, network, _ := setup(t)
	network.RegisterResponder(http.MethodGet, baseURL+"/", httpmock.NewStringResponder(http.StatusOK, "<html></html>"))
	network.RegisterResponder(http.MethodGet, baseURL+"/manifest.json", httpmock.NewStringResponder(http.StatusNotFound, ""))

	cnt, err := tr.Precache(ctxBg, []string{baseURL + "/", baseURL + "/manifest.json"})
	assert.Error(t, err)
	assert.Equal(t, 1, cnt)
}

func TestTransport_CheckVersion(t *testing.T) {
	tr, network, store := setup(t)
	network.RegisterResponder(http.MethodGet, baseURL+"/assets/app.js", httpmock.NewStringResponder(http.StatusOK, "v1"))
	_, err := tr.Precache(ctxBg, []string{baseURL + "/assets/app.js"})
	require.NoError(t, err)

	check := func(version string, wantChanged bool) {
		t.Helper()
		network.RegisterResponder(http.MethodGet, baseURL+"/version.json", httpmock.NewStringResponder(http.StatusOK, `{"version": "`+version+`"}`))
		got, changed, err := tr.CheckVersion(ctxBg, baseURL+"/version.json")
		require.NoError(t, err)
		assert.Equal(t, version, got)
		assert.Equal(t, wantChanged, changed)
	}

	check("1.0.0", true)
	_, err = store.GetCached(ctxBg, baseURL+"/assets/app.js")
	assert.Equal(t, offlinedb.ErrNotFound, err)

	_, err = tr.Precache(ctxBg, []string{baseURL + "/assets/app.js"})
	require.NoError(t, err)
	check("1.0.0", false)
	_, err = store.GetCached(ctxBg, baseURL+"/assets/app.js")
	assert.NoError(t, err)

	check("1.1.0", true)
	_, err = store.GetCached(ctxBg, baseURL+"/assets/app.js")
	assert.Equal(t, offlinedb.ErrNotFound, err)

	ver, err := store.GetMeta(ctxBg, swcache.VersionKey)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", ver)

	network.RegisterResponder(http.MethodGet, baseURL+"/version.json", httpmock.NewStringResponder(http.StatusInternalServerError, ""))
	_, _, err = tr.CheckVersion(ctxBg, baseURL+"/version.json")
	assert.Error(t, err)
}
