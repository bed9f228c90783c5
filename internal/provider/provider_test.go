package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jmehdipour/stocksync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profileServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPProviderFetchProfile(t *testing.T) {
	srv := profileServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profile", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "k", r.URL.Query().Get("apikey"))
		_, _ = w.Write([]byte(`[{"symbol":"AAPL","companyName":"Apple Inc.","marketCap":3.5e12,"currency":"USD","exchange":"NASDAQ","sector":"Technology","ipoDate":"1980-12-12"}]`))
	})

	p := NewHTTPProvider("fmp", srv.URL, "/profile", "k", 1000, 3, 1000)
	prof, err := p.FetchProfile(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", prof.CompanyName)

	c := prof.Company()
	assert.Equal(t, "AAPL", c.Symbol)
	require.NotNil(t, c.Sector)
	assert.Equal(t, "Technology", *c.Sector)
	assert.Nil(t, c.Industry)
	require.NotNil(t, c.IPODate)
	assert.Equal(t, 1980, c.IPODate.Year())
}

func TestHTTPProviderEmptyListIsNotFound(t *testing.T) {
	srv := profileServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	p := NewHTTPProvider("fmp", srv.URL, "", "", 1000, 1, 1000)
	_, err := p.FetchProfile(context.Background(), "NOPE")
	require.ErrorIs(t, err, ErrNotFound)
	assert.True(t, p.Ready(), "not found must not trip the breaker")
}

func TestHTTPProviderErrorMessageBody(t *testing.T) {
	srv := profileServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Error Message":"Invalid API KEY."}`))
	})

	p := NewHTTPProvider("fmp", srv.URL, "", "bad", 1000, 1, 60000)
	_, err := p.FetchProfile(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API KEY.")
	assert.False(t, p.Ready())
}

func TestPoolRetriesAcrossProviders(t *testing.T) {
	var badCalls atomic.Int32
	bad := profileServer(t, func(w http.ResponseWriter, _ *http.Request) {
		badCalls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	good := profileServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"symbol":"MSFT","companyName":"Microsoft"}]`))
	})

	pool := NewPool([]Provider{
		NewHTTPProvider("bad", bad.URL, "", "", 1000, 5, 1000),
		NewHTTPProvider("good", good.URL, "", "", 1000, 5, 1000),
	}, 2)

	prof, err := pool.FetchProfile(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "Microsoft", prof.CompanyName)
	assert.Equal(t, int32(1), badCalls.Load())
}

func TestPoolDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := profileServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[]`))
	})

	pool := NewPool([]Provider{NewHTTPProvider("fmp", srv.URL, "", "", 1000, 5, 1000)}, 3)
	_, err := pool.FetchProfile(context.Background(), "ZZZZ")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPoolNoHealthyProviders(t *testing.T) {
	srv := profileServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	pool := NewPool([]Provider{NewHTTPProvider("fmp", srv.URL, "", "", 1000, 1, 60000)}, 3)
	_, err := pool.FetchProfile(context.Background(), "AAPL")
	require.ErrorIs(t, err, ErrNoHealthy)
}

func TestNewPoolFromConfigSkipsDisabled(t *testing.T) {
	_, err := NewPoolFromConfig([]config.ProviderConfig{{Name: "off", Enabled: false}})
	require.Error(t, err)

	pool, err := NewPoolFromConfig([]config.ProviderConfig{
		{Name: "off", Enabled: false, MaxAttempts: 9},
		{Name: "fmp", Enabled: true, BaseURL: "http://x", MaxAttempts: 4},
	})
	require.NoError(t, err)
	assert.Len(t, pool.providers, 1)
	assert.Equal(t, 4, pool.maxAttempts)
}
