package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/site-portfolio/infrastructure/circuitbreaker"
	apperrors "github.com/jonesrussell/site-portfolio/infrastructure/errors"
	infraretry "github.com/jonesrussell/site-portfolio/infrastructure/retry"
	"github.com/jonesrussell/site-portfolio/internal/models"
	"github.com/jonesrussell/site-portfolio/internal/testhelpers"
)

func newTestGoogle(t *testing.T, handler http.HandlerFunc) *Google {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g := NewGoogle(Config{
		HTTPClient:        srv.Client(),
		Credentials:       []byte(`{"type":"service_account"}`),
		RequestsPerSecond: 1000,
		Burst:             10,
		Retry: infraretry.Config{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
		},
	}, testhelpers.NewTestLogger())

	g.authorize = func([]byte) (*http.Client, error) { return srv.Client(), nil }
	for _, a := range []api{apiData, apiAdmin, apiSearchConsole} {
		g.endpoints[a] = srv.URL + "/"
	}
	return g
}

func testRange(t *testing.T) models.DateRange {
	t.Helper()
	start, err := models.ParseDate("2024-03-01")
	require.NoError(t, err)
	end, err := models.ParseDate("2024-03-02")
	require.NoError(t, err)
	return models.DateRange{Start: start, End: end}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func gaRow(date string, values ...string) map[string]any {
	metrics := make([]map[string]string, len(values))
	for i, v := range values {
		metrics[i] = map[string]string{"value": v}
	}
	return map[string]any{
		"dimensionValues": []map[string]string{{"value": date}},
		"metricValues":    metrics,
	}
}

func TestGoogle_FetchTraffic(t *testing.T) {
	var gotPath string
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeJSON(t, w, map[string]any{
			"rows": []any{
				gaRow("20240301", "10", "8", "3", "25", "0.42", "61.5"),
				gaRow("20240302", "12", "9", "4", "30", "0.5", "70"),
			},
		})
	})

	conn := &models.Connector{PropertyID: "123456"}
	rows, err := g.FetchTraffic(context.Background(), conn, testRange(t))
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(gotPath, "properties/123456:runReport"), gotPath)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-03-01", rows[0].Date.String())
	assert.Equal(t, int64(10), rows[0].Sessions)
	assert.Equal(t, int64(25), rows[0].Pageviews)
	assert.InDelta(t, 0.42, rows[0].BounceRate, 1e-9)
	assert.Equal(t, models.TrafficSourceGoogleAnalytics, rows[1].Source)
}

func TestGoogle_FetchTraffic_RetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	g := newTestGoogle(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			writeJSON(t, w, map[string]any{"error": map[string]any{"code": 503, "message": "backend"}})
			return
		}
		writeJSON(t, w, map[string]any{"rows": []any{gaRow("20240301", "1", "1", "1", "1", "0", "0")}})
	})

	rows, err := g.FetchTraffic(context.Background(), &models.Connector{PropertyID: "1"}, testRange(t))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGoogle_FetchTraffic_PermissionDeniedNotRetried(t *testing.T) {
	var calls atomic.Int32
	g := newTestGoogle(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		writeJSON(t, w, map[string]any{"error": map[string]any{"code": 403, "message": "no access"}})
	})

	_, err := g.FetchTraffic(context.Background(), &models.Connector{PropertyID: "1"}, testRange(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run traffic report")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGoogle_BreakerOpensOnRepeatedOutage(t *testing.T) {
	var calls atomic.Int32
	g := newTestGoogle(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(t, w, map[string]any{"error": map[string]any{"code": 503, "message": "backend"}})
	})
	g.breakers[apiData] = circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: 1,
		Cooldown:         time.Hour,
		IsFailure:        isRetryable,
	})

	_, err := g.FetchTraffic(context.Background(), &models.Connector{PropertyID: "1"}, testRange(t))
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	_, err = g.FetchTraffic(context.Background(), &models.Connector{PropertyID: "1"}, testRange(t))
	require.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGoogle_PermissionDeniedLeavesBreakerClosed(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		writeJSON(t, w, map[string]any{"error": map[string]any{"code": 403, "message": "no access"}})
	})
	g.breakers[apiSearchConsole] = circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: 1,
		IsFailure:        isRetryable,
	})

	for range 2 {
		_, err := g.ListSearchSites(context.Background(), "")
		require.Error(t, err)
		assert.NotErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	}
	assert.Equal(t, circuitbreaker.StateClosed, g.breakers[apiSearchConsole].State())
}

func TestGoogle_FetchReferralSources(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{
			"rows": []any{gaRow("partner.io", "40"), gaRow("google", "300")},
		})
	})

	sources, err := g.FetchReferralSources(context.Background(), &models.Connector{PropertyID: "1"}, testRange(t))
	require.NoError(t, err)
	assert.Equal(t, []ReferralSource{{"partner.io", 40}, {"google", 300}}, sources)
}

func TestGoogle_FetchSearchConsole(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "searchAnalytics/query")
		writeJSON(t, w, map[string]any{
			"rows": []map[string]any{
				{"keys": []string{"2024-03-01"}, "clicks": 4, "impressions": 120, "ctr": 0.033, "position": 8.2},
			},
		})
	})

	rows, err := g.FetchSearchConsole(context.Background(),
		&models.Connector{PropertyID: "sc-domain:example.com"}, testRange(t))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(4), rows[0].Clicks)
	assert.Equal(t, int64(120), rows[0].Impressions)
	assert.InDelta(t, 8.2, rows[0].Position, 1e-9)
}

func TestGoogle_ListSearchSites(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{
			"siteEntry": []map[string]string{
				{"siteUrl": "sc-domain:example.com", "permissionLevel": "siteOwner"},
				{"siteUrl": "https://www.blog.io/", "permissionLevel": "siteFullUser"},
			},
		})
	})

	sites, err := g.ListSearchSites(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "example.com", sites[0].Domain)
	assert.Equal(t, "blog.io", sites[1].Domain)
}

func TestGoogle_ClientFor(t *testing.T) {
	g := NewGoogle(Config{RequestsPerSecond: 1}, testhelpers.NewTestLogger())

	_, err := g.clientFor("")
	require.ErrorIs(t, err, ErrNoCredentials)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	var built int
	g.authorize = func([]byte) (*http.Client, error) {
		built++
		return &http.Client{}, nil
	}
	first, err := g.clientFor(`{"a":1}`)
	require.NoError(t, err)
	second, err := g.clientFor(`{"a":1}`)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, built)
}

func TestGoogle_InvalidCredentials(t *testing.T) {
	g := NewGoogle(Config{RequestsPerSecond: 1}, testhelpers.NewTestLogger())

	_, err := g.clientFor("not json")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestPropertyName(t *testing.T) {
	assert.Equal(t, "properties/42", PropertyName("42"))
	assert.Equal(t, "properties/42", PropertyName(" properties/42 "))
}

func TestSearchSiteDomain(t *testing.T) {
	assert.Equal(t, "example.com", SearchSiteDomain("sc-domain:example.com"))
	assert.Equal(t, "example.com", SearchSiteDomain("https://www.example.com/"))
	assert.Empty(t, SearchSiteDomain(""))
}
