package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/conversion-cli/internal/analysis"
	"github.com/sells-group/conversion-cli/internal/config"
	"github.com/sells-group/conversion-cli/internal/geo"
	"github.com/sells-group/conversion-cli/internal/layer"
	"github.com/sells-group/conversion-cli/internal/scorer"
	"github.com/sells-group/conversion-cli/internal/store"
	"github.com/sells-group/conversion-cli/internal/zone"
)

func testServer(t *testing.T, runs store.Store) *httptest.Server {
	t.Helper()

	score := 80.0
	center := geo.Point{Lat: 29.7499, Lng: -95.3582}
	zones := zone.NewRegistry([]zone.Zone{
		{ID: "midtown", Name: "Midtown", Center: center, RadiusMeters: 1000},
	})
	layers := layer.Layers{
		Buildings: []layer.Building{
			{Name: "1600 Smith St", Location: center, Category: "office", ConversionScore: &score},
		},
	}
	analyzer := analysis.New(zones, layers, scorer.DefaultScoringConfig())

	srv := httptest.NewServer(New(analyzer, zones, runs, config.ServerConfig{
		RatePerSecond: 1000,
		RateBurst:     1000,
	}).Router())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestAPI_Health(t *testing.T) {
	srv := testServer(t, nil)

	var body map[string]string
	code := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestAPI_Zones(t *testing.T) {
	srv := testServer(t, nil)

	var zones []zone.Zone
	code := getJSON(t, srv.URL+"/zones", &zones)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, zones, 1)
	assert.Equal(t, "midtown", zones[0].ID)
}

func TestAPI_ZoneAnalysis(t *testing.T) {
	srv := testServer(t, nil)

	var result analysis.Result
	code := getJSON(t, srv.URL+"/zones/midtown/analysis", &result)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "midtown", result.Zone.ID)
	require.Len(t, result.ConversionCandidates, 1)
	assert.InDelta(t, 0.39, result.ConversionCandidates[0].ConversionScore, 1e-9)
}

func TestAPI_ZoneAnalysis_UnknownZone(t *testing.T) {
	srv := testServer(t, nil)

	var body map[string]string
	code := getJSON(t, srv.URL+"/zones/katy/analysis", &body)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body["error"], "katy")
}

func TestAPI_Runs_NoStore(t *testing.T) {
	srv := testServer(t, nil)

	code := getJSON(t, srv.URL+"/runs", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestAPI_Runs_ListAndGet(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	run, err := st.CreateRun(context.Background(), []string{"midtown"})
	require.NoError(t, err)

	srv := testServer(t, st)

	var runs []store.Run
	code := getJSON(t, srv.URL+"/runs", &runs)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	var fetched store.Run
	code = getJSON(t, srv.URL+"/runs/"+run.ID, &fetched)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, run.ID, fetched.ID)

	code = getJSON(t, srv.URL+"/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPI_RateLimit(t *testing.T) {
	score := 80.0
	center := geo.Point{Lat: 29.7499, Lng: -95.3582}
	zones := zone.NewRegistry([]zone.Zone{
		{ID: "midtown", Name: "Midtown", Center: center, RadiusMeters: 1000},
	})
	layers := layer.Layers{
		Buildings: []layer.Building{
			{Name: "1600 Smith St", Location: center, ConversionScore: &score},
		},
	}
	analyzer := analysis.New(zones, layers, scorer.DefaultScoringConfig())

	srv := httptest.NewServer(New(analyzer, zones, nil, config.ServerConfig{
		RatePerSecond: 1,
		RateBurst:     1,
	}).Router())
	t.Cleanup(srv.Close)

	code := getJSON(t, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, code)

	// Burst of 1 is spent; the immediate second request is shed.
	code = getJSON(t, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
}
