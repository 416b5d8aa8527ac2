package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panyam/adaptiva/charts"
	"github.com/panyam/adaptiva/config"
	"github.com/panyam/adaptiva/services"
	"github.com/panyam/adaptiva/services/llm"
	"github.com/panyam/adaptiva/tables"
)

const unitsCSV = "region,units\nEast,3\nWest,5\nEast,2\n"

func newTestApp(t *testing.T, client llm.LLMClient, limits config.RateLimitConfig) *httptest.Server {
	t.Helper()
	store := tables.NewMemoryStore()
	chartStore, err := services.NewFileChartStore(t.TempDir())
	require.NoError(t, err)
	app := NewChartsApp(
		services.NewDatasetService(store, tables.Limits{}, 1<<20),
		services.NewChartService(
			charts.NewRenderer(store, tables.Limits{}),
			services.NewSuggester(store, tables.Limits{}, client, services.DefaultSuggestOptions()),
		),
		services.NewSavedChartService(chartStore),
		limits,
	)
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func doJSON(t *testing.T, c *http.Client, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func uploadCSV(t *testing.T, c *http.Client, base, filename, content string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := c.Post(base+"/api/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func barSpec(datasetID, y string) map[string]any {
	return map[string]any{
		"dataset_ref": map[string]any{"dataset_id": datasetID},
		"chart_type":  "bar",
		"x_axis":      map[string]any{"column": "region"},
		"y_axis":      map[string]any{"columns": []string{y}},
		"aggregation": map[string]any{"method": "sum", "group_by": []string{"region"}},
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestApp(t, nil, config.RateLimitConfig{})
	resp, body := doJSON(t, newClient(t), "GET", srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestDatasetEndpoints(t *testing.T) {
	srv := newTestApp(t, nil, config.RateLimitConfig{})
	c := newClient(t)

	t.Run("Success Case", func(t *testing.T) {
		resp, up := uploadCSV(t, c, srv.URL, "units.csv", unitsCSV)
		require.Equal(t, http.StatusOK, resp.StatusCode, up)
		id := up["dataset_id"].(string)
		assert.Equal(t, 3.0, up["rows"])
		assert.Equal(t, []any{"region", "units"}, up["column_names"])

		resp, ds := doJSON(t, c, "GET", srv.URL+"/api/datasets/"+id, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "units.csv", ds["filename"])

		resp, list := doJSON(t, c, "GET", srv.URL+"/api/datasets", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, list["datasets"], 1)

		resp, pv := doJSON(t, c, "GET", srv.URL+"/api/datasets/"+id+"/preview?max_rows=2", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 2.0, pv["preview_rows"])
		assert.Equal(t, 3.0, pv["total_rows"])

		resp, ins := doJSON(t, c, "GET", srv.URL+"/api/datasets/"+id+"/insights", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 3.0, ins["rows"])

		resp, cl := doJSON(t, c, "POST", srv.URL+"/api/datasets/"+id+"/clean", map[string]any{"drop_duplicates": true})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 3.0, cl["rows_after"])

		resp, _ = doJSON(t, c, "DELETE", srv.URL+"/api/datasets/"+id, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, gone := doJSON(t, c, "GET", srv.URL+"/api/datasets/"+id, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "dataset_not_found", gone["code"])
	})

	t.Run("Missing File Field", func(t *testing.T) {
		resp, body := doJSON(t, c, "POST", srv.URL+"/api/upload", "{}")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_request", body["code"])
	})

	t.Run("Unsupported Format", func(t *testing.T) {
		resp, body := uploadCSV(t, c, srv.URL, "units.pdf", unitsCSV)
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
		assert.Equal(t, "unsupported_format", body["code"])
	})

	t.Run("Bad Preview Size", func(t *testing.T) {
		_, up := uploadCSV(t, c, srv.URL, "units.csv", unitsCSV)
		id := up["dataset_id"].(string)
		resp, body := doJSON(t, c, "GET", srv.URL+"/api/datasets/"+id+"/preview?max_rows=abc", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_request", body["code"])
	})
}

func TestChartEndpoints(t *testing.T) {
	srv := newTestApp(t, nil, config.RateLimitConfig{})
	c := newClient(t)
	_, up := uploadCSV(t, c, srv.URL, "units.csv", unitsCSV)
	id := up["dataset_id"].(string)

	t.Run("Render", func(t *testing.T) {
		resp, body := doJSON(t, c, "POST", srv.URL+"/api/charts/render", barSpec(id, "units"))
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		fig := body["figure"].(map[string]any)
		trace := fig["data"].([]any)[0].(map[string]any)
		assert.Equal(t, []any{"East", "West"}, trace["x"])
		assert.Equal(t, []any{5.0, 5.0}, trace["y"])
		assert.Equal(t, "1.0", body["spec_version"])
	})

	t.Run("Render Rejected", func(t *testing.T) {
		resp, body := doJSON(t, c, "POST", srv.URL+"/api/charts/render", barSpec(id, "price"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "spec_rejected", body["code"])
		issues := body["details"].([]any)
		require.NotEmpty(t, issues)
		assert.Equal(t, "column_not_found", issues[0].(map[string]any)["code"])
	})

	t.Run("Malformed Spec", func(t *testing.T) {
		resp, body := doJSON(t, c, "POST", srv.URL+"/api/charts/render", `{"chart_type": "bar", "colour": "red"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "invalid_spec", body["code"])
	})

	t.Run("Validate", func(t *testing.T) {
		resp, body := doJSON(t, c, "POST", srv.URL+"/api/charts/validate", barSpec(id, "price"))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, false, body["valid"])
	})

	t.Run("Render SVG", func(t *testing.T) {
		data, err := json.Marshal(barSpec(id, "units"))
		require.NoError(t, err)
		resp, err := c.Post(srv.URL+"/api/charts/render.svg", "application/json", bytes.NewReader(data))
		require.NoError(t, err)
		defer resp.Body.Close()
		svg, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
		assert.Contains(t, string(svg), ">East</text>")
	})
}

func TestSuggestEndpoint(t *testing.T) {
	answer := `{"chart_type": "pie", "x_axis": {"column": "region"}, "explanation": "share", "confidence": 0.8}`

	t.Run("Daily Quota", func(t *testing.T) {
		mock := &llm.MockLLMClient{ResponseToReturn: answer}
		srv := newTestApp(t, mock, config.RateLimitConfig{AnonymousDailyLimit: 2, BurstPerMinute: -1, GlobalDailyLimit: -1})
		c := newClient(t)
		_, up := uploadCSV(t, c, srv.URL, "units.csv", unitsCSV)
		req := map[string]any{"dataset_ref": map[string]any{"dataset_id": up["dataset_id"]}, "render": true}

		for i := range 2 {
			resp, body := doJSON(t, c, "POST", srv.URL+"/api/charts/suggest", req)
			require.Equal(t, http.StatusOK, resp.StatusCode, body)
			assert.Equal(t, fmt.Sprint(1-i), resp.Header.Get("X-RateLimit-Remaining"))
			assert.NotNil(t, body["render"])
		}
		resp, body := doJSON(t, c, "POST", srv.URL+"/api/charts/suggest", req)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "rate_limited", body["code"])
		assert.Equal(t, 2, mock.Calls)
	})

	t.Run("Dropping The Session Keeps The Quota", func(t *testing.T) {
		mock := &llm.MockLLMClient{ResponseToReturn: answer}
		srv := newTestApp(t, mock, config.RateLimitConfig{AnonymousDailyLimit: 2, BurstPerMinute: -1, GlobalDailyLimit: -1})
		_, up := uploadCSV(t, newClient(t), srv.URL, "units.csv", unitsCSV)
		req := map[string]any{"dataset_ref": map[string]any{"dataset_id": up["dataset_id"]}}

		// No cookie jar: every request starts a fresh session from the same IP.
		for range 2 {
			resp, body := doJSON(t, &http.Client{}, "POST", srv.URL+"/api/charts/suggest", req)
			require.Equal(t, http.StatusOK, resp.StatusCode, body)
		}
		resp, body := doJSON(t, &http.Client{}, "POST", srv.URL+"/api/charts/suggest", req)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "rate_limited", body["code"])
		assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
		assert.Equal(t, 2, mock.Calls)
	})

	t.Run("Global Daily Cap", func(t *testing.T) {
		mock := &llm.MockLLMClient{ResponseToReturn: answer}
		srv := newTestApp(t, mock, config.RateLimitConfig{AnonymousDailyLimit: 5, BurstPerMinute: -1, GlobalDailyLimit: 2})
		_, up := uploadCSV(t, newClient(t), srv.URL, "units.csv", unitsCSV)
		data, err := json.Marshal(map[string]any{"dataset_ref": map[string]any{"dataset_id": up["dataset_id"]}})
		require.NoError(t, err)

		suggestFrom := func(ip string) *http.Response {
			req, err := http.NewRequest("POST", srv.URL+"/api/charts/suggest", bytes.NewReader(data))
			require.NoError(t, err)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Forwarded-For", ip)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			return resp
		}
		assert.Equal(t, http.StatusOK, suggestFrom("10.0.0.1").StatusCode)
		assert.Equal(t, http.StatusOK, suggestFrom("10.0.0.2").StatusCode)
		resp := suggestFrom("10.0.0.3")
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "5", resp.Header.Get("X-RateLimit-Remaining"), "the client's own quota is untouched")
		assert.Equal(t, 2, mock.Calls)
	})

	t.Run("Burst Limit", func(t *testing.T) {
		mock := &llm.MockLLMClient{ResponseToReturn: answer}
		srv := newTestApp(t, mock, config.RateLimitConfig{AnonymousDailyLimit: -1, BurstPerMinute: 1, GlobalDailyLimit: -1})
		c := newClient(t)
		_, up := uploadCSV(t, c, srv.URL, "units.csv", unitsCSV)
		req := map[string]any{"dataset_ref": map[string]any{"dataset_id": up["dataset_id"]}}

		resp, _ := doJSON(t, c, "POST", srv.URL+"/api/charts/suggest", req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp, _ = doJSON(t, c, "POST", srv.URL+"/api/charts/suggest", req)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "60", resp.Header.Get("Retry-After"))
	})

	t.Run("No LLM Client", func(t *testing.T) {
		srv := newTestApp(t, nil, config.RateLimitConfig{AnonymousDailyLimit: -1, BurstPerMinute: -1, GlobalDailyLimit: -1})
		c := newClient(t)
		_, up := uploadCSV(t, c, srv.URL, "units.csv", unitsCSV)
		resp, body := doJSON(t, c, "POST", srv.URL+"/api/charts/suggest",
			map[string]any{"dataset_ref": map[string]any{"dataset_id": up["dataset_id"]}})
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "api_key_missing", body["code"])
	})
}

func TestSavedChartEndpoints(t *testing.T) {
	srv := newTestApp(t, nil, config.RateLimitConfig{})
	c := newClient(t)

	resp, saved := doJSON(t, c, "POST", srv.URL+"/api/charts/saved",
		map[string]any{"name": "Units by region", "spec": barSpec("ds1", "units")})
	require.Equal(t, http.StatusCreated, resp.StatusCode, saved)
	id := saved["id"].(string)
	assert.Equal(t, "1.0", saved["spec"].(map[string]any)["version"])

	resp, list := doJSON(t, c, "GET", srv.URL+"/api/charts/saved", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list["charts"], 1)

	resp, got := doJSON(t, c, "GET", srv.URL+"/api/charts/saved/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Units by region", got["name"])

	resp, _ = doJSON(t, c, "DELETE", srv.URL+"/api/charts/saved/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := doJSON(t, c, "GET", srv.URL+"/api/charts/saved/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["code"])

	resp, body = doJSON(t, c, "POST", srv.URL+"/api/charts/saved", map[string]any{"name": "broken"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "invalid_spec", body["code"])
}

func TestServerServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	listening := make(chan net.Addr, 1)
	s := &Server{
		Address:   "127.0.0.1:0",
		Handler:   http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "hi") }),
		Listening: listening,
	}
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	addr := <-listening
	resp, err := http.Get("http://" + addr.String())
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "hi", string(body))

	cancel()
	assert.NoError(t, <-done)
}
