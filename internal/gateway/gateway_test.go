package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"college-predictor/internal/common/config"
	"college-predictor/internal/common/logger"
	"college-predictor/internal/cutoff"
	"college-predictor/internal/dataset"
	"college-predictor/internal/render"
)

// ==========================
// Test Helper Functions
// ==========================

func fixture() *dataset.Memory {
	gm := func(v string) map[string]string { return map[string]string{"GM": v} }
	return dataset.NewMemory().
		Add(cutoff.RoundFirst,
			dataset.Row{Institution: "RVCE", Program: "CS Computers", Cutoffs: gm("500")},
			dataset.Row{Institution: "BMSCE", Program: "EE Electrical", Cutoffs: gm("2500")},
			dataset.Row{Institution: "PESU", Program: "ME Mechanical", Cutoffs: gm("--")},
		).
		Add(cutoff.RoundSecond,
			dataset.Row{Institution: "RVCE", Program: "CS Computers", Cutoffs: gm("800")},
			dataset.Row{Institution: "PESU", Program: "ME Mechanical", Cutoffs: gm("3000")},
			dataset.Row{Institution: "MSRIT", Program: "EC Electronics", Cutoffs: gm("1800")},
		).
		Add(cutoff.RoundThird,
			dataset.Row{Institution: "RVCE", Program: "CS Computers", Cutoffs: gm("1100")},
			dataset.Row{Institution: "SIT", Program: "CS Computers", Cutoffs: gm("4000")},
		)
}

func newTestServer(t *testing.T, ds cutoff.Dataset, cfg Config, renderer Renderer, opts ...Option) http.Handler {
	t.Helper()
	catalog, err := cutoff.DefaultCatalog()
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	svc := cutoff.NewService(ds, cutoff.NewCategorySet([]string{"GM", "2AG"}), catalog, cutoff.DefaultPresentation(), log)
	if renderer == nil {
		renderer = render.NewPDFRenderer()
	}
	return New(cfg, svc, renderer, log, opts...).Handler()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

type errorBody struct {
	Error struct {
		Code      string                 `json:"code"`
		Retryable bool                   `json:"retryable"`
		Metadata  map[string]interface{} `json:"metadata"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

type blockingDataset struct{}

func (blockingDataset) ScanRound(ctx context.Context, _ cutoff.Round, _ cutoff.Category) ([]cutoff.CutoffRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type failingRenderer struct{}

func (failingRenderer) Render(io.Writer, render.ExportDocument) error { return errors.New("font missing") }
func (failingRenderer) ContentType() string                          { return "application/pdf" }
func (failingRenderer) Filename() string                             { return "x.pdf" }

// ==========================
// /api/offers
// ==========================

func TestOffersPage(t *testing.T) {
	h := newTestServer(t, fixture(), Config{}, nil)

	rec := get(t, h, "/api/offers?rank=600&category=GM")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var page cutoff.ResultPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.PageNumber)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, 600, page.Rank)
	assert.Equal(t, "GM", page.Category)
	require.Len(t, page.Offers, 5)
	assert.Equal(t, "RVCE", page.Offers[0].Institution)
	assert.Equal(t, cutoff.RoundSecond, page.Offers[0].WinningRound)
	assert.Equal(t, 60, page.Offers[0].Likelihood)
}

func TestOffersGroupFilter(t *testing.T) {
	h := newTestServer(t, fixture(), Config{}, nil)

	for _, target := range []string{
		"/api/offers?rank=600&category=GM&group=EC",
		"/api/offers?rank=600&category=GM&preferredCourse=EC",
	} {
		rec := get(t, h, target)
		require.Equal(t, http.StatusOK, rec.Code, target)

		var page cutoff.ResultPage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		require.Len(t, page.Offers, 2, target)
		assert.Equal(t, "MSRIT", page.Offers[0].Institution)
		assert.Equal(t, "BMSCE", page.Offers[1].Institution)
		assert.Equal(t, "EC", page.Group)
	}

	rec := get(t, h, "/api/offers?rank=600&category=GM&group=NOPE")
	require.Equal(t, http.StatusOK, rec.Code)
	var page cutoff.ResultPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Offers, 5, "unknown group does not filter")
}

func TestOffersValidation(t *testing.T) {
	tests := []struct {
		name   string
		target string
		code   string
	}{
		{"unknown category", "/api/offers?rank=600&category=XX", "INVALID_CATEGORY"},
		{"injected category", "/api/offers?rank=600&category=GM%22%3B--", "INVALID_CATEGORY"},
		{"missing rank", "/api/offers?category=GM", "INVALID_RANK"},
		{"non numeric rank", "/api/offers?rank=abc&category=GM", "INVALID_RANK"},
		{"zero rank", "/api/offers?rank=0&category=GM", "INVALID_RANK"},
		{"zero page", "/api/offers?rank=600&category=GM&page=0", "INVALID_PAGE"},
		{"non numeric page", "/api/offers?rank=600&category=GM&page=two", "INVALID_PAGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := fixture()
			h := newTestServer(t, mem, Config{}, nil)

			rec := get(t, h, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.False(t, body.Error.Retryable)
			assert.EqualValues(t, 0, mem.Calls(), "no scan on invalid input")
		})
	}
}

func TestOffersPageBeyondRangeIsEmpty(t *testing.T) {
	h := newTestServer(t, fixture(), Config{}, nil)

	rec := get(t, h, "/api/offers?rank=600&category=GM&page=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"offers":[]`)
}

func TestOffersDatasetUnavailable(t *testing.T) {
	mem := fixture()
	mem.FailWith(errors.New("connection reset"))
	h := newTestServer(t, mem, Config{}, nil)

	rec := get(t, h, "/api/offers?rank=600&category=GM")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "DATASET_UNAVAILABLE", body.Error.Code)
	assert.True(t, body.Error.Retryable)
	assert.NotEmpty(t, body.Error.Metadata["requestId"])
}

func TestOffersTimeout(t *testing.T) {
	h := newTestServer(t, blockingDataset{}, Config{RequestTimeout: 20 * time.Millisecond}, nil)

	rec := get(t, h, "/api/offers?rank=600&category=GM")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "QUERY_TIMEOUT", decodeError(t, rec).Error.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newTestServer(t, fixture(), Config{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/offers?rank=600&category=XX", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-42", decodeError(t, rec).Error.Metadata["requestId"])
}

// ==========================
// Export
// ==========================

func TestExportJSON(t *testing.T) {
	h := newTestServer(t, fixture(), Config{}, nil)

	rec := get(t, h, "/api/offers/export?rank=600&category=GM")
	require.Equal(t, http.StatusOK, rec.Code)

	var body ExportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 5, body.Count)
	require.Len(t, body.Offers, 5)
	assert.Equal(t, "SIT", body.Offers[0].Institution, "later rounds lead each block")
	assert.Equal(t, "BMSCE", body.Offers[4].Institution)
	assert.Equal(t, "GM", body.Category)
}

func TestExportPDF(t *testing.T) {
	h := newTestServer(t, fixture(), Config{}, nil)

	rec := get(t, h, "/api/offers/export.pdf?rank=600&category=GM")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "CollegesList.pdf")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))
}

func TestExportPDFRenderFailure(t *testing.T) {
	h := newTestServer(t, fixture(), Config{}, failingRenderer{})

	rec := get(t, h, "/api/offers/export.pdf?rank=600&category=GM")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "EXPORT_RENDER_FAILED", decodeError(t, rec).Error.Code)
}

func TestExportRejectsUnknownCategory(t *testing.T) {
	mem := fixture()
	h := newTestServer(t, mem, Config{}, nil)

	rec := get(t, h, "/api/offers/export.pdf?rank=600&category=ZZ")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, 0, mem.Calls())
}

// ==========================
// Listings and probes
// ==========================

func TestListings(t *testing.T) {
	h := newTestServer(t, fixture(), Config{}, nil)

	rec := get(t, h, "/api/categories")
	require.Equal(t, http.StatusOK, rec.Code)
	var cats struct {
		Categories []string `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cats))
	assert.Equal(t, []string{"GM", "2AG"}, cats.Categories)

	rec = get(t, h, "/api/groups")
	require.Equal(t, http.StatusOK, rec.Code)
	var groups struct {
		Groups []cutoff.ProgramGroup `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	require.Len(t, groups.Groups, 3)
	assert.Equal(t, "IT", groups.Groups[0].Name)
}

func TestHealthAndReady(t *testing.T) {
	healthy := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	h := newTestServer(t, fixture(), Config{}, nil, WithReadinessCheck("dataset", healthy))
	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/ready").Code)

	h = newTestServer(t, fixture(), Config{}, nil,
		WithReadinessCheck("dataset", healthy),
		WithReadinessCheck("cache", down),
	)
	rec := get(t, h, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, "ok", body.Checks["dataset"])
	assert.Contains(t, body.Checks["cache"], "refused")
}

func TestMetricsAndMethods(t *testing.T) {
	metricsHit := false
	h := newTestServer(t, fixture(), Config{}, nil, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metricsHit = true
	})))

	assert.Equal(t, http.StatusOK, get(t, h, "/metrics").Code)
	assert.True(t, metricsHit)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/offers?rank=1&category=GM", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestConfigFromServer(t *testing.T) {
	cfg := ConfigFromServer(config.ServerConfig{
		Address:           ":9090",
		ReadHeaderTimeout: 5000,
		WriteTimeout:      30000,
		RequestTimeout:    10000,
	})

	assert.Equal(t, ":9090", cfg.Address)
	assert.Equal(t, 5*time.Second, cfg.ReadHeaderTimeout)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}
