package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coding-agreement/internal/analysis"
	"coding-agreement/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	cross    []models.CrossSourceComparison
	within   []models.WithinTrainingComparison
	kappa    *models.KappaStatistics
	kappaErr error
}

func (s *stubSource) FetchCrossTrainingComparisons(ctx context.Context, workspaceID int, trainingIDs []int) ([]models.CrossSourceComparison, error) {
	return s.cross, nil
}

func (s *stubSource) FetchWithinTrainingComparisons(ctx context.Context, workspaceID, trainingID int) ([]models.WithinTrainingComparison, error) {
	return s.within, nil
}

func (s *stubSource) FetchKappaStatistics(ctx context.Context, workspaceID, trainingID int, weighted bool, level models.Level) (*models.KappaStatistics, error) {
	if s.kappaErr != nil {
		return nil, s.kappaErr
	}
	return s.kappa.Clone(), nil
}

func str(s string) *string { return &s }

func f64(v float64) *float64 { return &v }

func newStubSource() *stubSource {
	return &stubSource{
		cross: []models.CrossSourceComparison{{
			UnitName:   "U1",
			VariableID: "V1",
			Sources: []models.SourceEntry{
				{SourceID: 1, SourceLabel: "T1", Code: str("1")},
				{SourceID: 2, SourceLabel: "T2", Code: str("2")},
			},
		}},
		within: []models.WithinTrainingComparison{{
			UnitName:   "U1",
			VariableID: "V1",
			Coders: []models.CoderEntry{
				{CoderJobID: 1, CoderName: "Ann", Code: str("1")},
				{CoderJobID: 2, CoderName: "Ben", Code: str("1")},
			},
		}},
		kappa: &models.KappaStatistics{
			Variables: []models.KappaVariable{{
				UnitName:   "U1",
				VariableID: "V1",
				CoderPairs: []models.KappaCoderPair{{
					Coder1ID: 1, Coder1Name: "Ann",
					Coder2ID: 2, Coder2Name: "Ben",
					Kappa: f64(0.7), Agreement: 0.9, TotalItems: 10, ValidPairs: 10,
				}},
			}},
			WorkspaceSummary: models.WorkspaceSummary{WeightingMethod: models.WeightingWeighted},
		},
	}
}

func newTestServer(t *testing.T, source analysis.StatisticsSource) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	h := NewHandler(analysis.NewRegistry(source, analysis.NewPrometheusMetrics(reg)), reg)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeAnalysis(t *testing.T, resp *http.Response) AnalysisResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var out AnalysisResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, newStubSource())
	resp := do(t, srv, http.MethodGet, "/health", "")
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestCrossTrainingRequiresTwoTrainings(t *testing.T) {
	srv := newTestServer(t, newStubSource())
	resp := do(t, srv, http.MethodPost, "/api/workspaces/1/comparisons/cross-training", `{"trainingIds":[4]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/workspaces/1/comparisons/cross-training", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCrossTrainingFlow(t *testing.T) {
	srv := newTestServer(t, newStubSource())

	out := decodeAnalysis(t, do(t, srv, http.MethodPost, "/api/workspaces/1/comparisons/cross-training", `{"trainingIds":[1,2]}`))
	assert.Equal(t, analysis.ModeCrossTraining, out.Mode)
	assert.Equal(t, []int{1, 2}, out.ActiveTrainings)
	assert.Equal(t, models.MatchStatistics{TotalComparisons: 1, MatchingComparisons: 0, MatchingPercentage: 0}, out.MatchStatistics)

	resp := do(t, srv, http.MethodPost, "/api/workspaces/1/sources/2/toggle", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var toggled models.ToggleResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&toggled))
	assert.Equal(t, models.ToggleResponse{SourceID: 2, Active: false}, toggled)

	out = decodeAnalysis(t, do(t, srv, http.MethodGet, "/api/workspaces/1/analysis", ""))
	assert.Equal(t, []int{1}, out.ActiveTrainings)
	assert.Equal(t, 0, out.MatchStatistics.TotalComparisons)
}

func TestWithinTrainingKappaFlow(t *testing.T) {
	srv := newTestServer(t, newStubSource())

	out := decodeAnalysis(t, do(t, srv, http.MethodPost, "/api/workspaces/3/comparisons/within-training", `{"trainingId":9}`))
	assert.Equal(t, analysis.ModeWithinTraining, out.Mode)
	assert.Equal(t, 9, out.TrainingID)
	assert.Equal(t, []int{1, 2}, out.ActiveCoders)
	assert.Equal(t, analysis.PhaseUninitialized, out.Phase)
	assert.Nil(t, out.Kappa)

	out = decodeAnalysis(t, do(t, srv, http.MethodPost, "/api/workspaces/3/kappa", ""))
	assert.Equal(t, analysis.PhaseReady, out.Phase)
	require.NotNil(t, out.Kappa)
	require.Len(t, out.Kappa.Variables, 1)
	pair := out.Kappa.Variables[0].CoderPairs[0]
	assert.Equal(t, "substantial", pair.Interpretation)
	assert.InDelta(t, 0.7, *pair.Kappa, 1e-9)
	assert.Equal(t, "substantial", out.Kappa.AverageKappaInterpretation)
	assert.Equal(t, 1, out.Kappa.WorkspaceSummary.TotalDoubleCodedResponses)
	assert.Equal(t, 2, out.Kappa.WorkspaceSummary.CodersIncluded)

	out = decodeAnalysis(t, do(t, srv, http.MethodPut, "/api/workspaces/3/sources", `{"ids":[1]}`))
	assert.Empty(t, out.Kappa.Variables)
	assert.Nil(t, out.Kappa.WorkspaceSummary.AverageKappa)
	assert.Equal(t, "", out.Kappa.AverageKappaInterpretation)

	out = decodeAnalysis(t, do(t, srv, http.MethodDelete, "/api/workspaces/3/sources", ""))
	assert.Empty(t, out.ActiveCoders)

	out = decodeAnalysis(t, do(t, srv, http.MethodPut, "/api/workspaces/3/weighting", `{"weighted":false}`))
	assert.False(t, out.Weighted)
	assert.Equal(t, models.WeightingUnweighted, out.Kappa.WorkspaceSummary.WeightingMethod)

	out = decodeAnalysis(t, do(t, srv, http.MethodPut, "/api/workspaces/3/level", `{"level":"score"}`))
	assert.Equal(t, models.LevelScore, out.Level)
}

func TestKappaWithoutTrainingConflicts(t *testing.T) {
	srv := newTestServer(t, newStubSource())
	resp := do(t, srv, http.MethodPost, "/api/workspaces/1/kappa", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestKappaFetchErrorReturnsNotice(t *testing.T) {
	src := newStubSource()
	src.kappaErr = errors.New("upstream timeout")
	srv := newTestServer(t, src)

	decodeAnalysis(t, do(t, srv, http.MethodPost, "/api/workspaces/1/comparisons/within-training", `{"trainingId":9}`))
	out := decodeAnalysis(t, do(t, srv, http.MethodPost, "/api/workspaces/1/kappa", ""))
	assert.Equal(t, analysis.PhaseUninitialized, out.Phase)
	assert.Nil(t, out.Kappa)
	require.Len(t, out.Notices, 1)
	assert.Equal(t, "error", out.Notices[0].Level)

	out = decodeAnalysis(t, do(t, srv, http.MethodGet, "/api/workspaces/1/analysis", ""))
	assert.Empty(t, out.Notices, "notices are delivered once")
}

func TestInvalidRequests(t *testing.T) {
	srv := newTestServer(t, newStubSource())

	cases := []struct {
		name, method, path, body string
	}{
		{"workspace id", http.MethodGet, "/api/workspaces/abc/analysis", ""},
		{"negative workspace", http.MethodGet, "/api/workspaces/-1/analysis", ""},
		{"source id", http.MethodPost, "/api/workspaces/1/sources/x/toggle", ""},
		{"missing training", http.MethodPost, "/api/workspaces/1/comparisons/within-training", `{}`},
		{"weighting missing", http.MethodPut, "/api/workspaces/1/weighting", `{}`},
		{"unknown level", http.MethodPut, "/api/workspaces/1/level", `{"level":"bits"}`},
		{"sources body", http.MethodPut, "/api/workspaces/1/sources", `[`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, srv, tc.method, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestResetAnalysis(t *testing.T) {
	srv := newTestServer(t, newStubSource())
	decodeAnalysis(t, do(t, srv, http.MethodPost, "/api/workspaces/2/comparisons/within-training", `{"trainingId":9}`))

	resp := do(t, srv, http.MethodDelete, "/api/workspaces/2/analysis", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	out := decodeAnalysis(t, do(t, srv, http.MethodGet, "/api/workspaces/2/analysis", ""))
	assert.Equal(t, analysis.ModeNone, out.Mode)
	assert.Zero(t, out.TrainingID)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, newStubSource())
	decodeAnalysis(t, do(t, srv, http.MethodPost, "/api/workspaces/1/comparisons/within-training", `{"trainingId":9}`))

	resp := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `agreement_fetch_total{operation="within_training_comparisons",status="success"} 1`)
	assert.Contains(t, string(body), "agreement_recompute_total")
}
