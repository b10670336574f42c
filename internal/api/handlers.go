package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"coding-agreement/internal/analysis"
	"coding-agreement/internal/models"
	"coding-agreement/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	Sessions *analysis.Registry
	Gatherer prometheus.Gatherer
}

func NewHandler(sessions *analysis.Registry, gatherer prometheus.Gatherer) *Handler {
	return &Handler{
		Sessions: sessions,
		Gatherer: gatherer,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)
	if h.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/workspaces/{workspaceId}", func(r chi.Router) {
		r.Get("/analysis", h.GetAnalysis)
		r.Delete("/analysis", h.ResetAnalysis)

		r.Post("/comparisons/cross-training", h.LoadCrossTraining)
		r.Post("/comparisons/within-training", h.LoadWithinTraining)
		r.Post("/kappa", h.LoadKappa)

		r.Post("/sources/{sourceId}/toggle", h.ToggleSource)
		r.Put("/sources", h.SetSources)
		r.Delete("/sources", h.ClearSources)

		r.Put("/weighting", h.SetWeighting)
		r.Put("/level", h.SetLevel)
	})
}

// ============================================================================
// Health
// ============================================================================

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// ============================================================================
// Analysis
// ============================================================================

// AnalysisResponse is the session snapshot with interpreted Kappa values and
// the notices raised since the last response.
type AnalysisResponse struct {
	analysis.Snapshot
	Kappa   *models.KappaResponse `json:"kappa"`
	Notices []analysis.Notice     `json:"notices"`
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*analysis.Session, bool) {
	workspaceID, err := strconv.Atoi(chi.URLParam(r, "workspaceId"))
	if err != nil || workspaceID <= 0 {
		http.Error(w, "Invalid workspace id", http.StatusBadRequest)
		return nil, false
	}
	return h.Sessions.Session(workspaceID), true
}

// GetAnalysis returns the current snapshot of the workspace
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeAnalysis(w, s)
}

// ResetAnalysis discards the session of the workspace
func (h *Handler) ResetAnalysis(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := strconv.Atoi(chi.URLParam(r, "workspaceId"))
	if err != nil || workspaceID <= 0 {
		http.Error(w, "Invalid workspace id", http.StatusBadRequest)
		return
	}
	h.Sessions.Reset(workspaceID)
	w.WriteHeader(http.StatusNoContent)
}

// LoadCrossTraining compares the consolidated codes of two or more trainings
func (h *Handler) LoadCrossTraining(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req models.CrossTrainingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	h.run(r.Context(), w, s, func(ctx context.Context) error {
		return s.LoadCrossTrainingComparisons(ctx, req.TrainingIDs)
	})
}

// LoadWithinTraining compares the coders of one training
func (h *Handler) LoadWithinTraining(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req models.WithinTrainingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.TrainingID <= 0 {
		http.Error(w, "trainingId is required", http.StatusBadRequest)
		return
	}
	h.run(r.Context(), w, s, func(ctx context.Context) error {
		return s.LoadWithinTrainingComparisons(ctx, req.TrainingID)
	})
}

// LoadKappa fetches the Kappa statistics of the loaded training
func (h *Handler) LoadKappa(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.run(r.Context(), w, s, s.LoadKappa)
}

// ============================================================================
// Selection
// ============================================================================

// ToggleSource flips one training or coder and returns its new state
func (h *Handler) ToggleSource(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	sourceID, err := strconv.Atoi(chi.URLParam(r, "sourceId"))
	if err != nil {
		http.Error(w, "Invalid source id", http.StatusBadRequest)
		return
	}
	active := s.ToggleActiveSource(sourceID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.ToggleResponse{SourceID: sourceID, Active: active})
}

func (h *Handler) SetSources(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req models.SourceIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	s.SetActiveSources(req.IDs)
	h.writeAnalysis(w, s)
}

func (h *Handler) ClearSources(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ClearActiveSources()
	h.writeAnalysis(w, s)
}

// ============================================================================
// Kappa options
// ============================================================================

func (h *Handler) SetWeighting(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req models.WeightingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Weighted == nil {
		http.Error(w, "weighted must be true or false", http.StatusBadRequest)
		return
	}
	h.run(r.Context(), w, s, func(ctx context.Context) error {
		return s.SetWeighting(ctx, *req.Weighted)
	})
}

func (h *Handler) SetLevel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req models.LevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	level, err := models.ParseLevel(req.Level)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.run(r.Context(), w, s, func(ctx context.Context) error {
		return s.SetLevel(ctx, level)
	})
}

// ============================================================================
// Helpers
// ============================================================================

// run executes a session operation and maps its error. A FetchError leaves
// the session in a valid degraded state, so the snapshot is still returned
// and the notices carry the message.
func (h *Handler) run(ctx context.Context, w http.ResponseWriter, s *analysis.Session, op func(context.Context) error) {
	err := op(ctx)

	var precondition *analysis.PreconditionError
	var fetchErr *analysis.FetchError
	switch {
	case err == nil:
	case errors.As(err, &precondition):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, analysis.ErrNoTraining):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.As(err, &fetchErr):
		log.Printf("[API] Degraded response: %v", err)
	default:
		log.Printf("[API] Unexpected error: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	h.writeAnalysis(w, s)
}

func (h *Handler) writeAnalysis(w http.ResponseWriter, s *analysis.Session) {
	snap := s.Snapshot()
	resp := AnalysisResponse{
		Snapshot: snap,
		Kappa:    interpretKappa(snap.Kappa),
		Notices:  s.DrainNotices(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func interpretKappa(stats *models.KappaStatistics) *models.KappaResponse {
	if stats == nil {
		return nil
	}
	resp := &models.KappaResponse{
		Variables:                  make([]models.InterpretedVariable, 0, len(stats.Variables)),
		WorkspaceSummary:           stats.WorkspaceSummary,
		AverageKappaInterpretation: service.InterpretKappa(stats.WorkspaceSummary.AverageKappa),
	}
	for _, v := range stats.Variables {
		iv := models.InterpretedVariable{
			UnitName:   v.UnitName,
			VariableID: v.VariableID,
			CoderPairs: make([]models.InterpretedCoderPair, 0, len(v.CoderPairs)),
		}
		for _, p := range v.CoderPairs {
			iv.CoderPairs = append(iv.CoderPairs, models.InterpretedCoderPair{
				KappaCoderPair: p,
				Interpretation: service.InterpretKappa(p.Kappa),
			})
		}
		resp.Variables = append(resp.Variables, iv)
	}
	return resp
}
