package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dan-robinson-ai/judge-training-ground/internal/application/training"
	"github.com/dan-robinson-ai/judge-training-ground/internal/domain"
	"github.com/dan-robinson-ai/judge-training-ground/internal/domain/models"
)

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, errorType, detail string, status int) {
	respondJSON(w, errorResponse{Error: errorType, Detail: detail}, status)
}

func decodeJSON[T any](r *http.Request, w http.ResponseWriter) (*T, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)

	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid_request", "Invalid request body", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

// respondActionError maps store failures onto status codes: validation
// problems are the caller's fault, everything else is upstream.
func respondActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNoActivePromptVersion),
		errors.Is(err, domain.ErrNoEligibleRun):
		respondError(w, "validation_error", err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrDatasetNotFound),
		errors.Is(err, domain.ErrPromptVersionNotFound),
		errors.Is(err, domain.ErrNotFound):
		respondError(w, "not_found", err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrEvalServiceUnavailable):
		respondError(w, "upstream_unavailable", err.Error(), http.StatusBadGateway)
	default:
		respondError(w, "internal_error", err.Error(), http.StatusInternalServerError)
	}
}

// respondState echoes the post-action snapshot so the renderer can
// redraw from one response.
func (s *Server) respondState(w http.ResponseWriter) {
	respondJSON(w, s.store.Snapshot(), http.StatusOK)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if err := s.eval.Health(r.Context()); err != nil {
		status = "degraded: evaluation service unreachable"
	}
	respondJSON(w, map[string]string{"status": status}, http.StatusOK)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.respondState(w)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if err := s.store.GenerateTestCases(r.Context()); err != nil {
		respondActionError(w, err)
		return
	}
	s.respondState(w)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if err := s.store.RunEvaluation(r.Context()); err != nil {
		respondActionError(w, err)
		return
	}
	s.respondState(w)
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	if err := s.store.OptimizePrompt(r.Context()); err != nil {
		respondActionError(w, err)
		return
	}
	s.respondState(w)
}

func (s *Server) handleListDatasets(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, s.store.ListDatasets(), http.StatusOK)
}

type createDatasetRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[createDatasetRequest](r, w)
	if !ok {
		return
	}
	id, err := s.store.CreateDataset(r.Context(), req.Name)
	if err != nil {
		respondActionError(w, err)
		return
	}
	respondJSON(w, map[string]string{"id": id}, http.StatusCreated)
}

func (s *Server) handleSelectDataset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.SelectDataset(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondActionError(w, err)
		return
	}
	s.respondState(w)
}

type renameDatasetRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRenameDataset(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[renameDatasetRequest](r, w)
	if !ok {
		return
	}
	if err := s.store.RenameDataset(r.Context(), chi.URLParam(r, "id"), req.Name); err != nil {
		respondActionError(w, err)
		return
	}
	s.respondState(w)
}

func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteDataset(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondActionError(w, err)
		return
	}
	s.respondState(w)
}

// settingsRequest updates store setters in one round trip; nil fields
// are unchanged.
type settingsRequest struct {
	Intent              *string       `json:"intent"`
	ModelName           *string       `json:"modelName"`
	OptimizerType       *string       `json:"optimizerType"`
	GenerateCount       *int          `json:"generateCount"`
	CurrentSystemPrompt *string       `json:"currentSystemPrompt"`
	ActiveTab           *training.Tab `json:"activeTab"`
	SidebarCollapsed    *bool         `json:"sidebarCollapsed"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[settingsRequest](r, w)
	if !ok {
		return
	}
	if req.Intent != nil {
		s.store.SetIntent(*req.Intent)
	}
	if req.ModelName != nil {
		s.store.SetModelName(*req.ModelName)
	}
	if req.OptimizerType != nil {
		s.store.SetOptimizerType(*req.OptimizerType)
	}
	if req.GenerateCount != nil {
		s.store.SetGenerateCount(*req.GenerateCount)
	}
	if req.CurrentSystemPrompt != nil {
		s.store.SetCurrentSystemPrompt(*req.CurrentSystemPrompt)
	}
	if req.ActiveTab != nil {
		s.store.SetActiveTab(*req.ActiveTab)
	}
	if req.SidebarCollapsed != nil {
		s.store.SetSidebarCollapsed(*req.SidebarCollapsed)
	}
	s.respondState(w)
}

type savePromptRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleSavePrompt(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[savePromptRequest](r, w)
	if !ok {
		return
	}
	if err := s.store.SavePromptVersion(req.Notes); err != nil {
		respondActionError(w, err)
		return
	}
	s.respondState(w)
}

func (s *Server) handleActivateVersion(w http.ResponseWriter, r *http.Request) {
	if err := s.store.SetActivePromptVersion(chi.URLParam(r, "id")); err != nil {
		respondActionError(w, err)
		return
	}
	s.respondState(w)
}

type addTestCaseRequest struct {
	InputText       string         `json:"input_text"`
	ExpectedVerdict models.Verdict `json:"expected_verdict"`
	Reasoning       string         `json:"reasoning"`
}

func (s *Server) handleAddTestCase(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[addTestCaseRequest](r, w)
	if !ok {
		return
	}
	tc, err := s.store.AddTestCase(req.InputText, req.ExpectedVerdict, req.Reasoning)
	if err != nil {
		respondActionError(w, err)
		return
	}
	respondJSON(w, tc, http.StatusCreated)
}

type updateTestCaseRequest struct {
	InputText       *string         `json:"input_text"`
	ExpectedVerdict *models.Verdict `json:"expected_verdict"`
	Reasoning       *string         `json:"reasoning"`
	Verified        *bool           `json:"verified"`
}

func (s *Server) handleUpdateTestCase(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[updateTestCaseRequest](r, w)
	if !ok {
		return
	}
	patch := training.TestCasePatch{
		InputText:       req.InputText,
		ExpectedVerdict: req.ExpectedVerdict,
		Reasoning:       req.Reasoning,
		Verified:        req.Verified,
	}
	if err := s.store.UpdateTestCase(chi.URLParam(r, "id"), patch); err != nil {
		respondActionError(w, err)
		return
	}
	s.respondState(w)
}

func (s *Server) handleDeleteTestCase(w http.ResponseWriter, r *http.Request) {
	if err := s.store.RemoveTestCase(chi.URLParam(r, "id")); err != nil {
		respondActionError(w, err)
		return
	}
	s.respondState(w)
}

func (s *Server) handleToggleVerified(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ToggleTestCaseVerified(chi.URLParam(r, "id")); err != nil {
		respondActionError(w, err)
		return
	}
	s.respondState(w)
}
