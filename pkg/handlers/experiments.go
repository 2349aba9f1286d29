package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/auth"
	"github.com/nouraellm/drugovery/pkg/models"
	"github.com/nouraellm/drugovery/pkg/services"
)

// CreateExperimentRequest for POST /api/v1/experiments
type CreateExperimentRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	ModelType   string         `json:"model_type"`
	ModelName   string         `json:"model_name,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ExperimentListResponse for GET /api/v1/experiments
type ExperimentListResponse struct {
	Experiments []*models.Experiment `json:"experiments"`
	Skip        int                  `json:"skip"`
	Limit       int                  `json:"limit"`
}

// ExperimentHandler handles experiment tracking requests. Every route is
// scoped to the authenticated actor.
type ExperimentHandler struct {
	experimentService services.ExperimentService
	logger            *zap.Logger
}

// NewExperimentHandler creates a new experiment handler.
func NewExperimentHandler(experimentService services.ExperimentService, logger *zap.Logger) *ExperimentHandler {
	return &ExperimentHandler{
		experimentService: experimentService,
		logger:            logger,
	}
}

// RegisterRoutes registers the experiment handler's routes on the given mux.
func (h *ExperimentHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	base := "/api/v1/experiments"

	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PUT "+base+"/{id}", authMiddleware.RequireAuth(h.Update))
}

// Create handles POST /api/v1/experiments
func (h *ExperimentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "invalid_request", "Invalid request body")
		return
	}

	experiment, err := h.experimentService.Create(r.Context(), &models.Experiment{
		Name:        req.Name,
		Description: req.Description,
		ModelType:   req.ModelType,
		ModelName:   req.ModelName,
		Parameters:  req.Parameters,
	}, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger, "create experiment", zap.String("model_type", req.ModelType))
		return
	}

	writeData(w, h.logger, http.StatusCreated, experiment)
}

// List handles GET /api/v1/experiments
func (h *ExperimentHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := parsePaging(w, r, h.logger)
	if !ok {
		return
	}

	experiments, err := h.experimentService.List(r.Context(), models.ExperimentFilter{
		ModelType: r.URL.Query().Get("model_type"),
		Skip:      skip,
		Limit:     limit,
	}, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger, "list experiments")
		return
	}

	if limit == 0 {
		limit = services.DefaultPageLimit
	}
	writeData(w, h.logger, http.StatusOK, ExperimentListResponse{Experiments: experiments, Skip: skip, Limit: limit})
}

// Get handles GET /api/v1/experiments/{id}
func (h *ExperimentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseExperimentID(w, r, h.logger)
	if !ok {
		return
	}

	experiment, err := h.experimentService.Get(r.Context(), id, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger, "get experiment", zap.String("experiment_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, experiment)
}

// Update handles PUT /api/v1/experiments/{id}
func (h *ExperimentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseExperimentID(w, r, h.logger)
	if !ok {
		return
	}

	var update models.ExperimentUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeBadRequest(w, h.logger, "invalid_request", "Invalid request body")
		return
	}

	experiment, err := h.experimentService.Update(r.Context(), id, &update, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger, "update experiment", zap.String("experiment_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, experiment)
}
