package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/auth"
	"github.com/nouraellm/drugovery/pkg/models"
	"github.com/nouraellm/drugovery/pkg/repositories"
	"github.com/nouraellm/drugovery/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// PredictRequest for POST /api/v1/predictions
type PredictRequest struct {
	CompoundID   uuid.UUID  `json:"compound_id"`
	ModelType    string     `json:"model_type"`
	ModelName    string     `json:"model_name,omitempty"`
	ExperimentID *uuid.UUID `json:"experiment_id,omitempty"`
}

// BatchPredictRequest for POST /api/v1/predictions/batch
type BatchPredictRequest struct {
	CompoundIDs  []uuid.UUID `json:"compound_ids"`
	ModelType    string      `json:"model_type"`
	ModelName    string      `json:"model_name,omitempty"`
	ExperimentID *uuid.UUID  `json:"experiment_id,omitempty"`
}

// BatchSubmittedResponse is returned with 202 when a batch job is accepted.
type BatchSubmittedResponse struct {
	JobID          uuid.UUID             `json:"job_id"`
	Status         models.BatchJobStatus `json:"status"`
	RequestedCount int                   `json:"requested_count"`
	AcceptedCount  int                   `json:"accepted_count"`
}

// PredictionListResponse for prediction listings.
type PredictionListResponse struct {
	Predictions []*models.Prediction `json:"predictions"`
	Total       int                  `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// PredictionHandler handles single and batch prediction requests.
type PredictionHandler struct {
	predictionService services.PredictionService
	logger            *zap.Logger
}

// NewPredictionHandler creates a new prediction handler.
func NewPredictionHandler(predictionService services.PredictionService, logger *zap.Logger) *PredictionHandler {
	return &PredictionHandler{
		predictionService: predictionService,
		logger:            logger,
	}
}

// RegisterRoutes registers the prediction handler's routes on the given mux.
func (h *PredictionHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	base := "/api/v1/predictions"

	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(h.Predict))
	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("POST "+base+"/batch", authMiddleware.RequireAuth(h.SubmitBatch))
	mux.HandleFunc("GET "+base+"/batch/{jid}", authMiddleware.RequireAuth(h.GetJob))
	mux.HandleFunc("DELETE "+base+"/batch/{jid}", authMiddleware.RequireAuth(h.CancelJob))
	mux.HandleFunc("GET "+base+"/batch/{jid}/results", authMiddleware.RequireAuth(h.JobResults))
}

// Predict handles POST /api/v1/predictions
func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "invalid_request", "Invalid request body")
		return
	}
	if req.CompoundID == uuid.Nil {
		writeBadRequest(w, h.logger, "invalid_request", "compound_id is required")
		return
	}

	prediction, err := h.predictionService.PredictOne(r.Context(), services.PredictionRequest{
		CompoundID:   req.CompoundID,
		ModelType:    req.ModelType,
		ModelName:    req.ModelName,
		ExperimentID: req.ExperimentID,
	}, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger, "predict",
			zap.String("compound_id", req.CompoundID.String()),
			zap.String("model_type", req.ModelType))
		return
	}

	writeData(w, h.logger, http.StatusCreated, prediction)
}

// List handles GET /api/v1/predictions
func (h *PredictionHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := parsePaging(w, r, h.logger)
	if !ok {
		return
	}
	compoundID, err := queryUUID(r, "compound_id")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid_parameter", err.Error())
		return
	}
	batchID, err := queryUUID(r, "batch_id")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid_parameter", err.Error())
		return
	}
	experimentID, err := queryUUID(r, "experiment_id")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid_parameter", err.Error())
		return
	}

	predictions, err := h.predictionService.List(r.Context(), repositories.PredictionFilter{
		CompoundID:   compoundID,
		BatchID:      batchID,
		ExperimentID: experimentID,
		ModelType:    r.URL.Query().Get("model_type"),
		Skip:         skip,
		Limit:        limit,
	})
	if err != nil {
		writeServiceError(w, err, h.logger, "list predictions")
		return
	}

	writeData(w, h.logger, http.StatusOK, PredictionListResponse{Predictions: predictions, Total: len(predictions)})
}

// Get handles GET /api/v1/predictions/{id}
func (h *PredictionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePredictionID(w, r, h.logger)
	if !ok {
		return
	}

	prediction, err := h.predictionService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "get prediction", zap.String("prediction_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, prediction)
}

// SubmitBatch handles POST /api/v1/predictions/batch
func (h *PredictionHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchPredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "invalid_request", "Invalid request body")
		return
	}

	job, err := h.predictionService.SubmitBatch(r.Context(), services.BatchSubmission{
		CompoundIDs:  req.CompoundIDs,
		ModelType:    req.ModelType,
		ModelName:    req.ModelName,
		ExperimentID: req.ExperimentID,
	}, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger, "submit batch",
			zap.Int("compounds", len(req.CompoundIDs)),
			zap.String("model_type", req.ModelType))
		return
	}

	writeData(w, h.logger, http.StatusAccepted, BatchSubmittedResponse{
		JobID:          job.ID,
		Status:         job.Status,
		RequestedCount: job.RequestedCount,
		AcceptedCount:  job.AcceptedCount,
	})
}

// GetJob handles GET /api/v1/predictions/batch/{jid}
func (h *PredictionHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := ParseJobID(w, r, h.logger)
	if !ok {
		return
	}

	job, err := h.predictionService.GetJob(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, err, h.logger, "get batch job", zap.String("job_id", jobID.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, job)
}

// CancelJob handles DELETE /api/v1/predictions/batch/{jid}
func (h *PredictionHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := ParseJobID(w, r, h.logger)
	if !ok {
		return
	}

	job, err := h.predictionService.CancelJob(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, err, h.logger, "cancel batch job", zap.String("job_id", jobID.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, job)
}

// JobResults handles GET /api/v1/predictions/batch/{jid}/results
func (h *PredictionHandler) JobResults(w http.ResponseWriter, r *http.Request) {
	jobID, ok := ParseJobID(w, r, h.logger)
	if !ok {
		return
	}

	predictions, err := h.predictionService.JobPredictions(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, err, h.logger, "list batch results", zap.String("job_id", jobID.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, PredictionListResponse{Predictions: predictions, Total: len(predictions)})
}
