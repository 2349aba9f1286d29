package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/auth"
	"github.com/nouraellm/drugovery/pkg/models"
	"github.com/nouraellm/drugovery/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// CreateCompoundRequest for POST /api/v1/compounds
type CreateCompoundRequest struct {
	Name           string         `json:"name"`
	SMILES         string         `json:"smiles"`
	Properties     map[string]any `json:"properties,omitempty"`
	ExternalID     *string        `json:"external_id,omitempty"`
	ExternalSource *string        `json:"external_source,omitempty"`
}

// CompoundListResponse for GET /api/v1/compounds
type CompoundListResponse struct {
	Compounds []*models.Compound `json:"compounds"`
	Skip      int                `json:"skip"`
	Limit     int                `json:"limit"`
}

// VersionListResponse for GET /api/v1/compounds/{id}/versions
type VersionListResponse struct {
	Versions []*models.CompoundVersion `json:"versions"`
	Skip     int                       `json:"skip"`
	Limit    int                       `json:"limit"`
}

// ============================================================================
// Handler
// ============================================================================

// CompoundHandler handles compound CRUD, history and rollback requests.
type CompoundHandler struct {
	compoundService   services.CompoundService
	versioningService services.VersioningService
	importService     services.CompoundImportService
	logger            *zap.Logger
}

// NewCompoundHandler creates a new compound handler.
func NewCompoundHandler(
	compoundService services.CompoundService,
	versioningService services.VersioningService,
	importService services.CompoundImportService,
	logger *zap.Logger,
) *CompoundHandler {
	return &CompoundHandler{
		compoundService:   compoundService,
		versioningService: versioningService,
		importService:     importService,
		logger:            logger,
	}
}

// RegisterRoutes registers the compound handler's routes on the given mux.
func (h *CompoundHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	base := "/api/v1/compounds"

	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PUT "+base+"/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE "+base+"/{id}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("GET "+base+"/{id}/versions", authMiddleware.RequireAuth(h.ListVersions))
	mux.HandleFunc("POST "+base+"/{id}/rollback/{version}", authMiddleware.RequireAuth(h.Rollback))
	mux.HandleFunc("POST "+base+"/import/chembl/{chembl_id}", authMiddleware.RequireAuth(h.ImportChEMBL))
}

// Create handles POST /api/v1/compounds
func (h *CompoundHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCompoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "invalid_request", "Invalid request body")
		return
	}

	compound, err := h.compoundService.Create(r.Context(), &models.Compound{
		Name:           req.Name,
		SMILES:         req.SMILES,
		Properties:     req.Properties,
		ExternalID:     req.ExternalID,
		ExternalSource: req.ExternalSource,
	}, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger, "create compound", zap.String("smiles", req.SMILES))
		return
	}

	writeData(w, h.logger, http.StatusCreated, compound)
}

// List handles GET /api/v1/compounds
func (h *CompoundHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := parsePaging(w, r, h.logger)
	if !ok {
		return
	}
	minMW, err := queryFloat(r, "min_molecular_weight")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid_parameter", err.Error())
		return
	}
	maxMW, err := queryFloat(r, "max_molecular_weight")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid_parameter", err.Error())
		return
	}

	filter := models.CompoundFilter{
		Search: r.URL.Query().Get("search"),
		MinMW:  minMW,
		MaxMW:  maxMW,
		Skip:   skip,
		Limit:  limit,
	}
	compounds, err := h.compoundService.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err, h.logger, "list compounds")
		return
	}

	if limit == 0 {
		limit = services.DefaultPageLimit
	}
	writeData(w, h.logger, http.StatusOK, CompoundListResponse{Compounds: compounds, Skip: skip, Limit: limit})
}

// Get handles GET /api/v1/compounds/{id}
func (h *CompoundHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseCompoundID(w, r, h.logger)
	if !ok {
		return
	}

	compound, err := h.compoundService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "get compound", zap.String("compound_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, compound)
}

// Update handles PUT /api/v1/compounds/{id}
func (h *CompoundHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseCompoundID(w, r, h.logger)
	if !ok {
		return
	}

	var update models.CompoundUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeBadRequest(w, h.logger, "invalid_request", "Invalid request body")
		return
	}

	compound, err := h.compoundService.Update(r.Context(), id, &update, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger, "update compound", zap.String("compound_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, compound)
}

// Delete handles DELETE /api/v1/compounds/{id}
func (h *CompoundHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseCompoundID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.compoundService.Delete(r.Context(), id, auth.ActorFromContext(r.Context())); err != nil {
		writeServiceError(w, err, h.logger, "delete compound", zap.String("compound_id", id.String()))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListVersions handles GET /api/v1/compounds/{id}/versions
func (h *CompoundHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseCompoundID(w, r, h.logger)
	if !ok {
		return
	}
	skip, limit, ok := parsePaging(w, r, h.logger)
	if !ok {
		return
	}

	versions, err := h.versioningService.History(r.Context(), id, skip, limit)
	if err != nil {
		writeServiceError(w, err, h.logger, "list compound versions", zap.String("compound_id", id.String()))
		return
	}

	if limit == 0 {
		limit = services.DefaultPageLimit
	}
	writeData(w, h.logger, http.StatusOK, VersionListResponse{Versions: versions, Skip: skip, Limit: limit})
}

// Rollback handles POST /api/v1/compounds/{id}/rollback/{version}
func (h *CompoundHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseCompoundID(w, r, h.logger)
	if !ok {
		return
	}
	version, err := strconv.Atoi(r.PathValue("version"))
	if err != nil {
		writeBadRequest(w, h.logger, "invalid_version", "Version must be an integer")
		return
	}

	compound, err := h.versioningService.Rollback(r.Context(), id, version, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger, "roll back compound",
			zap.String("compound_id", id.String()),
			zap.Int("target_version", version))
		return
	}

	writeData(w, h.logger, http.StatusOK, compound)
}

// ImportChEMBL handles POST /api/v1/compounds/import/chembl/{chembl_id}.
// A first import answers 201; a compound already imported answers 200.
func (h *CompoundHandler) ImportChEMBL(w http.ResponseWriter, r *http.Request) {
	chemblID := r.PathValue("chembl_id")

	compound, created, err := h.importService.ImportChEMBL(r.Context(), chemblID, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err, h.logger, "import ChEMBL compound", zap.String("chembl_id", chemblID))
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeData(w, h.logger, status, compound)
}
