package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/auth"
	"github.com/nouraellm/drugovery/pkg/models"
	"github.com/nouraellm/drugovery/pkg/repositories"
	"github.com/nouraellm/drugovery/pkg/services"
	"github.com/nouraellm/drugovery/pkg/testhelpers"
)

type mockCompoundService struct {
	createFn func(ctx context.Context, c *models.Compound, actor string) (*models.Compound, error)
	getFn    func(ctx context.Context, id uuid.UUID) (*models.Compound, error)
	listFn   func(ctx context.Context, filter models.CompoundFilter) ([]*models.Compound, error)
	updateFn func(ctx context.Context, id uuid.UUID, u *models.CompoundUpdate, actor string) (*models.Compound, error)
	deleteFn func(ctx context.Context, id uuid.UUID, actor string) error
}

func (m *mockCompoundService) Create(ctx context.Context, c *models.Compound, actor string) (*models.Compound, error) {
	return m.createFn(ctx, c, actor)
}

func (m *mockCompoundService) Get(ctx context.Context, id uuid.UUID) (*models.Compound, error) {
	return m.getFn(ctx, id)
}

func (m *mockCompoundService) List(ctx context.Context, filter models.CompoundFilter) ([]*models.Compound, error) {
	return m.listFn(ctx, filter)
}

func (m *mockCompoundService) Update(ctx context.Context, id uuid.UUID, u *models.CompoundUpdate, actor string) (*models.Compound, error) {
	return m.updateFn(ctx, id, u, actor)
}

func (m *mockCompoundService) Delete(ctx context.Context, id uuid.UUID, actor string) error {
	return m.deleteFn(ctx, id, actor)
}

type mockVersioningService struct {
	historyFn  func(ctx context.Context, id uuid.UUID, skip, limit int) ([]*models.CompoundVersion, error)
	rollbackFn func(ctx context.Context, id uuid.UUID, target int, actor string) (*models.Compound, error)
}

func (m *mockVersioningService) AppendSnapshot(context.Context, *models.Compound, string, models.ChangeType) (*models.CompoundVersion, error) {
	panic("not used by handlers")
}

func (m *mockVersioningService) History(ctx context.Context, id uuid.UUID, skip, limit int) ([]*models.CompoundVersion, error) {
	return m.historyFn(ctx, id, skip, limit)
}

func (m *mockVersioningService) Rollback(ctx context.Context, id uuid.UUID, target int, actor string) (*models.Compound, error) {
	return m.rollbackFn(ctx, id, target, actor)
}

type mockPredictionService struct {
	predictFn func(ctx context.Context, req services.PredictionRequest, actor string) (*models.Prediction, error)
	getFn     func(ctx context.Context, id uuid.UUID) (*models.Prediction, error)
	listFn    func(ctx context.Context, filter repositories.PredictionFilter) ([]*models.Prediction, error)
	submitFn  func(ctx context.Context, req services.BatchSubmission, actor string) (*models.BatchJob, error)
	getJobFn  func(ctx context.Context, id uuid.UUID) (*models.BatchJob, error)
	cancelFn  func(ctx context.Context, id uuid.UUID) (*models.BatchJob, error)
	resultsFn func(ctx context.Context, id uuid.UUID) ([]*models.Prediction, error)
}

func (m *mockPredictionService) PredictOne(ctx context.Context, req services.PredictionRequest, actor string) (*models.Prediction, error) {
	return m.predictFn(ctx, req, actor)
}

func (m *mockPredictionService) Get(ctx context.Context, id uuid.UUID) (*models.Prediction, error) {
	return m.getFn(ctx, id)
}

func (m *mockPredictionService) List(ctx context.Context, filter repositories.PredictionFilter) ([]*models.Prediction, error) {
	return m.listFn(ctx, filter)
}

func (m *mockPredictionService) SubmitBatch(ctx context.Context, req services.BatchSubmission, actor string) (*models.BatchJob, error) {
	return m.submitFn(ctx, req, actor)
}

func (m *mockPredictionService) GetJob(ctx context.Context, id uuid.UUID) (*models.BatchJob, error) {
	return m.getJobFn(ctx, id)
}

func (m *mockPredictionService) CancelJob(ctx context.Context, id uuid.UUID) (*models.BatchJob, error) {
	return m.cancelFn(ctx, id)
}

func (m *mockPredictionService) JobPredictions(ctx context.Context, id uuid.UUID) ([]*models.Prediction, error) {
	return m.resultsFn(ctx, id)
}

type mockImportService struct {
	importFn func(ctx context.Context, chemblID, actor string) (*models.Compound, bool, error)
}

func (m *mockImportService) ImportChEMBL(ctx context.Context, chemblID, actor string) (*models.Compound, bool, error) {
	return m.importFn(ctx, chemblID, actor)
}

type mockExperimentService struct {
	createFn func(ctx context.Context, e *models.Experiment, actor string) (*models.Experiment, error)
	getFn    func(ctx context.Context, id uuid.UUID, actor string) (*models.Experiment, error)
	listFn   func(ctx context.Context, filter models.ExperimentFilter, actor string) ([]*models.Experiment, error)
	updateFn func(ctx context.Context, id uuid.UUID, u *models.ExperimentUpdate, actor string) (*models.Experiment, error)
}

func (m *mockExperimentService) Create(ctx context.Context, e *models.Experiment, actor string) (*models.Experiment, error) {
	return m.createFn(ctx, e, actor)
}

func (m *mockExperimentService) Get(ctx context.Context, id uuid.UUID, actor string) (*models.Experiment, error) {
	return m.getFn(ctx, id, actor)
}

func (m *mockExperimentService) List(ctx context.Context, filter models.ExperimentFilter, actor string) ([]*models.Experiment, error) {
	return m.listFn(ctx, filter, actor)
}

func (m *mockExperimentService) Update(ctx context.Context, id uuid.UUID, u *models.ExperimentUpdate, actor string) (*models.Experiment, error) {
	return m.updateFn(ctx, id, u, actor)
}

// testAuthMiddleware verifies tokens signed with testhelpers.TestJWTSecret.
func testAuthMiddleware() *auth.Middleware {
	validator := auth.NewHMACValidator(testhelpers.TestJWTSecret, true)
	return auth.NewMiddleware(auth.NewAuthService(validator, zap.NewNop()), zap.NewNop())
}

// serve routes req through mux with a bearer token for actor "alice".
func serve(t *testing.T, mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set("Authorization", testhelpers.GenerateTestJWTWithBearer(testhelpers.TestJWTSecret, "alice", ""))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}
