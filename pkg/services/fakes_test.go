package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/models"
	"github.com/nouraellm/drugovery/pkg/oracle"
	"github.com/nouraellm/drugovery/pkg/repositories"
	"github.com/nouraellm/drugovery/pkg/retry"
)

// memDB is an in-memory stand-in for Postgres. InTx serializes transactions
// and restores the pre-transaction state when fn fails.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	compounds   map[uuid.UUID]*models.Compound
	versions    []*models.CompoundVersion
	predictions []*models.Prediction
	experiments map[uuid.UUID]*models.Experiment
	clock       time.Time
}

func newMemDB() *memDB {
	return &memDB{
		compounds:   make(map[uuid.UUID]*models.Compound),
		experiments: make(map[uuid.UUID]*models.Experiment),
		clock:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

type inTxKey struct{}

func (db *memDB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	savedCompounds := make(map[uuid.UUID]*models.Compound, len(db.compounds))
	for id, c := range db.compounds {
		savedCompounds[id] = copyCompound(c)
	}
	savedVersions := slices.Clone(db.versions)
	savedPredictions := slices.Clone(db.predictions)
	savedExperiments := make(map[uuid.UUID]*models.Experiment, len(db.experiments))
	for id, e := range db.experiments {
		savedExperiments[id] = copyExperiment(e)
	}
	db.mu.Unlock()

	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		db.mu.Lock()
		db.compounds = savedCompounds
		db.versions = savedVersions
		db.predictions = savedPredictions
		db.experiments = savedExperiments
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *memDB) tick() time.Time {
	db.clock = db.clock.Add(time.Second)
	return db.clock
}

func (db *memDB) versionsOf(id uuid.UUID) []*models.CompoundVersion {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []*models.CompoundVersion
	for _, v := range db.versions {
		if v.CompoundID == id {
			out = append(out, v)
		}
	}
	return out
}

func copyCompound(c *models.Compound) *models.Compound {
	cp := *c
	cp.Properties = models.CloneProperties(c.Properties)
	return &cp
}

func copyExperiment(e *models.Experiment) *models.Experiment {
	cp := *e
	cp.Parameters = maps.Clone(e.Parameters)
	cp.Metrics = maps.Clone(e.Metrics)
	return &cp
}

// fakeCompoundRepo implements repositories.CompoundRepository over memDB.
type fakeCompoundRepo struct {
	db *memDB

	// staleUpdates makes the next N Update calls fail with ErrStaleVersion.
	staleUpdates int
	getErr       error
}

var _ repositories.CompoundRepository = (*fakeCompoundRepo)(nil)

func (r *fakeCompoundRepo) Create(_ context.Context, c *models.Compound) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.compounds {
		if existing.SMILES == c.SMILES {
			return fmt.Errorf("%w: compound with this smiles already exists", apperrors.ErrConflict)
		}
	}
	now := r.db.tick()
	c.CreatedAt, c.UpdatedAt = now, now
	r.db.compounds[c.ID] = copyCompound(c)
	return nil
}

func (r *fakeCompoundRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Compound, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	c, ok := r.db.compounds[id]
	if !ok {
		return nil, apperrors.NotFoundf("compound %s", id)
	}
	return copyCompound(c), nil
}

func (r *fakeCompoundRepo) GetByExternalID(_ context.Context, source, externalID string) (*models.Compound, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.compounds {
		if c.ExternalSource != nil && c.ExternalID != nil && *c.ExternalSource == source && *c.ExternalID == externalID {
			return copyCompound(c), nil
		}
	}
	return nil, apperrors.NotFoundf("compound %s:%s", source, externalID)
}

func (r *fakeCompoundRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Compound, error) {
	if ctx.Value(inTxKey{}) == nil {
		return nil, errors.New("GetForUpdate requires a transaction")
	}
	return r.GetByID(ctx, id)
}

func (r *fakeCompoundRepo) Update(_ context.Context, c *models.Compound, expectedVersion int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.staleUpdates > 0 {
		r.staleUpdates--
		return apperrors.ErrStaleVersion
	}
	current, ok := r.db.compounds[c.ID]
	if !ok {
		return apperrors.NotFoundf("compound %s", c.ID)
	}
	if current.Version != expectedVersion {
		return apperrors.ErrStaleVersion
	}
	c.UpdatedAt = r.db.tick()
	r.db.compounds[c.ID] = copyCompound(c)
	return nil
}

func (r *fakeCompoundRepo) Delete(_ context.Context, id uuid.UUID, expectedVersion int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	current, ok := r.db.compounds[id]
	if !ok {
		return apperrors.NotFoundf("compound %s", id)
	}
	if current.Version != expectedVersion {
		return apperrors.ErrStaleVersion
	}
	delete(r.db.compounds, id)
	return nil
}

func (r *fakeCompoundRepo) List(_ context.Context, filter models.CompoundFilter) ([]*models.Compound, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Compound
	for _, c := range r.db.compounds {
		search := strings.ToLower(filter.Search)
		if search != "" && !strings.Contains(strings.ToLower(c.Name), search) && !strings.Contains(strings.ToLower(c.SMILES), search) {
			continue
		}
		out = append(out, copyCompound(c))
	}
	slices.SortFunc(out, func(a, b *models.Compound) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if filter.Skip >= len(out) {
		return []*models.Compound{}, nil
	}
	out = out[filter.Skip:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *fakeCompoundRepo) ExistingIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	found := make(map[uuid.UUID]bool)
	for _, id := range ids {
		if _, ok := r.db.compounds[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

// fakeVersionRepo implements repositories.CompoundVersionRepository over memDB.
type fakeVersionRepo struct {
	db *memDB
}

var _ repositories.CompoundVersionRepository = (*fakeVersionRepo)(nil)

func (r *fakeVersionRepo) Create(_ context.Context, v *models.CompoundVersion) error {
	if !models.IsValidChangeType(v.ChangeType) {
		return apperrors.Validationf("unknown change type %q", v.ChangeType)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	v.ID = uuid.New()
	v.CreatedAt = r.db.tick()
	cp := *v
	r.db.versions = append(r.db.versions, &cp)
	return nil
}

func (r *fakeVersionRepo) GetByVersion(_ context.Context, compoundID uuid.UUID, version int) (*models.CompoundVersion, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := len(r.db.versions) - 1; i >= 0; i-- {
		v := r.db.versions[i]
		if v.CompoundID == compoundID && v.Version == version {
			cp := *v
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: compound %s version %d", apperrors.ErrVersionNotFound, compoundID, version)
}

func (r *fakeVersionRepo) ListByCompound(_ context.Context, compoundID uuid.UUID, skip, limit int) ([]*models.CompoundVersion, error) {
	r.db.mu.Lock()
	var out []*models.CompoundVersion
	for i := len(r.db.versions) - 1; i >= 0; i-- {
		if v := r.db.versions[i]; v.CompoundID == compoundID {
			cp := *v
			out = append(out, &cp)
		}
	}
	r.db.mu.Unlock()

	// Newest insert first already; a stable sort keeps that order within a label.
	slices.SortStableFunc(out, func(a, b *models.CompoundVersion) int { return b.Version - a.Version })
	if skip >= len(out) {
		return []*models.CompoundVersion{}, nil
	}
	out = out[skip:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeVersionRepo) HasHistory(_ context.Context, compoundID uuid.UUID) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, v := range r.db.versions {
		if v.CompoundID == compoundID {
			return true, nil
		}
	}
	return false, nil
}

// fakePredictionRepo implements repositories.PredictionRepository over memDB.
type fakePredictionRepo struct {
	db *memDB

	mu sync.Mutex
	// createErrs are returned by successive CreateBatch calls before it
	// starts succeeding.
	createErrs []error
	creates    int
}

var _ repositories.PredictionRepository = (*fakePredictionRepo)(nil)

func (r *fakePredictionRepo) CreateBatch(_ context.Context, predictions []*models.Prediction) error {
	r.mu.Lock()
	r.creates++
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range predictions {
		p.CreatedAt = r.db.tick()
		cp := *p
		r.db.predictions = append(r.db.predictions, &cp)
	}
	return nil
}

func (r *fakePredictionRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Prediction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.predictions {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperrors.NotFoundf("prediction %s", id)
}

func (r *fakePredictionRepo) List(_ context.Context, filter repositories.PredictionFilter) ([]*models.Prediction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]*models.Prediction, 0)
	for _, p := range r.db.predictions {
		if filter.BatchID != nil && p.BatchID != *filter.BatchID {
			continue
		}
		if filter.CompoundID != nil && p.CompoundID != *filter.CompoundID {
			continue
		}
		if filter.ExperimentID != nil && (p.ExperimentID == nil || *p.ExperimentID != *filter.ExperimentID) {
			continue
		}
		if filter.ModelType != "" && p.ModelType != filter.ModelType {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *fakePredictionRepo) count() int {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.predictions)
}

// fakeExperimentRepo implements repositories.ExperimentRepository over memDB.
type fakeExperimentRepo struct {
	db *memDB
}

var _ repositories.ExperimentRepository = (*fakeExperimentRepo)(nil)

func (r *fakeExperimentRepo) Create(_ context.Context, e *models.Experiment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := r.db.tick()
	e.CreatedAt, e.UpdatedAt = now, now
	r.db.experiments[e.ID] = copyExperiment(e)
	return nil
}

func (r *fakeExperimentRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Experiment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.experiments[id]
	if !ok {
		return nil, apperrors.NotFoundf("experiment %s", id)
	}
	return copyExperiment(e), nil
}

func (r *fakeExperimentRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	if ctx.Value(inTxKey{}) == nil {
		return nil, errors.New("GetForUpdate requires a transaction")
	}
	return r.GetByID(ctx, id)
}

func (r *fakeExperimentRepo) Update(_ context.Context, e *models.Experiment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.experiments[e.ID]; !ok {
		return apperrors.NotFoundf("experiment %s", e.ID)
	}
	e.UpdatedAt = r.db.tick()
	r.db.experiments[e.ID] = copyExperiment(e)
	return nil
}

func (r *fakeExperimentRepo) List(_ context.Context, filter models.ExperimentFilter) ([]*models.Experiment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]*models.Experiment, 0)
	for _, e := range r.db.experiments {
		if e.CreatedBy != filter.Owner {
			continue
		}
		if filter.ModelType != "" && e.ModelType != filter.ModelType {
			continue
		}
		out = append(out, copyExperiment(e))
	}
	slices.SortFunc(out, func(a, b *models.Experiment) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if filter.Skip >= len(out) {
		return []*models.Experiment{}, nil
	}
	out = out[filter.Skip:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// fakeOracle scores by SMILES. Representations listed in failures are
// refused; those in transient fail with a retryable error; misconfigured
// answers with an oracle.StatusError and panics panics.
type fakeOracle struct {
	mu            sync.Mutex
	failures      map[string]string
	transient     map[string]int
	misconfigured bool
	panics        map[string]bool
	calls         int

	// block, when set, holds every call until it is closed or ctx ends.
	block   chan struct{}
	started chan struct{}
}

func (o *fakeOracle) Supports(modelType string) bool {
	return modelType == models.ModelTypeSolubility || modelType == models.ModelTypeToxicity || modelType == models.ModelTypeDTI
}

func (o *fakeOracle) Predict(ctx context.Context, representation, _, _ string) (*oracle.Score, error) {
	o.mu.Lock()
	o.calls++
	block, started := o.block, o.started
	reason, refused := o.failures[representation]
	transient := o.transient[representation]
	if transient > 0 {
		o.transient[representation] = transient - 1
	}
	misconfigured, panics := o.misconfigured, o.panics[representation]
	o.mu.Unlock()

	if panics {
		panic("oracle exploded on " + representation)
	}
	if misconfigured {
		return nil, &oracle.StatusError{StatusCode: 401, Message: "missing api key"}
	}

	if block != nil {
		if started != nil {
			select {
			case started <- struct{}{}:
			default:
			}
		}
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if refused {
		return nil, &oracle.Failure{Reason: reason}
	}
	if transient > 0 {
		return nil, apperrors.Transient(errors.New("oracle unavailable"))
	}
	confidence := 0.9
	return &oracle.Score{
		Value:      float64(len(representation)),
		Confidence: &confidence,
		Details:    map[string]any{"length": len(representation)},
	}, nil
}

// fakeProperties returns fixed descriptors, or err when set.
type fakeProperties struct {
	props map[string]any
	err   error
	calls int
}

func (p *fakeProperties) Properties(_ context.Context, _ string) (map[string]any, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return maps.Clone(p.props), nil
}

func fastRetry() *retry.Config {
	return &retry.Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   1.0,
	}
}
