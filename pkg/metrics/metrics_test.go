package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_CountsAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheus(reg)
	require.NoError(t, err)

	rec.BatchItem("solubility", "succeeded")
	rec.BatchItem("solubility", "succeeded")
	rec.BatchItem("solubility", "failed")
	rec.BatchJob("completed")
	rec.Observe(context.Background(), "compound.update", true, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.items.WithLabelValues("solubility", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.items.WithLabelValues("solubility", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.jobs.WithLabelValues("completed")))

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "drugovery_batch_items_total"))
}

func TestNewPrometheus_ReRegisterIsTolerated(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)

	_, err = NewPrometheus(reg)
	assert.NoError(t, err)
}

type captureRecorder struct {
	Noop
	operation string
	success   bool
}

func (c *captureRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.operation, c.success = op, success
}

func TestSince(t *testing.T) {
	rec := &captureRecorder{}

	err := errors.New("boom")
	Since(context.Background(), rec, "compound.delete", time.Now(), &err)
	assert.Equal(t, "compound.delete", rec.operation)
	assert.False(t, rec.success)

	var ok error
	Since(context.Background(), rec, "compound.get", time.Now(), &ok)
	assert.True(t, rec.success)

	Since(context.Background(), nil, "ignored", time.Now(), nil)
}
