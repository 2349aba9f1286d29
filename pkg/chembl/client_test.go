package chembl

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/apperrors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL+"/chembl/api/data", time.Second, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "CHEMBL25", want: "CHEMBL25"},
		{in: " chembl1201585 ", want: "CHEMBL1201585"},
		{in: "CHEMBL", wantErr: true},
		{in: "25", wantErr: true},
		{in: "CHEMBL25/../x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeID(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewClient(t *testing.T) {
	_, err := NewClient("not a url", time.Second, zap.NewNop())
	assert.Error(t, err)

	c, err := NewClient("", 0, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
}

func TestClient_Molecule(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/chembl/api/data/molecule/CHEMBL25", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		_, _ = w.Write([]byte(`{
			"molecule_chembl_id": "CHEMBL25",
			"pref_name": "ASPIRIN",
			"molecule_structures": {"canonical_smiles": "CC(=O)Oc1ccccc1C(=O)O"},
			"molecule_properties": {"alogp": "1.31", "full_mwt": "180.16", "num_ro5_violations": 0, "psa": null}
		}`))
	})

	m, err := client.Molecule(context.Background(), "chembl25")
	require.NoError(t, err)

	assert.Equal(t, "CHEMBL25", m.ChEMBLID)
	assert.Equal(t, "ASPIRIN", m.Name)
	assert.Equal(t, "CC(=O)Oc1ccccc1C(=O)O", m.SMILES)
	assert.InDelta(t, 1.31, m.Properties["alogp"], 1e-9)
	assert.InDelta(t, 180.16, m.Properties["molecular_weight"], 1e-9)
	assert.Equal(t, 0.0, m.Properties["num_ro5_violations"])
	assert.NotContains(t, m.Properties, "psa")
}

func TestClient_Molecule_NameFallsBackToID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"molecule_chembl_id": "CHEMBL9", "pref_name": null, "molecule_structures": null}`))
	})

	m, err := client.Molecule(context.Background(), "CHEMBL9")
	require.NoError(t, err)
	assert.Equal(t, "CHEMBL9", m.Name)
	assert.Empty(t, m.SMILES)
	assert.Empty(t, m.Properties)
}

func TestClient_Molecule_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		notFound  bool
		transient bool
	}{
		{name: "not found", status: http.StatusNotFound, notFound: true},
		{name: "rate limited", status: http.StatusTooManyRequests, transient: true},
		{name: "server error", status: http.StatusBadGateway, transient: true},
		{name: "forbidden", status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := client.Molecule(context.Background(), "CHEMBL1")
			require.Error(t, err)
			assert.Equal(t, tt.notFound, errors.Is(err, apperrors.ErrNotFound))
			assert.Equal(t, tt.transient, errors.Is(err, apperrors.ErrTransient))
		})
	}
}

func TestClient_Molecule_InvalidIDMakesNoRequest(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.Molecule(context.Background(), "aspirin")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.False(t, called)
}

func TestClient_Molecule_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := client.Molecule(context.Background(), "CHEMBL1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrTransient))
}
