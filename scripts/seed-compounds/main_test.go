package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/models"
	"github.com/nouraellm/drugovery/pkg/services"
)

func TestReadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
compounds:
  - name: Ethanol
    smiles: CCO
    external_id: CHEMBL545
    external_source: chembl
    properties:
      molecular_weight: 46.07
  - name: Benzene
    smiles: c1ccccc1
`), 0644))

	seeds, err := readSeedFile(path)
	require.NoError(t, err)
	require.Len(t, seeds, 2)

	ethanol := seeds[0].toModel()
	assert.Equal(t, "CCO", ethanol.SMILES)
	require.NotNil(t, ethanol.ExternalID)
	assert.Equal(t, "CHEMBL545", *ethanol.ExternalID)
	assert.Equal(t, 46.07, ethanol.Properties["molecular_weight"])

	benzene := seeds[1].toModel()
	assert.Nil(t, benzene.ExternalID)
	assert.Nil(t, benzene.Properties)
}

func TestReadSeedFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("compounds: []\n"), 0644))

	_, err := readSeedFile(path)
	assert.Error(t, err)
}

type stubCompoundService struct {
	services.CompoundService
	errs    map[string]error
	created []string
}

func (s *stubCompoundService) Create(_ context.Context, c *models.Compound, actor string) (*models.Compound, error) {
	if err := s.errs[c.SMILES]; err != nil {
		return nil, err
	}
	s.created = append(s.created, c.SMILES+"@"+actor)
	return c, nil
}

func TestSeed_SkipsDuplicatesAndStopsOnInfraError(t *testing.T) {
	svc := &stubCompoundService{errs: map[string]error{
		"CCO": fmt.Errorf("%w: duplicate smiles", apperrors.ErrConflict),
		"C(":  apperrors.Validationf("unbalanced parenthesis"),
		"CCC": apperrors.Transient(fmt.Errorf("connection refused")),
	}}
	seeds := []seedCompound{
		{Name: "Ethanol", SMILES: "CCO"},
		{Name: "Methane", SMILES: "C"},
		{Name: "Broken", SMILES: "C("},
		{Name: "Propane", SMILES: "CCC"},
		{Name: "Benzene", SMILES: "c1ccccc1"},
	}

	created, skipped := seed(context.Background(), svc, seeds, "loader")

	assert.Equal(t, 1, created)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, []string{"C@loader"}, svc.created)
}
