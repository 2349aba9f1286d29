// seed-compounds loads compounds from a YAML file into the database.
//
// Each compound is created through the compound service, so it gets a
// version-1 create snapshot exactly as if it had been posted to the API.
// Compounds whose SMILES already exist are skipped.
//
// File format:
//
//	compounds:
//	  - name: Ethanol
//	    smiles: CCO
//	    external_id: CHEMBL545
//	    external_source: chembl
//	    properties:
//	      molecular_weight: 46.07
//
// Usage: go run ./scripts/seed-compounds [-dry-run=false] [-actor=seed] <file.yaml>
//
// Database connection: config.yaml in the working directory, with PG*
// environment variable overrides. The full config is validated, so JWT_SECRET
// must be set unless AUTH_ENABLE_VERIFICATION=false.
//
// Flags:
//
//	-dry-run   Validate the file without writing anything (default: true)
//	-actor     Actor recorded as created_by (default: seed)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/chem"
	"github.com/nouraellm/drugovery/pkg/config"
	"github.com/nouraellm/drugovery/pkg/database"
	"github.com/nouraellm/drugovery/pkg/models"
	"github.com/nouraellm/drugovery/pkg/repositories"
	"github.com/nouraellm/drugovery/pkg/services"
)

type seedFile struct {
	Compounds []seedCompound `yaml:"compounds"`
}

type seedCompound struct {
	Name           string         `yaml:"name"`
	SMILES         string         `yaml:"smiles"`
	ExternalID     string         `yaml:"external_id"`
	ExternalSource string         `yaml:"external_source"`
	Properties     map[string]any `yaml:"properties"`
}

func (s seedCompound) toModel() *models.Compound {
	c := &models.Compound{Name: s.Name, SMILES: s.SMILES, Properties: s.Properties}
	if s.ExternalID != "" {
		c.ExternalID = &s.ExternalID
	}
	if s.ExternalSource != "" {
		c.ExternalSource = &s.ExternalSource
	}
	return c
}

func main() {
	dryRun := flag.Bool("dry-run", true, "Validate the file without writing anything")
	actor := flag.String("actor", "seed", "Actor recorded as created_by")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-dry-run=false] [-actor=seed] <file.yaml>\n", os.Args[0])
		os.Exit(1)
	}

	seeds, err := readSeedFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", args[0], err)
		os.Exit(1)
	}

	if *dryRun {
		fmt.Println("DRY RUN - no changes will be made")
		fmt.Println("Run with -dry-run=false to create the compounds")
		fmt.Println()
		invalid := 0
		for _, s := range seeds {
			if err := chem.ValidateSMILES(s.SMILES); err != nil {
				invalid++
				fmt.Printf("  INVALID %q (%s): %v\n", s.Name, s.SMILES, err)
				continue
			}
			fmt.Printf("  ok      %q (%s)\n", s.Name, s.SMILES)
		}
		fmt.Printf("\n%d compounds, %d invalid\n", len(seeds), invalid)
		return
	}

	cfg, err := config.Load("seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := database.NewConnection(ctx, cfg.Database.URL(),
		database.WithMaxConnections(2), database.WithApplicationName("drugovery-seed"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	logger := zap.NewNop()
	compoundRepo := repositories.NewCompoundRepository(db)
	versioning := services.NewVersioningService(db, compoundRepo, repositories.NewCompoundVersionRepository(db), nil, logger)
	compounds := services.NewCompoundService(db, compoundRepo, versioning, nil, nil, logger)

	created, skipped := seed(ctx, compounds, seeds, *actor)
	fmt.Printf("\nCreated %d compounds, skipped %d\n", created, skipped)
}

func readSeedFile(path string) ([]seedCompound, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if len(f.Compounds) == 0 {
		return nil, errors.New("no compounds in file")
	}
	return f.Compounds, nil
}

// seed creates each compound, skipping duplicates and invalid entries.
// It stops at the first infrastructure error.
func seed(ctx context.Context, svc services.CompoundService, seeds []seedCompound, actor string) (created, skipped int) {
	for _, s := range seeds {
		c, err := svc.Create(ctx, s.toModel(), actor)
		switch {
		case err == nil:
			created++
			fmt.Printf("  created %q %s\n", c.Name, c.ID)
		case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrValidation):
			skipped++
			fmt.Printf("  skipped %q: %v\n", s.Name, err)
		default:
			fmt.Fprintf(os.Stderr, "Failed to create %q: %v\n", s.Name, err)
			return created, skipped
		}
	}
	return created, skipped
}
