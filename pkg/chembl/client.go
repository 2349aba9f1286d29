// Package chembl fetches molecules from the ChEMBL web services.
package chembl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/jsonutil"
	"github.com/nouraellm/drugovery/pkg/logging"
)

const (
	// DefaultBaseURL is the public ChEMBL data API.
	DefaultBaseURL = "https://www.ebi.ac.uk/chembl/api/data"
	// DefaultTimeout bounds one lookup.
	DefaultTimeout = 10 * time.Second
	// Source is the external_source recorded on imported compounds.
	Source = "chembl"

	maxResponseBytes = 4 << 20
)

var idPattern = regexp.MustCompile(`^CHEMBL\d+$`)

// NormalizeID upper-cases id and checks it looks like CHEMBL25.
func NormalizeID(id string) (string, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if !idPattern.MatchString(id) {
		return "", apperrors.Validationf("invalid ChEMBL id %q", id)
	}
	return id, nil
}

// Molecule is the subset of a ChEMBL molecule record the registry keeps.
type Molecule struct {
	ChEMBLID   string
	Name       string
	SMILES     string
	Properties map[string]any
}

// Client looks up molecules by ChEMBL id.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the ChEMBL API at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ChEMBL base URL %q", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("chembl"),
	}, nil
}

type moleculeResponse struct {
	ChEMBLID   string `json:"molecule_chembl_id"`
	PrefName   string `json:"pref_name"`
	Structures *struct {
		CanonicalSMILES string `json:"canonical_smiles"`
	} `json:"molecule_structures"`
	Properties *struct {
		ALogP          jsonutil.FlexibleFloat `json:"alogp"`
		FullMWT        jsonutil.FlexibleFloat `json:"full_mwt"`
		RO5Violations  jsonutil.FlexibleFloat `json:"num_ro5_violations"`
		HBA            jsonutil.FlexibleFloat `json:"hba"`
		HBD            jsonutil.FlexibleFloat `json:"hbd"`
		PSA            jsonutil.FlexibleFloat `json:"psa"`
		RotatableBonds jsonutil.FlexibleFloat `json:"rtb"`
	} `json:"molecule_properties"`
}

// Molecule calls GET {base}/molecule/{id}. An unknown id is ErrNotFound;
// network errors, 429 and 5xx are transient.
func (c *Client) Molecule(ctx context.Context, id string) (*Molecule, error) {
	id, err := NormalizeID(id)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = path.Join("/", u.Path, "molecule", id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.Transient(fmt.Errorf("failed to call ChEMBL: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.Transient(fmt.Errorf("failed to read ChEMBL response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.NotFoundf("ChEMBL molecule %s", id)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		c.logger.Warn("ChEMBL unavailable",
			zap.String("chembl_id", id),
			zap.Int("status", resp.StatusCode))
		return nil, apperrors.Transient(fmt.Errorf("ChEMBL returned status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Error("ChEMBL rejected request",
			zap.String("chembl_id", id),
			zap.Int("status", resp.StatusCode),
			zap.String("body", logging.TruncateString(string(raw), logging.MaxBodyLogLength)))
		return nil, fmt.Errorf("ChEMBL returned status %d", resp.StatusCode)
	}

	var body moleculeResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		c.logger.Error("ChEMBL returned malformed response",
			zap.String("chembl_id", id),
			zap.String("body", logging.TruncateString(string(raw), logging.MaxBodyLogLength)),
			zap.Error(err))
		return nil, fmt.Errorf("malformed ChEMBL response for %s: %w", id, err)
	}

	m := &Molecule{
		ChEMBLID:   body.ChEMBLID,
		Name:       strings.TrimSpace(body.PrefName),
		Properties: make(map[string]any),
	}
	if m.ChEMBLID == "" {
		m.ChEMBLID = id
	}
	if m.Name == "" {
		m.Name = m.ChEMBLID
	}
	if body.Structures != nil {
		m.SMILES = strings.TrimSpace(body.Structures.CanonicalSMILES)
	}
	if p := body.Properties; p != nil {
		setFloat(m.Properties, "alogp", p.ALogP)
		setFloat(m.Properties, "molecular_weight", p.FullMWT)
		setFloat(m.Properties, "num_ro5_violations", p.RO5Violations)
		setFloat(m.Properties, "hba", p.HBA)
		setFloat(m.Properties, "hbd", p.HBD)
		setFloat(m.Properties, "psa", p.PSA)
		setFloat(m.Properties, "rotatable_bonds", p.RotatableBonds)
	}
	return m, nil
}

func setFloat(props map[string]any, key string, f jsonutil.FlexibleFloat) {
	if f.Valid {
		props[key] = f.Value
	}
}
