package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/jsonutil"
	"github.com/nouraellm/drugovery/pkg/logging"
)

// DefaultTimeout is the maximum time to wait for a scoring service response.
const DefaultTimeout = 30 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// HTTPClient talks to a remote scoring service. It implements both Oracle
// and PropertyCalculator.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var (
	_ Oracle             = (*HTTPClient)(nil)
	_ PropertyCalculator = (*HTTPClient)(nil)
)

// NewHTTPClient creates a client for the scoring service at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid oracle base URL %q", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("oracle"),
	}, nil
}

type predictRequest struct {
	SMILES    string `json:"smiles"`
	ModelType string `json:"model_type"`
	ModelName string `json:"model_name,omitempty"`
}

// predictResponse is either a score or {"error": "..."}.
type predictResponse struct {
	Value      jsonutil.FlexibleFloat `json:"prediction_value"`
	Confidence jsonutil.FlexibleFloat `json:"prediction_confidence"`
	Details    map[string]any         `json:"prediction_details"`
	Error      string                 `json:"error"`
}

// Predict calls POST {base}/predict.
func (c *HTTPClient) Predict(ctx context.Context, representation, modelType, modelName string) (*Score, error) {
	var resp predictResponse
	if err := c.post(ctx, "predict", predictRequest{
		SMILES:    representation,
		ModelType: modelType,
		ModelName: modelName,
	}, &resp); err != nil {
		return nil, err
	}

	if resp.Error != "" {
		return nil, &Failure{Reason: resp.Error}
	}
	if !resp.Value.Valid {
		return nil, &Failure{Reason: "response has no prediction_value"}
	}

	return &Score{
		Value:      resp.Value.Value,
		Confidence: resp.Confidence.Ptr(),
		Details:    resp.Details,
	}, nil
}

type propertiesResponse struct {
	Properties map[string]any `json:"properties"`
	Error      string         `json:"error"`
}

// Properties calls POST {base}/properties.
func (c *HTTPClient) Properties(ctx context.Context, representation string) (map[string]any, error) {
	var resp propertiesResponse
	if err := c.post(ctx, "properties", map[string]string{"smiles": representation}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &Failure{Reason: resp.Error}
	}
	return resp.Properties, nil
}

// post sends body as JSON and decodes the response into out. Network errors,
// 429 and 5xx are transient. Other non-2xx answers are a Failure carrying
// the service's error message.
func (c *HTTPClient) post(ctx context.Context, endpoint string, body, out any) error {
	target, err := buildURL(c.baseURL, endpoint)
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return apperrors.Transient(fmt.Errorf("failed to call oracle: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperrors.Transient(fmt.Errorf("failed to read oracle response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		c.logger.Warn("oracle unavailable",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("body", logging.TruncateString(string(raw), logging.MaxBodyLogLength)))
		return apperrors.Transient(fmt.Errorf("oracle returned status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return &Failure{Reason: errorMessage(raw, resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Error("oracle rejected request",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("body", logging.TruncateString(string(raw), logging.MaxBodyLogLength)))
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Error("oracle returned malformed response",
			zap.String("endpoint", endpoint),
			zap.String("body", logging.TruncateString(string(raw), logging.MaxBodyLogLength)),
			zap.Error(err))
		return &Failure{Reason: "malformed oracle response"}
	}
	return nil
}

// errorMessage pulls "error" or "detail" out of an error body.
func errorMessage(raw []byte, status int) string {
	var body struct {
		Error  json.RawMessage `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if msg := jsonutil.FlexibleStringValue(body.Error); msg != "" {
			return msg
		}
		if msg := jsonutil.FlexibleStringValue(body.Detail); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("oracle returned status %d", status)
}

// buildURL constructs a URL by parsing the base and joining path segments.
func buildURL(baseURL string, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)
	if u.Path != "" && u.Path[0] != '/' {
		u.Path = "/" + u.Path
	}

	return u.String(), nil
}
