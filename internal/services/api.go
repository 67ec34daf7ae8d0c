// API service for the license-entry backend
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/licentry/internal/models"
	"github.com/desertthunder/licentry/internal/shared"
)

const (
	DefaultBaseURL = "http://localhost:8000"

	tokenPath       = "/get-token"
	createEntryPath = "/create-licence-entry"
	healthPath      = "/"

	// RequestIDHeader carries a per-submission id the backend can log against.
	RequestIDHeader = "X-Request-ID"

	maxErrorBody = 512
)

// APIService talks to the license-entry backend.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API service instance for the backend at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// BaseURL returns the backend root the service was configured with.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// tokenResponse accepts both the current field names and the pdcToken/crmToken names older backends send.
type tokenResponse struct {
	PrimaryToken   string `json:"primaryToken"`
	SecondaryToken string `json:"secondaryToken"`
	PDCToken       string `json:"pdcToken"`
	CRMToken       string `json:"crmToken"`
}

func (t tokenResponse) pair() models.TokenPair {
	pair := models.TokenPair{PrimaryToken: t.PrimaryToken, SecondaryToken: t.SecondaryToken}
	if pair.PrimaryToken == "" {
		pair.PrimaryToken = t.PDCToken
	}
	if pair.SecondaryToken == "" {
		pair.SecondaryToken = t.CRMToken
	}
	return pair
}

// FetchTokens requests a new token pair from GET /get-token.
//
// Anything other than a 200 with both tokens present is a [*shared.TokenAcquisitionError].
func (a *APIService) FetchTokens(ctx context.Context) (models.TokenPair, error) {
	resp, err := a.Get(ctx, tokenPath)
	if err != nil {
		return models.TokenPair{}, &shared.TokenAcquisitionError{Message: "could not reach authentication endpoint", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return models.TokenPair{}, &shared.TokenAcquisitionError{
			Message: fmt.Sprintf("authentication endpoint returned status %d: %s",
				resp.StatusCode, shared.Truncate(strings.TrimSpace(string(resp.Body)), maxErrorBody)),
		}
	}

	var body tokenResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return models.TokenPair{}, &shared.TokenAcquisitionError{Message: "malformed token response", Err: err}
	}

	pair := body.pair()
	if !pair.Valid() {
		return models.TokenPair{}, &shared.TokenAcquisitionError{Message: "token response is missing a token"}
	}
	return pair, nil
}

// CreateLicenceEntry submits entry with tokens to POST /create-licence-entry.
//
// On a 2xx response the body is returned unread; it is the progress stream and the caller must close it.
// Transport failures and non-2xx statuses are returned as [*shared.RequestSubmissionError].
func (a *APIService) CreateLicenceEntry(ctx context.Context, entry models.LicenseEntry, tokens models.TokenPair) (io.ReadCloser, error) {
	data, err := json.Marshal(models.NewCreateEntryRequest(entry, tokens))
	if err != nil {
		return nil, &shared.RequestSubmissionError{Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+createEntryPath, bytes.NewReader(data))
	if err != nil {
		return nil, &shared.RequestSubmissionError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set(RequestIDHeader, shared.GenerateID())

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &shared.RequestSubmissionError{Err: fmt.Errorf("request failed: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody*2))
		return nil, &shared.RequestSubmissionError{
			StatusCode: resp.StatusCode,
			Body:       shared.Truncate(strings.TrimSpace(string(body)), maxErrorBody),
		}
	}

	return resp.Body, nil
}

// Health checks that the backend answers on its root path.
func (a *APIService) Health(ctx context.Context) error {
	resp, err := a.Get(ctx, healthPath)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}
	return nil
}
