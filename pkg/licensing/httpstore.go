package licensing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPStore talks to the license service's entitlement endpoints. It
// imposes its own request timeout: an unbounded call would wedge the
// application's control flow, and a timeout is reported as a store
// failure, never as "not entitled".
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStore creates a store client for the given service base URL,
// e.g. "https://license.example.com".
func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// storeResponse is the service's response envelope.
type storeResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Data    *Record `json:"data"`
}

// GetRecord reads the record for a normalized email
func (s *HTTPStore) GetRecord(ctx context.Context, email string) (*Record, error) {
	endpoint := s.baseURL + "/api/entitlements/" + url.PathEscape(email)
	return s.do(ctx, http.MethodGet, endpoint, nil)
}

// CreateFreeRecord registers the email as a known free account
func (s *HTTPStore) CreateFreeRecord(ctx context.Context, email string) (*Record, error) {
	endpoint := s.baseURL + "/api/entitlements/" + url.PathEscape(email) + "/free"
	record, err := s.do(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: empty response creating free record", ErrStoreUnavailable)
	}
	return record, nil
}

// FindByIdentifier finds the record owning a license key or
// subscription id
func (s *HTTPStore) FindByIdentifier(ctx context.Context, key string) (*Record, error) {
	endpoint := s.baseURL + "/api/entitlements/lookup?key=" + url.QueryEscape(key)
	return s.do(ctx, http.MethodGet, endpoint, nil)
}

// AttachIdentifier merges key into the email's record and marks it Pro
func (s *HTTPStore) AttachIdentifier(ctx context.Context, email, key string) (*Record, error) {
	endpoint := s.baseURL + "/api/entitlements/" + url.PathEscape(email) + "/claim"
	payload, err := json.Marshal(map[string]string{"key": key})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal claim request: %w", err)
	}
	record, err := s.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: empty response claiming identifier", ErrStoreUnavailable)
	}
	return record, nil
}

// do runs one request. 404 means "no such record" and is (nil, nil);
// transport errors and 5xx responses wrap ErrStoreUnavailable.
func (s *HTTPStore) do(ctx context.Context, method, endpoint string, body []byte) (*Record, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: store returned status %d", ErrStoreUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("store rejected request with status %d", resp.StatusCode)
	}

	var envelope storeResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrStoreUnavailable, err)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("store rejected request: %s", envelope.Message)
	}
	return envelope.Data, nil
}
