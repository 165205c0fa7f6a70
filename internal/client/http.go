package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/feedpulse/internal/model"
	"github.com/alfredjeanlab/feedpulse/internal/presence"
)

// HTTPClient implements NotifyClient using the feedpulse HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ NotifyClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func projectPath(projectID, suffix string) string {
	return "/v1/projects/" + url.PathEscape(projectID) + suffix
}

func withLimit(path string, limit int) string {
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	return path
}

// --- Events ---

func (c *HTTPClient) Publish(ctx context.Context, projectID string, req *PublishRequest) (*model.Event, error) {
	var ev model.Event
	if err := c.doJSON(ctx, http.MethodPost, projectPath(projectID, "/events"), req, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

type eventsResponse struct {
	ProjectID string        `json:"project_id"`
	Events    []model.Event `json:"events"`
}

func (c *HTTPClient) History(ctx context.Context, projectID string, limit int) ([]model.Event, error) {
	var resp eventsResponse
	if err := c.doJSON(ctx, http.MethodGet, withLimit(projectPath(projectID, "/events"), limit), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *HTTPClient) Archive(ctx context.Context, projectID string, limit int) ([]model.Event, error) {
	var resp eventsResponse
	if err := c.doJSON(ctx, http.MethodGet, withLimit(projectPath(projectID, "/archive"), limit), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// --- Actors ---

func (c *HTTPClient) Actors(ctx context.Context, projectID string, activeWithin time.Duration) ([]presence.Entry, error) {
	path := projectPath(projectID, "/actors")
	if activeWithin > 0 {
		path += "?active_within=" + url.QueryEscape(activeWithin.String())
	}
	var resp struct {
		Actors []presence.Entry `json:"actors"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Actors, nil
}

// --- Subscribers ---

func (c *HTTPClient) SubscriberCount(ctx context.Context, projectID string) (int, error) {
	var resp struct {
		Active int `json:"active"`
	}
	if err := c.doJSON(ctx, http.MethodGet, projectPath(projectID, "/subscribers"), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Active, nil
}

func (c *HTTPClient) SubscriberStatus(ctx context.Context, id string) (model.ConnectionStatus, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/subscribers/"+url.PathEscape(id)+"/status", nil, &resp); err != nil {
		return model.StatusDisconnected, err
	}
	if resp.Status == model.StatusConnected.String() {
		return model.StatusConnected, nil
	}
	return model.StatusDisconnected, nil
}

// --- Simulation ---

func (c *HTTPClient) StartSimulation(ctx context.Context, projectID string, req *SimulationRequest) (*SimulationState, error) {
	if req == nil {
		req = &SimulationRequest{}
	}
	var state SimulationState
	if err := c.doJSON(ctx, http.MethodPost, projectPath(projectID, "/simulation"), req, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *HTTPClient) StopSimulation(ctx context.Context, projectID string) (*SimulationState, error) {
	var state SimulationState
	if err := c.doJSON(ctx, http.MethodDelete, projectPath(projectID, "/simulation"), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *HTTPClient) SimulationStatus(ctx context.Context, projectID string) (*SimulationState, error) {
	var state SimulationState
	if err := c.doJSON(ctx, http.MethodGet, projectPath(projectID, "/simulation"), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// apiError builds an *APIError from a failed response.
func apiError(resp *http.Response, body []byte) error {
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return apiError(resp, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
