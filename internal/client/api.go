// Package client is the Go client of the thumbnail HTTP API together with the
// generation controller that drives it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"nailart/internal/models"
)

// ErrNetwork marks a request that never produced an HTTP response.
var ErrNetwork = errors.New("network error")

// APIError is a non-2xx response. Message is the server's localized error.
type APIError struct {
	Status  int
	Message string
	Text    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type API struct {
	baseURL string
	token   string
	http    HTTPDoer
}

func NewAPI(baseURL, token string, doer HTTPDoer) *API {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: doer}
}

func (a *API) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	var out models.GenerationResult
	if err := a.do(ctx, http.MethodPost, "/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) CurrentUser(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := a.do(ctx, http.MethodGet, "/auth/user", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) SaveThumbnail(ctx context.Context, req models.SaveRequest) (*models.SavedThumbnail, error) {
	var out models.SavedThumbnail
	if err := a.do(ctx, http.MethodPost, "/thumbnails", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListThumbnails returns the caller's thumbnails newest first; limit 0 lists all.
func (a *API) ListThumbnails(ctx context.Context, limit int) ([]models.SavedThumbnail, error) {
	path := "/thumbnails"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []models.SavedThumbnail
	if err := a.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) DeleteThumbnail(ctx context.Context, id uuid.UUID) error {
	return a.do(ctx, http.MethodDelete, "/thumbnails/"+id.String(), nil, nil)
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var er models.ErrorResponse
		if json.Unmarshal(data, &er) == nil {
			apiErr.Message, apiErr.Text = er.Error, er.Text
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}
