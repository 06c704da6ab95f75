package persist

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

	"github.com/verte-zerg/redline/internal/model"
)

// HTTP talks to a remote session API.
type HTTP struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewHTTP returns a client for baseURL with a bounded request timeout.
func NewHTTP(baseURL, token string) *HTTP {
	return &HTTP{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Create implements Gateway.
func (h *HTTP) Create(ctx context.Context, req model.CreateRequest) (model.SessionRecord, error) {
	var rec model.SessionRecord
	err := h.do(ctx, http.MethodPost, "/sessions", req, &rec)
	return rec, err
}

// Get implements Gateway.
func (h *HTTP) Get(ctx context.Context, id string) (model.SessionRecord, error) {
	var rec model.SessionRecord
	err := h.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, &rec)
	return rec, err
}

// List implements Gateway.
func (h *HTTP) List(ctx context.Context, filter model.ListFilter) ([]model.SessionRecord, error) {
	q := url.Values{}
	if filter.Scope != "" {
		q.Set("scope", string(filter.Scope))
	}
	if filter.Last > 0 {
		q.Set("last", strconv.Itoa(filter.Last))
	}
	path := "/sessions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var records []model.SessionRecord
	err := h.do(ctx, http.MethodGet, path, nil, &records)
	return records, err
}

// Patch implements Gateway.
func (h *HTTP) Patch(ctx context.Context, id string, patch model.SessionPatch) (model.SessionRecord, error) {
	var rec model.SessionRecord
	err := h.do(ctx, http.MethodPatch, "/sessions/"+url.PathEscape(id), patch, &rec)
	return rec, err
}

// Finalize implements Gateway.
func (h *HTTP) Finalize(ctx context.Context, id string, req model.FinalizeRequest) (model.SessionRecord, error) {
	var rec model.SessionRecord
	err := h.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(id)+"/end", req, &rec)
	return rec, err
}

// Delete implements Gateway.
func (h *HTTP) Delete(ctx context.Context, id string) error {
	return h.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, nil)
}

func (h *HTTP) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", h.BaseURL, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrSessionEnded
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: %s", method, path, errorMessage(resp))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func errorMessage(resp *http.Response) string {
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return fmt.Sprintf("%d %s", resp.StatusCode, payload.Error)
	}
	return resp.Status
}
