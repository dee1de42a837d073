package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/acme/click-to-call/internal/domain"
)

// apiClient is a thin JSON client over the service's HTTP API.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string, timeout time.Duration) *apiClient {
	return &apiClient{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: timeout}}
}

type callResponse struct {
	Status        string `json:"status"`
	CorrelationID string `json:"correlation_id"`
}

func (c *apiClient) placeCall(ctx context.Context, from, to, id string) (callResponse, error) {
	var out callResponse
	body := map[string]string{"from": from, "to": to, "id": id}
	err := c.do(ctx, http.MethodPost, "/api/v1/calls", body, &out)
	return out, err
}

func (c *apiClient) trunks(ctx context.Context) ([]domain.TrunkNumber, error) {
	var out struct {
		Trunks []domain.TrunkNumber `json:"trunks"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/trunks", nil, &out)
	return out.Trunks, err
}

func (c *apiClient) pending(ctx context.Context) ([]domain.PendingCall, error) {
	var out struct {
		Calls []domain.PendingCall `json:"calls"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/pending", nil, &out)
	return out.Calls, err
}

func (c *apiClient) pendingRecordings(ctx context.Context) ([]string, error) {
	var out struct {
		Recordings []string `json:"recordings"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/recordings/pending", nil, &out)
	return out.Recordings, err
}

func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = res.Status
		}
		return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
