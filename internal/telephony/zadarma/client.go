package zadarma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/acme/click-to-call/internal/domain"
	"github.com/acme/click-to-call/internal/telephony"
	apperrors "github.com/acme/click-to-call/pkg/errors"
	"github.com/acme/click-to-call/pkg/logger"
)

const (
	ProductionURL = "https://api.zadarma.com"
	SandboxURL    = "https://api-sandbox.zadarma.com"

	methodCallback    = "/v1/request/callback/"
	methodRedirection = "/v1/pbx/redirection/"
	methodRecord      = "/v1/pbx/record/request/"
	methodInternal    = "/v1/pbx/internal/"
)

// Config holds credentials and transport settings for the REST API.
type Config struct {
	Key         string
	Secret      string
	BaseURL     string
	PBXID       string
	MaxChannels int
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *logger.Logger
}

// Client talks to the Zadarma REST API.
type Client struct {
	key         string
	secret      string
	baseURL     string
	maxChannels int
	http        *http.Client
	log         *logger.Logger

	mu    sync.Mutex
	pbxID string
}

var _ telephony.Provider = (*Client)(nil)

// NewClient validates the configuration and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Key == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("zadarma: %w: key and secret are required", apperrors.ErrConfiguration)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = ProductionURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxChannels := cfg.MaxChannels
	if maxChannels <= 0 {
		maxChannels = 1
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Client{
		key:         cfg.Key,
		secret:      cfg.Secret,
		baseURL:     baseURL,
		maxChannels: maxChannels,
		http:        httpClient,
		log:         log,
		pbxID:       cfg.PBXID,
	}, nil
}

type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (r apiResponse) result() telephony.Result {
	status := telephony.StatusError
	if r.Status == string(telephony.StatusSuccess) {
		status = telephony.StatusSuccess
	}
	return telephony.Result{Status: status, Message: r.Message}
}

// Callback requests a callback bridging from and to.
func (c *Client) Callback(ctx context.Context, from, to string) (telephony.Result, error) {
	var resp apiResponse
	params := url.Values{"from": {from}, "to": {to}}
	if err := c.call(ctx, http.MethodGet, methodCallback, params, &resp); err != nil {
		return telephony.Result{Status: telephony.StatusError}, err
	}
	return resp.result(), nil
}

// SetRedirect forwards the trunk to destination, presenting the caller id.
func (c *Client) SetRedirect(ctx context.Context, trunkID, destination string) (telephony.Result, error) {
	pbxNumber, err := c.pbxNumber(ctx, trunkID)
	if err != nil {
		return telephony.Result{Status: telephony.StatusError}, err
	}
	params := url.Values{
		"pbx_number":    {pbxNumber},
		"status":        {"on"},
		"type":          {"phone"},
		"destination":   {destination},
		"condition":     {"always"},
		"set_caller_id": {"on"},
	}
	var resp apiResponse
	if err := c.call(ctx, http.MethodPost, methodRedirection, params, &resp); err != nil {
		return telephony.Result{Status: telephony.StatusError}, err
	}
	return resp.result(), nil
}

// ClearRedirect turns forwarding off on the trunk.
func (c *Client) ClearRedirect(ctx context.Context, trunkID string) (telephony.Result, error) {
	pbxNumber, err := c.pbxNumber(ctx, trunkID)
	if err != nil {
		return telephony.Result{Status: telephony.StatusError}, err
	}
	params := url.Values{"pbx_number": {pbxNumber}, "status": {"off"}}
	var resp apiResponse
	if err := c.call(ctx, http.MethodPost, methodRedirection, params, &resp); err != nil {
		return telephony.Result{Status: telephony.StatusError}, err
	}
	return resp.result(), nil
}

type recordResponse struct {
	apiResponse
	Link  string   `json:"link"`
	Links []string `json:"links"`
}

// RecordingLink resolves the download link of a call recording.
func (c *Client) RecordingLink(ctx context.Context, recordingID string) (string, error) {
	var resp recordResponse
	if err := c.call(ctx, http.MethodGet, methodRecord, url.Values{"call_id": {recordingID}}, &resp); err != nil {
		return "", err
	}
	if resp.Link != "" {
		return resp.Link, nil
	}
	if len(resp.Links) > 0 {
		return resp.Links[0], nil
	}
	return "", nil
}

type internalResponse struct {
	apiResponse
	PBXID   flexString   `json:"pbx_id"`
	Numbers []flexString `json:"numbers"`
}

// TrunkNumbers lists PBX internal numbers, each seeded with the configured
// channel capacity. The PBX id learned here is used for redirect requests.
func (c *Client) TrunkNumbers(ctx context.Context) ([]domain.TrunkNumber, error) {
	resp, err := c.internal(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TrunkNumber, 0, len(resp.Numbers))
	for _, n := range resp.Numbers {
		out = append(out, domain.TrunkNumber{ID: string(n), Capacity: c.maxChannels, Available: c.maxChannels})
	}
	return out, nil
}

func (c *Client) internal(ctx context.Context) (*internalResponse, error) {
	var resp internalResponse
	if err := c.call(ctx, http.MethodGet, methodInternal, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status != string(telephony.StatusSuccess) {
		return nil, fmt.Errorf("zadarma: list internal numbers: %w: %s", apperrors.ErrUnavailable, resp.Message)
	}
	c.mu.Lock()
	c.pbxID = string(resp.PBXID)
	c.mu.Unlock()
	return &resp, nil
}

func (c *Client) pbxNumber(ctx context.Context, trunkID string) (string, error) {
	c.mu.Lock()
	id := c.pbxID
	c.mu.Unlock()
	if id == "" {
		resp, err := c.internal(ctx)
		if err != nil {
			return "", err
		}
		id = string(resp.PBXID)
	}
	return id + "-" + trunkID, nil
}

func (c *Client) call(ctx context.Context, method, apiMethod string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("format", "json")
	auth := signature(c.key, c.secret, apiMethod, params)

	endpoint := c.baseURL + apiMethod
	var body io.Reader
	if method == http.MethodGet {
		endpoint += "?" + params.Encode()
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("zadarma: build request %s: %w", apiMethod, err)
	}
	req.Header.Set("Authorization", auth)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	c.log.Debug("zadarma request", zap.String("method", apiMethod), zap.String("http_method", method))

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("zadarma: %s: %w", apiMethod, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("zadarma: %s: read body: %w", apiMethod, err)
	}
	c.log.Debug("zadarma response", zap.String("method", apiMethod), zap.Int("status", res.StatusCode), zap.ByteString("body", raw))

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("zadarma: %s: decode response (http %d): %w", apiMethod, res.StatusCode, err)
	}
	return nil
}

// flexString accepts either a JSON string or a JSON number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
