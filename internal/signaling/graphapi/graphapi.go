// Package graphapi implements the signaling.Client interface against a
// Microsoft Graph style communications API, using OAuth2 client-credentials
// tokens for authentication.
package graphapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cuboid-ai/callingbot/internal/signaling"
)

const (
	defaultBaseURL  = "https://graph.microsoft.com/v1.0"
	defaultTokenFmt = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	defaultScope    = "https://graph.microsoft.com/.default"

	// tokenExpirySkew renews the cached token this long before it actually
	// expires, so in-flight requests never carry a token about to lapse.
	tokenExpirySkew = 60 * time.Second
)

// Config holds the credentials and endpoints for a Graph signaling client.
type Config struct {
	// TenantID is the directory tenant used for token acquisition.
	TenantID string

	// ClientID and ClientSecret are the app registration credentials.
	ClientID     string
	ClientSecret string

	// BaseURL overrides the Graph API root. Default: the public v1.0 endpoint.
	BaseURL string

	// TokenURL overrides the token endpoint. Default: the Microsoft identity
	// platform endpoint for TenantID.
	TokenURL string

	// MediaBlob is the opaque app-hosted media configuration announced when
	// answering a call.
	MediaBlob string

	// HTTPClient overrides the HTTP client. Default: 15 second timeout.
	HTTPClient *http.Client
}

// Client is a signaling.Client backed by a Graph-style REST API.
//
// Client is safe for concurrent use; the cached token is guarded by a mutex.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New creates a Client from cfg. TenantID, ClientID, and ClientSecret are
// required.
func New(cfg Config) (*Client, error) {
	var errs []error
	if cfg.TenantID == "" {
		errs = append(errs, errors.New("graphapi: TenantID must not be empty"))
	}
	if cfg.ClientID == "" {
		errs = append(errs, errors.New("graphapi: ClientID must not be empty"))
	}
	if cfg.ClientSecret == "" {
		errs = append(errs, errors.New("graphapi: ClientSecret must not be empty"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = fmt.Sprintf(defaultTokenFmt, cfg.TenantID)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{cfg: cfg, httpClient: httpClient}, nil
}

// answerRequest is the JSON body for the answer action.
type answerRequest struct {
	CallbackURI        string      `json:"callbackUri"`
	AcceptedModalities []string    `json:"acceptedModalities"`
	MediaConfig        mediaConfig `json:"mediaConfig"`
}

// mediaConfig announces app-hosted media handling.
type mediaConfig struct {
	ODataType string `json:"@odata.type"`
	Blob      string `json:"blob,omitempty"`
}

// rejectRequest is the JSON body for the reject action.
type rejectRequest struct {
	Reason string `json:"reason"`
}

// Answer accepts the incoming call.
func (c *Client) Answer(ctx context.Context, callID, callbackURI string, modalities []string) error {
	body := answerRequest{
		CallbackURI:        callbackURI,
		AcceptedModalities: modalities,
		MediaConfig: mediaConfig{
			ODataType: "#microsoft.graph.appHostedMediaConfig",
			Blob:      c.cfg.MediaBlob,
		},
	}
	return c.post(ctx, "/communications/calls/"+url.PathEscape(callID)+"/answer", body)
}

// Reject declines the incoming call.
func (c *Client) Reject(ctx context.Context, callID string, reason signaling.RejectReason) error {
	return c.post(ctx, "/communications/calls/"+url.PathEscape(callID)+"/reject", rejectRequest{Reason: string(reason)})
}

// Hangup terminates an answered call.
func (c *Client) Hangup(ctx context.Context, callID string) error {
	return c.do(ctx, http.MethodDelete, "/communications/calls/"+url.PathEscape(callID), nil)
}

// post sends a JSON POST to the Graph endpoint.
func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("graphapi: marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, payload)
}

// do performs one authenticated request and checks for a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("graphapi: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graphapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("graphapi: %s %s: unexpected status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// tokenResponse is the relevant subset of the token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken returns the cached client-credentials token, fetching a new one
// when the cache is empty or within the expiry skew.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpirySkew)) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"scope":         {defaultScope},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("graphapi: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("graphapi: token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("graphapi: token request failed with status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("graphapi: decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("graphapi: token response contained no access token")
	}

	c.token = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return c.token, nil
}

// Ensure Client implements signaling.Client at compile time.
var _ signaling.Client = (*Client)(nil)
