package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuboid-ai/callingbot/internal/resilience"
)

// maxResponseBytes bounds how much of a brain response body is read.
const maxResponseBytes = 1 << 20

// HTTPClient is a [Responder] backed by a dedicated brain endpoint.
//
// One request per utterance, no retries: a failed attempt immediately yields
// the fallback response and the conversation moves on. Safe for concurrent
// use from multiple sessions; the client holds no session state.
type HTTPClient struct {
	url          string
	httpClient   *http.Client
	maxVoiceSecs int
	strategies   []Strategy
	breaker      *resilience.CircuitBreaker
}

// HTTPOption configures an [HTTPClient] during construction.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying [http.Client]. Useful in tests.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// WithTimeout bounds one brain round-trip. The default is 30 seconds.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		c.httpClient.Timeout = d
	}
}

// WithMaxVoiceSecs sets the spoken-response duration hint sent with every
// request. The default is 20.
func WithMaxVoiceSecs(secs int) HTTPOption {
	return func(c *HTTPClient) {
		c.maxVoiceSecs = secs
	}
}

// WithStrategies replaces the response-shape extraction strategies.
func WithStrategies(strategies []Strategy) HTTPOption {
	return func(c *HTTPClient) {
		c.strategies = strategies
	}
}

// WithCircuitBreaker guards the endpoint with cb. While the breaker is open
// the HTTP attempt is skipped entirely and the fallback is served; the
// breaker never retries, so the single-attempt contract is preserved.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) HTTPOption {
	return func(c *HTTPClient) {
		c.breaker = cb
	}
}

// NewHTTPClient creates an HTTPClient for the brain endpoint at url.
func NewHTTPClient(url string, opts ...HTTPOption) (*HTTPClient, error) {
	if url == "" {
		return nil, errors.New("brain: url must not be empty")
	}
	c := &HTTPClient{
		url:          url,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		maxVoiceSecs: 20,
		strategies:   DefaultStrategies(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Respond implements [Responder]. Any transport failure, non-2xx status, or
// unusable body is absorbed into the fallback response. The returned error is
// non-nil only when ctx was cancelled.
func (c *HTTPClient) Respond(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, fmt.Errorf("brain: %w", err)
	}
	req.Constraints.MaxVoiceSecs = c.maxVoiceSecs

	var resp Response
	attempt := func() error {
		r, err := c.roundTrip(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(attempt)
	} else {
		err = attempt()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, fmt.Errorf("brain: %w", ctxErr)
		}
		slog.Warn("brain request failed, using fallback",
			"call_id", req.MeetingID, "error", err)
		return Fallback(), nil
	}
	return resp, nil
}

// roundTrip performs the single HTTP attempt against the brain endpoint.
func (c *HTTPClient) roundTrip(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("post: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read body: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("unexpected status %d", httpResp.StatusCode)
	}

	return decodeResponse(body, c.strategies)
}

// decodeResponse parses a brain reply. The canonical envelope is decoded
// first so chat and actions survive; when the speech field is missing the
// tolerated alternative shapes are tried in order.
func decodeResponse(body []byte, strategies []Strategy) (Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err == nil && resp.Speech != "" {
		return resp, nil
	}

	speech, strategy, ok := ExtractSpeech(body, strategies)
	if !ok {
		return Response{}, errors.New("no speech in response body")
	}
	slog.Debug("brain response matched alternative shape", "strategy", strategy)
	resp.Speech = speech
	return resp, nil
}
