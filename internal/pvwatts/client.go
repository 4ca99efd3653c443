package pvwatts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pvyield/internal/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://developer.nrel.gov/api/pvwatts/v8.json"

	maxErrorBody = 4 << 10
)

// Client calls the NREL PVWatts v8 API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// BreakerFailures consecutive upstream failures open the breaker for
	// BreakerCooldown. Zero disables the breaker.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	HTTPClient *http.Client
	Logger     *zap.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
		}
	}

	c := &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  httpClient,
		logger:  cfg.Logger,
	}

	if cfg.BreakerFailures > 0 {
		cooldown := cfg.BreakerCooldown
		if cooldown <= 0 {
			cooldown = 30 * time.Second
		}
		failures := cfg.BreakerFailures
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "pvwatts",
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				c.logger.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}

	return c
}

// Simulate runs one simulation. Every failure is an *EngineError.
func (c *Client) Simulate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := c.execute(ctx, req)
	metrics.EngineLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EngineRequests.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}
	metrics.EngineRequests.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return resp, nil
}

func (c *Client) execute(ctx context.Context, req Request) (*Response, error) {
	if c.breaker == nil {
		return c.do(ctx, req)
	}

	// Only upstream faults are reported to the breaker; rejected requests
	// and calls the caller abandoned pass through as successes and are
	// returned via callErr.
	var callErr error
	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.do(ctx, req)
		if err != nil {
			var engineErr *EngineError
			if ctx.Err() == nil && errors.As(err, &engineErr) && engineErr.upstreamFault() {
				return nil, err
			}
			callErr = err
			return nil, nil
		}
		return resp, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &EngineError{Kind: KindUnavailable, Message: "simulation engine temporarily unavailable", Err: err}
	}
	if err != nil {
		return nil, err
	}
	if callErr != nil {
		return nil, callErr
	}
	return result.(*Response), nil
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	query := req.Values()
	query.Set("api_key", c.apiKey)

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, &EngineError{Kind: KindTransport, Message: "invalid base url", Err: err}
	}
	endpoint.RawQuery = query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, &EngineError{Kind: KindTransport, Message: "pvwatts request", Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug("Calling simulation engine",
		zap.Float64("system_capacity", req.SystemCapacity),
		zap.Int("module_type", req.ModuleType),
		zap.Int("array_type", req.ArrayType),
		zap.Float64("tilt", req.Tilt),
		zap.Float64("azimuth", req.Azimuth),
		zap.String("timeframe", query.Get("timeframe")),
	)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, &EngineError{Kind: KindTimeout, Message: "pvwatts request timed out", Err: err}
		}
		return nil, &EngineError{Kind: KindTransport, Message: "pvwatts request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}

	var payload Response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if isTimeout(ctx, err) {
			return nil, &EngineError{Kind: KindTimeout, Message: "pvwatts response timed out", Err: err}
		}
		return nil, &EngineError{Kind: KindDecode, Message: "pvwatts decode", Err: err}
	}

	if len(payload.Errors) > 0 {
		return nil, &EngineError{
			Kind:       KindEngine,
			StatusCode: resp.StatusCode,
			Message:    strings.Join(payload.Errors, ", "),
			Errors:     payload.Errors,
		}
	}
	for _, warning := range payload.Warnings {
		c.logger.Warn("Simulation engine warning", zap.String("warning", warning))
	}

	if err := payload.Outputs.validate(); err != nil {
		return nil, err
	}

	return &payload, nil
}

// statusError keeps the upstream message of a non-2xx answer. PVWatts puts
// validation problems in a JSON errors array even on 4xx responses.
func statusError(resp *http.Response) *EngineError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	engineErr := &EngineError{
		Kind:       KindStatus,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("pvwatts bad status: %s", resp.Status),
	}

	var payload struct {
		Errors []string `json:"errors"`
		Error  struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case len(payload.Errors) > 0:
			engineErr.Errors = payload.Errors
			engineErr.Message = strings.Join(payload.Errors, ", ")
		case payload.Error.Message != "":
			engineErr.Message = payload.Error.Message
		}
	} else if text := strings.TrimSpace(string(body)); text != "" {
		engineErr.Message = text
	}

	return engineErr
}

// isTimeout treats caller cancellation like a deadline: both abort the
// request before the engine answered.
func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
