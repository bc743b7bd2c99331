// Package upstream calls the fee-yield and impermanent-divergence calculators over HTTP.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"hypervisorReturns/internal/model"
)

const (
	feeReturnsPath      = "hypervisors/feeReturns"
	impermanentPath     = "hypervisors/impermanentDivergence"
	maxResponseBodySize = 32 << 20
)

// Config configures the calculator client.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RPS limits requests per second across both calculators. Zero disables the limit.
	RPS     float64
	Breaker BreakerConfig
}

// Client fetches calculator snapshots for (chain, protocol, days).
type Client struct {
	base    *url.URL
	http    *retryablehttp.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	breakerCfg BreakerConfig
	mu         sync.Mutex
	breakers   map[string]*gobreaker.CircuitBreaker
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("upstream url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = cfg.RetryWaitMin
	rc.RetryWaitMax = cfg.RetryWaitMax
	if rc.RetryWaitMin <= 0 {
		rc.RetryWaitMin = 500 * time.Millisecond
	}
	if rc.RetryWaitMax <= 0 {
		rc.RetryWaitMax = 5 * time.Second
	}
	rc.Logger = nil
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}

	breakerCfg := cfg.Breaker
	if breakerCfg == (BreakerConfig{}) {
		breakerCfg = DefaultBreakerConfig()
	}

	return &Client{
		base:       base,
		http:       rc,
		limiter:    limiter,
		logger:     logger,
		breakerCfg: breakerCfg,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}, nil
}

type feeReturnsResponse struct {
	CurrentBlock uint64                    `json:"current_block"`
	Timestamp    uint64                    `json:"timestamp"`
	Hypervisors  map[string]model.FeeYield `json:"hypervisors"`
}

type impermanentResponse struct {
	CurrentBlock uint64                       `json:"current_block"`
	Hypervisors  map[string]model.Impermanent `json:"hypervisors"`
}

// FeeYield fetches the fee-yield snapshot of one triple.
func (c *Client) FeeYield(ctx context.Context, chain, protocol string, days int) (model.FeeYieldSnapshot, error) {
	var resp feeReturnsResponse
	if err := c.get(ctx, chain, protocol, feeReturnsPath, days, &resp); err != nil {
		return model.FeeYieldSnapshot{}, err
	}
	if resp.Hypervisors == nil {
		return model.FeeYieldSnapshot{}, fmt.Errorf("fee returns for %s/%s: missing hypervisors", protocol, chain)
	}
	return model.FeeYieldSnapshot{
		Block:     resp.CurrentBlock,
		Timestamp: resp.Timestamp,
		Entries:   resp.Hypervisors,
	}, nil
}

// Impermanent fetches the impermanent-divergence snapshot of one triple.
func (c *Client) Impermanent(ctx context.Context, chain, protocol string, days int) (model.ImpermanentSnapshot, error) {
	var resp impermanentResponse
	if err := c.get(ctx, chain, protocol, impermanentPath, days, &resp); err != nil {
		return model.ImpermanentSnapshot{}, err
	}
	if resp.Hypervisors == nil {
		resp.Hypervisors = map[string]model.Impermanent{}
	}
	return model.ImpermanentSnapshot{
		Block:   resp.CurrentBlock,
		Entries: resp.Hypervisors,
	}, nil
}

func (c *Client) endpoint(chain, protocol, path string, days int) string {
	u := c.base.JoinPath(url.PathEscape(protocol), url.PathEscape(chain), path)
	q := u.Query()
	q.Set("days", strconv.Itoa(days))
	u.RawQuery = q.Encode()
	return u.String()
}

// breaker returns the breaker of one calculator endpoint for one (chain, protocol),
// so a failing chain never opens the circuit of another.
func (c *Client) breaker(chain, protocol, path string) *gobreaker.CircuitBreaker {
	name := protocol + "/" + chain + "/" + path
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.breakers[name]
	if !ok {
		cb = newBreaker(name, c.breakerCfg)
		c.breakers[name] = cb
	}
	return cb
}

func (c *Client) get(ctx context.Context, chain, protocol, path string, days int, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	endpoint := c.endpoint(chain, protocol, path, days)
	_, err := c.breaker(chain, protocol, path).Execute(func() (interface{}, error) {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		c.logger.Debug("upstream response",
			zap.String("url", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", time.Since(start)),
		)

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("get %s: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodySize)).Decode(out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", endpoint, err)
		}
		return nil, nil
	})
	return err
}
