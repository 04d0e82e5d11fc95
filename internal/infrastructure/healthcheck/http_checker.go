// Package healthcheck checks deployment endpoints over HTTP.
package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appplatform "github.com/opencrm/backend/internal/application/platform"
	"github.com/opencrm/backend/internal/infrastructure/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var _ appplatform.HealthChecker = (*HTTPChecker)(nil)

// drainLimit caps how much of a response body is read before closing so the
// connection can be reused
const drainLimit = 64 << 10

// HTTPChecker issues GET requests against deployment endpoints
type HTTPChecker struct {
	client     *http.Client
	healthPath string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewHTTPChecker creates a checker. Requests carry trace context through the
// otelhttp transport.
func NewHTTPChecker(cfg config.HealthConfig, logger *zap.Logger) *HTTPChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPChecker{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			// checks report the status they get, redirects included
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		healthPath: cfg.HealthPath,
		timeout:    timeout,
		logger:     logger.Named("health_checker"),
	}
}

// Check sends one GET. Any 2xx status is healthy. Transport failures are
// reported through Err and count as unhealthy.
func (p *HTTPChecker) Check(ctx context.Context, endpoint string) appplatform.CheckResult {
	target, err := p.target(endpoint)
	if err != nil {
		return appplatform.CheckResult{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return appplatform.CheckResult{Err: fmt.Errorf("build health check request: %w", err)}
	}
	req.Header.Set("User-Agent", "opencrm-health-checker")

	start := time.Now()
	resp, err := p.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		p.logger.Warn("health check failed",
			zap.String("target", target),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
		return appplatform.CheckResult{Latency: latency, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))

	healthy := resp.StatusCode >= 200 && resp.StatusCode < 300
	p.logger.Debug("health check",
		zap.String("target", target),
		zap.Int("status", resp.StatusCode),
		zap.Bool("healthy", healthy),
		zap.Duration("latency", latency),
	)
	return appplatform.CheckResult{
		Healthy:    healthy,
		StatusCode: resp.StatusCode,
		Latency:    latency,
	}
}

// target appends the health path when the endpoint has no path of its own
func (p *HTTPChecker) target(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", errors.New("endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("endpoint host is required")
	}
	if (u.Path == "" || u.Path == "/") && p.healthPath != "" {
		u.Path = "/" + strings.TrimPrefix(p.healthPath, "/")
	}
	return u.String(), nil
}
