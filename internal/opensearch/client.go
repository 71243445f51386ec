package opensearch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	opensearch "github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	requestsigner "github.com/opensearch-project/opensearch-go/v4/signer/awsv2"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	appconfig "github.com/ca-srg/searchguard/internal/config"
	"github.com/ca-srg/searchguard/internal/guard"
)

type Client struct {
	client      *opensearchapi.Client
	rateLimiter *rate.Limiter
	config      *Config
	breaker     *gobreaker.CircuitBreaker[*Exchange]
	metrics     *instruments
	stats       Stats
}

// Call issues one request with the typed API. The context it receives must
// be passed to the API so the request is recorded.
type Call func(ctx context.Context) error

func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectionTimeout,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipTLS,
		},
		MaxConnsPerHost:       cfg.MaxConnections,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   max(cfg.MaxIdleConns/2, 1),
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
	}

	osConfig := opensearch.Config{
		Addresses: []string{cfg.Endpoint},
		Transport: newRecordingTransport(transport),
	}

	switch cfg.AuthMode {
	case appconfig.AuthModeAWS:
		awsConfig, err := config.LoadDefaultConfig(context.Background(),
			config.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		signer, err := requestsigner.NewSignerWithService(awsConfig, "es")
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS signer: %w", err)
		}
		osConfig.Signer = signer
	case appconfig.AuthModeBasic:
		osConfig.Username = cfg.Username
		osConfig.Password = cfg.Password
	}

	osClient, err := opensearchapi.NewClient(opensearchapi.Config{Client: osConfig})
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSearch client: %w", err)
	}

	return &Client{
		client:      osClient,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		breaker:     newBreaker(cfg),
		config:      cfg,
		metrics:     newInstruments(),
	}, nil
}

// newBreaker opens after cfg.BreakerFailures consecutive calls that got no
// response at all. A response with an error status counts as a success.
func newBreaker(cfg *Config) *gobreaker.CircuitBreaker[*Exchange] {
	failures := uint32(cfg.BreakerFailures)
	return gobreaker.NewCircuitBreaker[*Exchange](gobreaker.Settings{
		Name:        "opensearch:" + cfg.Endpoint,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("Circuit breaker %s changed from %s to %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

func (c *Client) GetClient() *opensearchapi.Client {
	return c.client
}

func (c *Client) WaitForRateLimit(ctx context.Context) error {
	return c.rateLimiter.Wait(ctx)
}

// Do runs call and verifies the outcome. Connection failures are retried;
// a response the server did send is never retried. The returned Exchange is
// non-nil whenever a response was received.
func (c *Client) Do(ctx context.Context, operation string, call Call) (*Exchange, error) {
	return c.do(ctx, operation, call, 0)
}

// do is Do, except that a response with allowStatus and no server error is
// accepted as is.
func (c *Client) do(ctx context.Context, operation string, call Call, allowStatus int) (*Exchange, error) {
	ctx, span := opensearchTracer.Start(ctx, "opensearch."+operation)
	defer span.End()

	start := time.Now()
	ex, err := c.breaker.Execute(func() (*Exchange, error) {
		return c.roundTrip(ctx, operation, call)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &SearchError{
			Type:       ErrorTypeConnection,
			Message:    "OpenSearch is unreachable, requests are paused",
			Retryable:  false,
			Suggestion: "Wait for the cluster to recover before retrying",
			Timestamp:  time.Now(),
			Err:        err,
		}
	}
	if err == nil {
		if allowStatus == 0 || ex.Status != allowStatus || ex.ServerError() != nil {
			_, err = guard.VerifySuccessful(ex)
		}
	}
	elapsed := time.Since(start)

	c.stats.record(elapsed, err == nil)
	c.metrics.record(ctx, operation, err, float64(elapsed.Microseconds())/1000)

	if ex != nil {
		span.SetAttributes(
			attribute.Int("http.response.status_code", ex.Status),
			attribute.String("http.request.method", ex.Method),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logFailure(operation, ex, err)
		return ex, err
	}

	return ex, nil
}

func (c *Client) roundTrip(ctx context.Context, operation string, call Call) (*Exchange, error) {
	ex := &Exchange{Operation: operation}
	callCtx := WithExchange(ctx, ex)

	err := c.ExecuteWithRetry(ctx, func() error {
		if err := c.WaitForRateLimit(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		ex.reset()
		callErr := call(callCtx)
		if callErr != nil && !ex.Responded() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ClassifyConnectionError(callErr)
		}
		ex.Err = callErr
		return nil
	}, operation)
	if err != nil {
		return nil, err
	}

	return ex, nil
}

func logFailure(operation string, ex *Exchange, err error) {
	var invalid *guard.InvalidResponseError
	if errors.As(err, &invalid) {
		if hint := ClassifyHTTPError(invalid.StatusCode, "").Suggestion; hint != "" {
			log.Printf("OpenSearch %s failed: %v (hint: %s)", operation, err, hint)
			return
		}
	}
	if ex != nil && ex.Responded() {
		log.Printf("OpenSearch %s failed: %v [%s]", operation, err, guard.Describe(ex))
		return
	}
	log.Printf("OpenSearch %s failed: %v", operation, err)
}

// RetryableOperation defines a function that can be retried
type RetryableOperation func() error

// ExecuteWithRetry runs operation with exponential backoff. Only a
// *SearchError marked retryable is retried; any other error is returned at once.
func (c *Client) ExecuteWithRetry(ctx context.Context, operation RetryableOperation, operationName string) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * c.config.RetryDelay
			log.Printf("Retrying %s operation after %v (attempt %d/%d)",
				operationName, delay, attempt, c.config.MaxRetries)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := operation()
		if err == nil {
			if attempt > 0 {
				log.Printf("%s operation succeeded after %d retries", operationName, attempt)
			}
			return nil
		}
		lastErr = err

		var searchErr *SearchError
		if !errors.As(err, &searchErr) || !searchErr.IsRetryable() {
			return err
		}
		log.Printf("%s operation failed (attempt %d/%d): %v",
			operationName, attempt+1, c.config.MaxRetries+1, err)
	}

	return fmt.Errorf("%s operation failed after %d attempts, last error: %w",
		operationName, c.config.MaxRetries+1, lastErr)
}

// HealthCheck returns the cluster health status (green, yellow or red).
func (c *Client) HealthCheck(ctx context.Context) (string, error) {
	var status string
	_, err := c.Do(ctx, "ClusterHealth", func(ctx context.Context) error {
		resp, err := c.client.Cluster.Health(ctx, &opensearchapi.ClusterHealthReq{})
		if err != nil {
			return err
		}
		status = resp.Status
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("health check failed: %w", err)
	}

	log.Printf("OpenSearch health check successful: %s", status)
	return status, nil
}

// Stats holds request counters for one client.
type Stats struct {
	requests      atomic.Int64
	successes     atomic.Int64
	failures      atomic.Int64
	totalDuration atomic.Int64
}

func (s *Stats) record(duration time.Duration, success bool) {
	s.requests.Add(1)
	s.totalDuration.Add(int64(duration))
	if success {
		s.successes.Add(1)
	} else {
		s.failures.Add(1)
	}
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	RequestCount   int64
	SuccessCount   int64
	ErrorCount     int64
	AverageLatency time.Duration
}

func (c *Client) Stats() StatsSnapshot {
	snap := StatsSnapshot{
		RequestCount: c.stats.requests.Load(),
		SuccessCount: c.stats.successes.Load(),
		ErrorCount:   c.stats.failures.Load(),
	}
	if snap.RequestCount > 0 {
		snap.AverageLatency = time.Duration(c.stats.totalDuration.Load() / snap.RequestCount)
	}
	return snap
}

// LogMetrics logs current performance metrics
func (c *Client) LogMetrics() {
	s := c.Stats()
	log.Printf("OpenSearch Client Metrics - Requests: %d, Success: %d, Errors: %d, Avg Latency: %v",
		s.RequestCount, s.SuccessCount, s.ErrorCount, s.AverageLatency)
}
