package opensearch

import (
	"fmt"
	"strings"
	"time"

	appconfig "github.com/ca-srg/searchguard/internal/config"
)

type Config struct {
	Endpoint          string
	Region            string
	AuthMode          string
	Username          string
	Password          string
	InsecureSkipTLS   bool
	RateLimit         float64
	RateBurst         int
	ConnectionTimeout time.Duration
	RequestTimeout    time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	MaxConnections    int
	MaxIdleConns      int
	IdleConnTimeout   time.Duration
	// BreakerFailures consecutive connection failures open the circuit for
	// BreakerTimeout.
	BreakerFailures int
	BreakerTimeout  time.Duration
}

func NewConfigFromAppConfig(cfg *appconfig.Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	return &Config{
		Endpoint:          cfg.OpenSearchEndpoint,
		Region:            cfg.OpenSearchRegion,
		AuthMode:          cfg.OpenSearchAuthMode,
		Username:          cfg.OpenSearchUsername,
		Password:          cfg.OpenSearchPassword,
		InsecureSkipTLS:   cfg.OpenSearchInsecureSkipTLS,
		RateLimit:         cfg.OpenSearchRateLimit,
		RateBurst:         cfg.OpenSearchRateBurst,
		ConnectionTimeout: cfg.OpenSearchConnectionTimeout,
		RequestTimeout:    cfg.OpenSearchRequestTimeout,
		MaxRetries:        cfg.OpenSearchMaxRetries,
		RetryDelay:        cfg.OpenSearchRetryDelay,
		MaxConnections:    cfg.OpenSearchMaxConnections,
		MaxIdleConns:      cfg.OpenSearchMaxIdleConns,
		IdleConnTimeout:   cfg.OpenSearchIdleConnTimeout,
		BreakerFailures:   cfg.OpenSearchBreakerFailures,
		BreakerTimeout:    cfg.OpenSearchBreakerTimeout,
	}, nil
}

// Validate checks required fields and clamps the rest into usable ranges.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}

	c.AuthMode = strings.ToLower(strings.TrimSpace(c.AuthMode))
	switch c.AuthMode {
	case "":
		c.AuthMode = appconfig.AuthModeAWS
		fallthrough
	case appconfig.AuthModeAWS:
		if c.Region == "" {
			return fmt.Errorf("region is required for aws auth")
		}
	case appconfig.AuthModeBasic:
		if c.Username == "" {
			return fmt.Errorf("username is required for basic auth")
		}
	case appconfig.AuthModeNone:
	default:
		return fmt.Errorf("unsupported auth mode %q", c.AuthMode)
	}

	if c.RateLimit <= 0 {
		c.RateLimit = 10.0
	}
	if c.RateLimit > 1000 {
		c.RateLimit = 1000.0
	}

	if c.RateBurst <= 0 {
		c.RateBurst = 20
	}
	if c.RateBurst > 10000 {
		c.RateBurst = 10000
	}

	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = 30 * time.Second
	}
	if c.ConnectionTimeout > 300*time.Second {
		c.ConnectionTimeout = 300 * time.Second
	}

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.RequestTimeout > 600*time.Second {
		c.RequestTimeout = 600 * time.Second
	}

	if c.MaxRetries < 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 1 * time.Second
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 100
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 10
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 30 * time.Second
	}

	return nil
}
