package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	env "github.com/netflix/go-env"
)

const (
	AuthModeAWS   = "aws"
	AuthModeBasic = "basic"
	AuthModeNone  = "none"
)

// Config holds all settings resolved from the environment.
type Config struct {
	// OpenSearch connection
	OpenSearchEndpoint          string        `json:"opensearch_endpoint" env:"OPENSEARCH_ENDPOINT,required=true"`
	OpenSearchRegion            string        `json:"opensearch_region" env:"OPENSEARCH_REGION,default=us-east-1"`
	OpenSearchAuthMode          string        `json:"opensearch_auth_mode" env:"OPENSEARCH_AUTH_MODE,default=aws"`
	OpenSearchUsername          string        `json:"opensearch_username" env:"OPENSEARCH_USERNAME"`
	OpenSearchPassword          string        `json:"-" env:"OPENSEARCH_PASSWORD"`
	OpenSearchInsecureSkipTLS   bool          `json:"opensearch_insecure_skip_tls" env:"OPENSEARCH_INSECURE_SKIP_TLS,default=false"`
	OpenSearchRateLimit         float64       `json:"opensearch_rate_limit" env:"OPENSEARCH_RATE_LIMIT,default=10.0"`
	OpenSearchRateBurst         int           `json:"opensearch_rate_burst" env:"OPENSEARCH_RATE_BURST,default=20"`
	OpenSearchConnectionTimeout time.Duration `json:"opensearch_connection_timeout" env:"OPENSEARCH_CONNECTION_TIMEOUT,default=30s"`
	OpenSearchRequestTimeout    time.Duration `json:"opensearch_request_timeout" env:"OPENSEARCH_REQUEST_TIMEOUT,default=60s"`
	OpenSearchMaxRetries        int           `json:"opensearch_max_retries" env:"OPENSEARCH_MAX_RETRIES,default=3"`
	OpenSearchRetryDelay        time.Duration `json:"opensearch_retry_delay" env:"OPENSEARCH_RETRY_DELAY,default=1s"`
	OpenSearchMaxConnections    int           `json:"opensearch_max_connections" env:"OPENSEARCH_MAX_CONNECTIONS,default=100"`
	OpenSearchMaxIdleConns      int           `json:"opensearch_max_idle_conns" env:"OPENSEARCH_MAX_IDLE_CONNS,default=10"`
	OpenSearchIdleConnTimeout   time.Duration `json:"opensearch_idle_conn_timeout" env:"OPENSEARCH_IDLE_CONN_TIMEOUT,default=90s"`
	OpenSearchBreakerFailures   int           `json:"opensearch_breaker_failures" env:"OPENSEARCH_BREAKER_FAILURES,default=5"`
	OpenSearchBreakerTimeout    time.Duration `json:"opensearch_breaker_timeout" env:"OPENSEARCH_BREAKER_TIMEOUT,default=30s"`

	// Error log store
	ErrorLogIndex       string `json:"errorlog_index" env:"ERRORLOG_INDEX,default=errorlog"`
	ErrorLogApplication string `json:"errorlog_application" env:"ERRORLOG_APPLICATION"`
	ErrorLogConcurrency int    `json:"errorlog_concurrency" env:"ERRORLOG_CONCURRENCY,default=4"`

	// OpenTelemetry
	OTelEnabled              bool    `json:"otel_enabled" env:"OTEL_ENABLED,default=false"`
	OTelServiceName          string  `json:"otel_service_name" env:"OTEL_SERVICE_NAME,default=searchguard"`
	OTelExporterOTLPEndpoint string  `json:"otel_exporter_otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelExporterOTLPProtocol string  `json:"otel_exporter_otlp_protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL,default=http/protobuf"`
	OTelResourceAttributes   string  `json:"otel_resource_attributes" env:"OTEL_RESOURCE_ATTRIBUTES"`
	OTelTracesSampler        string  `json:"otel_traces_sampler" env:"OTEL_TRACES_SAMPLER,default=always_on"`
	OTelTracesSamplerArg     float64 `json:"otel_traces_sampler_arg" env:"OTEL_TRACES_SAMPLER_ARG,default=1.0"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var config Config

	_, err := env.UnmarshalFromEnviron(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	config.OpenSearchAuthMode = strings.ToLower(strings.TrimSpace(config.OpenSearchAuthMode))
	config.ErrorLogIndex = strings.TrimSpace(config.ErrorLogIndex)
	config.ErrorLogApplication = strings.TrimSpace(config.ErrorLogApplication)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// validateConfig validates configuration values and adjusts them to safe ranges
func validateConfig(config *Config) error {
	if config.ErrorLogConcurrency < 1 {
		config.ErrorLogConcurrency = 1
	}
	if config.ErrorLogConcurrency > 20 {
		config.ErrorLogConcurrency = 20
	}

	if config.ErrorLogIndex == "" {
		config.ErrorLogIndex = "errorlog"
	}
	if config.ErrorLogIndex != strings.ToLower(config.ErrorLogIndex) {
		return fmt.Errorf("ERRORLOG_INDEX must be lowercase")
	}

	if err := validateOpenSearchConfig(config); err != nil {
		return fmt.Errorf("OpenSearch configuration validation failed: %w", err)
	}

	return nil
}

// validateOpenSearchConfig validates OpenSearch-specific configuration
func validateOpenSearchConfig(config *Config) error {
	if config.OpenSearchEndpoint == "" {
		return fmt.Errorf("OPENSEARCH_ENDPOINT is required")
	}

	parsedURL, err := url.Parse(config.OpenSearchEndpoint)
	if err != nil {
		return fmt.Errorf("invalid OPENSEARCH_ENDPOINT URL format: %w", err)
	}

	if parsedURL.Scheme == "" {
		return fmt.Errorf("OPENSEARCH_ENDPOINT must include scheme (http:// or https://)")
	}

	if !strings.HasPrefix(parsedURL.Scheme, "http") {
		return fmt.Errorf("OPENSEARCH_ENDPOINT scheme must be http or https")
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("OPENSEARCH_ENDPOINT must include a valid host")
	}

	switch config.OpenSearchAuthMode {
	case AuthModeAWS:
		if config.OpenSearchRegion == "" {
			return fmt.Errorf("OPENSEARCH_REGION is required when OPENSEARCH_AUTH_MODE is aws")
		}
	case AuthModeBasic:
		if config.OpenSearchUsername == "" || config.OpenSearchPassword == "" {
			return fmt.Errorf("OPENSEARCH_USERNAME and OPENSEARCH_PASSWORD are required when OPENSEARCH_AUTH_MODE is basic")
		}
	case AuthModeNone:
	default:
		return fmt.Errorf("OPENSEARCH_AUTH_MODE must be one of aws, basic, none (got %q)", config.OpenSearchAuthMode)
	}

	if config.OpenSearchRateLimit <= 0 {
		return fmt.Errorf("OPENSEARCH_RATE_LIMIT must be greater than 0")
	}
	if config.OpenSearchRateLimit > 1000 {
		return fmt.Errorf("OPENSEARCH_RATE_LIMIT cannot exceed 1000 requests/second")
	}

	if config.OpenSearchRateBurst <= 0 {
		return fmt.Errorf("OPENSEARCH_RATE_BURST must be greater than 0")
	}
	if config.OpenSearchRateBurst > int(config.OpenSearchRateLimit*10) {
		return fmt.Errorf("OPENSEARCH_RATE_BURST should not exceed 10x the rate limit")
	}

	if config.OpenSearchConnectionTimeout <= 0 {
		return fmt.Errorf("OPENSEARCH_CONNECTION_TIMEOUT must be greater than 0")
	}
	if config.OpenSearchRequestTimeout <= 0 {
		return fmt.Errorf("OPENSEARCH_REQUEST_TIMEOUT must be greater than 0")
	}

	if config.OpenSearchMaxRetries < 0 {
		return fmt.Errorf("OPENSEARCH_MAX_RETRIES cannot be negative")
	}
	if config.OpenSearchMaxRetries > 10 {
		return fmt.Errorf("OPENSEARCH_MAX_RETRIES cannot exceed 10")
	}

	if config.OpenSearchRetryDelay <= 0 {
		return fmt.Errorf("OPENSEARCH_RETRY_DELAY must be greater than 0")
	}

	if config.OpenSearchMaxConnections <= 0 {
		return fmt.Errorf("OPENSEARCH_MAX_CONNECTIONS must be greater than 0")
	}
	if config.OpenSearchMaxConnections > 100 {
		return fmt.Errorf("OPENSEARCH_MAX_CONNECTIONS cannot exceed 100")
	}

	if config.OpenSearchMaxIdleConns <= 0 {
		return fmt.Errorf("OPENSEARCH_MAX_IDLE_CONNS must be greater than 0")
	}
	if config.OpenSearchMaxIdleConns > config.OpenSearchMaxConnections {
		return fmt.Errorf("OPENSEARCH_MAX_IDLE_CONNS cannot exceed OPENSEARCH_MAX_CONNECTIONS")
	}

	if config.OpenSearchIdleConnTimeout <= 0 {
		return fmt.Errorf("OPENSEARCH_IDLE_CONN_TIMEOUT must be greater than 0")
	}

	return nil
}
