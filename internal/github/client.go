package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/jferrl/go-githubauth"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// Client wraps the GitHub GraphQL and REST clients with throttling, rate limit
// tracking and retry logic. It is not safe for concurrent use; report runs
// issue one request at a time.
type Client struct {
	rest        *github.Client
	graphql     *githubv4.Client
	baseURL     string
	rateLimiter *RateLimiter
	retryer     *Retryer
	throttle    *Throttle
	logger      *slog.Logger
}

// ClientConfig configures the GitHub client. Either Token or the three App
// fields must be set; App credentials win when both are present.
type ClientConfig struct {
	BaseURL string
	Token   string

	AppID             int64
	AppPrivateKey     string // PEM contents
	AppInstallationID int64

	Timeout     time.Duration
	PageDelay   time.Duration
	RetryConfig RetryConfig
	Logger      *slog.Logger
}

// HasAppAuth reports whether the config carries a complete GitHub App credential
func (c ClientConfig) HasAppAuth() bool {
	return c.AppID > 0 && c.AppPrivateKey != "" && c.AppInstallationID > 0
}

// InstanceType represents the type of GitHub instance
type InstanceType int

const (
	// InstanceTypeGitHub is standard GitHub.com
	InstanceTypeGitHub InstanceType = iota
	// InstanceTypeGHEC is GitHub Enterprise Cloud with data residency
	InstanceTypeGHEC
	// InstanceTypeGHES is GitHub Enterprise Server (self-hosted)
	InstanceTypeGHES
)

// GitHubAPIURL is the standard GitHub.com API URL
const GitHubAPIURL = "https://api.github.com"

func detectInstanceType(baseURL string) InstanceType {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" || baseURL == GitHubAPIURL {
		return InstanceTypeGitHub
	}
	if strings.Contains(baseURL, ".ghe.com") {
		return InstanceTypeGHEC
	}
	return InstanceTypeGHES
}

// buildGraphQLURL builds the GraphQL endpoint for the instance behind baseURL
func buildGraphQLURL(baseURL string) string {
	switch detectInstanceType(baseURL) {
	case InstanceTypeGitHub:
		return GitHubAPIURL + "/graphql"
	case InstanceTypeGHEC:
		// octocorp.ghe.com -> https://api.octocorp.ghe.com/graphql
		domain := strings.TrimPrefix(baseURL, "https://")
		domain = strings.TrimPrefix(domain, "http://")
		domain = strings.TrimPrefix(domain, "api.")
		domain = strings.TrimSuffix(domain, "/")
		return fmt.Sprintf("https://api.%s/graphql", domain)
	default:
		url := strings.TrimSuffix(baseURL, "/")
		url = strings.TrimSuffix(url, "/api/v3")
		url = strings.TrimSuffix(url, "/api")
		return url + "/api/graphql"
	}
}

// NewClient creates a GitHub client authenticated with a token or a GitHub App installation
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = DefaultRetryConfig()
	}

	httpClient, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	httpClient.Timeout = cfg.Timeout

	restClient := github.NewClient(httpClient)
	if detectInstanceType(cfg.BaseURL) != InstanceTypeGitHub {
		restClient, err = restClient.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, WrapError(err, "NewClient", cfg.BaseURL)
		}
	}

	graphqlURL := buildGraphQLURL(cfg.BaseURL)
	var graphqlClient *githubv4.Client
	if detectInstanceType(cfg.BaseURL) == InstanceTypeGitHub {
		graphqlClient = githubv4.NewClient(httpClient)
	} else {
		graphqlClient = githubv4.NewEnterpriseClient(graphqlURL, httpClient)
	}

	cfg.Logger.Debug("GitHub client configured",
		"base_url", cfg.BaseURL,
		"graphql_url", graphqlURL,
		"instance_type", detectInstanceType(cfg.BaseURL),
		"app_auth", cfg.HasAppAuth(),
		"page_delay", cfg.PageDelay)

	rateLimiter := NewRateLimiter(cfg.Logger)

	return &Client{
		rest:        restClient,
		graphql:     graphqlClient,
		baseURL:     cfg.BaseURL,
		rateLimiter: rateLimiter,
		retryer:     NewRetryer(cfg.RetryConfig, rateLimiter, cfg.Logger),
		throttle:    NewThrottle(cfg.PageDelay),
		logger:      cfg.Logger,
	}, nil
}

// newHTTPClient builds an oauth2 HTTP client from either an installation
// token source or a static token.
func newHTTPClient(cfg ClientConfig) (*http.Client, error) {
	ctx := context.Background()

	if cfg.HasAppAuth() {
		appSource, err := githubauth.NewApplicationTokenSource(cfg.AppID, []byte(cfg.AppPrivateKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub App token source: %w", err)
		}

		var opts []githubauth.InstallationTokenSourceOpt
		if detectInstanceType(cfg.BaseURL) != InstanceTypeGitHub {
			opts = append(opts, githubauth.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL))
		}
		installationSource := githubauth.NewInstallationTokenSource(cfg.AppInstallationID, appSource, opts...)
		return oauth2.NewClient(ctx, installationSource), nil
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("a token or GitHub App credentials are required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	return oauth2.NewClient(ctx, ts), nil
}

// REST returns the underlying GitHub REST client
func (c *Client) REST() *github.Client {
	return c.rest
}

// BaseURL returns the base URL of the GitHub instance
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetRateLimiter returns the rate limiter
func (c *Client) GetRateLimiter() *RateLimiter {
	return c.rateLimiter
}

// query runs one throttled GraphQL request with retries
func (c *Client) query(ctx context.Context, operation string, q any, variables map[string]any) error {
	if err := c.throttle.Wait(ctx); err != nil {
		return fmt.Errorf("throttle wait for %s: %w", operation, err)
	}

	return c.retryer.Do(ctx, operation, func(ctx context.Context) error {
		start := time.Now()
		err := c.graphql.Query(ctx, q, variables)
		duration := time.Since(start)

		if err != nil {
			wrapped := WrapError(err, operation, c.baseURL)
			c.logger.Debug("GitHub GraphQL query failed",
				"operation", operation,
				"duration_ms", duration.Milliseconds(),
				"error", wrapped)
			return wrapped
		}

		c.logger.Debug("GitHub GraphQL query completed",
			"operation", operation,
			"duration_ms", duration.Milliseconds())
		return nil
	})
}

// doREST runs one throttled REST call with retries and feeds the response rate headers to the limiter
func (c *Client) doREST(ctx context.Context, operation string, fn func(ctx context.Context) (*github.Response, error)) (*github.Response, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, fmt.Errorf("throttle wait for %s: %w", operation, err)
	}

	var resp *github.Response
	err := c.retryer.Do(ctx, operation, func(ctx context.Context) error {
		var err error
		resp, err = fn(ctx)
		if resp != nil && resp.Rate.Limit > 0 {
			c.rateLimiter.UpdateLimits(resp.Rate.Remaining, resp.Rate.Limit, resp.Rate.Reset.Time)
		}
		if err != nil {
			return WrapError(err, operation, c.baseURL)
		}
		return nil
	})
	return resp, err
}

func (c *Client) recordRateLimit(info rateLimitInfo) {
	c.rateLimiter.UpdateLimits(int(info.Remaining), int(info.Limit), info.ResetAt.Time)
	c.rateLimiter.RecordCost(int(info.Cost))
}
