package ecommerce

import (
	"errors"
	"net/url"
	"strings"
)

// GraphConfig holds configuration for the commerce Graph API client
type GraphConfig struct {
	// APIBaseURL is the versioned Graph API root, e.g. https://graph.facebook.com/v15.0/
	APIBaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// MaxPages caps how many pages one cursor chain may be followed for
	MaxPages int
	// RequestsPerSecond paces outgoing requests; zero disables pacing
	RequestsPerSecond float64
	// Burst is the limiter bucket size
	Burst int
}

const (
	// GraphProductionAPIURL is the production API endpoint
	GraphProductionAPIURL = "https://graph.facebook.com/v15.0/"

	defaultGraphTimeoutSeconds = 30
	defaultGraphMaxPages       = 100
	defaultGraphBurst          = 5
)

// Errors for Graph configuration
var (
	ErrGraphConfigInvalidBaseURL = errors.New("graph: API base URL must be an absolute http(s) URL")
	ErrGraphConfigInvalidLimit   = errors.New("graph: requests per second cannot be negative")
)

// NewGraphConfig creates a new Graph configuration with defaults
func NewGraphConfig() *GraphConfig {
	return &GraphConfig{
		APIBaseURL:     GraphProductionAPIURL,
		TimeoutSeconds: defaultGraphTimeoutSeconds,
		MaxPages:       defaultGraphMaxPages,
		Burst:          defaultGraphBurst,
	}
}

// Validate validates the configuration and fills in defaults
func (c *GraphConfig) Validate() error {
	if c.APIBaseURL == "" {
		c.APIBaseURL = GraphProductionAPIURL
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrGraphConfigInvalidBaseURL
	}
	if !strings.HasSuffix(c.APIBaseURL, "/") {
		c.APIBaseURL += "/"
	}
	if c.RequestsPerSecond < 0 {
		return ErrGraphConfigInvalidLimit
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultGraphTimeoutSeconds
	}
	if c.MaxPages <= 0 {
		c.MaxPages = defaultGraphMaxPages
	}
	if c.Burst <= 0 {
		c.Burst = defaultGraphBurst
	}
	return nil
}

// endpoint joins a node ID and edge onto the base URL
func (c *GraphConfig) endpoint(node, edge string) string {
	return c.APIBaseURL + url.PathEscape(node) + "/" + edge
}
