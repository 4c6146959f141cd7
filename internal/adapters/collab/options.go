package collab

import (
	"net/http"
	"strings"
)

// Option applies a configuration option to a collaborator client.
type Option func(*client)

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *client) { c.token = strings.TrimSpace(token) }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *client) { c.userAgent = strings.TrimSpace(ua) }
}
