package source

import "github.com/go-resty/resty/v2"

// Option configures a source adapter.
type Option func(client **resty.Client, baseURL *string)

// WithBaseURL overrides the upstream base URL. Tests point this at a
// local httptest server.
func WithBaseURL(url string) Option {
	return func(client **resty.Client, baseURL *string) {
		*baseURL = url
	}
}

// WithClient replaces the HTTP client.
func WithClient(c *resty.Client) Option {
	return func(client **resty.Client, baseURL *string) {
		*client = c
	}
}
