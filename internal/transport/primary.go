package transport

import (
	"context"
	"net/http"

	"promptrelay/internal/domain"
)

// Client is the primary executor: pooled keep-alive connections with
// HTTP/2 enabled
type Client struct {
	httpClient *http.Client
}

// NewClient creates the primary transport client
func NewClient(settings ...ConnectionSettings) *Client {
	connSettings := DefaultConnectionSettings()
	if len(settings) > 0 {
		connSettings = settings[0]
	}
	return &Client{httpClient: BuildHTTPClient(connSettings)}
}

// Name identifies this transport in logs and metrics
func (c *Client) Name() string {
	return "primary"
}

// Execute delivers the request and returns the extracted reply text
func (c *Client) Execute(ctx context.Context, req domain.CompletionRequest, endpoint Endpoint) (string, error) {
	return roundTrip(ctx, c.httpClient, req, endpoint, nil)
}
