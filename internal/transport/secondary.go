package transport

import (
	"context"
	"net/http"

	"promptrelay/internal/domain"
)

// fallbackUserAgent identifies secondary-path traffic upstream so the two
// paths can be told apart in access logs
const fallbackUserAgent = "promptrelay-fallback/1.0"

// FreshClient is the secondary executor: every request dials a fresh
// connection with keep-alive disabled. When the primary path fails on
// stale pooled state, this one gets through.
type FreshClient struct {
	httpClient *http.Client
}

// NewFreshClient creates the secondary transport client
func NewFreshClient(settings ...ConnectionSettings) *FreshClient {
	connSettings := FreshConnectionSettings()
	if len(settings) > 0 {
		connSettings = settings[0]
	}
	return &FreshClient{httpClient: BuildHTTPClient(connSettings)}
}

// Name identifies this transport in logs and metrics
func (c *FreshClient) Name() string {
	return "secondary"
}

// Execute delivers the request and returns the extracted reply text
func (c *FreshClient) Execute(ctx context.Context, req domain.CompletionRequest, endpoint Endpoint) (string, error) {
	headers := map[string]string{"User-Agent": fallbackUserAgent}
	return roundTrip(ctx, c.httpClient, req, endpoint, headers)
}
