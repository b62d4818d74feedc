// Package transport delivers completion requests over the upstream wire
// contract. Both executors speak to the same endpoint and differ only in
// how they manage connections.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"promptrelay/internal/domain"
)

// Executor delivers a completion request and returns the reply text
type Executor interface {
	Name() string
	Execute(ctx context.Context, req domain.CompletionRequest, endpoint Endpoint) (string, error)
}

// Endpoint addresses one upstream model
type Endpoint struct {
	BaseURL string
	Model   string
	APIKey  string
}

// URL returns the full request URL with the key as a query parameter
func (e Endpoint) URL() string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s", e.BaseURL, e.Model, e.APIKey)
}

// ConnectionSettings tune the HTTP connection path
type ConnectionSettings struct {
	MaxConnections     int  // Max TCP connections upstream
	MaxIdleConnections int  // Connections kept warm for reuse
	IdleTimeoutSec     int  // Close idle connections after this time
	RequestTimeoutSec  int  // Max time for a single request
	EnableHTTP2        bool // Use HTTP/2
	EnableKeepAlive    bool // Reuse connections
}

// DefaultConnectionSettings returns the pooled settings the primary
// transport runs with
func DefaultConnectionSettings() ConnectionSettings {
	return ConnectionSettings{
		MaxConnections:     10,
		MaxIdleConnections: 5,
		IdleTimeoutSec:     90,
		RequestTimeoutSec:  300,
		EnableHTTP2:        true,
		EnableKeepAlive:    true,
	}
}

// FreshConnectionSettings returns settings that dial a new connection per
// request, sidestepping any poisoned keep-alive state
func FreshConnectionSettings() ConnectionSettings {
	return ConnectionSettings{
		MaxConnections:    4,
		RequestTimeoutSec: 300,
		EnableHTTP2:       false,
		EnableKeepAlive:   false,
	}
}

// BuildHTTPClient creates an HTTP client with the specified connection settings
func BuildHTTPClient(settings ConnectionSettings) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        settings.MaxIdleConnections,
		MaxIdleConnsPerHost: settings.MaxIdleConnections,
		MaxConnsPerHost:     settings.MaxConnections,
		IdleConnTimeout:     time.Duration(settings.IdleTimeoutSec) * time.Second,
		DisableKeepAlives:   !settings.EnableKeepAlive,
		ForceAttemptHTTP2:   settings.EnableHTTP2,
	}

	return &http.Client{
		Timeout:   time.Duration(settings.RequestTimeoutSec) * time.Second,
		Transport: transport,
	}
}
