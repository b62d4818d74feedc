package config

import (
	"errors"
	"sync"
)

// ErrEmptyCredential is returned when a credential update carries no value
var ErrEmptyCredential = errors.New("credential must not be empty")

// Credentials holds the live upstream credential pair. Rotation endpoints
// swap the key at runtime without restarting the service, so reads and
// writes are guarded.
type Credentials struct {
	mu     sync.RWMutex
	apiKey string
	model  string
}

// NewCredentials builds a credential holder with the initial pair
func NewCredentials(apiKey, model string) *Credentials {
	return &Credentials{apiKey: apiKey, model: model}
}

// Snapshot returns the current key and model
func (c *Credentials) Snapshot() (apiKey, model string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey, c.model
}

// UpdateKey replaces the API key
func (c *Credentials) UpdateKey(apiKey string) error {
	if apiKey == "" {
		return ErrEmptyCredential
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = apiKey
	return nil
}

// UpdateModel replaces the model identifier
func (c *Credentials) UpdateModel(model string) error {
	if model == "" {
		return ErrEmptyCredential
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
	return nil
}

// Configured reports whether both key and model are present
func (c *Credentials) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey != "" && c.model != ""
}
