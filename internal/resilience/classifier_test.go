package resilience

import (
	"errors"
	"fmt"
	"testing"

	"promptrelay/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      domain.FailureKind
		retryable bool
		quota     bool
	}{
		{
			name:      "connection refused",
			err:       errors.New("dial tcp 10.0.0.1:443: connect: connection refused"),
			kind:      domain.FailureNetwork,
			retryable: true,
		},
		{
			name:      "node style econnrefused",
			err:       errors.New("connect ECONNREFUSED 172.217.16.10:443"),
			kind:      domain.FailureNetwork,
			retryable: true,
		},
		{
			name:      "dns failure",
			err:       errors.New("dial tcp: lookup generativelanguage.googleapis.com: no such host"),
			kind:      domain.FailureNetwork,
			retryable: true,
		},
		{
			name:      "socket timeout is network",
			err:       errors.New("read tcp 192.168.1.5:52110->142.250.74.42:443: i/o timeout"),
			kind:      domain.FailureNetwork,
			retryable: true,
		},
		{
			name: "unauthorized status",
			err:  errors.New("API error: 401 Unauthorized - request had invalid authentication"),
			kind: domain.FailureAuth,
		},
		{
			name: "bad api key",
			err:  errors.New("API key not valid. Please pass a valid API key."),
			kind: domain.FailureAuth,
		},
		{
			name: "forbidden status",
			err:  errors.New("API error: 403 Forbidden - permission denied"),
			kind: domain.FailureAuth,
		},
		{
			name:  "quota status",
			err:   errors.New("API error: 429 Too Many Requests - quota exceeded for this project"),
			kind:  domain.FailureQuota,
			quota: true,
		},
		{
			name:  "resource exhausted",
			err:   errors.New("rpc error: RESOURCE_EXHAUSTED"),
			kind:  domain.FailureQuota,
			quota: true,
		},
		{
			name:      "attempt deadline",
			err:       fmt.Errorf("request timeout after %s", "30s"),
			kind:      domain.FailureTimeout,
			retryable: true,
		},
		{
			name:      "raw deadline exceeded",
			err:       errors.New("context deadline exceeded"),
			kind:      domain.FailureTimeout,
			retryable: true,
		},
		{
			name: "unrecognized text",
			err:  errors.New("something inexplicable happened"),
			kind: domain.FailureUnknown,
		},
		{
			name: "nil error",
			err:  nil,
			kind: domain.FailureUnknown,
		},
		{
			name:      "network outranks quota",
			err:       errors.New("connection reset by peer after 429"),
			kind:      domain.FailureNetwork,
			retryable: true,
		},
		{
			name: "auth outranks quota",
			err:  errors.New("401 Unauthorized: rate limit key rejected"),
			kind: domain.FailureAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class := Classify(tt.err)
			if class.Kind != tt.kind {
				t.Errorf("Classify() kind = %s, want %s", class.Kind, tt.kind)
			}
			if class.Retryable != tt.retryable {
				t.Errorf("Classify() retryable = %v, want %v", class.Retryable, tt.retryable)
			}
			if class.QuotaExhausted != tt.quota {
				t.Errorf("Classify() quotaExhausted = %v, want %v", class.QuotaExhausted, tt.quota)
			}
		})
	}
}

func TestClassifyRemediation(t *testing.T) {
	class := Classify(errors.New("API error: 429 Too Many Requests"))
	if class.Remediation == "" {
		t.Error("Expected a remediation hint for quota failures")
	}
}
