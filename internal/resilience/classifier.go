// Package resilience keeps upstream delivery alive: it classifies
// failures, paces retries across both transports, and produces local
// fallback responses when the budget runs out.
package resilience

import (
	"strings"

	"promptrelay/internal/domain"
)

// classificationRule maps failure text fragments onto a failure kind
type classificationRule struct {
	kind        domain.FailureKind
	retryable   bool
	quota       bool
	substrings  []string
	remediation string
}

// classificationRules are checked in order; the first rule with a
// matching fragment wins. NETWORK deliberately carries no bare "timeout"
// fragment so the orchestrator's own deadline error reaches the TIMEOUT
// rule.
var classificationRules = []classificationRule{
	{
		kind:      domain.FailureNetwork,
		retryable: true,
		substrings: []string{
			"econnrefused", "connection refused",
			"enotfound", "no such host",
			"econnreset", "connection reset",
			"etimedout", "timed out", "i/o timeout",
			"socket hang up", "broken pipe",
			"network", "fetch failed", "dial tcp",
		},
		remediation: "check network connectivity",
	},
	{
		kind: domain.FailureAuth,
		substrings: []string{
			"api key not valid", "invalid api key", "api key",
			"unauthorized", "permission denied", "forbidden",
			"401", "403",
		},
		remediation: "verify the configured API key",
	},
	{
		kind:  domain.FailureQuota,
		quota: true,
		substrings: []string{
			"quota", "rate limit", "too many requests",
			"resource_exhausted", "resource exhausted", "429",
		},
		remediation: "rotate to a fresh API key or wait for the quota window to reset",
	},
	{
		kind:      domain.FailureTimeout,
		retryable: true,
		substrings: []string{
			"request timeout", "deadline exceeded",
		},
		remediation: "retry, or raise the per-attempt timeout",
	},
}

// Classify buckets a failure by its text, case-insensitively. The verdict
// is advisory: it steers backoff pacing and fallback wording, never the
// retry budget.
func Classify(err error) domain.ErrorClassification {
	if err == nil {
		return domain.ErrorClassification{Kind: domain.FailureUnknown}
	}

	errStr := strings.ToLower(err.Error())

	for _, rule := range classificationRules {
		for _, fragment := range rule.substrings {
			if strings.Contains(errStr, fragment) {
				return domain.ErrorClassification{
					Kind:           rule.kind,
					Retryable:      rule.retryable,
					QuotaExhausted: rule.quota,
					Remediation:    rule.remediation,
				}
			}
		}
	}

	return domain.ErrorClassification{
		Kind:        domain.FailureUnknown,
		Remediation: "inspect the error detail",
	}
}
