package transport

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// ProbeResult is one connectivity observation
type ProbeResult struct {
	Target  string
	Latency time.Duration
	Err     error
}

// Reachable reports whether the target answered at all. Any HTTP status
// counts; only transport-level failures count against the target.
func (r ProbeResult) Reachable() bool {
	return r.Err == nil
}

var probeClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		DisableKeepAlives: true,
	},
}

// Preflight checks the configured endpoint root. It reports reachability
// only; the request path never waits on it.
func Preflight(ctx context.Context, target string) ProbeResult {
	return probe(ctx, target)
}

// ProbeAll checks each target concurrently and returns results in target
// order
func ProbeAll(ctx context.Context, targets []string) []ProbeResult {
	results := make([]ProbeResult, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			results[i] = probe(ctx, target)
		}(i, target)
	}
	wg.Wait()

	return results
}

func probe(ctx context.Context, target string) ProbeResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return ProbeResult{Target: target, Err: err}
	}

	resp, err := probeClient.Do(req)
	if err != nil {
		return ProbeResult{Target: target, Latency: time.Since(start), Err: err}
	}
	resp.Body.Close()

	return ProbeResult{Target: target, Latency: time.Since(start)}
}
