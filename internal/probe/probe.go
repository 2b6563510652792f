// Package probe checks that every document URL of an index is reachable.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ziadkadry99/apiview/internal/catalog"
	"github.com/ziadkadry99/apiview/internal/progress"
)

// Result is the outcome of probing one document.
type Result struct {
	GroupID    string
	DocumentID string
	URL        string
	Status     int
	Err        error
	Duration   time.Duration
}

// OK reports whether the document answered with a 2xx status.
func (r Result) OK() bool { return r.Err == nil && r.Status >= 200 && r.Status < 300 }

// Prober issues one request per document URL.
type Prober struct {
	Client      *http.Client
	Concurrency int
	// RPS limits requests per host. Zero means unlimited.
	RPS      float64
	Reporter progress.Reporter
}

// Run probes every document of idx and returns results in index order.
// Relative and file URLs are not probed over HTTP and are reported as
// errors, since a browser resolves them against the viewer page.
func (p *Prober) Run(ctx context.Context, idx catalog.Index) ([]Result, error) {
	type job struct {
		pos  int
		g, d string
		url  string
	}
	var jobs []job
	for _, g := range idx {
		for _, d := range g.Documents {
			jobs = append(jobs, job{pos: len(jobs), g: g.ID, d: d.ID, url: d.URL})
		}
	}

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	limiter := newHostLimiter(p.RPS)

	if p.Reporter != nil {
		p.Reporter.Start(len(jobs))
		defer p.Reporter.Finish()
	}

	results := make([]Result, len(jobs))
	var (
		completed atomic.Int64
		reportMu  sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, j := range jobs {
		g.Go(func() error {
			r := Result{GroupID: j.g, DocumentID: j.d, URL: j.url}
			start := time.Now()
			r.Status, r.Err = probeURL(gctx, client, limiter, j.url)
			r.Duration = time.Since(start)
			results[j.pos] = r

			if p.Reporter != nil {
				reportMu.Lock()
				p.Reporter.Update(int(completed.Add(1)), describe(r))
				reportMu.Unlock()
			}
			// Stop early only when the caller gave up.
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("probing documents: %w", err)
	}
	return results, nil
}

func describe(r Result) string {
	key := catalog.Key(r.GroupID, r.DocumentID)
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", key, r.Err)
	}
	return fmt.Sprintf("%s: %d", key, r.Status)
}

func probeURL(ctx context.Context, client *http.Client, limiter *hostLimiter, raw string) (int, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return 0, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return 0, fmt.Errorf("not an http(s) url")
	}
	if err := limiter.Wait(ctx, u.Host); err != nil {
		return 0, err
	}

	status, err := request(ctx, client, http.MethodHead, raw)
	if err != nil {
		return 0, err
	}
	// Some static hosts reject HEAD.
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		return request(ctx, client, http.MethodGet, raw)
	}
	return status, nil
}

func request(ctx context.Context, client *http.Client, method, raw string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, raw, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	return resp.StatusCode, nil
}

// hostLimiter rate limits requests per host with token buckets.
type hostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
}

func newHostLimiter(rps float64) *hostLimiter {
	return &hostLimiter{limiters: make(map[string]*rate.Limiter), rps: rps}
}

// Wait blocks until a request to host is allowed.
func (h *hostLimiter) Wait(ctx context.Context, host string) error {
	if h.rps <= 0 {
		return nil
	}
	h.mu.Lock()
	limiter, ok := h.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(h.rps), 1)
		h.limiters[host] = limiter
	}
	h.mu.Unlock()

	return limiter.Wait(ctx)
}
