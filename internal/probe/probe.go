package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/BBerastegui/domain-stream/internal/config"
	"github.com/BBerastegui/domain-stream/internal/models"
)

const (
	requestTimeout = 10 * time.Second

	// Cap body reads so a large public object cannot balloon memory.
	maxContentBytes = 256 * 1024

	userAgent = "domain-stream/1.0"
)

// Prober performs name-existence checks against an S3-style naming
// convention and classifies each response. It is safe for concurrent use;
// the rate limiter and the rate-limit pause gate are shared across all
// workers.
type Prober struct {
	client   *http.Client
	endpoint string
	limiter  *rate.Limiter
	ignore   bool
	sleep    time.Duration

	mu    sync.Mutex
	until time.Time // probes wait until this instant after a rate-limit hit
}

// New builds a Prober from the process configuration.
func New(cfg *config.Config) *Prober {
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.ProbeRate > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.ProbeRate), 1)
	}
	return &Prober{
		client: &http.Client{
			Timeout: requestTimeout,
			// Redirects are a classification signal, not something to
			// chase.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		endpoint: cfg.ProbeEndpoint,
		limiter:  lim,
		ignore:   cfg.IgnoreRateLimit,
		sleep:    cfg.RateLimitSleep,
	}
}

// Check probes a single candidate name and classifies the result. A
// rate-limited response pauses all probes for the configured sleep, then
// the candidate gets one more attempt; with ignore_rate_limit set the
// response is downgraded to not-found instead.
func (p *Prober) Check(ctx context.Context, cand models.Candidate) models.ProbeResult {
	if err := p.limiter.Wait(ctx); err != nil {
		return models.ProbeResult{Candidate: cand, Status: models.StatusError, Err: err}
	}
	if err := p.waitGate(ctx); err != nil {
		return models.ProbeResult{Candidate: cand, Status: models.StatusError, Err: err}
	}

	res := p.request(ctx, cand)
	if res.Status != models.StatusRateLimited {
		return res
	}
	if p.ignore {
		// Deliberate tradeoff: skipping the backoff means this
		// candidate goes unchecked and is reported as absent.
		res.Status = models.StatusNotFound
		return res
	}

	// Wait out the pause, then retry the candidate once before giving
	// up on it.
	p.pause(p.sleep)
	if err := p.waitGate(ctx); err != nil {
		return models.ProbeResult{Candidate: cand, Status: models.StatusError, Err: err}
	}
	res = p.request(ctx, cand)
	if res.Status == models.StatusRateLimited {
		p.pause(p.sleep)
	}
	return res
}

// request performs a single probe and classifies the response. Rate-limit
// policy is applied by Check, not here.
func (p *Prober) request(ctx context.Context, cand models.Candidate) models.ProbeResult {
	res := models.ProbeResult{Candidate: cand}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url(cand.Name), nil)
	if err != nil {
		res.Status = models.StatusError
		res.Err = err
		return res
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		res.Status = models.StatusError
		res.Err = err
		return res
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		content, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes))
		if err != nil {
			// Truncated content would be scanned for keywords as if it
			// were complete; treat the candidate as failed instead.
			res.Status = models.StatusError
			res.Err = fmt.Errorf("read %s: %w", cand.Name, err)
			return res
		}
		res.Status = models.StatusFound
		res.Content = content
	case http.StatusForbidden:
		res.Status = models.StatusDenied
	case http.StatusNotFound:
		res.Status = models.StatusNotFound
	// The bucket exists but lives in another region or partition.
	case http.StatusMovedPermanently:
		res.Status = models.StatusDenied
	case http.StatusServiceUnavailable, http.StatusTooManyRequests:
		res.Status = models.StatusRateLimited
	default:
		res.Status = models.StatusError
		res.Err = fmt.Errorf("unexpected status %d for %s", resp.StatusCode, cand.Name)
	}
	return res
}

// url builds the probe target. A bare endpoint ("s3.amazonaws.com") turns
// into a virtual-hosted URL; an endpoint with a scheme is used path-style,
// which also keeps the prober testable against a local server.
func (p *Prober) url(name string) string {
	if strings.Contains(p.endpoint, "://") {
		return strings.TrimSuffix(p.endpoint, "/") + "/" + name
	}
	return "https://" + name + "." + p.endpoint + "/"
}

func (p *Prober) waitGate(ctx context.Context) error {
	p.mu.Lock()
	d := time.Until(p.until)
	p.mu.Unlock()
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Prober) pause(d time.Duration) {
	p.mu.Lock()
	if until := time.Now().Add(d); until.After(p.until) {
		p.until = until
	}
	p.mu.Unlock()
}
