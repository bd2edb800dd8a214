package worker

import (
	"context"
	"log"
	"sync"

	"github.com/BBerastegui/domain-stream/internal/models"
	"github.com/BBerastegui/domain-stream/internal/report"
)

// Prober checks a single candidate name.
type Prober interface {
	Check(ctx context.Context, cand models.Candidate) models.ProbeResult
}

// Matcher scans accessible content for configured keywords.
type Matcher interface {
	Find(content []byte) []string
}

// Pool is a fixed-size set of workers draining the shared candidate queue.
// Workers share nothing but the queue and the Reporter; every per-candidate
// failure stays inside the worker that hit it.
type Pool struct {
	n               int
	queue           <-chan models.Candidate
	prober          Prober
	matcher         Matcher
	reporter        *report.Reporter
	onlyInteresting bool

	wg sync.WaitGroup
}

// NewPool wires n workers to the queue. Start must be called to run them.
func NewPool(n int, queue <-chan models.Candidate, p Prober, m Matcher, r *report.Reporter, onlyInteresting bool) *Pool {
	return &Pool{
		n:               n,
		queue:           queue,
		prober:          p,
		matcher:         m,
		reporter:        r,
		onlyInteresting: onlyInteresting,
	}
}

// Start launches the workers. They exit when the queue is closed and
// drained, or when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx)
		}()
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cand, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(ctx, cand)
		}
	}
}

func (p *Pool) process(ctx context.Context, cand models.Candidate) {
	res := p.prober.Check(ctx, cand)
	p.reporter.Checked()

	switch res.Status {
	case models.StatusFound:
		keywords := p.matcher.Find(res.Content)
		if p.onlyInteresting && len(keywords) == 0 {
			return
		}
		p.reporter.Found(res, keywords)
	case models.StatusDenied:
		if !p.onlyInteresting {
			p.reporter.Denied(res)
		}
	case models.StatusRateLimited:
		// Still rate limited after the prober's pause-and-retry; the
		// candidate stays unchecked.
		log.Printf("probe %s: rate limited, skipped", cand.Name)
	case models.StatusError:
		if res.Err != nil && ctx.Err() == nil {
			log.Printf("probe %s: %v", cand.Name, res.Err)
		}
	}
}
