package worker

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/williampepple1/registry-scraper/internal/config"
	"github.com/williampepple1/registry-scraper/pkg/models"
)

// StatusChecker classifies a company website. Implementations must be safe for
// concurrent use.
type StatusChecker interface {
	Classify(ctx context.Context, rawURL string) models.LivenessStatus
}

type job struct {
	index int
	url   string
}

type result struct {
	index  int
	status models.LivenessStatus
}

// Pool re-checks the websites of a result set with a fixed number of workers
type Pool struct {
	Config  *config.WorkerConfig
	Checker StatusChecker
	Logger  *slog.Logger
}

// NewPool creates a new worker pool
func NewPool(cfg *config.WorkerConfig, checker StatusChecker, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		Config:  cfg,
		Checker: checker,
		Logger:  logger,
	}
}

// Recheck classifies websiteField of every row and stores the outcome in the row's
// status. Rows keep their order. Rows not reached before ctx is cancelled keep their
// previous status and ctx.Err() is returned.
func (p *Pool) Recheck(ctx context.Context, rs *models.ResultSet, websiteField string) error {
	n := rs.Len()
	if n == 0 {
		return nil
	}

	jobs := make(chan job, n)
	results := make(chan result, n)
	for i := range rs.Rows {
		jobs <- job{index: i, url: rs.Value(i, websiteField)}
	}
	close(jobs)

	limiter := p.limiter()
	workers := p.Config.Workers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id, limiter, jobs, results)
		}(w)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for r := range results {
		rs.Rows[r.index].Status = r.status
		done++
	}

	p.Logger.Info("status check finished", "checked", done, "total", n)
	return ctx.Err()
}

// worker classifies URLs from jobs until the channel is drained or ctx is done
func (p *Pool) worker(ctx context.Context, id int, limiter *rate.Limiter, jobs <-chan job, results chan<- result) {
	for j := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		p.Logger.Debug("checking website", "worker", id, "row", j.index, "url", j.url)
		results <- result{
			index:  j.index,
			status: p.Checker.Classify(ctx, j.url),
		}
	}
}

// limiter spaces request starts across all workers
func (p *Pool) limiter() *rate.Limiter {
	if p.Config.RateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(p.Config.RateLimit), 1)
}
