package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Job is one input of a batch.
type Job struct {
	InputPath string
	Lines     []string
}

// BatchOptions configures RunBatch. Base supplies everything except the
// input and lyrics.
type BatchOptions struct {
	Base            Options
	MaxConcurrent   int
	RateLimitPerMin int
	NoAsync         bool
}

// RunBatch runs every job. A failed job does not stop the others; results are
// returned in job order with nil for jobs that produced nothing, and all
// failures are joined.
func RunBatch(ctx context.Context, jobs []Job, opts BatchOptions) ([]*Result, error) {
	if opts.NoAsync || opts.MaxConcurrent <= 1 || len(jobs) <= 1 {
		return runSequential(ctx, jobs, opts)
	}
	return runConcurrent(ctx, jobs, opts)
}

func jobOptions(base Options, job Job) Options {
	opts := base
	opts.InputPath = job.InputPath
	opts.Lines = job.Lines
	return opts
}

func jobError(i, n int, job Job, err error) error {
	return fmt.Errorf("%d/%d %s: %w", i+1, n, filepath.Base(job.InputPath), err)
}

func runSequential(ctx context.Context, jobs []Job, opts BatchOptions) ([]*Result, error) {
	results := make([]*Result, len(jobs))
	var errs []error
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		slog.Info("processing job", "job", fmt.Sprintf("%d/%d", i+1, len(jobs)), "file", filepath.Base(job.InputPath))

		res, err := Run(ctx, jobOptions(opts.Base, job))
		results[i] = res
		if err != nil {
			errs = append(errs, jobError(i, len(jobs), job, err))
			continue
		}
		slog.Info("job completed", "job", fmt.Sprintf("%d/%d", i+1, len(jobs)))
	}
	return results, errors.Join(errs...)
}

func runConcurrent(ctx context.Context, jobs []Job, opts BatchOptions) ([]*Result, error) {
	slog.Info("starting concurrent processing",
		"jobs", len(jobs),
		"max_concurrent", opts.MaxConcurrent,
		"rate_limit_rpm", opts.RateLimitPerMin)

	limit := rate.Inf
	if opts.RateLimitPerMin > 0 {
		// Tokens per second = RPM / 60.
		limit = rate.Limit(float64(opts.RateLimitPerMin) / 60.0)
	}
	limiter := rate.NewLimiter(limit, 1)

	// A shared live counter would interleave between jobs.
	base := opts.Base
	base.Progress = nil

	var (
		mu      sync.Mutex
		errs    []error
		results = make([]*Result, len(jobs))
	)

	var g errgroup.Group
	g.SetLimit(opts.MaxConcurrent)
	for i, job := range jobs {
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				mu.Lock()
				errs = append(errs, jobError(i, len(jobs), job, fmt.Errorf("rate limiter: %w", err)))
				mu.Unlock()
				return nil
			}

			slog.Info("starting job", "job", fmt.Sprintf("%d/%d", i+1, len(jobs)), "file", filepath.Base(job.InputPath))
			res, err := Run(ctx, jobOptions(base, job))

			mu.Lock()
			defer mu.Unlock()
			results[i] = res
			if err != nil {
				errs = append(errs, jobError(i, len(jobs), job, err))
				return nil
			}
			slog.Info("job completed", "job", fmt.Sprintf("%d/%d", i+1, len(jobs)))
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}
