package download

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/enatools/enafetch/internal/ledger"
	"github.com/enatools/enafetch/internal/logctx"
	"github.com/enatools/enafetch/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// Scheduler owns a job for its lifetime: it consults the ledger to skip
// already-verified files, dispatches the rest across a bounded worker pool
// gated by the rate limiter, and aggregates terminal outcomes into a report.
type Scheduler struct {
	ledger  ledger.Ledger
	fetcher Fetcher
	limiter Limiter
	tel     *telemetry.Telemetry
}

func NewScheduler(lg ledger.Ledger, fetcher Fetcher, limiter Limiter, tel *telemetry.Telemetry) *Scheduler {
	return &Scheduler{
		ledger:  lg,
		fetcher: fetcher,
		limiter: limiter,
		tel:     tel,
	}
}

// Run drives every target of the job to a terminal outcome. Individual
// exhausted files never abort the job; a corrupt ledger aborts it before any
// work starts. On context cancellation dispatching stops, in-flight attempts
// abort cleanly and the partial report covers terminal files only.
func (s *Scheduler) Run(ctx context.Context, job Job) (*Report, error) {
	logger := logctx.LoggerFromContext(ctx)

	entries, err := s.ledger.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress ledger: %w", err)
	}

	report := &Report{}

	var todo []Target

	for _, t := range job.Targets {
		entry, ok := entries[t.ID]
		if ok && entry.Status == ledger.StatusVerified && entry.ChecksumMatches(t.MD5) {
			logger.Info("file already verified, skipping", "target", t.ID)

			report.Skipped++

			continue
		}

		todo = append(todo, t)
	}

	logger.Info("starting downloads",
		"total", len(job.Targets),
		"skipped", report.Skipped,
		"pending", len(todo),
		"max_parallel", job.MaxParallel,
	)

	if job.MaxParallel < 1 {
		job.MaxParallel = 1
	}

	ctrl := &controller{
		fetcher: s.fetcher,
		limiter: s.limiter,
		ledger:  s.ledger,
		policy:  job.Policy,
		tel:     s.tel,
	}

	var (
		mu       sync.Mutex
		outcomes []Outcome
	)

	wg, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, job.MaxParallel)

dispatch:
	for i := range todo {
		target := todo[i]

		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
			break dispatch
		}

		wg.Go(func() error {
			defer func() { <-sem }()

			s.tel.IncrementActiveDownloads()
			start := time.Now()

			outcome := ctrl.run(gctx, target)

			s.tel.DecrementActiveDownloads()
			s.tel.RecordDownload(string(outcome.Status), time.Since(start), outcome.Bytes)

			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()

			// Failures are isolated per file, never propagated to the group.
			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to wait for downloads: %w", err)
	}

	for _, o := range outcomes {
		switch o.Status {
		case StatusVerified:
			report.Verified++
			report.Bytes += o.Bytes
		case StatusFailed:
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, o.Target.ID)
		default:
			// Cancelled before reaching a terminal state; left out of the
			// report so a later re-run picks the file up again.
		}
	}

	sort.Strings(report.FailedIDs)

	return report, nil
}
