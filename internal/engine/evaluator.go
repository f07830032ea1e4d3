// internal/engine/evaluator.go
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/strixlabs/killwatch/internal/types"
)

/*
 * Candidate evaluation.
 *
 * Runs every candidate's compiled matcher against the event with bounded
 * parallelism (weighted semaphore) and per-profile fault isolation: a
 * matcher that panics or exceeds its per-profile deadline is counted as a
 * fault and contributes no match, while the remaining candidates continue.
 * Total wall-clock latency is the max over the slowest candidate, not the
 * sum.
 *
 * If the overall event deadline expires, candidates not yet started are
 * abandoned and candidates already in flight are cut; either way the
 * partial result is returned and the event is reported as a degraded
 * evaluation, not a failure. A matcher cut by the event deadline is NOT
 * charged a per-profile fault: the profile did nothing wrong, so only a
 * timeout on the matcher's own deadline counts against it.
 *
 * A candidate with no matcher in the same snapshot is an index/compiler
 * desync. That is a programming fault, so it is surfaced at alert level
 * (rate-limited to keep a hot bucket from flooding the log) and the stale
 * entry is skipped.
 */

type evaluator struct {
	sem            *semaphore.Weighted
	profileTimeout time.Duration
	logger         *slog.Logger
	metrics        *engineMetrics
	alerts         *rate.Limiter // bounds index-inconsistency alert volume
}

func newEvaluator(workers int64, profileTimeout time.Duration, logger *slog.Logger, metrics *engineMetrics) *evaluator {
	return &evaluator{
		sem:            semaphore.NewWeighted(workers),
		profileTimeout: profileTimeout,
		logger:         logger,
		metrics:        metrics,
		alerts:         rate.NewLimiter(rate.Every(10*time.Second), 5),
	}
}

// evaluate runs the candidates against the event and returns the matched
// profiles in sorted order. degraded is true when the overall deadline cut
// evaluation short.
func (e *evaluator) evaluate(
	ctx context.Context,
	ev types.NormalizedEvent,
	fp types.Fingerprint,
	snap *snapshot,
	candidates []types.ProfileID,
) (matched []types.ProfileID, degraded bool) {
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	setDegraded := func() {
		mu.Lock()
		degraded = true
		mu.Unlock()
	}

	for _, id := range candidates {
		if ctx.Err() != nil {
			setDegraded()
			break
		}
		if err := e.sem.Acquire(ctx, 1); err != nil {
			setDegraded()
			break
		}

		cp := snap.matchers[id]
		if cp == nil {
			e.sem.Release(1)
			e.reportInconsistency(id, fp)
			continue
		}

		wg.Add(1)
		go func(id types.ProfileID, cp *compiledProfile) {
			defer wg.Done()
			defer e.sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					e.reportFault(id, fp, "panic", r)
				}
			}()

			pctx, cancel := context.WithTimeout(ctx, e.profileTimeout)
			defer cancel()

			ok, err := cp.matcher.Eval(pctx, ev)
			if err != nil {
				if ctx.Err() != nil {
					// The event deadline cut this matcher mid-flight;
					// that degrades the event, not the profile.
					setDegraded()
					return
				}
				e.reportFault(id, fp, "timeout", err)
				return
			}
			if ok {
				mu.Lock()
				matched = append(matched, id)
				mu.Unlock()
			}
		}(id, cp)
	}

	wg.Wait()

	sort.Slice(matched, func(i, j int) bool { return matched[i] < matched[j] })
	return matched, degraded
}

// reportFault isolates a single profile's failure: log, count, move on.
func (e *evaluator) reportFault(id types.ProfileID, fp types.Fingerprint, reason string, detail any) {
	e.metrics.incFault(string(id), reason)
	e.logger.Warn("matcher evaluation fault",
		"profile_id", string(id),
		"event_fingerprint", string(fp),
		"reason", reason,
		"detail", detail,
	)
}

// reportInconsistency surfaces an index/compiler desync loudly but skips
// only the stale entry.
func (e *evaluator) reportInconsistency(id types.ProfileID, fp types.Fingerprint) {
	e.metrics.incInconsistency()
	if e.alerts.Allow() {
		e.logger.Error("index inconsistency: candidate has no compiled matcher",
			"profile_id", string(id),
			"event_fingerprint", string(fp),
		)
	}
}
