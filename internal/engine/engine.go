// internal/engine/engine.go

// Package engine implements the surveillance filter-matching engine: the
// compiled-matcher store, candidate selection over the inverted index, the
// concurrent evaluator, and the match cache, behind a single façade.
//
// Profile lifecycle changes (upsert/remove) are applied synchronously: the
// new matcher and index entries are built off to the side into the next
// immutable snapshot, which is then published with a single atomic pointer
// store. An event loads the pointer once, so candidate selection and
// matcher fetch always observe one consistent profile set: after an update
// is acknowledged no event can observe the prior version.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/strixlabs/killwatch/internal/filter"
	"github.com/strixlabs/killwatch/internal/index"
	"github.com/strixlabs/killwatch/internal/types"
)

// matcher abstracts filter.Matcher so tests can inject faulty matchers.
type matcher interface {
	Eval(ctx context.Context, ev types.NormalizedEvent) (bool, error)
}

// compiledProfile binds one profile version to its compiled matcher.
// Immutable; replaced wholesale on version bump.
type compiledProfile struct {
	id      types.ProfileID
	version int64
	matcher matcher
}

// snapshot is one immutable, mutually consistent view of the index and the
// matcher table. versions additionally remembers the last applied version
// of disabled profiles so a stale re-enable is still rejected. gen
// increases on every publication and qualifies match-cache keys, so a
// profile update invalidates cached results without a flush.
type snapshot struct {
	gen      uint64
	index    *index.Index
	matchers map[types.ProfileID]*compiledProfile
	versions map[types.ProfileID]int64
}

func emptySnapshot() *snapshot {
	return &snapshot{
		index:    index.New(),
		matchers: make(map[types.ProfileID]*compiledProfile),
		versions: make(map[types.ProfileID]int64),
	}
}

func (s *snapshot) derive() *snapshot {
	next := &snapshot{
		gen:      s.gen + 1,
		index:    s.index,
		matchers: make(map[types.ProfileID]*compiledProfile, len(s.matchers)+1),
		versions: make(map[types.ProfileID]int64, len(s.versions)+1),
	}
	for id, cp := range s.matchers {
		next.matchers[id] = cp
	}
	for id, v := range s.versions {
		next.versions[id] = v
	}
	return next
}

// MatchBatch is the unit handed to the notification collaborator: all
// profiles matched by one event.
type MatchBatch struct {
	Fingerprint types.Fingerprint
	KillmailID  int64
	ProfileIDs  []types.ProfileID
	MatchedAt   time.Time
}

// Notifier consumes match batches. Implementations must tolerate bursts; a
// single event can match many profiles.
type Notifier interface {
	Notify(ctx context.Context, batch MatchBatch) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, batch MatchBatch) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, batch MatchBatch) error {
	return f(ctx, batch)
}

// Config tunes the engine's runtime behavior. Zero values take defaults.
type Config struct {
	Workers        int           // evaluator parallelism bound
	ProfileTimeout time.Duration // per-profile matcher deadline
	EventDeadline  time.Duration // overall per-event deadline
	CacheTTL       time.Duration // match cache entry lifetime
	CacheCapacity  int           // match cache entry bound
	SweepInterval  time.Duration // cache background sweep period
}

func (c *Config) withDefaults() {
	if c.Workers <= 0 {
		c.Workers = 16
	}
	if c.ProfileTimeout <= 0 {
		c.ProfileTimeout = 25 * time.Millisecond
	}
	if c.EventDeadline <= 0 {
		c.EventDeadline = 250 * time.Millisecond
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 2 * time.Minute
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = 16384
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 30 * time.Second
	}
}

// Option customizes engine construction.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithNotifier sets the match-batch consumer. Without one, matches are only
// cached and returned to the caller.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// Engine is the filter-matching engine façade. Safe for concurrent use:
// event processing never takes the write lock, profile changes serialize on
// it.
type Engine struct {
	cfg Config

	snap    atomic.Pointer[snapshot]
	writeMu sync.Mutex

	cache    *matchCache
	eval     *evaluator
	notifier Notifier
	logger   *slog.Logger
	metrics  *engineMetrics

	stopSweep context.CancelFunc
	sweepDone chan struct{}
}

// New builds an engine and starts the cache sweeper. registry may be nil to
// disable metrics. Call Close to release the sweeper.
func New(cfg Config, registry prometheus.Registerer, opts ...Option) (*Engine, error) {
	cfg.withDefaults()

	metrics, err := newEngineMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	e := &Engine{
		cfg:     cfg,
		cache:   newMatchCache(cfg.CacheTTL, cfg.CacheCapacity),
		logger:  slog.Default(),
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.eval = newEvaluator(int64(cfg.Workers), cfg.ProfileTimeout, e.logger, metrics)
	e.snap.Store(emptySnapshot())

	sweepCtx, cancel := context.WithCancel(context.Background())
	e.stopSweep = cancel
	e.sweepDone = make(chan struct{})
	go func() {
		defer close(e.sweepDone)
		e.cache.runSweeper(sweepCtx, cfg.SweepInterval)
	}()

	return e, nil
}

// Close stops the background sweeper.
func (e *Engine) Close() {
	e.stopSweep()
	<-e.sweepDone
}

// UpsertProfile validates, compiles and publishes a profile snapshot
// synchronously: when it returns nil the new version is visible to every
// subsequent event, with no window in which the old and new versions mix.
// A disabled profile is removed from the runtime state but its version is
// remembered for staleness checks. Validation failures leave the engine
// unchanged.
func (e *Engine) UpsertProfile(p types.SurveillanceProfile) error {
	if p.ID == "" {
		return types.ErrEmptyProfileID
	}
	if p.Version <= 0 {
		return fmt.Errorf("profile %s: %w", p.ID, types.ErrInvalidProfileVersion)
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	cur := e.snap.Load()
	if applied, ok := cur.versions[p.ID]; ok {
		if p.Version < applied {
			return fmt.Errorf("profile %s version %d: %w (applied %d)",
				p.ID, p.Version, types.ErrStaleProfileVersion, applied)
		}
		if p.Version == applied {
			return nil // idempotent re-apply
		}
	}

	if !p.Enabled {
		next := cur.derive()
		next.index = next.index.Remove(p.ID)
		delete(next.matchers, p.ID)
		next.versions[p.ID] = p.Version
		e.publish(next)
		return nil
	}

	if err := filter.Validate(p.Root); err != nil {
		return fmt.Errorf("profile %s: %w", p.ID, err)
	}
	compiled, err := filter.Compile(p.Root)
	if err != nil {
		return fmt.Errorf("profile %s: compile: %w", p.ID, err)
	}

	next := cur.derive()
	next.index = next.index.Add(p.ID, compiled.IndexableLeaves, compiled.Prunable)
	next.matchers[p.ID] = &compiledProfile{id: p.ID, version: p.Version, matcher: compiled.Matcher}
	next.versions[p.ID] = p.Version
	e.publish(next)

	e.logger.Info("profile applied",
		"profile_id", string(p.ID),
		"version", p.Version,
		"indexable_leaves", len(compiled.IndexableLeaves),
		"prunable", compiled.Prunable,
	)
	return nil
}

// RemoveProfile deletes a profile from the runtime state entirely,
// including its version history.
func (e *Engine) RemoveProfile(id types.ProfileID) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	cur := e.snap.Load()
	if _, ok := cur.versions[id]; !ok {
		return fmt.Errorf("profile %s: %w", id, types.ErrProfileNotFound)
	}

	next := cur.derive()
	next.index = next.index.Remove(id)
	delete(next.matchers, id)
	delete(next.versions, id)
	e.publish(next)
	return nil
}

func (e *Engine) publish(next *snapshot) {
	e.snap.Store(next)
	e.metrics.setProfiles(len(next.matchers))
}

// ProcessEvent resolves the set of profiles matching the event, through the
// match cache. On a cache miss it prunes candidates via the inverted index,
// evaluates them concurrently, caches the result and emits a MatchBatch to
// the notifier. On a hit the cached set is returned without re-evaluation.
func (e *Engine) ProcessEvent(ctx context.Context, ev types.NormalizedEvent) ([]types.ProfileID, error) {
	e.metrics.incEvents()
	fp := EventFingerprint(ev)

	snap := e.snap.Load()
	key := string(fp) + "@" + strconv.FormatUint(snap.gen, 10)

	matched, fresh, err := e.cache.getOrEvaluate(ctx, key, func(ctx context.Context) ([]types.ProfileID, error) {
		return e.evaluateEvent(ctx, ev, fp, snap)
	})
	if err != nil {
		return nil, err
	}
	if fresh {
		e.metrics.incCacheMiss()
		e.emit(ctx, fp, ev, matched)
	} else {
		e.metrics.incCacheHit()
	}
	return matched, nil
}

// evaluateEvent is the uncached path. The caller's snapshot covers both
// candidate selection and matcher fetch, and is the same snapshot whose
// generation qualifies the cache key for this evaluation.
func (e *Engine) evaluateEvent(ctx context.Context, ev types.NormalizedEvent, fp types.Fingerprint, snap *snapshot) ([]types.ProfileID, error) {
	candidates := snap.index.Candidates(ev)
	e.metrics.observeCandidates(len(candidates))
	e.metrics.incEvaluations()

	evCtx, cancel := context.WithTimeout(ctx, e.cfg.EventDeadline)
	defer cancel()

	start := time.Now()
	matched, degraded := e.eval.evaluate(evCtx, ev, fp, snap, candidates)
	e.metrics.observeEvalDuration(time.Since(start).Seconds())

	if degraded {
		e.metrics.incDegraded()
		e.logger.Warn("degraded evaluation: deadline reached with candidates pending",
			"event_fingerprint", string(fp),
			"candidates", len(candidates),
			"matched", len(matched),
		)
	}
	return matched, nil
}

// emit hands a freshly evaluated event's matches to the notifier. Notifier
// errors are logged, never propagated: match delivery must not block or
// fail event processing.
func (e *Engine) emit(ctx context.Context, fp types.Fingerprint, ev types.NormalizedEvent, matched []types.ProfileID) {
	e.metrics.addMatches(len(matched))
	if e.notifier == nil || len(matched) == 0 {
		return
	}
	batch := MatchBatch{
		Fingerprint: fp,
		KillmailID:  ev.KillmailID(),
		ProfileIDs:  matched,
		MatchedAt:   time.Now().UTC(),
	}
	if err := e.notifier.Notify(ctx, batch); err != nil {
		e.logger.Warn("match batch delivery failed",
			"event_fingerprint", string(fp),
			"profiles", len(matched),
			"error", err,
		)
	}
}

// ProfileCount returns the number of enabled, compiled profiles.
func (e *Engine) ProfileCount() int {
	return len(e.snap.Load().matchers)
}

// CacheLen returns the current number of cached match results.
func (e *Engine) CacheLen() int {
	return e.cache.len()
}
