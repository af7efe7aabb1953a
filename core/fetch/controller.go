package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"ESMP/cache"
	"ESMP/core/filter"
	"ESMP/logger"
	"ESMP/metrics"
	"ESMP/model"
)

// Cache keys. Filtered results are never cached.
const (
	KeyRecords = "records:all"
	KeySchema  = "schema"
)

// Source is the paged metadata service. *notion.Database implements it.
type Source interface {
	QueryPage(ctx context.Context, q *filter.Query, cursor string, pageSize int) (*model.ResultPage, error)
	Schema(ctx context.Context) (*model.Schema, error)
}

// Controller drives the unfiltered sweep, incremental loading and filtered
// queries. It is safe for concurrent use; network calls run outside the lock.
type Controller struct {
	src      Source
	cache    cache.Cache
	pageSize int
	now      func() time.Time

	mu       sync.Mutex
	all      targetState
	filtered map[string]*targetState

	subMu sync.Mutex
	subs  map[chan Snapshot]struct{}
}

// NewController creates a controller. A nil cache disables caching.
func NewController(src Source, c cache.Cache, pageSize int) *Controller {
	if c == nil {
		c = &cache.NoOpCache{}
	}
	return &Controller{
		src:      src,
		cache:    c,
		pageSize: pageSize,
		now:      time.Now,
		all:      targetState{phase: PhaseIdle},
		filtered: make(map[string]*targetState),
		subs:     make(map[chan Snapshot]struct{}),
	}
}

// Snapshot returns the current state of t. The records slice is shared and
// must not be modified. For TargetFiltered it is the unscoped state; use
// FilteredSnapshot for a caller's own.
func (c *Controller) Snapshot(t Target) Snapshot {
	if t == TargetFiltered {
		return c.FilteredSnapshot("")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.all.snapshot(TargetAll)
}

// FilteredSnapshot returns the filtered state owned by scope. A scope that
// never fetched is idle.
func (c *Controller) FilteredSnapshot(scope string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.filtered[scope]; ok {
		return st.snapshot(TargetFiltered)
	}
	idle := targetState{phase: PhaseIdle, scope: scope}
	return idle.snapshot(TargetFiltered)
}

// Forget cancels scope's running filtered fetch and drops its state.
func (c *Controller) Forget(scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.filtered[scope]; ok {
		if st.cancel != nil {
			st.cancel()
		}
		delete(c.filtered, scope)
	}
}

// CanLoadMore reports whether LoadNextPage would issue a request.
func (c *Controller) CanLoadMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.all.canLoadMore()
}

// FetchUnfiltered returns every record. A fresh cache entry is served
// without a network call; otherwise all pages are swept in order and the
// full set is cached. A failed sweep caches nothing.
func (c *Controller) FetchUnfiltered(ctx context.Context) ([]model.Record, error) {
	c.mu.Lock()
	st := &c.all
	if st.inFlight {
		c.mu.Unlock()
		return nil, ErrInFlight
	}
	st.inFlight = true
	c.mu.Unlock()

	if records, ok := c.cachedRecords(ctx); ok {
		c.finish(func(st *targetState) {
			st.phase = PhaseReady
			st.records = records
			st.hasMore = false
			st.cursor = ""
			st.err = nil
			st.fromCache = true
		})
		return records, nil
	}

	c.finish(func(st *targetState) {
		st.inFlight = true
		st.phase = PhaseLoading
		st.err = nil
	})

	records, err := c.sweep(ctx, TargetAll, nil)
	if err != nil {
		c.finish(func(st *targetState) {
			st.phase = PhaseFailed
			st.records = nil
			st.hasMore = false
			st.cursor = ""
			st.err = err
			st.fromCache = false
		})
		return nil, err
	}

	c.storeRecords(ctx, records)
	c.finish(func(st *targetState) {
		st.phase = PhaseReady
		st.records = records
		st.hasMore = false
		st.cursor = ""
		st.err = nil
		st.fromCache = false
	})
	return records, nil
}

// LoadNextPage appends one page to the unfiltered list. From Idle it loads
// the first page; after a failure it resumes where the list stopped. When
// the last page arrives the accumulated set is cached. If no page is left
// the current snapshot is returned unchanged.
func (c *Controller) LoadNextPage(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	st := &c.all
	if st.inFlight {
		c.mu.Unlock()
		return Snapshot{}, ErrInFlight
	}
	if !st.canLoadMore() {
		snap := st.snapshot(TargetAll)
		c.mu.Unlock()
		return snap, nil
	}
	if st.phase == PhaseIdle || (st.phase == PhaseFailed && st.cursor == "") {
		st.records = nil
		st.cursor = ""
	}
	cursor := st.cursor
	st.inFlight = true
	st.phase = PhaseLoading
	st.err = nil
	snap := st.snapshot(TargetAll)
	c.mu.Unlock()
	c.publish(snap)

	page, err := c.src.QueryPage(ctx, nil, cursor, c.pageSize)
	if err != nil {
		fe := newFetchError("load next page", "failed to load records", err)
		snap := c.finish(func(st *targetState) {
			st.phase = PhaseFailed
			st.err = fe
		})
		return snap, fe
	}
	metrics.SweepPages.WithLabelValues(TargetAll.String()).Inc()

	var complete []model.Record
	snap = c.finish(func(st *targetState) {
		records := make([]model.Record, 0, len(st.records)+len(page.Items))
		records = append(records, st.records...)
		st.records = append(records, page.Items...)
		st.hasMore = page.HasMore && page.NextCursor != ""
		st.cursor = page.NextCursor
		st.phase = PhaseReady
		st.fromCache = false
		if !st.hasMore {
			st.cursor = ""
			complete = st.records
		}
	})
	if complete != nil {
		c.storeRecords(ctx, complete)
	}
	return snap, nil
}

// FetchFiltered returns every record matching q, following pages like the
// unfiltered sweep. Results are not cached. A nil q is the unfiltered list.
// Each scope (one browser session) owns its filtered state: starting a fetch
// cancels the previous one in the same scope, which then returns
// ErrSuperseded. Other scopes are unaffected.
func (c *Controller) FetchFiltered(ctx context.Context, scope string, q *filter.Query) ([]model.Record, error) {
	if q == nil {
		return c.FetchUnfiltered(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	st, ok := c.filtered[scope]
	if !ok {
		st = &targetState{phase: PhaseIdle, scope: scope}
		c.filtered[scope] = st
	}
	if st.cancel != nil {
		st.cancel()
	}
	st.gen++
	gen := st.gen
	st.cancel = cancel
	st.inFlight = true
	st.phase = PhaseLoading
	st.err = nil
	snap := st.snapshot(TargetFiltered)
	c.mu.Unlock()
	c.publish(snap)

	records, err := c.sweep(ctx, TargetFiltered, q)

	c.mu.Lock()
	if st.gen != gen || c.filtered[scope] != st {
		c.mu.Unlock()
		logger.Debug("dropping superseded filtered result", logger.String("scope", scope))
		return nil, ErrSuperseded
	}
	st.cancel = nil
	st.inFlight = false
	st.fromCache = false
	st.updatedAt = c.now()
	if err != nil {
		st.phase = PhaseFailed
		st.records = nil
		st.hasMore = false
		st.err = err
	} else {
		st.phase = PhaseReady
		st.records = records
		st.hasMore = false
	}
	snap = st.snapshot(TargetFiltered)
	c.mu.Unlock()
	c.publish(snap)

	if err != nil {
		return nil, err
	}
	return records, nil
}

// Schema describes the database, cached under KeySchema.
func (c *Controller) Schema(ctx context.Context) (*model.Schema, error) {
	if entry, err := c.lookup(ctx, KeySchema); err == nil {
		var schema model.Schema
		if err := json.Unmarshal(entry.Payload, &schema); err == nil {
			return &schema, nil
		}
	}

	schema, err := c.src.Schema(ctx)
	if err != nil {
		return nil, newFetchError("schema", "failed to describe database", err)
	}
	if data, err := json.Marshal(schema); err == nil {
		c.store(ctx, KeySchema, data)
	}
	return schema, nil
}

// Invalidate drops every cached payload. Accumulated lists are kept.
func (c *Controller) Invalidate(ctx context.Context) error {
	return errors.Join(
		c.cache.Delete(ctx, KeyRecords),
		c.cache.Delete(ctx, KeySchema),
	)
}

// Subscribe returns a channel of state summaries and a function that
// unsubscribes. Slow subscribers only see the latest state.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)
	c.subMu.Lock()
	c.subs[ch] = struct{}{}
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, ch)
			c.subMu.Unlock()
		})
	}
}

func (c *Controller) publish(s Snapshot) {
	s = s.Summary()
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// finish applies fn to the unfiltered target, clears its in-flight flag and
// publishes the result.
func (c *Controller) finish(fn func(st *targetState)) Snapshot {
	c.mu.Lock()
	st := &c.all
	st.inFlight = false
	fn(st)
	st.updatedAt = c.now()
	snap := st.snapshot(TargetAll)
	c.mu.Unlock()
	c.publish(snap)
	return snap
}

// sweep requests pages strictly in order until the service reports no more.
func (c *Controller) sweep(ctx context.Context, t Target, q *filter.Query) ([]model.Record, error) {
	records := []model.Record{}
	cursor := ""
	for pages := 1; ; pages++ {
		page, err := c.src.QueryPage(ctx, q, cursor, c.pageSize)
		if err != nil {
			logger.Warn("sweep failed",
				logger.String("target", t.String()),
				logger.Int("page", pages),
				logger.ErrorField(err))
			return nil, newFetchError("sweep "+t.String(), "failed to load records", err)
		}
		metrics.SweepPages.WithLabelValues(t.String()).Inc()
		records = append(records, page.Items...)
		if !page.HasMore || page.NextCursor == "" {
			logger.Debug("sweep complete",
				logger.String("target", t.String()),
				logger.Int("pages", pages),
				logger.Int("records", len(records)))
			return records, nil
		}
		cursor = page.NextCursor
	}
}

func (c *Controller) cachedRecords(ctx context.Context) ([]model.Record, bool) {
	entry, err := c.lookup(ctx, KeyRecords)
	if err != nil {
		return nil, false
	}
	var records []model.Record
	if err := json.Unmarshal(entry.Payload, &records); err != nil {
		logger.Warn("discarding undecodable cache entry",
			logger.String("key", KeyRecords),
			logger.ErrorField(err))
		return nil, false
	}
	if records == nil {
		records = []model.Record{}
	}
	return records, true
}

func (c *Controller) storeRecords(ctx context.Context, records []model.Record) {
	data, err := json.Marshal(records)
	if err != nil {
		logger.Warn("failed to encode records for cache", logger.ErrorField(err))
		return
	}
	c.store(ctx, KeyRecords, data)
}

func (c *Controller) lookup(ctx context.Context, key string) (*cache.Entry, error) {
	entry, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		metrics.CacheLookups.WithLabelValues(key, "hit").Inc()
	case errors.Is(err, cache.ErrMiss):
		metrics.CacheLookups.WithLabelValues(key, "miss").Inc()
	default:
		metrics.CacheLookups.WithLabelValues(key, "error").Inc()
		logger.Warn("cache lookup failed", logger.String("key", key), logger.ErrorField(err))
	}
	return entry, err
}

func (c *Controller) store(ctx context.Context, key string, payload []byte) {
	if err := c.cache.Set(ctx, key, payload); err != nil {
		logger.Warn("cache write failed", logger.String("key", key), logger.ErrorField(err))
	}
}
