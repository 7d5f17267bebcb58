package lifecycle

import (
	"context"
	"errors"
	"sync"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/entity"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/tileengine/internal/repository/source"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tileengine/pkg/metrics"
	"github.com/sethvargo/go-retry"
)

//go:generate mockgen -destination mocks/mock_source.go -package mocks . TileSource

// TileSource fetches tile bytes from the network. Errors should be, or
// wrap, *source.FetchError; anything else counts as a network error.
type TileSource interface {
	Fetch(ctx context.Context, key entity.TileKey) ([]byte, error)
}

// TileSourceFunc adapts a function to TileSource.
type TileSourceFunc func(ctx context.Context, key entity.TileKey) ([]byte, error)

func (f TileSourceFunc) Fetch(ctx context.Context, key entity.TileKey) ([]byte, error) {
	return f(ctx, key)
}

type fetchResult struct {
	key      entity.TileKey
	data     []byte
	err      *source.FetchError
	cacheErr error
	attempts int
}

// Resolver satisfies Requested records from the disk cache or, on a miss,
// from a background fetch. The tick never blocks on the network: each fetch
// reports on its own one-shot channel, polled at the start of Run.
type Resolver struct {
	cfg    Config
	index  *Index
	cache  cache.TileCache
	source TileSource
	logger logger.Logger

	ctx context.Context
	wg  sync.WaitGroup

	pending  []entity.TileKey
	misses   []entity.TileKey
	inFlight map[entity.TileKey]<-chan fetchResult
}

// NewResolver creates a resolver whose fetches live as long as ctx.
func NewResolver(ctx context.Context, cfg Config, index *Index, c cache.TileCache, src TileSource, l logger.Logger) *Resolver {
	return &Resolver{
		cfg:      cfg,
		index:    index,
		cache:    c,
		source:   src,
		logger:   l,
		ctx:      ctx,
		inFlight: make(map[entity.TileKey]<-chan fetchResult),
	}
}

// Submit queues freshly requested keys.
func (r *Resolver) Submit(keys ...entity.TileKey) {
	r.pending = append(r.pending, keys...)
}

// Run polls finished fetches, then resolves queued records.
func (r *Resolver) Run(f *Frame) {
	r.poll(f)
	r.resolvePending(f)
	r.startFetches()
}

func (r *Resolver) InFlight() int {
	return len(r.inFlight)
}

func (r *Resolver) Queued() int {
	return len(r.pending) + len(r.misses)
}

// Wait blocks until every started fetch has reported.
func (r *Resolver) Wait() {
	r.wg.Wait()
}

func (r *Resolver) poll(f *Frame) {
	for key, ch := range r.inFlight {
		var res fetchResult
		select {
		case res = <-ch:
		default:
			continue
		}
		delete(r.inFlight, key)

		rec, ok := r.index.Get(key)
		if !ok || rec.State != entity.StateDownloading {
			continue
		}
		rec.Attempts = res.attempts

		if res.err != nil {
			rec.State = entity.StateFailed
			rec.Err = res.err
			metrics.TilesFetchFailures.WithLabelValues(res.err.Kind.String()).Inc()
			r.logger.Warn("tile fetch failed",
				"tile", key,
				"kind", res.err.Kind.String(),
				"attempts", res.attempts,
				"error", res.err,
			)
			continue
		}

		if res.cacheErr != nil {
			metrics.TilesCacheWriteErrors.Inc()
			r.logger.Warn("failed to write tile to disk cache", "tile", key, "error", res.cacheErr)
		}

		rec.Data = res.data
		rec.State = entity.StateDownloaded
		rec.LastTouched = f.Now
	}
}

func (r *Resolver) resolvePending(f *Frame) {
	pending := r.pending
	r.pending = nil

	for _, key := range pending {
		rec, ok := r.index.Get(key)
		if !ok || rec.State != entity.StateRequested {
			continue
		}

		data, hit := r.lookup(key)
		if !hit {
			r.misses = append(r.misses, key)
			continue
		}

		metrics.TilesCacheHits.Inc()
		rec.Data = data
		rec.State = entity.StateDownloaded
		rec.LastTouched = f.Now
	}
}

// lookup reads key from the disk cache. Only the image header is checked
// here; full decodes happen in the startup scan and the fetch goroutines.
// A corrupt entry is deleted and treated as a miss.
func (r *Resolver) lookup(key entity.TileKey) ([]byte, bool) {
	data, ok, err := r.cache.Get(r.ctx, key)
	if err != nil {
		r.logger.Warn("disk cache read failed", "tile", key, "error", err)
		metrics.TilesCacheMisses.Inc()
		return nil, false
	}
	if !ok {
		metrics.TilesCacheMisses.Inc()
		return nil, false
	}

	if err := cache.CheckHeader(data); err != nil {
		metrics.TilesCacheCorrupt.Inc()
		r.logger.Warn("corrupt tile in disk cache, refetching", "tile", key, "error", err)
		if err := r.cache.Delete(r.ctx, key); err != nil {
			r.logger.Warn("failed to delete corrupt tile", "tile", key, "error", err)
		}
		return nil, false
	}

	return data, true
}

func (r *Resolver) startFetches() {
	i := 0
	for ; i < len(r.misses); i++ {
		if r.cfg.MaxInFlight > 0 && len(r.inFlight) >= r.cfg.MaxInFlight {
			break
		}

		key := r.misses[i]
		rec, ok := r.index.Get(key)
		if !ok || rec.State != entity.StateRequested {
			continue
		}
		if _, busy := r.inFlight[key]; busy {
			continue
		}

		rec.State = entity.StateDownloading
		r.startFetch(key)
	}
	r.misses = append(r.misses[:0], r.misses[i:]...)
}

func (r *Resolver) startFetch(key entity.TileKey) {
	ch := make(chan fetchResult, 1)
	r.inFlight[key] = ch

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ch <- r.fetch(r.ctx, key)
	}()
}

// fetch runs in its own goroutine and touches nothing but the source and
// the disk cache.
func (r *Resolver) fetch(ctx context.Context, key entity.TileKey) fetchResult {
	res := fetchResult{key: key}

	var data []byte
	backoff := retry.WithMaxRetries(r.cfg.MaxRetries, retry.NewExponential(r.cfg.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res.attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
		defer cancel()

		b, err := r.source.Fetch(attemptCtx, key)
		if err != nil {
			fe := source.Classify(key, err)
			if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				fe = &source.FetchError{Kind: source.FetchTimeout, Key: key, Err: err}
			}
			if fe.Retryable() {
				return retry.RetryableError(fe)
			}
			return fe
		}

		if err := cache.Validate(b); err != nil {
			return retry.RetryableError(&source.FetchError{Kind: source.FetchNetwork, Key: key, Err: err})
		}

		data = b
		return nil
	})
	if err != nil {
		res.err = source.Classify(key, err)
		return res
	}

	res.data = data
	res.cacheErr = r.cache.Set(ctx, key, data)
	return res
}
