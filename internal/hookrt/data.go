package hookrt

import (
	"context"
	"errors"
	"sync"
)

// DataResult is the outcome delivered on a data-fetch's channel once its
// fetch completes.
type DataResult struct {
	Value any
	Err   error
}

// Suspended is the sentinel error a composite's render function returns to
// signal "I need data".
type Suspended struct {
	Key string
	Ch  <-chan DataResult
}

func (s *Suspended) Error() string { return "suspended on data key " + s.Key }

// AsSuspended reports whether err is (or wraps) a *Suspended, mirroring
// errors.As without pulling every caller into importing "errors" for this
// one check.
func AsSuspended(err error) (*Suspended, bool) {
	var s *Suspended
	ok := errors.As(err, &s)
	return s, ok
}

type dataEntry struct {
	ch   chan DataResult
	done bool
	val  any
	err  error
	deps []any
	tick int
}

// DataCache is the per-execution keyed cache backing the Data-fetch hook
// contract: "first request throws a promise, second returns
// cached." It is owned by the compiler instance, never global.
type DataCache struct {
	mu      sync.Mutex
	entries map[string]*dataEntry
}

// NewDataCache returns an empty cache.
func NewDataCache() *DataCache {
	return &DataCache{entries: make(map[string]*dataEntry)}
}

// DataOptions configures a UseData call's refetch behavior.
type DataOptions struct {
	AlwaysRefetchPerTick bool
	RefetchOnDepsChange  bool
	Deps                 []any
}

// UseData resolves a keyed async value. On a cold key (or one whose
// refetch policy says to refresh) it starts fetch in a goroutine and
// returns a *Suspended error wrapping the completion channel; on a warm
// key it returns the cached value directly.
func UseData[T any](r *Render, key string, opts DataOptions, fetch func(ctx context.Context) (T, error)) (T, error) {
	h, _ := useHook(r, TagData)
	h.MemoizedState = key

	cache := r.dataCache
	cache.mu.Lock()
	entry, ok := cache.entries[key]
	needsRefetch := !ok
	if ok && entry.done {
		if opts.AlwaysRefetchPerTick && r.tickState != nil && entry.tick != r.tickState.TickNumber {
			needsRefetch = true
		} else if opts.RefetchOnDepsChange && !sameDeps(entry.deps, opts.Deps) {
			needsRefetch = true
		}
	}
	if needsRefetch {
		entry = &dataEntry{ch: make(chan DataResult, 1), deps: opts.Deps}
		cache.entries[key] = entry
		go func(e *dataEntry) {
			v, err := fetch(context.Background())
			cache.mu.Lock()
			e.done = true
			e.val = v
			e.err = err
			if r.tickState != nil {
				e.tick = r.tickState.TickNumber
			}
			cache.mu.Unlock()
			e.ch <- DataResult{Value: v, Err: err}
		}(entry)
	}
	done := entry.done
	val := entry.val
	err := entry.err
	ch := entry.ch
	cache.mu.Unlock()

	if done {
		v, _ := val.(T)
		return v, err
	}
	var zero T
	return zero, &Suspended{Key: key, Ch: ch}
}
