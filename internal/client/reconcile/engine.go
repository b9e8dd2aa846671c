// Package reconcile builds the recording history shown to the agent by
// merging what the server reports for today with what this device
// captured offline.
//
// When the server cannot be asked (offline, slow, failing) the engine falls
// back, in order, to the last merged snapshot, to the synced rows of the
// local store, and finally to an empty list. It never fails the caller for
// those reasons.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/fieldrec/internal/client/models"
	"github.com/dmitrijs2005/fieldrec/internal/client/repositories/kv"
	"github.com/dmitrijs2005/fieldrec/internal/logging"
	"github.com/dmitrijs2005/fieldrec/internal/timex"
	"golang.org/x/sync/errgroup"
)

// SnapshotKey holds the last merged history in the key-value store.
const SnapshotKey = "grabaciones_enviadas"

// DefaultFetchTimeout bounds the remote history request.
const DefaultFetchTimeout = 10 * time.Second

type State string

const (
	StateOfflineCached  State = "OFFLINE_CACHED"
	StateOnlineFetching State = "ONLINE_FETCHING"
	StateOnlineMerged   State = "ONLINE_MERGED"
	StateFallbackCached State = "FALLBACK_CACHED"
	StateEmpty          State = "EMPTY"
)

// Result is one presented history: most recent first.
type Result struct {
	State State
	Items []models.Grabacion
}

type Remote interface {
	RecordingsToday(ctx context.Context, userName string) ([]models.Grabacion, error)
}

// Local is the part of the pending queue the engine reads.
type Local interface {
	SyncedLocalPairs(ctx context.Context) []models.OpKey
	SyncedLocal(ctx context.Context) ([]models.PendingRecording, error)
}

type Engine struct {
	remote Remote
	local  Local
	kv     kv.Store
	online func() bool
	logger logging.Logger

	fetchTimeout time.Duration
	observe      func(State)
}

type Option func(*Engine)

func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.fetchTimeout = d
		}
	}
}

// WithObserver reports every state the engine passes through.
func WithObserver(fn func(State)) Option {
	return func(e *Engine) { e.observe = fn }
}

func New(remote Remote, local Local, store kv.Store, online func() bool, logger logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		remote:       remote,
		local:        local,
		kv:           store,
		online:       online,
		logger:       logger,
		fetchTimeout: DefaultFetchTimeout,
		observe:      func(State) {},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Load returns the history for userName. The only error it returns is the
// cancellation of ctx itself.
func (e *Engine) Load(ctx context.Context, userName string) (Result, error) {
	if !e.online() {
		return e.settle(e.cached(ctx, StateOfflineCached)), nil
	}

	e.observe(StateOnlineFetching)
	items, err := e.fetchAndMerge(ctx, userName)
	if err != nil {
		if ctx.Err() != nil {
			return Result{State: StateEmpty, Items: []models.Grabacion{}}, ctx.Err()
		}
		e.logger.Warn(ctx, "history fetch failed, using cached data", "user", userName, "error", err)
		return e.settle(e.cached(ctx, StateFallbackCached)), nil
	}

	e.saveSnapshot(ctx, items)
	return e.settle(Result{State: StateOnlineMerged, Items: present(items)}), nil
}

func (e *Engine) settle(r Result) Result {
	e.observe(r.State)
	return r
}

func (e *Engine) fetchAndMerge(ctx context.Context, userName string) ([]models.Grabacion, error) {
	var (
		server []models.Grabacion
		pairs  []models.OpKey
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := timex.Do(gctx, e.fetchTimeout, func(ctx context.Context) ([]models.Grabacion, error) {
			return e.remote.RecordingsToday(ctx, userName)
		})
		if err != nil {
			return fmt.Errorf("fetch today's recordings: %w", err)
		}
		server = res
		return nil
	})
	g.Go(func() error {
		pairs = e.local.SyncedLocalPairs(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Merge(server, pairs), nil
}

// Merge drops rows the server flags as errors and sets EsLocal on rows
// whose operation/identification pair is among local. Order is preserved.
func Merge(server []models.Grabacion, local []models.OpKey) []models.Grabacion {
	set := make(map[models.OpKey]struct{}, len(local))
	for _, k := range local {
		set[k] = struct{}{}
	}

	out := make([]models.Grabacion, 0, len(server))
	for _, g := range server {
		if g.EsError {
			continue
		}
		_, g.EsLocal = set[g.Key()]
		out = append(out, g)
	}
	return out
}

// cached walks the fallback chain: snapshot, local synced rows, empty.
func (e *Engine) cached(ctx context.Context, state State) Result {
	if items, ok := e.loadSnapshot(ctx); ok {
		return Result{State: state, Items: present(items)}
	}

	rows, err := e.local.SyncedLocal(ctx)
	if err != nil {
		e.logger.Warn(ctx, "local history unavailable", "error", err)
	}
	if len(rows) > 0 {
		items := make([]models.Grabacion, 0, len(rows))
		for _, r := range rows {
			items = append(items, models.FromRecording(r))
		}
		return Result{State: state, Items: present(items)}
	}

	return Result{State: StateEmpty, Items: []models.Grabacion{}}
}

func (e *Engine) loadSnapshot(ctx context.Context) ([]models.Grabacion, bool) {
	raw, ok, err := e.kv.Get(ctx, SnapshotKey)
	if err != nil {
		e.logger.Warn(ctx, "snapshot read failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var items []models.Grabacion
	if err := json.Unmarshal([]byte(raw), &items); err != nil || items == nil {
		e.logger.Warn(ctx, "snapshot is not a list, ignoring", "error", err)
		return nil, false
	}
	return items, true
}

func (e *Engine) saveSnapshot(ctx context.Context, items []models.Grabacion) {
	raw, err := json.Marshal(items)
	if err != nil {
		e.logger.Warn(ctx, "snapshot encode failed", "error", err)
		return
	}
	if err := e.kv.Set(ctx, SnapshotKey, string(raw)); err != nil {
		e.logger.Warn(ctx, "snapshot save failed", "error", err)
	}
}

// present returns a reversed copy: sources list oldest first.
func present(items []models.Grabacion) []models.Grabacion {
	out := slices.Clone(items)
	if out == nil {
		out = []models.Grabacion{}
	}
	slices.Reverse(out)
	return out
}
