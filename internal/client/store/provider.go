package store

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/fieldrec/internal/logging"
	"golang.org/x/sync/singleflight"
)

// OpenFunc opens a store; Provider uses Open unless told otherwise.
type OpenFunc func(ctx context.Context, path string, logger logging.Logger) (*Store, error)

// Provider hands out one cached Store for a database path. Callers that
// arrive while the first open is still running wait for that same open.
type Provider struct {
	path   string
	logger logging.Logger
	openFn OpenFunc

	mu    sync.Mutex
	store *Store
	group singleflight.Group
}

// NewProvider returns a Provider for path. Most code should use Shared.
func NewProvider(path string, logger logging.Logger, openFn OpenFunc) *Provider {
	if openFn == nil {
		openFn = Open
	}
	return &Provider{path: path, logger: logger, openFn: openFn}
}

var (
	sharedMu  sync.Mutex
	providers = map[string]*Provider{}
)

// Shared returns the process-wide Provider for path.
func Shared(path string, logger logging.Logger) *Provider {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	p, ok := providers[path]
	if !ok {
		p = NewProvider(path, logger, nil)
		providers[path] = p
	}
	return p
}

// Get returns the cached store, opening it on first use.
func (p *Provider) Get(ctx context.Context) (*Store, error) {
	if s := p.cached(); s != nil {
		return s, nil
	}

	v, err, _ := p.group.Do(p.path, func() (any, error) {
		if s := p.cached(); s != nil {
			return s, nil
		}
		// the open is shared, so one caller's cancellation must not abort it
		s, err := p.openFn(context.WithoutCancel(ctx), p.path, p.logger)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.store = s
		p.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

func (p *Provider) cached() *Store {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store
}

// Reset closes and forgets the cached store; the next Get reopens it.
func (p *Provider) Reset() error {
	p.mu.Lock()
	s := p.store
	p.store = nil
	p.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Close()
}
