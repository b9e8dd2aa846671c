// Package backup is the last-resort shadow of the structured store. A record
// that fails to reach the store is serialized into an ordered list in the
// key-value store and replayed later.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldrec/internal/client/models"
	"github.com/dmitrijs2005/fieldrec/internal/client/repositories/kv"
	"github.com/dmitrijs2005/fieldrec/internal/logging"
)

// errCorrupt marks a stored list that exists but cannot be decoded.
var errCorrupt = errors.New("backup list corrupt")

// MaxEntries is how many envelopes a list keeps; older ones are dropped.
const MaxEntries = 300

// Key returns the key-value key holding the list for kind.
func Key(kind models.BackupKind) string {
	return "backup_" + string(kind)
}

// DrainResult describes one DrainAndReplay run.
type DrainResult struct {
	Total    int
	Replayed int
	Cleared  bool
}

type Store struct {
	kv     kv.Store
	logger logging.Logger
	now    func() time.Time
	max    int

	// serializes read-modify-write cycles on the lists
	mu sync.Mutex
}

type Option func(*Store)

// WithClock overrides time.Now for envelope timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMaxEntries overrides MaxEntries.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.max = n
		}
	}
}

func New(store kv.Store, logger logging.Logger, opts ...Option) *Store {
	s := &Store{kv: store, logger: logger, now: time.Now, max: MaxEntries}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Append adds payload to the list for kind. It never fails: errors are
// logged and dropped.
func (s *Store) Append(ctx context.Context, kind models.BackupKind, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logger.With("kind", kind)

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error(ctx, "backup: cannot encode payload", "error", err)
		return
	}

	list, err := s.read(ctx, kind)
	switch {
	case errors.Is(err, errCorrupt):
		// a list that cannot be decoded is replaced rather than blocking new backups
		log.Error(ctx, "backup: existing list unreadable, starting over", "error", err)
		list = nil
	case err != nil:
		log.Error(ctx, "backup: read failed, record lost", "error", err)
		return
	}

	list = append(list, models.BackupEnvelope{Payload: raw, TS: s.now()})
	if len(list) > s.max {
		list = list[len(list)-s.max:]
	}

	if err := s.write(ctx, kind, list); err != nil {
		log.Error(ctx, "backup: write failed, record lost", "error", err)
		return
	}
	log.Warn(ctx, "backup: record stored", "size", len(list))
}

// DrainAndReplay feeds every envelope of kind to replay in order. The list
// is cleared only when every replay succeeded; otherwise it is left as is.
func (s *Store) DrainAndReplay(ctx context.Context, kind models.BackupKind, replay func(ctx context.Context, payload json.RawMessage) error) (DrainResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.read(ctx, kind)
	if err != nil {
		return DrainResult{}, err
	}

	res := DrainResult{Total: len(list)}
	if len(list) == 0 {
		return res, nil
	}

	for i, env := range list {
		if err := replay(ctx, env.Payload); err != nil {
			s.logger.Warn(ctx, "backup: replay failed", "kind", kind, "index", i, "error", err)
			continue
		}
		res.Replayed++
	}

	if res.Replayed < res.Total {
		return res, nil
	}

	if err := s.kv.Delete(ctx, Key(kind)); err != nil {
		return res, fmt.Errorf("failed to clear backup %s: %w", kind, err)
	}
	res.Cleared = true
	return res, nil
}

// Len returns the number of envelopes stored for kind.
func (s *Store) Len(ctx context.Context, kind models.BackupKind) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.read(ctx, kind)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// Entries returns a copy of the list for kind.
func (s *Store) Entries(ctx context.Context, kind models.BackupKind) ([]models.BackupEnvelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx, kind)
}

func (s *Store) read(ctx context.Context, kind models.BackupKind) ([]models.BackupEnvelope, error) {
	raw, ok, err := s.kv.Get(ctx, Key(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to read backup %s: %w", kind, err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var list []models.BackupEnvelope
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errCorrupt, kind, err)
	}
	return list, nil
}

func (s *Store) write(ctx context.Context, kind models.BackupKind, list []models.BackupEnvelope) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, Key(kind), string(raw))
}
