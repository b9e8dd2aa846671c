// Package queue manages the lifecycle of work that has not reached the
// server yet: pending recordings and locally created clients.
//
// Writes that cannot reach the structured store are diverted to the backup
// store instead of failing, and FlushBackups replays them once the store is
// healthy again. Reads that feed the UI are bounded by a short timeout and
// a linear retry, and degrade to an empty result rather than blocking.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/fieldrec/internal/client/backup"
	"github.com/dmitrijs2005/fieldrec/internal/client/models"
	"github.com/dmitrijs2005/fieldrec/internal/client/repositories/clients"
	"github.com/dmitrijs2005/fieldrec/internal/client/repositories/recordings"
	"github.com/dmitrijs2005/fieldrec/internal/client/store"
	"github.com/dmitrijs2005/fieldrec/internal/logging"
	"github.com/dmitrijs2005/fieldrec/internal/retryx"
	"github.com/dmitrijs2005/fieldrec/internal/timex"
)

// DefaultQueryTimeout bounds a single local read attempt.
const DefaultQueryTimeout = 2 * time.Second

// ErrClientNotConfirmed means no synced client matches an identification.
var ErrClientNotConfirmed = errors.New("client not confirmed by server")

// StoreSource hands out the structured store; *store.Provider implements it.
type StoreSource interface {
	Get(ctx context.Context) (*store.Store, error)
}

type Queue struct {
	stores StoreSource
	backup *backup.Store
	logger logging.Logger

	queryTimeout time.Duration
	retry        retryx.Policy
	now          func() time.Time
}

type Option func(*Queue)

func WithQueryTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.queryTimeout = d
		}
	}
}

func WithRetryPolicy(p retryx.Policy) Option {
	return func(q *Queue) { q.retry = p }
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func New(stores StoreSource, b *backup.Store, logger logging.Logger, opts ...Option) *Queue {
	q := &Queue{
		stores:       stores,
		backup:       b,
		logger:       logger,
		queryTimeout: DefaultQueryTimeout,
		retry:        retryx.DefaultPolicy,
		now:          time.Now,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

func (q *Queue) recordings(ctx context.Context) (recordings.Repository, error) {
	s, err := q.stores.Get(ctx)
	if err != nil {
		return nil, err
	}
	return recordings.NewSQLiteRepository(s.DB()), nil
}

// EnqueueRecording stores rec as pending and returns its row id. If the
// store is unavailable the record goes to the backup list and the returned
// id is 0; that is not an error. Only invalid records are rejected.
func (q *Queue) EnqueueRecording(ctx context.Context, rec models.PendingRecording) (int64, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}
	rec.ID = 0
	rec.Sincronizado = false

	id, err := q.insertRecording(ctx, &rec)
	if err != nil {
		q.logger.Error(ctx, "enqueue recording failed, using backup",
			"identificacion", rec.Identificacion, "error", err)
		q.backup.Append(ctx, models.BackupRecordings, rec)
		return 0, nil
	}

	q.logger.Info(ctx, "recording queued", "id", id, "identificacion", rec.Identificacion)
	return id, nil
}

func (q *Queue) insertRecording(ctx context.Context, rec *models.PendingRecording) (int64, error) {
	repo, err := q.recordings(ctx)
	if err != nil {
		return 0, err
	}
	return repo.Insert(ctx, rec)
}

// EnqueueClient upserts c, generating a localId when it has none, and
// returns the localId. Store failures divert c to the backup list.
func (q *Queue) EnqueueClient(ctx context.Context, c models.LocalClient) (string, error) {
	if c.LocalID == "" {
		c.LocalID = models.NewLocalID(q.now())
	}

	if err := q.upsertClient(ctx, &c); err != nil {
		q.logger.Error(ctx, "enqueue client failed, using backup", "localId", c.LocalID, "error", err)
		q.backup.Append(ctx, models.BackupClients, c)
		return c.LocalID, nil
	}

	q.logger.Info(ctx, "client saved", "localId", c.LocalID)
	return c.LocalID, nil
}

func (q *Queue) upsertClient(ctx context.Context, c *models.LocalClient) error {
	s, err := q.stores.Get(ctx)
	if err != nil {
		return err
	}
	return clients.NewSQLiteRepository(s.DB()).Upsert(ctx, c)
}

// CountPending returns the number of pending recordings, or 0 when the
// store does not answer in time after all retries.
func (q *Queue) CountPending(ctx context.Context) int {
	n, err := retryx.Value(ctx, q.retry, 0, func(ctx context.Context) (int, error) {
		return timex.Do(ctx, q.queryTimeout, func(ctx context.Context) (int, error) {
			repo, err := q.recordings(ctx)
			if err != nil {
				return 0, err
			}
			return repo.CountPending(ctx)
		})
	})
	if err != nil {
		q.logger.Warn(ctx, "count pending failed, assuming none", "error", err)
	}
	return n
}

// SyncedLocalPairs returns the operation/identification pairs of synced
// recordings captured on this device. It degrades to an empty slice.
func (q *Queue) SyncedLocalPairs(ctx context.Context) []models.OpKey {
	pairs, err := retryx.Value(ctx, q.retry, []models.OpKey(nil), func(ctx context.Context) ([]models.OpKey, error) {
		return timex.Do(ctx, q.queryTimeout, func(ctx context.Context) ([]models.OpKey, error) {
			repo, err := q.recordings(ctx)
			if err != nil {
				return nil, err
			}
			return repo.SyncedLocalPairs(ctx)
		})
	})
	if err != nil {
		q.logger.Warn(ctx, "local pairs query failed, using empty set", "error", err)
		return []models.OpKey{}
	}
	return pairs
}

// SyncedLocal returns synced recordings captured on this device.
func (q *Queue) SyncedLocal(ctx context.Context) ([]models.PendingRecording, error) {
	return timex.Do(ctx, q.queryTimeout, func(ctx context.Context) ([]models.PendingRecording, error) {
		repo, err := q.recordings(ctx)
		if err != nil {
			return nil, err
		}
		return repo.SyncedLocal(ctx)
	})
}

func (q *Queue) ListPending(ctx context.Context) ([]models.PendingRecording, error) {
	repo, err := q.recordings(ctx)
	if err != nil {
		return nil, err
	}
	return repo.ListPending(ctx)
}

// PurgePending deletes every pending recording and returns how many.
func (q *Queue) PurgePending(ctx context.Context) (int64, error) {
	repo, err := q.recordings(ctx)
	if err != nil {
		return 0, err
	}
	n, err := repo.PurgePending(ctx)
	if err != nil {
		return 0, err
	}
	q.logger.Warn(ctx, "pending recordings purged", "count", n)
	return n, nil
}

func (q *Queue) MarkSynced(ctx context.Context, id int64) error {
	repo, err := q.recordings(ctx)
	if err != nil {
		return err
	}
	return repo.MarkSynced(ctx, id)
}

func (q *Queue) DeleteByID(ctx context.Context, id int64) error {
	repo, err := q.recordings(ctx)
	if err != nil {
		return err
	}
	return repo.DeleteByID(ctx, id)
}
