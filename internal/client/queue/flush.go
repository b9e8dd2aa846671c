package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/fieldrec/internal/client/backup"
	"github.com/dmitrijs2005/fieldrec/internal/client/models"
	"github.com/dmitrijs2005/fieldrec/internal/client/repositories/clients"
)

// Flush reports what FlushBackups replayed per kind.
type Flush struct {
	Recordings backup.DrainResult
	Clients    backup.DrainResult
}

// Pending is the number of envelopes that are still in the backup.
func (f Flush) Pending() int {
	n := 0
	if !f.Recordings.Cleared {
		n += f.Recordings.Total
	}
	if !f.Clients.Cleared {
		n += f.Clients.Total
	}
	return n
}

// FlushBackups replays both backup lists into the structured store. Clients
// go first since recordings are only uploaded for known clients.
func (q *Queue) FlushBackups(ctx context.Context) (Flush, error) {
	var f Flush

	res, err := q.backup.DrainAndReplay(ctx, models.BackupClients, q.replayClient)
	if err != nil {
		return f, fmt.Errorf("flush clients: %w", err)
	}
	f.Clients = res

	res, err = q.backup.DrainAndReplay(ctx, models.BackupRecordings, q.replayRecording)
	if err != nil {
		return f, fmt.Errorf("flush recordings: %w", err)
	}
	f.Recordings = res

	if f.Clients.Total+f.Recordings.Total > 0 {
		q.logger.Info(ctx, "backups flushed",
			"clients", f.Clients.Replayed, "recordings", f.Recordings.Replayed, "left", f.Pending())
	}
	return f, nil
}

func (q *Queue) replayRecording(ctx context.Context, payload json.RawMessage) error {
	var rec models.PendingRecording
	if err := json.Unmarshal(payload, &rec); err != nil {
		return fmt.Errorf("decode recording: %w", err)
	}
	rec.ID = 0
	rec.Sincronizado = false
	_, err := q.insertRecording(ctx, &rec)
	return err
}

func (q *Queue) replayClient(ctx context.Context, payload json.RawMessage) error {
	var c models.LocalClient
	if err := json.Unmarshal(payload, &c); err != nil {
		return fmt.Errorf("decode client: %w", err)
	}
	if c.LocalID == "" {
		c.LocalID = models.NewLocalID(q.now())
	}
	return q.upsertClient(ctx, &c)
}

// ListClients returns every locally saved client.
func (q *Queue) ListClients(ctx context.Context) ([]models.LocalClient, error) {
	s, err := q.stores.Get(ctx)
	if err != nil {
		return nil, err
	}
	return clients.NewSQLiteRepository(s.DB()).List(ctx)
}
