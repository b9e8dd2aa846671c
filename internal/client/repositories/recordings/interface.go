package recordings

import (
	"context"

	"github.com/dmitrijs2005/fieldrec/internal/client/models"
)

// Repository is the persistence contract for the grabaciones_pendientes table.
type Repository interface {
	// Insert stores rec as pending and returns the new row id.
	Insert(ctx context.Context, rec *models.PendingRecording) (int64, error)

	// ListPending returns rows with sincronizado=0 in insertion order.
	ListPending(ctx context.Context) ([]models.PendingRecording, error)

	// CountPending returns the number of rows with sincronizado=0.
	CountPending(ctx context.Context) (int, error)

	// MarkSynced flips sincronizado 0→1. Repeated calls are no-ops.
	MarkSynced(ctx context.Context, id int64) error

	// DeleteByID removes the row unconditionally.
	DeleteByID(ctx context.Context, id int64) error

	// PurgePending deletes every row with sincronizado=0.
	PurgePending(ctx context.Context) (int64, error)

	// SyncedLocalPairs returns the operation/identification pairs of rows
	// that were captured on the device and have been synced.
	SyncedLocalPairs(ctx context.Context) ([]models.OpKey, error)

	// SyncedLocal returns those rows in full.
	SyncedLocal(ctx context.Context) ([]models.PendingRecording, error)
}
