package queue

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/fieldrec/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalogEntry(id int64, ident, op string) models.CatalogEntry {
	return models.CatalogEntry{
		IdCliente:  id,
		ClientInfo: models.ClientInfo{Identificacion: ident, NumeroOperacion: op, Agencia: "002"},
	}
}

func TestSaveCatalog_ConfirmsMatchingLocalClients(t *testing.T) {
	q, _ := newQueue(t, fixed(openStore(t)))
	ctx := context.Background()

	_, err := q.EnqueueClient(ctx, models.LocalClient{LocalID: "LOCAL_1",
		ClientInfo: models.ClientInfo{Identificacion: "0102", NumeroOperacion: "OP1"}})
	require.NoError(t, err)
	_, err = q.EnqueueClient(ctx, models.LocalClient{LocalID: "LOCAL_2",
		ClientInfo: models.ClientInfo{Identificacion: "0305", NumeroOperacion: "OP9"}})
	require.NoError(t, err)

	confirmed, err := q.SaveCatalog(ctx, []models.CatalogEntry{
		catalogEntry(10, "0102", "OP1"),
		catalogEntry(11, "0777", "OP7"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed)

	active, err := q.ActiveCatalog(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	ref, err := q.FindConfirmedClient(ctx, "0102")
	require.NoError(t, err)
	assert.Equal(t, int64(10), ref.IdCliente)

	_, err = q.FindConfirmedClient(ctx, "0305")
	require.ErrorIs(t, err, ErrClientNotConfirmed)
}

func TestFindConfirmedClient_FallsBackToCatalog(t *testing.T) {
	q, _ := newQueue(t, fixed(openStore(t)))
	ctx := context.Background()

	_, err := q.SaveCatalog(ctx, []models.CatalogEntry{catalogEntry(20, "0900", "OP20")})
	require.NoError(t, err)

	ref, err := q.FindConfirmedClient(ctx, "0900")
	require.NoError(t, err)
	assert.Equal(t, "002", ref.Agencia)

	require.NoError(t, q.ArchiveClient(ctx, 20))
	_, err = q.FindConfirmedClient(ctx, "0900")
	require.ErrorIs(t, err, ErrClientNotConfirmed)
}

func TestConfirmClients_NoMatches(t *testing.T) {
	q, _ := newQueue(t, fixed(openStore(t)))
	ctx := context.Background()

	_, err := q.EnqueueClient(ctx, models.LocalClient{LocalID: "LOCAL_1",
		ClientInfo: models.ClientInfo{Identificacion: "1", NumeroOperacion: "A"}})
	require.NoError(t, err)

	n, err := q.ConfirmClients(ctx, []models.CatalogEntry{catalogEntry(1, "1", "B")})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = q.ConfirmClients(ctx, []models.CatalogEntry{catalogEntry(1, "1", "A")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStats(t *testing.T) {
	q, _ := newQueue(t, fixed(openStore(t)))
	ctx := context.Background()

	id, err := q.EnqueueRecording(ctx, rec("A", "1"))
	require.NoError(t, err)
	_, err = q.EnqueueRecording(ctx, rec("B", "2"))
	require.NoError(t, err)
	require.NoError(t, q.MarkSynced(ctx, id))
	_, err = q.EnqueueClient(ctx, models.LocalClient{LocalID: "L1"})
	require.NoError(t, err)
	_, err = q.SaveCatalog(ctx, []models.CatalogEntry{catalogEntry(1, "x", "y"), catalogEntry(2, "z", "w")})
	require.NoError(t, err)
	require.NoError(t, q.ArchiveClient(ctx, 2))

	st, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Pending: 1, Synced: 1, LocalClients: 1, CatalogActive: 1}, st)
}
