package recordings

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/fieldrec/internal/client/models"
	"github.com/dmitrijs2005/fieldrec/internal/client/store"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, store.EnsureSchema(context.Background(), db))
	return db
}

func sample(ident, op string) *models.PendingRecording {
	return &models.PendingRecording{
		Identificacion:       ident,
		AudioPath:            "/data/audio/" + ident + ".m4a",
		FechaInicioGrabacion: "2025-03-01T10:00:00",
		FechaFinGrabacion:    "2025-03-01T10:01:05",
		Latitud:              "-12.04",
		Longitud:             "-77.03",
		Agencia:              "001",
		LineaCredito:         "LC1",
		NumeroOperacion:      op,
		UsuarioGrabacion:     "agent1",
		Duracion:             65,
		DuracionTexto:        "01:05",
		EsLocal:              true,
	}
}

func TestInsert_ThenListPending(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	rec := sample("0102", "OP1")
	id, err := r.Insert(ctx, rec)
	require.NoError(t, err)
	require.Positive(t, id)

	list, err := r.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	want := *rec
	want.ID = id
	if diff := cmp.Diff(want, list[0]); diff != "" {
		t.Fatalf("pending row mismatch (-want +got):\n%s", diff)
	}
}

func TestInsert_RejectsInvalid(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	_, err := r.Insert(ctx, &models.PendingRecording{Identificacion: "X"})
	require.ErrorIs(t, err, models.ErrInvalidRecording)

	_, err = r.Insert(ctx, &models.PendingRecording{AudioPath: "/a.m4a"})
	require.ErrorIs(t, err, models.ErrInvalidRecording)

	n, err := r.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMarkSynced_OnlyOnceAndNeverBack(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	id, err := r.Insert(ctx, sample("A", "1"))
	require.NoError(t, err)

	require.NoError(t, r.MarkSynced(ctx, id))
	require.NoError(t, r.MarkSynced(ctx, id))

	var synced int
	require.NoError(t, db.QueryRow(`SELECT sincronizado FROM grabaciones_pendientes WHERE id = ?`, id).Scan(&synced))
	assert.Equal(t, 1, synced)

	n, err := r.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// purge must not touch synced rows
	purged, err := r.PurgePending(ctx)
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestCountAndPurgePending(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	var ids []int64
	for _, ident := range []string{"A", "B", "C"} {
		id, err := r.Insert(ctx, sample(ident, "OP"+ident))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, r.MarkSynced(ctx, ids[0]))

	n, err := r.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	purged, err := r.PurgePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	n, err = r.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteByID(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	id, err := r.Insert(ctx, sample("A", "1"))
	require.NoError(t, err)

	require.NoError(t, r.DeleteByID(ctx, id))
	require.NoError(t, r.DeleteByID(ctx, id))

	list, err := r.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSyncedLocalPairs_OnlyLocalSyncedRows(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	a, err := r.Insert(ctx, sample("X", "A"))
	require.NoError(t, err)
	dup, err := r.Insert(ctx, sample("X", "A"))
	require.NoError(t, err)
	_, err = r.Insert(ctx, sample("Y", "B")) // stays pending
	require.NoError(t, err)

	remote := sample("Z", "C")
	remote.EsLocal = false
	c, err := r.Insert(ctx, remote)
	require.NoError(t, err)

	for _, id := range []int64{a, dup, c} {
		require.NoError(t, r.MarkSynced(ctx, id))
	}

	pairs, err := r.SyncedLocalPairs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.OpKey{{NumeroOperacion: "A", Identificacion: "X"}}, pairs)

	rows, err := r.SyncedLocal(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Sincronizado)
	assert.Equal(t, a, rows[0].ID)
}

func TestListPending_ToleratesNullColumns(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := db.Exec(`INSERT INTO grabaciones_pendientes (Identificacion, audioPath) VALUES ('A', '/a.m4a')`)
	require.NoError(t, err)

	list, err := r.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "", list[0].Latitud)
	assert.True(t, list[0].EsLocal)
}
