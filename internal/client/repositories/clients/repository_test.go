package clients

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/fieldrec/internal/client/models"
	"github.com/dmitrijs2005/fieldrec/internal/client/store"
	"github.com/dmitrijs2005/fieldrec/internal/common"
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

func client(localID, ident, nombre string) *models.LocalClient {
	return &models.LocalClient{
		LocalID: localID,
		ClientInfo: models.ClientInfo{
			Identificacion:   ident,
			Nombre:           nombre,
			Apellido:         "Quispe",
			NumeroOperacion:  "OP-" + ident,
			Agencia:          "001",
			LineaCredito:     "LC",
			DatosAdicionales: `{"telefono":"999"}`,
			CodigoPais:       "PE",
		},
	}
}

func TestUpsert_SameLocalIDKeepsOneRowWithLatestValues(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, client("LOCAL_1", "0102", "Ana")))
	require.NoError(t, r.Upsert(ctx, client("LOCAL_1", "0102", "Ana Maria")))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM clientes_locales`).Scan(&n))
	assert.Equal(t, 1, n)

	got, err := r.GetByLocalID(ctx, "LOCAL_1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", got.Nombre)
	assert.Equal(t, `{"telefono":"999"}`, got.DatosAdicionales)
	assert.False(t, got.Sincronizado)
}

func TestUpsert_EmptyLocalID(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	err := r.Upsert(context.Background(), client("", "1", "x"))
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestGetByLocalID_NotFound(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	_, err := r.GetByLocalID(context.Background(), "nope")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestConfirm_ThenFindConfirmed(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, client("LOCAL_1", "0102", "Ana")))
	require.NoError(t, r.Upsert(ctx, client("LOCAL_2", "0305", "Luis")))

	_, err := r.FindConfirmed(ctx, "0102")
	require.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, r.Confirm(ctx, "LOCAL_1", 77))

	ref, err := r.FindConfirmed(ctx, "0102")
	require.NoError(t, err)
	assert.Equal(t, int64(77), ref.IdCliente)
	assert.Equal(t, "OP-0102", ref.NumeroOperacion)
	assert.Equal(t, "PE", ref.CodigoPais)

	pending, err := r.ListUnconfirmed(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "LOCAL_2", pending[0].LocalID)

	all, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestConfirm_UnknownLocalID(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	err := r.Confirm(context.Background(), "LOCAL_404", 1)
	require.ErrorIs(t, err, common.ErrorNotFound)
}
