package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldrec/internal/client/models"
	"github.com/dmitrijs2005/fieldrec/internal/client/repositories/catalog"
	"github.com/dmitrijs2005/fieldrec/internal/client/repositories/clients"
	"github.com/dmitrijs2005/fieldrec/internal/client/store"
	"github.com/dmitrijs2005/fieldrec/internal/common"
	"github.com/dmitrijs2005/fieldrec/internal/dbx"
)

// SaveCatalog upserts a fresh server client list and confirms the local
// clients it now contains. It returns how many local clients got confirmed.
func (q *Queue) SaveCatalog(ctx context.Context, entries []models.CatalogEntry) (int, error) {
	s, err := q.stores.Get(ctx)
	if err != nil {
		return 0, err
	}

	confirmed := 0
	err = s.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := catalog.NewSQLiteRepository(tx)
		for i := range entries {
			e := entries[i]
			e.Sincronizado = true
			if err := repo.Upsert(ctx, &e); err != nil {
				return err
			}
		}
		n, err := confirmClients(ctx, clients.NewSQLiteRepository(tx), entries)
		confirmed = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save catalog: %w", err)
	}

	q.logger.Info(ctx, "catalog refreshed", "entries", len(entries), "confirmed", confirmed)
	return confirmed, nil
}

// ConfirmClients marks unconfirmed local clients as synced when entries
// contain their operation/identification pair, copying the server id.
func (q *Queue) ConfirmClients(ctx context.Context, entries []models.CatalogEntry) (int, error) {
	s, err := q.stores.Get(ctx)
	if err != nil {
		return 0, err
	}

	confirmed := 0
	err = s.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := confirmClients(ctx, clients.NewSQLiteRepository(tx), entries)
		confirmed = n
		return err
	})
	return confirmed, err
}

func confirmClients(ctx context.Context, repo clients.Repository, entries []models.CatalogEntry) (int, error) {
	byKey := make(map[models.OpKey]int64, len(entries))
	for _, e := range entries {
		byKey[e.Key()] = e.IdCliente
	}

	pending, err := repo.ListUnconfirmed(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, c := range pending {
		id, ok := byKey[c.Key()]
		if !ok {
			continue
		}
		if err := repo.Confirm(ctx, c.LocalID, id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// ActiveCatalog returns non-archived catalog entries.
func (q *Queue) ActiveCatalog(ctx context.Context) ([]models.CatalogEntry, error) {
	s, err := q.stores.Get(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.NewSQLiteRepository(s.DB()).ListActive(ctx)
}

// ArchiveClient hides a catalog client locally, without waiting for the server.
func (q *Queue) ArchiveClient(ctx context.Context, idCliente int64) error {
	s, err := q.stores.Get(ctx)
	if err != nil {
		return err
	}
	return catalog.NewSQLiteRepository(s.DB()).Archive(ctx, idCliente)
}

// FindConfirmedClient resolves the operation data for identificacion from
// synced local clients first, then from the active catalog.
func (q *Queue) FindConfirmedClient(ctx context.Context, identificacion string) (*models.ClientRef, error) {
	s, err := q.stores.Get(ctx)
	if err != nil {
		return nil, err
	}

	ref, err := clients.NewSQLiteRepository(s.DB()).FindConfirmed(ctx, identificacion)
	if err == nil {
		return ref, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	ref, err = catalog.NewSQLiteRepository(s.DB()).FindConfirmed(ctx, identificacion)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrClientNotConfirmed, identificacion)
	}
	return ref, err
}

// Stats counts rows per table for diagnostics.
type Stats struct {
	Pending       int64
	Synced        int64
	LocalClients  int64
	CatalogActive int64
}

func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	s, err := q.stores.Get(ctx)
	if err != nil {
		return Stats{}, err
	}

	row, _, err := s.QueryFirst(ctx, `SELECT
			COALESCE(SUM(CASE WHEN sincronizado = 0 THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN sincronizado = 1 THEN 1 ELSE 0 END), 0) AS synced
		FROM `+store.TableRecordings)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Pending: row.Int("pending"), Synced: row.Int("synced")}

	rows, err := s.QueryAll(ctx, `SELECT 'local' AS t, COUNT(*) AS n FROM `+store.TableClients+`
		UNION ALL SELECT 'catalog', COUNT(*) FROM `+store.TableCatalog+` WHERE COALESCE(EsArchivado, 0) = ?`, 0)
	if err != nil {
		return Stats{}, err
	}
	for _, r := range rows {
		switch r.String("t") {
		case "local":
			st.LocalClients = r.Int("n")
		case "catalog":
			st.CatalogActive = r.Int("n")
		}
	}
	return st, nil
}
