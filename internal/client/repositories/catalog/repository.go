// Package catalog caches the server's client list (lista_clientes) for
// offline display. Archived rows stay in the table but are hidden from
// active reads.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldrec/internal/client/models"
	"github.com/dmitrijs2005/fieldrec/internal/common"
	"github.com/dmitrijs2005/fieldrec/internal/dbx"
)

type Repository interface {
	Upsert(ctx context.Context, e *models.CatalogEntry) error
	ListActive(ctx context.Context) ([]models.CatalogEntry, error)
	Archive(ctx context.Context, idCliente int64) error
	FindConfirmed(ctx context.Context, identificacion string) (*models.ClientRef, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Upsert writes e by IdCliente. The archived flag of an existing row is
// kept, so a refresh from the server does not resurrect archived clients.
func (r *SQLiteRepository) Upsert(ctx context.Context, e *models.CatalogEntry) error {
	query := `INSERT INTO lista_clientes (
			IdCliente, Identificacion, Nombre, Apellido, NumeroOperacion, FechaCarga,
			Agencia, LineaCredito, TieneGrabacion, UsuarioAsignado, Origen,
			CodigoAcreedor, TipoIdentificacion, DatosAdicionales, IdExterno,
			CodigoPais, EsArchivado, sincronizado)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(IdCliente) DO UPDATE SET
			Identificacion = excluded.Identificacion,
			Nombre = excluded.Nombre,
			Apellido = excluded.Apellido,
			NumeroOperacion = excluded.NumeroOperacion,
			FechaCarga = excluded.FechaCarga,
			Agencia = excluded.Agencia,
			LineaCredito = excluded.LineaCredito,
			TieneGrabacion = excluded.TieneGrabacion,
			UsuarioAsignado = excluded.UsuarioAsignado,
			Origen = excluded.Origen,
			CodigoAcreedor = excluded.CodigoAcreedor,
			TipoIdentificacion = excluded.TipoIdentificacion,
			DatosAdicionales = excluded.DatosAdicionales,
			IdExterno = excluded.IdExterno,
			CodigoPais = excluded.CodigoPais,
			EsArchivado = MAX(lista_clientes.EsArchivado, excluded.EsArchivado),
			sincronizado = excluded.sincronizado`
	_, err := r.db.ExecContext(ctx, query,
		e.IdCliente, e.Identificacion, e.Nombre, e.Apellido, e.NumeroOperacion, e.FechaCarga,
		e.Agencia, e.LineaCredito, dbx.BoolInt(e.TieneGrabacion), e.UsuarioAsignado, e.Origen,
		e.CodigoAcreedor, e.TipoIdentificacion, e.DatosAdicionales, e.IdExterno,
		e.CodigoPais, dbx.BoolInt(e.EsArchivado), dbx.BoolInt(e.Sincronizado))
	if err != nil {
		return fmt.Errorf("failed to upsert catalog entry %d: %w", e.IdCliente, err)
	}
	return nil
}

func (r *SQLiteRepository) ListActive(ctx context.Context) ([]models.CatalogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT IdCliente, COALESCE(Identificacion, ''),
			COALESCE(Nombre, ''), COALESCE(Apellido, ''), COALESCE(NumeroOperacion, ''),
			COALESCE(FechaCarga, ''), COALESCE(Agencia, ''), COALESCE(LineaCredito, ''),
			COALESCE(TieneGrabacion, 0), COALESCE(UsuarioAsignado, ''), COALESCE(Origen, ''),
			COALESCE(CodigoAcreedor, ''), COALESCE(TipoIdentificacion, ''),
			COALESCE(DatosAdicionales, ''), COALESCE(IdExterno, ''), COALESCE(CodigoPais, ''),
			COALESCE(sincronizado, 1)
		FROM lista_clientes WHERE COALESCE(EsArchivado, 0) = 0 ORDER BY IdCliente`)
	if err != nil {
		return nil, fmt.Errorf("failed to select catalog: %w", err)
	}
	defer rows.Close()

	var result []models.CatalogEntry
	for rows.Next() {
		var (
			e                    models.CatalogEntry
			hasRecording, synced int
		)
		if err := rows.Scan(&e.IdCliente, &e.Identificacion, &e.Nombre, &e.Apellido,
			&e.NumeroOperacion, &e.FechaCarga, &e.Agencia, &e.LineaCredito, &hasRecording,
			&e.UsuarioAsignado, &e.Origen, &e.CodigoAcreedor, &e.TipoIdentificacion,
			&e.DatosAdicionales, &e.IdExterno, &e.CodigoPais, &synced); err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		e.TieneGrabacion = hasRecording == 1
		e.Sincronizado = synced == 1
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate catalog: %w", err)
	}
	return result, nil
}

// Archive hides a client from active reads. The row is kept.
func (r *SQLiteRepository) Archive(ctx context.Context, idCliente int64) error {
	n, err := dbx.ExecAffected(ctx, r.db, `UPDATE lista_clientes SET EsArchivado = 1 WHERE IdCliente = ?`, idCliente)
	if err != nil {
		return fmt.Errorf("failed to archive client %d: %w", idCliente, err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) FindConfirmed(ctx context.Context, identificacion string) (*models.ClientRef, error) {
	var ref models.ClientRef
	err := r.db.QueryRowContext(ctx, `SELECT IdCliente, COALESCE(Identificacion, ''),
			COALESCE(NumeroOperacion, ''), COALESCE(Agencia, ''), COALESCE(LineaCredito, ''),
			COALESCE(IdExterno, ''), COALESCE(CodigoPais, '')
		FROM lista_clientes
		WHERE Identificacion = ? AND sincronizado = 1 AND COALESCE(EsArchivado, 0) = 0
		ORDER BY IdCliente DESC LIMIT 1`, identificacion).
		Scan(&ref.IdCliente, &ref.Identificacion, &ref.NumeroOperacion, &ref.Agencia,
			&ref.LineaCredito, &ref.IdExterno, &ref.CodigoPais)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find catalog client: %w", err)
	}
	return &ref, nil
}
