// Package clients persists clients created or edited on the device
// (clientes_locales). Rows are keyed by localId and upserted, never
// deleted by normal flows.
package clients

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
	Upsert(ctx context.Context, c *models.LocalClient) error
	GetByLocalID(ctx context.Context, localID string) (*models.LocalClient, error)
	List(ctx context.Context) ([]models.LocalClient, error)
	ListUnconfirmed(ctx context.Context) ([]models.LocalClient, error)
	Confirm(ctx context.Context, localID string, idCliente int64) error
	FindConfirmed(ctx context.Context, identificacion string) (*models.ClientRef, error)
}

const columns = `localId, COALESCE(Identificacion, ''), COALESCE(Nombre, ''), COALESCE(Apellido, ''),
	COALESCE(NumeroOperacion, ''), COALESCE(FechaCarga, ''), COALESCE(Agencia, ''),
	COALESCE(LineaCredito, ''), COALESCE(TieneGrabacion, 0), COALESCE(UsuarioAsignado, ''),
	COALESCE(Origen, ''), COALESCE(CodigoAcreedor, ''), COALESCE(TipoIdentificacion, ''),
	COALESCE(DatosAdicionales, ''), COALESCE(IdCliente, 0), COALESCE(IdExterno, ''),
	COALESCE(CodigoPais, ''), COALESCE(sincronizado, 0)`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Upsert replaces the row with the same localId or inserts a new one.
func (r *SQLiteRepository) Upsert(ctx context.Context, c *models.LocalClient) error {
	if c.LocalID == "" {
		return fmt.Errorf("%w: empty localId", common.ErrorValidation)
	}

	query := `INSERT INTO clientes_locales (
			localId, Identificacion, Nombre, Apellido, NumeroOperacion, FechaCarga,
			Agencia, LineaCredito, TieneGrabacion, UsuarioAsignado, Origen,
			CodigoAcreedor, TipoIdentificacion, DatosAdicionales, IdCliente,
			IdExterno, CodigoPais, sincronizado)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(localId) DO UPDATE SET
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
			IdCliente = excluded.IdCliente,
			IdExterno = excluded.IdExterno,
			CodigoPais = excluded.CodigoPais,
			sincronizado = excluded.sincronizado`
	_, err := r.db.ExecContext(ctx, query,
		c.LocalID, c.Identificacion, c.Nombre, c.Apellido, c.NumeroOperacion, c.FechaCarga,
		c.Agencia, c.LineaCredito, dbx.BoolInt(c.TieneGrabacion), c.UsuarioAsignado, c.Origen,
		c.CodigoAcreedor, c.TipoIdentificacion, c.DatosAdicionales, c.IdCliente,
		c.IdExterno, c.CodigoPais, dbx.BoolInt(c.Sincronizado))
	if err != nil {
		return fmt.Errorf("failed to upsert client %s: %w", c.LocalID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetByLocalID(ctx context.Context, localID string) (*models.LocalClient, error) {
	list, err := r.list(ctx, `SELECT `+columns+` FROM clientes_locales WHERE localId = ?`, localID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, common.ErrorNotFound
	}
	return &list[0], nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.LocalClient, error) {
	return r.list(ctx, `SELECT `+columns+` FROM clientes_locales ORDER BY localId`)
}

func (r *SQLiteRepository) ListUnconfirmed(ctx context.Context) ([]models.LocalClient, error) {
	return r.list(ctx, `SELECT `+columns+` FROM clientes_locales WHERE sincronizado = 0 ORDER BY localId`)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.LocalClient, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select clients: %w", err)
	}
	defer rows.Close()

	var result []models.LocalClient
	for rows.Next() {
		var (
			c                    models.LocalClient
			hasRecording, synced int
		)
		if err := rows.Scan(&c.LocalID, &c.Identificacion, &c.Nombre, &c.Apellido,
			&c.NumeroOperacion, &c.FechaCarga, &c.Agencia, &c.LineaCredito, &hasRecording,
			&c.UsuarioAsignado, &c.Origen, &c.CodigoAcreedor, &c.TipoIdentificacion,
			&c.DatosAdicionales, &c.IdCliente, &c.IdExterno, &c.CodigoPais, &synced); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		c.TieneGrabacion = hasRecording == 1
		c.Sincronizado = synced == 1
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}
	return result, nil
}

// Confirm records the server id for a local client and marks it synced.
func (r *SQLiteRepository) Confirm(ctx context.Context, localID string, idCliente int64) error {
	n, err := dbx.ExecAffected(ctx, r.db,
		`UPDATE clientes_locales SET IdCliente = ?, sincronizado = 1 WHERE localId = ?`, idCliente, localID)
	if err != nil {
		return fmt.Errorf("failed to confirm client %s: %w", localID, err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// FindConfirmed returns the most recent synced client with the given
// identification, or common.ErrorNotFound.
func (r *SQLiteRepository) FindConfirmed(ctx context.Context, identificacion string) (*models.ClientRef, error) {
	var ref models.ClientRef
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(IdCliente, 0), COALESCE(Identificacion, ''),
			COALESCE(NumeroOperacion, ''), COALESCE(Agencia, ''), COALESCE(LineaCredito, ''),
			COALESCE(IdExterno, ''), COALESCE(CodigoPais, '')
		FROM clientes_locales
		WHERE Identificacion = ? AND sincronizado = 1
		ORDER BY rowid DESC LIMIT 1`, identificacion).
		Scan(&ref.IdCliente, &ref.Identificacion, &ref.NumeroOperacion, &ref.Agencia,
			&ref.LineaCredito, &ref.IdExterno, &ref.CodigoPais)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find confirmed client: %w", err)
	}
	return &ref, nil
}
