// Package recordings persists pending audio recordings on the device.
package recordings

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fieldrec/internal/client/models"
	"github.com/dmitrijs2005/fieldrec/internal/dbx"
)

const selectColumns = `id, COALESCE(Identificacion, ''), COALESCE(audioPath, ''),
	COALESCE(FechaInicioGrabacion, ''), COALESCE(FechaFinGrabacion, ''),
	COALESCE(Latitud, ''), COALESCE(Longitud, ''), COALESCE(Agencia, ''),
	COALESCE(LineaCredito, ''), COALESCE(NumeroOperacion, ''),
	COALESCE(UsuarioGrabacion, ''), COALESCE(Duracion, 0), COALESCE(DuracionTexto, ''),
	COALESCE(sincronizado, 0), COALESCE(EsLocal, 1)`

// SQLiteRepository implements Repository over a dbx.DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert validates rec and stores it with sincronizado=0.
func (r *SQLiteRepository) Insert(ctx context.Context, rec *models.PendingRecording) (int64, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}

	query := `INSERT INTO grabaciones_pendientes (
			Identificacion, audioPath, FechaInicioGrabacion, FechaFinGrabacion,
			Latitud, Longitud, Agencia, LineaCredito, NumeroOperacion,
			UsuarioGrabacion, Duracion, DuracionTexto, sincronizado, EsLocal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`
	res, err := r.db.ExecContext(ctx, query,
		rec.Identificacion, rec.AudioPath, rec.FechaInicioGrabacion, rec.FechaFinGrabacion,
		rec.Latitud, rec.Longitud, rec.Agencia, rec.LineaCredito, rec.NumeroOperacion,
		rec.UsuarioGrabacion, rec.Duracion, rec.DuracionTexto, dbx.BoolInt(rec.EsLocal))
	if err != nil {
		return 0, fmt.Errorf("failed to insert recording: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]models.PendingRecording, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM grabaciones_pendientes WHERE sincronizado = 0 ORDER BY id`)
}

func (r *SQLiteRepository) SyncedLocal(ctx context.Context) ([]models.PendingRecording, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM grabaciones_pendientes WHERE sincronizado = 1 AND EsLocal = 1 ORDER BY id`)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.PendingRecording, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select recordings: %w", err)
	}
	defer rows.Close()

	var result []models.PendingRecording
	for rows.Next() {
		var (
			item          models.PendingRecording
			synced, local int
		)
		if err := rows.Scan(&item.ID, &item.Identificacion, &item.AudioPath,
			&item.FechaInicioGrabacion, &item.FechaFinGrabacion,
			&item.Latitud, &item.Longitud, &item.Agencia, &item.LineaCredito,
			&item.NumeroOperacion, &item.UsuarioGrabacion, &item.Duracion,
			&item.DuracionTexto, &synced, &local); err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		item.Sincronizado = synced == 1
		item.EsLocal = local == 1
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recordings: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grabaciones_pendientes WHERE sincronizado = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending recordings: %w", err)
	}
	return n, nil
}

// MarkSynced only touches pending rows, so a synced row is never rewritten.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE grabaciones_pendientes SET sincronizado = 1 WHERE id = ? AND sincronizado = 0`, id)
	if err != nil {
		return fmt.Errorf("failed to mark recording %d synced: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM grabaciones_pendientes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recording %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) PurgePending(ctx context.Context) (int64, error) {
	n, err := dbx.ExecAffected(ctx, r.db, `DELETE FROM grabaciones_pendientes WHERE sincronizado = 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge pending recordings: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) SyncedLocalPairs(ctx context.Context) ([]models.OpKey, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT COALESCE(NumeroOperacion, ''), COALESCE(Identificacion, '')
		FROM grabaciones_pendientes WHERE sincronizado = 1 AND EsLocal = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to select synced pairs: %w", err)
	}
	defer rows.Close()

	var result []models.OpKey
	for rows.Next() {
		var k models.OpKey
		if err := rows.Scan(&k.NumeroOperacion, &k.Identificacion); err != nil {
			return nil, fmt.Errorf("failed to scan synced pair: %w", err)
		}
		result = append(result, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate synced pairs: %w", err)
	}
	return result, nil
}
