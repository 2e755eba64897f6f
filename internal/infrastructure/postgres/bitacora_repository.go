package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solinntec/addon-facturas/internal/application/ports"
)

var _ ports.Bitacora = (*BitacoraRepository)(nil)

// BitacoraRepository persiste una fila por corrida de procesamiento.
//
// Esquema esperado:
//
//	CREATE TABLE IF NOT EXISTS bitacora_procesamiento (
//	    id         BIGSERIAL PRIMARY KEY,
//	    archivo    TEXT NOT NULL,
//	    orden_nro  TEXT NOT NULL,
//	    remitente  TEXT,
//	    exito      BOOLEAN NOT NULL,
//	    detalle    TEXT,
//	    total      NUMERIC(19,4),
//	    creado_en  TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type BitacoraRepository struct {
	pool *pgxpool.Pool
}

// NewBitacoraRepository construye el repositorio.
func NewBitacoraRepository(pool *pgxpool.Pool) *BitacoraRepository {
	return &BitacoraRepository{pool: pool}
}

// Registrar inserta la fila de la corrida.
func (r *BitacoraRepository) Registrar(ctx context.Context, reg ports.RegistroProcesamiento) error {
	const sentencia = `
		INSERT INTO bitacora_procesamiento (archivo, orden_nro, remitente, exito, detalle, total)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, sentencia,
		reg.Archivo, reg.OrdenNro, reg.Remitente, reg.Exito, reg.Detalle, reg.Total)
	if err != nil {
		return fmt.Errorf("insertando en la bitácora: %w", err)
	}
	return nil
}
