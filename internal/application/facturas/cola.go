package facturas

import (
	"context"
	"errors"

	"github.com/solinntec/addon-facturas/pkg/logger"
)

// ErrColaLlena la cola alcanzó su capacidad; el productor debe rechazar o
// reintentar más tarde.
var ErrColaLlena = errors.New("la cola de procesamiento está llena")

// Cola cola de trabajo acotada con un único consumidor: las facturas se
// procesan de a una, en orden de llegada.
type Cola struct {
	trabajos chan Trabajo
	log      *logger.Logger
}

// NewCola crea la cola con la capacidad indicada.
func NewCola(capacidad int, log *logger.Logger) *Cola {
	if capacidad <= 0 {
		capacidad = 16
	}
	return &Cola{
		trabajos: make(chan Trabajo, capacidad),
		log:      log,
	}
}

// Encolar agrega un trabajo sin bloquear. Devuelve ErrColaLlena si no hay lugar.
func (c *Cola) Encolar(t Trabajo) error {
	select {
	case c.trabajos <- t:
		c.log.Info().Str("archivo", t.Archivo).Str("orden", t.OrdenNro).Int("pendientes", len(c.trabajos)).Msg("trabajo encolado")
		return nil
	default:
		return ErrColaLlena
	}
}

// EncolarLote agrega todos los trabajos o ninguno: si el lote no entra
// completo devuelve ErrColaLlena sin encolar nada. Pensado para un único
// productor; con varios, la verificación de lugar deja de ser atómica.
func (c *Cola) EncolarLote(ts []Trabajo) error {
	if len(ts) > cap(c.trabajos)-len(c.trabajos) {
		return ErrColaLlena
	}
	for _, t := range ts {
		c.trabajos <- t
	}
	c.log.Info().Int("trabajos", len(ts)).Int("pendientes", len(c.trabajos)).Msg("lote encolado")
	return nil
}

// Pendientes cantidad de trabajos en espera.
func (c *Cola) Pendientes() int {
	return len(c.trabajos)
}

// Consumir procesa trabajos de a uno hasta que el contexto se cancele.
// Pensado para correr en una única goroutine.
func (c *Cola) Consumir(ctx context.Context, procesar func(context.Context, Trabajo) Resultado) {
	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("consumidor de la cola detenido")
			return
		case t := <-c.trabajos:
			res := procesar(ctx, t)
			if res.Exito {
				c.log.Info().Str("archivo", t.Archivo).Msg("trabajo procesado con éxito")
			} else {
				c.log.Warn().Str("archivo", t.Archivo).Str("detalle", res.Detalle).Msg("trabajo procesado con error")
			}
		}
	}
}
