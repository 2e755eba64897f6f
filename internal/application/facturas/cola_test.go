package facturas

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCola_EncolarYConsumirEnOrden(t *testing.T) {
	cola := NewCola(4, loggerDePrueba())

	require.NoError(t, cola.Encolar(Trabajo{Archivo: "a"}))
	require.NoError(t, cola.Encolar(Trabajo{Archivo: "b"}))
	require.NoError(t, cola.Encolar(Trabajo{Archivo: "c"}))
	assert.Equal(t, 3, cola.Pendientes())

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var procesados []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		cola.Consumir(ctx, func(_ context.Context, tr Trabajo) Resultado {
			mu.Lock()
			procesados = append(procesados, tr.Archivo)
			if len(procesados) == 3 {
				cancel()
			}
			mu.Unlock()
			return Resultado{Exito: true}
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("el consumidor no terminó a tiempo")
	}
	assert.Equal(t, []string{"a", "b", "c"}, procesados, "se procesa en orden de llegada")
}

func TestCola_LlenaRechazaSinBloquear(t *testing.T) {
	cola := NewCola(1, loggerDePrueba())

	require.NoError(t, cola.Encolar(Trabajo{Archivo: "a"}))
	err := cola.Encolar(Trabajo{Archivo: "b"})
	assert.ErrorIs(t, err, ErrColaLlena)
}

func TestCola_EncolarLoteEsTodoONada(t *testing.T) {
	cola := NewCola(3, loggerDePrueba())

	require.NoError(t, cola.EncolarLote([]Trabajo{{Archivo: "a"}, {Archivo: "b"}}))
	assert.Equal(t, 2, cola.Pendientes())

	// El segundo lote no entra completo: no se encola ninguno de sus trabajos
	err := cola.EncolarLote([]Trabajo{{Archivo: "c"}, {Archivo: "d"}})
	assert.ErrorIs(t, err, ErrColaLlena)
	assert.Equal(t, 2, cola.Pendientes(), "el lote rechazado no deja trabajos a medias")

	// Un lote que justo llena la capacidad sí entra
	require.NoError(t, cola.EncolarLote([]Trabajo{{Archivo: "c"}}))
	assert.Equal(t, 3, cola.Pendientes())
}
