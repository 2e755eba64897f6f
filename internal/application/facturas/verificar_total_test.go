package facturas

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solinntec/addon-facturas/internal/application/ports"
	"github.com/solinntec/addon-facturas/internal/domain"
)

func TestVerificarTotal_DentroDelLimite(t *testing.T) {
	// Orden de 1000 con 700 facturados: una factura de 250 entra
	orden := ordenDePrueba(1000)
	sesion := &sesionFake{
		facturas: []ports.FacturaRegistrada{
			facturaRegistrada(1, 700, "2024-05-10", ordenNum(orden)),
		},
	}

	err := verificarTotalAcumulado(context.Background(), sesion, orden, decimal.NewFromInt(250))
	assert.NoError(t, err)
}

func TestVerificarTotal_Excedido(t *testing.T) {
	// Orden de 1000 con 700 facturados: una factura de 400 no entra
	orden := ordenDePrueba(1000)
	sesion := &sesionFake{
		facturas: []ports.FacturaRegistrada{
			facturaRegistrada(1, 700, "2024-05-10", ordenNum(orden)),
		},
	}

	err := verificarTotalAcumulado(context.Background(), sesion, orden, decimal.NewFromInt(400))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTotalOrdenExcedido)
}

func TestVerificarTotal_NotaCreditoLiberaCupo(t *testing.T) {
	// 700 facturados menos una nota de crédito de 100: 400 vuelve a entrar
	orden := ordenDePrueba(1000)
	sesion := &sesionFake{
		facturas: []ports.FacturaRegistrada{
			facturaRegistrada(1, 700, "2024-05-10", ordenNum(orden)),
		},
		notasCredito: []ports.NotaCredito{
			{DocEntry: 50, DocTotal: decimal.NewFromInt(100), BaseEntries: []int{1}},
		},
	}

	err := verificarTotalAcumulado(context.Background(), sesion, orden, decimal.NewFromInt(400))
	assert.NoError(t, err)
}

func TestVerificarTotal_NotaCreditoDeOtraFacturaNoDescuenta(t *testing.T) {
	orden := ordenDePrueba(1000)
	sesion := &sesionFake{
		facturas: []ports.FacturaRegistrada{
			facturaRegistrada(1, 700, "2024-05-10", ordenNum(orden)),
		},
		notasCredito: []ports.NotaCredito{
			// Acredita la factura 999, que no referencia esta orden
			{DocEntry: 50, DocTotal: decimal.NewFromInt(100), BaseEntries: []int{999}},
		},
	}

	err := verificarTotalAcumulado(context.Background(), sesion, orden, decimal.NewFromInt(400))
	assert.ErrorIs(t, err, domain.ErrTotalOrdenExcedido)
}

func TestVerificarTotal_IgnoraFacturasDeOtrasOrdenes(t *testing.T) {
	orden := ordenDePrueba(1000)
	sesion := &sesionFake{
		facturas: []ports.FacturaRegistrada{
			facturaRegistrada(1, 700, "2024-05-10", "9999"), // otra orden
		},
	}

	err := verificarTotalAcumulado(context.Background(), sesion, orden, decimal.NewFromInt(400))
	assert.NoError(t, err)
}

func TestVerificarTotal_PaginaVariasVeces(t *testing.T) {
	// 25 facturas de 10 contra la orden: dos páginas (20 + 5), total 250
	orden := ordenDePrueba(1000)
	var registradas []ports.FacturaRegistrada
	for i := 0; i < 25; i++ {
		registradas = append(registradas, facturaRegistrada(i+1, 10, "2024-05-10", ordenNum(orden)))
	}
	sesion := &sesionFake{facturas: registradas}

	// 250 ya facturados + 800 nuevos > 1000
	err := verificarTotalAcumulado(context.Background(), sesion, orden, decimal.NewFromInt(800))
	assert.ErrorIs(t, err, domain.ErrTotalOrdenExcedido)

	// 250 + 700 <= 1000
	sesion = &sesionFake{facturas: registradas}
	err = verificarTotalAcumulado(context.Background(), sesion, orden, decimal.NewFromInt(700))
	assert.NoError(t, err)
}

func TestVerificarTotal_CortaEnFilasAnterioresALaOrden(t *testing.T) {
	// Una página completa cuya última fila es anterior a la orden: no se
	// piden más páginas
	orden := ordenDePrueba(1000)
	var registradas []ports.FacturaRegistrada
	for i := 0; i < 20; i++ {
		registradas = append(registradas, facturaRegistrada(i+1, 1, "2024-04-01", "9999"))
	}
	// Una segunda página que nunca debería consultarse
	registradas = append(registradas, facturaRegistrada(100, 5000, "2024-03-01", ordenNum(orden)))
	sesion := &sesionFake{facturas: registradas}

	err := verificarTotalAcumulado(context.Background(), sesion, orden, decimal.NewFromInt(900))
	assert.NoError(t, err)

	consultas := 0
	for _, l := range sesion.llamadas {
		if l == "facturas" {
			consultas++
		}
	}
	assert.Equal(t, 1, consultas, "el corte por fecha evita la segunda página")
}

func TestVerificarTotal_LimiteExacto(t *testing.T) {
	// Llegar exactamente al total de la orden es válido
	orden := ordenDePrueba(1000)
	sesion := &sesionFake{
		facturas: []ports.FacturaRegistrada{
			facturaRegistrada(1, 700, "2024-05-10", ordenNum(orden)),
		},
	}

	err := verificarTotalAcumulado(context.Background(), sesion, orden, decimal.NewFromInt(300))
	assert.NoError(t, err)
}
