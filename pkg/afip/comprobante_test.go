package afip

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoloDigitos(t *testing.T) {
	assert.Equal(t, "30714180165", SoloDigitos("30-71418016-5"))
	assert.Equal(t, "20123456789", SoloDigitos("20.12345678.9"))
	assert.Equal(t, "123", SoloDigitos(" 1 2 3 "))
	assert.Equal(t, "", SoloDigitos("sin dígitos"))
}

func TestSepararCodigo(t *testing.T) {
	pv, nro := SepararCodigo("0003-00001234")
	assert.Equal(t, "0003", pv)
	assert.Equal(t, "00001234", nro)

	// Sin guion: punto de venta por defecto y el código completo como número
	pv, nro = SepararCodigo("00001234")
	assert.Equal(t, "0001", pv)
	assert.Equal(t, "00001234", nro)

	// Solo el primer guion separa
	pv, nro = SepararCodigo("3-12-9")
	assert.Equal(t, "3", pv)
	assert.Equal(t, "12-9", nro)
}

func TestPuntoVentaYNumero_Relleno(t *testing.T) {
	assert.Equal(t, "0003", PuntoVenta("3-1234"))
	assert.Equal(t, "00001234", NumeroComprobante("3-1234"))

	// Ya rellenos quedan igual
	assert.Equal(t, "0005", PuntoVenta("0005-00000042"))
	assert.Equal(t, "00000042", NumeroComprobante("0005-00000042"))
}

func TestTipoComprobante(t *testing.T) {
	casos := []struct {
		letra  string
		codigo string
	}{
		{"A", "001"},
		{"B", "006"},
		{"C", "011"},
		{"a", "001"},
		{" b ", "006"},
	}
	for _, c := range casos {
		got, err := TipoComprobante(c.letra)
		require.NoError(t, err, "letra %q", c.letra)
		assert.Equal(t, c.codigo, got)
	}

	_, err := TipoComprobante("M")
	assert.Error(t, err, "letra no soportada debe fallar")
}

func TestLetra(t *testing.T) {
	got, err := Letra("A")
	require.NoError(t, err)
	assert.Equal(t, "fLetterA", got)

	got, err = Letra("c")
	require.NoError(t, err)
	assert.Equal(t, "fLetterC", got)

	_, err = Letra("X")
	assert.Error(t, err)
}

func TestFechaCompacta(t *testing.T) {
	assert.Equal(t, "20240517", FechaCompacta("2024-05-17"))
	assert.Equal(t, "20240517", FechaCompacta("20240517"))
}

func TestConvertirTasa(t *testing.T) {
	// Fracción -> porcentaje redondeado
	assert.True(t, decimal.NewFromInt(21).Equal(ConvertirTasa(decimal.NewFromFloat(0.21))))
	assert.True(t, decimal.NewFromInt(11).Equal(ConvertirTasa(decimal.NewFromFloat(0.105))))
	// Porcentaje queda igual
	assert.True(t, decimal.NewFromInt(21).Equal(ConvertirTasa(decimal.NewFromInt(21))))
	assert.True(t, decimal.NewFromFloat(10.5).Equal(ConvertirTasa(decimal.NewFromFloat(10.5))))
}

func TestCodigoImpuesto(t *testing.T) {
	assert.Equal(t, "IVA_21", CodigoImpuesto(decimal.NewFromFloat(0.21)))
	assert.Equal(t, "IVA_21", CodigoImpuesto(decimal.NewFromInt(21)))
	// La alícuota reducida del 10.5 % no se redondea
	assert.Equal(t, "IVA_10.5", CodigoImpuesto(decimal.NewFromFloat(10.5)))
	assert.Equal(t, "IVA_0", CodigoImpuesto(decimal.Zero))
}

func TestPorcentajeBonificacion(t *testing.T) {
	// Fracción 0.5 -> 50 %
	assert.True(t, decimal.NewFromInt(50).Equal(PorcentajeBonificacion(decimal.NewFromFloat(0.5))))
	// Ya en porcentaje queda igual
	assert.True(t, decimal.NewFromInt(15).Equal(PorcentajeBonificacion(decimal.NewFromInt(15))))
	// Cero queda en cero
	assert.True(t, decimal.Zero.Equal(PorcentajeBonificacion(decimal.Zero)))
}
