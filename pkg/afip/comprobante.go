// Package afip reúne helpers puros sobre comprobantes argentinos:
// normalización de CUIT, separación del código punto de venta-número,
// tipos de comprobante por letra y conversión de tasas de impuesto.
package afip

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Tipos de comprobante WSCDC según la letra de la factura.
const (
	CbteTipoFacturaA = "001"
	CbteTipoFacturaB = "006"
	CbteTipoFacturaC = "011"
)

// SoloDigitos elimina todo carácter no numérico (puntos, guiones, espacios).
// Se usa para normalizar CUITs antes de enviarlos a AFIP o SAP.
func SoloDigitos(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SepararCodigo divide el código de factura "0003-00001234" en punto de
// venta y número. Si no hay guion, el punto de venta es "0001" y el número
// es el código completo (comportamiento del alta en SAP).
func SepararCodigo(codigo string) (puntoVenta, numero string) {
	partes := strings.SplitN(codigo, "-", 2)
	if len(partes) < 2 {
		return "0001", codigo
	}
	return partes[0], partes[1]
}

// PuntoVenta devuelve el punto de venta con ceros a la izquierda (4 dígitos),
// como lo exige el campo PtoVta de WSCDC.
func PuntoVenta(codigo string) string {
	pv, _ := SepararCodigo(codigo)
	return padIzquierda(pv, 4)
}

// NumeroComprobante devuelve el número de comprobante con ceros a la
// izquierda (8 dígitos), como lo exige el campo CbteNro de WSCDC.
func NumeroComprobante(codigo string) string {
	_, nro := SepararCodigo(codigo)
	return padIzquierda(nro, 8)
}

// TipoComprobante mapea la letra de la factura al código de tipo de
// comprobante de WSCDC. Letra desconocida devuelve error.
func TipoComprobante(letra string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(letra)) {
	case "A":
		return CbteTipoFacturaA, nil
	case "B":
		return CbteTipoFacturaB, nil
	case "C":
		return CbteTipoFacturaC, nil
	}
	return "", fmt.Errorf("tipo de factura desconocido: %q", letra)
}

// Letra devuelve el valor del campo Letter del Service Layer (fLetterA, etc.).
func Letra(letra string) (string, error) {
	l := strings.ToUpper(strings.TrimSpace(letra))
	switch l {
	case "A", "B", "C":
		return "fLetter" + l, nil
	}
	return "", fmt.Errorf("letra de factura desconocida: %q", letra)
}

// FechaCompacta convierte "2024-05-17" en "20240517" (formato CbteFch).
func FechaCompacta(fecha string) string {
	return strings.ReplaceAll(fecha, "-", "")
}

// ConvertirTasa normaliza la tasa de IVA a porcentaje entero: valores
// menores que 1 se interpretan como fracción (0.21 -> 21, redondeando);
// valores mayores o iguales a 1 ya vienen en porcentaje.
func ConvertirTasa(tasa decimal.Decimal) decimal.Decimal {
	if tasa.LessThan(decimal.NewFromInt(1)) {
		return tasa.Mul(decimal.NewFromInt(100)).Round(0)
	}
	return tasa
}

// CodigoImpuesto arma el TaxCode de SAP a partir de la tasa normalizada
// (21 -> "IVA_21", 10.5 -> "IVA_10.5").
func CodigoImpuesto(tasa decimal.Decimal) string {
	return "IVA_" + ConvertirTasa(tasa).String()
}

// PorcentajeBonificacion normaliza la bonificación de línea a porcentaje:
// fracciones se escalan por 100 (0.5 -> 50); porcentajes quedan igual.
func PorcentajeBonificacion(bonificacion decimal.Decimal) decimal.Decimal {
	if bonificacion.LessThan(decimal.NewFromInt(1)) {
		return bonificacion.Mul(decimal.NewFromInt(100))
	}
	return bonificacion
}

func padIzquierda(s string, n int) string {
	for len(s) < n {
		s = "0" + s
	}
	return s
}
