package entity

import "github.com/shopspring/decimal"

// OrdenCompra orden de compra leída de SAP (solo lectura en este flujo).
type OrdenCompra struct {
	DocEntry int
	DocNum   int
	CardCode string
	DocDate  string // aaaa-mm-dd
	DocTotal decimal.Decimal
	Lineas   []LineaOrdenCompra
}

// LineaOrdenCompra línea de la orden de compra.
type LineaOrdenCompra struct {
	LineNum         int
	ItemCode        string
	ItemDescription string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	LineTotal       decimal.Decimal
}

// Métodos por los que un ítem de factura quedó emparejado con la orden.
const (
	MetodoCodigo      = "codigo"
	MetodoDescripcion = "descripcion"
	MetodoPrecio      = "precio"
)

// ItemEmparejado ítem de factura con el ItemCode de la orden resuelto.
// Puntaje solo aplica al emparejamiento por descripción.
type ItemEmparejado struct {
	Item     Item
	ItemCode string
	Metodo   string
	Puntaje  float64
}
