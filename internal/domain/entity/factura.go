package entity

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// CadenaFlexible acepta en el JSON tanto string como número: el oráculo de
// extracción a veces devuelve códigos o teléfonos como número.
type CadenaFlexible string

// UnmarshalJSON implementa json.Unmarshaler.
func (c *CadenaFlexible) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*c = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = CadenaFlexible(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("valor no es string ni número: %s", data)
	}
	*c = CadenaFlexible(n.String())
	return nil
}

func (c CadenaFlexible) String() string { return string(c) }

// Factura representa los datos extraídos de una factura de proveedor.
// Los campos que el documento puede no traer son punteros; los montos son
// decimal. Las fechas se conservan en la forma aaaa-mm-dd que produce la
// extracción.
type Factura struct {
	CodigoFactura           string              `json:"codigoFactura"`
	TipoFactura             string              `json:"tipoFactura"` // letra A, B o C
	FechaEmision            string              `json:"fechaEmision"`
	FechaVencimiento        *string             `json:"fechaVencimiento"`
	CodigoAutorizacionTipo  string              `json:"codigoAutorizacionTipo"` // CAI o CAE
	CodigoAutorizacion      string              `json:"codigoAutorizacion"`
	FechaCodigoAutorizacion string              `json:"fechaCodigoAutorizacion"`
	TipoCompra              string              `json:"tipoCompra"` // Service o Items
	Emisor                  Emisor              `json:"emisor"`
	Items                   []Item              `json:"items"`
	Subtotal                decimal.Decimal     `json:"subtotal"`
	Impuestos               map[string]Impuesto `json:"impuestos"`
	Total                   decimal.Decimal     `json:"total"`
	TotalTrasVencimiento    *decimal.Decimal    `json:"totalTrasVencimiento"`
	Divisa                  *string             `json:"divisa"`
}

// Emisor datos del proveedor que emitió la factura.
type Emisor struct {
	Nombre    string         `json:"nombre"`
	Direccion *string        `json:"direccion"`
	Telefono  CadenaFlexible `json:"telefono"`
	Email     *string        `json:"email"`
	CUIT      string         `json:"CUIT"`
}

// Item línea de la factura.
type Item struct {
	Codigo           CadenaFlexible   `json:"codigo"`
	Descripcion      string           `json:"descripcion"`
	CantidadUnidades decimal.Decimal  `json:"cantidadUnidades"`
	PrecioUnidad     decimal.Decimal  `json:"precioUnidad"`
	ImporteItem      decimal.Decimal  `json:"importeItem"`
	Bonificacion     *decimal.Decimal `json:"bonificacion"`
}

// Impuesto tasa y monto de un impuesto de la factura (ej. IVA).
type Impuesto struct {
	Tasa  decimal.Decimal `json:"tasa"`
	Monto decimal.Decimal `json:"monto"`
}

// IVA devuelve el impuesto IVA si la extracción lo identificó.
func (f *Factura) IVA() (Impuesto, bool) {
	imp, ok := f.Impuestos["IVA"]
	return imp, ok
}

// DivisaONominal devuelve la divisa extraída o ARS por defecto.
func (f *Factura) DivisaONominal() string {
	if f.Divisa != nil && *f.Divisa != "" {
		return *f.Divisa
	}
	return "ARS"
}

// VencimientoOEmision devuelve la fecha de vencimiento o, si falta, la de emisión.
func (f *Factura) VencimientoOEmision() string {
	if f.FechaVencimiento != nil && *f.FechaVencimiento != "" {
		return *f.FechaVencimiento
	}
	return f.FechaEmision
}
