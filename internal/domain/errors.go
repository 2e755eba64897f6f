// Package domain define las entidades y errores del dominio de
// procesamiento de facturas de proveedor.
package domain

import "errors"

// Errores de dominio. Se comparan con errors.Is en la capa de aplicación.
var (
	// ErrFacturaDuplicada el Service Layer rechazó el alta por folio ya
	// registrado (-5002 folio sequence). Nunca se reintenta.
	ErrFacturaDuplicada = errors.New("la factura ya se encuentra registrada en SAP")

	// ErrProveedorNoRegistrado no existe socio de negocio con el CUIT del emisor.
	ErrProveedorNoRegistrado = errors.New("proveedor no registrado en SAP")

	// ErrOrdenNoEncontrada la orden de compra no existe en SAP.
	ErrOrdenNoEncontrada = errors.New("orden de compra no encontrada")

	// ErrOrdenSinLineas la orden existe pero no tiene líneas.
	ErrOrdenSinLineas = errors.New("la orden de compra no tiene líneas")

	// ErrItemsSinEmparejar al menos un ítem de la factura no pudo asociarse
	// a una línea de la orden.
	ErrItemsSinEmparejar = errors.New("hay ítems de la factura sin emparejar con la orden")

	// ErrTotalOrdenExcedido el acumulado facturado más esta factura supera
	// el total de la orden.
	ErrTotalOrdenExcedido = errors.New("el total acumulado facturado excede el total de la orden")

	// ErrFacturaInvalida AFIP/ARCA observó o rechazó el comprobante.
	ErrFacturaInvalida = errors.New("el comprobante no es válido según AFIP")
)
