package facturas

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solinntec/addon-facturas/internal/application/ports"
	"github.com/solinntec/addon-facturas/internal/domain"
	"github.com/solinntec/addon-facturas/internal/domain/entity"
)

// tamanoPagina cantidad de documentos por página al consultar el Service Layer.
const tamanoPagina = 20

// refTipoOrdenCompra tipo de objeto de las referencias a órdenes de compra.
const refTipoOrdenCompra = "rot_PurchaseOrder"

// verificarTotalAcumulado comprueba que el total ya facturado contra la
// orden, neto de notas de crédito, más la nueva factura no supere el total
// de la orden. Pagina facturas del proveedor dentro de la ventana de fechas
// de la orden y filtra por la referencia al DocNum; las notas de crédito se
// descuentan cuando alguna de sus líneas referencia una factura encontrada.
func verificarTotalAcumulado(ctx context.Context, sesion ports.SesionERP, orden *entity.OrdenCompra, nuevoTotal decimal.Decimal) error {
	docNum := strconv.Itoa(orden.DocNum)
	hoy := time.Now().Format("2006-01-02")

	fechaOrden, err := time.Parse("2006-01-02", orden.DocDate)
	if err != nil {
		return fmt.Errorf("fecha de la orden inválida %q: %w", orden.DocDate, err)
	}

	// Facturas del proveedor que referencian esta orden
	var totalFacturado decimal.Decimal
	docEntries := make(map[int]struct{})
	for skip := 0; ; skip += tamanoPagina {
		pagina, err := sesion.FacturasPorProveedor(ctx, orden.CardCode, orden.DocDate, hoy, orden.DocTotal, skip, tamanoPagina)
		if err != nil {
			return fmt.Errorf("consultando facturas del proveedor: %w", err)
		}
		for _, f := range pagina {
			if referenciaOrden(f, docNum) {
				totalFacturado = totalFacturado.Add(f.DocTotal)
				docEntries[f.DocEntry] = struct{}{}
			}
		}
		if len(pagina) < tamanoPagina {
			break
		}
		// Viene ordenado por fecha descendente: si la última fila es anterior
		// a la orden, las páginas siguientes también lo son
		ultima, err := time.Parse("2006-01-02", pagina[len(pagina)-1].DocDate)
		if err == nil && ultima.Before(fechaOrden) {
			break
		}
	}

	// Notas de crédito que acreditan alguna de esas facturas
	var totalAcreditado decimal.Decimal
	for skip := 0; ; skip += tamanoPagina {
		pagina, err := sesion.NotasCreditoPorProveedor(ctx, orden.CardCode, skip, tamanoPagina)
		if err != nil {
			return fmt.Errorf("consultando notas de crédito del proveedor: %w", err)
		}
		for _, nc := range pagina {
			if acreditaAlguna(nc, docEntries) {
				totalAcreditado = totalAcreditado.Add(nc.DocTotal)
			}
		}
		if len(pagina) < tamanoPagina {
			break
		}
	}

	neto := totalFacturado.Sub(totalAcreditado)
	if neto.Add(nuevoTotal).GreaterThan(orden.DocTotal) {
		return fmt.Errorf("%w: facturado neto %s + factura %s > orden %s",
			domain.ErrTotalOrdenExcedido, neto.StringFixed(2), nuevoTotal.StringFixed(2), orden.DocTotal.StringFixed(2))
	}
	return nil
}

func referenciaOrden(f ports.FacturaRegistrada, docNum string) bool {
	for _, r := range f.Referencias {
		if r.RefDocNum == docNum && r.RefObjType == refTipoOrdenCompra {
			return true
		}
	}
	return false
}

func acreditaAlguna(nc ports.NotaCredito, docEntries map[int]struct{}) bool {
	for _, base := range nc.BaseEntries {
		if _, ok := docEntries[base]; ok {
			return true
		}
	}
	return false
}
