package matching

import (
	"github.com/shopspring/decimal"

	"github.com/solinntec/addon-facturas/internal/domain/entity"
)

// toleranciaPrecio tolerancia inclusiva para el emparejamiento por precio.
var toleranciaPrecio = decimal.NewFromFloat(0.01)

// Resultado salida del emparejamiento de una factura contra una orden.
type Resultado struct {
	Emparejados  []entity.ItemEmparejado
	SinEmparejar []entity.Item
}

// Completo indica que todos los ítems de la factura quedaron emparejados.
func (r Resultado) Completo() bool {
	return len(r.SinEmparejar) == 0
}

// EmparejarItems asocia cada ítem de la factura con una línea de la orden.
// Cascada por ítem, gana el primer método que acierta:
//  1. código exacto (sensible a mayúsculas),
//  2. mejor similitud de descripción estrictamente mayor a 0.5,
//  3. precio unitario y total de línea dentro de la tolerancia.
func EmparejarItems(items []entity.Item, lineas []entity.LineaOrdenCompra) Resultado {
	var res Resultado
	for _, item := range items {
		if m, ok := emparejarUno(item, lineas); ok {
			res.Emparejados = append(res.Emparejados, m)
		} else {
			res.SinEmparejar = append(res.SinEmparejar, item)
		}
	}
	return res
}

func emparejarUno(item entity.Item, lineas []entity.LineaOrdenCompra) (entity.ItemEmparejado, bool) {
	// 1. Código exacto
	if codigo := item.Codigo.String(); codigo != "" {
		for _, l := range lineas {
			if l.ItemCode == codigo {
				return entity.ItemEmparejado{Item: item, ItemCode: l.ItemCode, Metodo: entity.MetodoCodigo}, true
			}
		}
	}

	// 2. Descripción: gana la primera línea con puntaje máximo
	if item.Descripcion != "" {
		mejor := -1
		mejorPuntaje := 0.0
		for i, l := range lineas {
			p := PuntajeSimilitud(item.Descripcion, l.ItemDescription)
			if p > mejorPuntaje {
				mejorPuntaje = p
				mejor = i
			}
		}
		if mejor >= 0 && mejorPuntaje > umbralPuntaje {
			return entity.ItemEmparejado{
				Item:     item,
				ItemCode: lineas[mejor].ItemCode,
				Metodo:   entity.MetodoDescripcion,
				Puntaje:  mejorPuntaje,
			}, true
		}
	}

	// 3. Precio: unitario y total dentro de la tolerancia (inclusive)
	for _, l := range lineas {
		difUnitario := l.UnitPrice.Sub(item.PrecioUnidad).Abs()
		difTotal := l.LineTotal.Sub(item.ImporteItem).Abs()
		if difUnitario.LessThanOrEqual(toleranciaPrecio) && difTotal.LessThanOrEqual(toleranciaPrecio) {
			return entity.ItemEmparejado{Item: item, ItemCode: l.ItemCode, Metodo: entity.MetodoPrecio}, true
		}
	}

	return entity.ItemEmparejado{}, false
}
