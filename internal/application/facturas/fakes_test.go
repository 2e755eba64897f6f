package facturas

import (
	"context"
	"errors"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/solinntec/addon-facturas/internal/application/ports"
	"github.com/solinntec/addon-facturas/internal/domain"
	"github.com/solinntec/addon-facturas/internal/domain/entity"
	"github.com/solinntec/addon-facturas/pkg/logger"
)

// Fakes de los puertos para los tests del orquestador y la guardia.

func loggerDePrueba() *logger.Logger {
	return logger.New(logger.Config{Env: "production", Level: "error"})
}

type sesionFake struct {
	orden        *entity.OrdenCompra
	errOrden     error
	cardCode     string
	errProveedor error

	facturas     []ports.FacturaRegistrada
	notasCredito []ports.NotaCredito

	altaRecibida *ports.AltaFactura
	docEntry     int
	errAlta      error

	llamadas []string
	cerrada  bool
}

func (s *sesionFake) OrdenCompra(_ context.Context, docNum string) (*entity.OrdenCompra, error) {
	s.llamadas = append(s.llamadas, "orden")
	if s.errOrden != nil {
		return nil, s.errOrden
	}
	if s.orden == nil {
		return nil, domain.ErrOrdenNoEncontrada
	}
	return s.orden, nil
}

func (s *sesionFake) ProveedorPorCUIT(_ context.Context, cuit string) (string, error) {
	s.llamadas = append(s.llamadas, "proveedor")
	if s.errProveedor != nil {
		return "", s.errProveedor
	}
	if s.cardCode == "" {
		return "", domain.ErrProveedorNoRegistrado
	}
	return s.cardCode, nil
}

func (s *sesionFake) FacturasPorProveedor(_ context.Context, _, _, _ string, _ decimal.Decimal, skip, top int) ([]ports.FacturaRegistrada, error) {
	s.llamadas = append(s.llamadas, "facturas")
	return pagina(s.facturas, skip, top), nil
}

func (s *sesionFake) NotasCreditoPorProveedor(_ context.Context, _ string, skip, top int) ([]ports.NotaCredito, error) {
	s.llamadas = append(s.llamadas, "notas")
	return pagina(s.notasCredito, skip, top), nil
}

func (s *sesionFake) CrearFacturaCompra(_ context.Context, alta ports.AltaFactura) (int, error) {
	s.llamadas = append(s.llamadas, "alta")
	s.altaRecibida = &alta
	if s.errAlta != nil {
		return 0, s.errAlta
	}
	return s.docEntry, nil
}

func (s *sesionFake) Cerrar(context.Context) error {
	s.cerrada = true
	return nil
}

func pagina[T any](todo []T, skip, top int) []T {
	if skip >= len(todo) {
		return nil
	}
	fin := skip + top
	if fin > len(todo) {
		fin = len(todo)
	}
	return todo[skip:fin]
}

type gatewayFake struct {
	sesion   *sesionFake
	errLogin error
}

func (g *gatewayFake) IniciarSesion(context.Context) (ports.SesionERP, error) {
	if g.errLogin != nil {
		return nil, g.errLogin
	}
	return g.sesion, nil
}

type preparadorFake struct {
	err error
}

func (p *preparadorFake) Preparar(_ context.Context, ruta string) (ports.ArchivoPreparado, error) {
	if p.err != nil {
		return ports.ArchivoPreparado{}, p.err
	}
	return ports.ArchivoPreparado{Ruta: ruta, MimeType: "image/webp"}, nil
}

type extractorFake struct {
	factura *entity.Factura
	err     error
}

func (e *extractorFake) ExtraerFactura(context.Context, ports.ArchivoPreparado, string) (*entity.Factura, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.factura, nil
}

type validadorFake struct {
	resultado ports.ResultadoValidacion
	err       error
	llamado   bool
}

func (v *validadorFake) ValidarComprobante(context.Context, *entity.Factura) (ports.ResultadoValidacion, error) {
	v.llamado = true
	if v.err != nil {
		return ports.ResultadoValidacion{}, v.err
	}
	return v.resultado, nil
}

type notificadorFake struct {
	enviadas []ports.Notificacion
	err      error
}

func (n *notificadorFake) Notificar(_ context.Context, msg ports.Notificacion) error {
	n.enviadas = append(n.enviadas, msg)
	return n.err
}

// facturaDePrueba arma una factura tipo A cuyo único ítem coincide por
// código con la orden de ordenDePrueba.
func facturaDePrueba(total float64) *entity.Factura {
	return &entity.Factura{
		CodigoFactura:          "0003-00001234",
		TipoFactura:            "A",
		FechaEmision:           "2024-05-17",
		CodigoAutorizacionTipo: "CAE",
		CodigoAutorizacion:     "74123456789012",
		Emisor: entity.Emisor{
			Nombre: "Proveedor SA",
			CUIT:   "30-71418016-5",
		},
		Items: []entity.Item{
			{
				Codigo:           "ART-001",
				Descripcion:      "Aceite lubricante 10W40",
				CantidadUnidades: decimal.NewFromInt(10),
				PrecioUnidad:     decimal.NewFromFloat(total / 10),
				ImporteItem:      decimal.NewFromFloat(total),
			},
		},
		Subtotal: decimal.NewFromFloat(total),
		Impuestos: map[string]entity.Impuesto{
			"IVA": {Tasa: decimal.NewFromFloat(0.21), Monto: decimal.NewFromFloat(total * 0.21)},
		},
		Total: decimal.NewFromFloat(total),
	}
}

func ordenDePrueba(total float64) *entity.OrdenCompra {
	return &entity.OrdenCompra{
		DocEntry: 99,
		DocNum:   4500,
		CardCode: "P00123",
		DocDate:  "2024-05-01",
		DocTotal: decimal.NewFromFloat(total),
		Lineas: []entity.LineaOrdenCompra{
			{
				LineNum:         0,
				ItemCode:        "ART-001",
				ItemDescription: "Aceite lubricante 10W40",
				Quantity:        decimal.NewFromInt(10),
				UnitPrice:       decimal.NewFromFloat(total / 10),
				LineTotal:       decimal.NewFromFloat(total),
			},
		},
	}
}

func facturaRegistrada(docEntry int, total float64, fecha, ordenNum string) ports.FacturaRegistrada {
	return ports.FacturaRegistrada{
		DocEntry: docEntry,
		DocDate:  fecha,
		DocTotal: decimal.NewFromFloat(total),
		Referencias: []ports.ReferenciaDocumento{
			{RefDocNum: ordenNum, RefObjType: "rot_PurchaseOrder"},
		},
	}
}

func servicioDePrueba(g *gatewayFake, e *extractorFake, v *validadorFake, n *notificadorFake) *Servicio {
	return NewServicio(g, &preparadorFake{}, nil, e, v, n, nil, loggerDePrueba())
}

var errFalla = errors.New("falla simulada")

func errDuplicada() error {
	return domain.ErrFacturaDuplicada
}

func ordenNum(o *entity.OrdenCompra) string { return strconv.Itoa(o.DocNum) }
