package sap

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/solinntec/addon-facturas/internal/application/ports"
	"github.com/solinntec/addon-facturas/internal/domain"
	"github.com/solinntec/addon-facturas/internal/domain/entity"
)

var (
	_ ports.GatewayERP = (*Cliente)(nil)
	_ ports.SesionERP  = (*Sesion)(nil)
)

// IniciarSesion abre una sesión autenticada contra el Service Layer.
func (c *Cliente) IniciarSesion(ctx context.Context) (ports.SesionERP, error) {
	id, err := c.login(ctx)
	if err != nil {
		return nil, err
	}
	c.log.Debug().Msg("sesión del Service Layer iniciada")
	return &Sesion{cliente: c, id: id}, nil
}

// Sesion sesión autenticada del Service Layer. No es segura para uso
// concurrente: una sesión por corrida.
type Sesion struct {
	cliente *Cliente
	id      string
}

// Cerrar hace logout de la sesión.
func (s *Sesion) Cerrar(ctx context.Context) error {
	return s.cliente.hacer(ctx, http.MethodPost, s.id, "/Logout", nil, nil)
}

type listaOData[T any] struct {
	Value []T `json:"value"`
}

type ordenCompraDTO struct {
	DocEntry      int     `json:"DocEntry"`
	DocNum        int     `json:"DocNum"`
	CardCode      string  `json:"CardCode"`
	DocDate       string  `json:"DocDate"`
	DocTotal      float64 `json:"DocTotal"`
	DocumentLines []struct {
		LineNum         int     `json:"LineNum"`
		ItemCode        string  `json:"ItemCode"`
		ItemDescription string  `json:"ItemDescription"`
		Quantity        float64 `json:"Quantity"`
		UnitPrice       float64 `json:"UnitPrice"`
		LineTotal       float64 `json:"LineTotal"`
	} `json:"DocumentLines"`
}

// OrdenCompra busca la orden por DocNum con sus líneas.
func (s *Sesion) OrdenCompra(ctx context.Context, docNum string) (*entity.OrdenCompra, error) {
	ruta := "/PurchaseOrders?" + consulta(url.Values{
		"$filter": {fmt.Sprintf("DocNum eq %s", docNum)},
		"$select": {"DocEntry,DocNum,CardCode,DocDate,DocTotal,DocumentLines"},
	})
	var lista listaOData[ordenCompraDTO]
	if err := s.cliente.hacer(ctx, http.MethodGet, s.id, ruta, nil, &lista); err != nil {
		return nil, fmt.Errorf("consultando la orden %s: %w", docNum, err)
	}
	if len(lista.Value) == 0 {
		return nil, fmt.Errorf("%w: DocNum %s", domain.ErrOrdenNoEncontrada, docNum)
	}

	dto := lista.Value[0]
	orden := &entity.OrdenCompra{
		DocEntry: dto.DocEntry,
		DocNum:   dto.DocNum,
		CardCode: dto.CardCode,
		DocDate:  soloFecha(dto.DocDate),
		DocTotal: decimal.NewFromFloat(dto.DocTotal),
	}
	for _, l := range dto.DocumentLines {
		orden.Lineas = append(orden.Lineas, entity.LineaOrdenCompra{
			LineNum:         l.LineNum,
			ItemCode:        l.ItemCode,
			ItemDescription: l.ItemDescription,
			Quantity:        decimal.NewFromFloat(l.Quantity),
			UnitPrice:       decimal.NewFromFloat(l.UnitPrice),
			LineTotal:       decimal.NewFromFloat(l.LineTotal),
		})
	}
	return orden, nil
}

// ProveedorPorCUIT resuelve el CardCode del socio de negocio por FederalTaxID.
func (s *Sesion) ProveedorPorCUIT(ctx context.Context, cuit string) (string, error) {
	ruta := "/BusinessPartners?" + consulta(url.Values{
		"$filter": {fmt.Sprintf("FederalTaxID eq '%s'", cuit)},
		"$select": {"CardCode"},
	})
	var lista listaOData[struct {
		CardCode string `json:"CardCode"`
	}]
	if err := s.cliente.hacer(ctx, http.MethodGet, s.id, ruta, nil, &lista); err != nil {
		return "", fmt.Errorf("buscando proveedor por CUIT %s: %w", cuit, err)
	}
	if len(lista.Value) == 0 {
		return "", fmt.Errorf("%w: CUIT %s", domain.ErrProveedorNoRegistrado, cuit)
	}
	return lista.Value[0].CardCode, nil
}

type facturaRegistradaDTO struct {
	DocEntry           int     `json:"DocEntry"`
	DocDate            string  `json:"DocDate"`
	DocTotal           float64 `json:"DocTotal"`
	DocumentReferences []struct {
		RefDocNum  string `json:"RefDocNum"`
		RefObjType string `json:"RefObjType"`
	} `json:"DocumentReferences"`
}

// FacturasPorProveedor pagina facturas de compra del proveedor dentro del
// rango de fechas y hasta el total indicado, más recientes primero.
func (s *Sesion) FacturasPorProveedor(ctx context.Context, cardCode, desde, hasta string, totalMax decimal.Decimal, skip, top int) ([]ports.FacturaRegistrada, error) {
	filtro := fmt.Sprintf("CardCode eq '%s' and DocDate ge '%s' and DocDate le '%s' and DocTotal le %s",
		cardCode, desde, hasta, totalMax.String())
	ruta := "/PurchaseInvoices?" + consulta(url.Values{
		"$filter":  {filtro},
		"$select":  {"DocEntry,DocDate,DocTotal,DocumentReferences"},
		"$orderby": {"DocDate desc"},
		"$skip":    {strconv.Itoa(skip)},
		"$top":     {strconv.Itoa(top)},
	})
	var lista listaOData[facturaRegistradaDTO]
	if err := s.cliente.hacer(ctx, http.MethodGet, s.id, ruta, nil, &lista); err != nil {
		return nil, fmt.Errorf("paginando facturas de %s: %w", cardCode, err)
	}

	facturas := make([]ports.FacturaRegistrada, 0, len(lista.Value))
	for _, dto := range lista.Value {
		f := ports.FacturaRegistrada{
			DocEntry: dto.DocEntry,
			DocDate:  soloFecha(dto.DocDate),
			DocTotal: decimal.NewFromFloat(dto.DocTotal),
		}
		for _, r := range dto.DocumentReferences {
			f.Referencias = append(f.Referencias, ports.ReferenciaDocumento{
				RefDocNum:  r.RefDocNum,
				RefObjType: r.RefObjType,
			})
		}
		facturas = append(facturas, f)
	}
	return facturas, nil
}

type notaCreditoDTO struct {
	DocEntry      int     `json:"DocEntry"`
	DocTotal      float64 `json:"DocTotal"`
	DocumentLines []struct {
		BaseEntry *int `json:"BaseEntry"`
	} `json:"DocumentLines"`
}

// NotasCreditoPorProveedor pagina notas de crédito del proveedor.
func (s *Sesion) NotasCreditoPorProveedor(ctx context.Context, cardCode string, skip, top int) ([]ports.NotaCredito, error) {
	ruta := "/PurchaseCreditNotes?" + consulta(url.Values{
		"$filter": {fmt.Sprintf("CardCode eq '%s'", cardCode)},
		"$select": {"DocEntry,DocTotal,DocumentLines"},
		"$skip":   {strconv.Itoa(skip)},
		"$top":    {strconv.Itoa(top)},
	})
	var lista listaOData[notaCreditoDTO]
	if err := s.cliente.hacer(ctx, http.MethodGet, s.id, ruta, nil, &lista); err != nil {
		return nil, fmt.Errorf("paginando notas de crédito de %s: %w", cardCode, err)
	}

	notas := make([]ports.NotaCredito, 0, len(lista.Value))
	for _, dto := range lista.Value {
		nc := ports.NotaCredito{
			DocEntry: dto.DocEntry,
			DocTotal: decimal.NewFromFloat(dto.DocTotal),
		}
		for _, l := range dto.DocumentLines {
			if l.BaseEntry != nil {
				nc.BaseEntries = append(nc.BaseEntries, *l.BaseEntry)
			}
		}
		notas = append(notas, nc)
	}
	return notas, nil
}

type altaFacturaDTO struct {
	CardCode         string          `json:"CardCode"`
	DocDate          string          `json:"DocDate"`
	DocDueDate       string          `json:"DocDueDate"`
	DocType          string          `json:"DocType"`
	DocCurrency      string          `json:"DocCurrency"`
	FederalTaxID     string          `json:"FederalTaxID"`
	UCAI             string          `json:"U_B1SYS_CAI,omitempty"`
	UCAIDate         string          `json:"U_B1SYS_CAI_DATE,omitempty"`
	PointOfIssueCode string          `json:"PointOfIssueCode"`
	FolioNumberFrom  int             `json:"FolioNumberFrom"`
	FolioNumberTo    int             `json:"FolioNumberTo"`
	Letter           string          `json:"Letter,omitempty"`
	Comments         string          `json:"Comments,omitempty"`
	DocumentLines    []altaLineaDTO  `json:"DocumentLines"`
	References       []referenciaDTO `json:"DocumentReferences"`
}

type altaLineaDTO struct {
	LineNum         int     `json:"LineNum"`
	ItemCode        string  `json:"ItemCode"`
	Quantity        float64 `json:"Quantity"`
	UnitPrice       float64 `json:"UnitPrice"`
	DiscountPercent float64 `json:"DiscountPercent"`
	LineTotal       float64 `json:"LineTotal"`
	TaxCode         string  `json:"TaxCode"`
}

type referenciaDTO struct {
	RefDocEntr int    `json:"RefDocEntr"`
	RefObjType string `json:"RefObjType"`
}

// CrearFacturaCompra da de alta la factura de compra. El folio duplicado
// se devuelve como domain.ErrFacturaDuplicada.
func (s *Sesion) CrearFacturaCompra(ctx context.Context, alta ports.AltaFactura) (int, error) {
	folioDesde, err := strconv.Atoi(alta.FolioNumberFrom)
	if err != nil {
		return 0, fmt.Errorf("folio no numérico %q: %w", alta.FolioNumberFrom, err)
	}
	folioHasta := folioDesde
	if alta.FolioNumberTo != "" {
		if fin, err := strconv.Atoi(alta.FolioNumberTo); err == nil {
			folioHasta = fin
		}
	}

	dto := altaFacturaDTO{
		CardCode:         alta.CardCode,
		DocDate:          alta.DocDate,
		DocDueDate:       alta.DocDueDate,
		DocType:          "dDocument_Items",
		DocCurrency:      alta.DocCurrency,
		FederalTaxID:     alta.FederalTaxID,
		UCAI:             alta.CodigoAut,
		UCAIDate:         alta.FechaCodigoAut,
		PointOfIssueCode: alta.PointOfIssueCode,
		FolioNumberFrom:  folioDesde,
		FolioNumberTo:    folioHasta,
		Letter:           alta.Letter,
		Comments:         alta.Comentarios,
		References: []referenciaDTO{
			{RefDocEntr: alta.OrdenDocEntry, RefObjType: "rot_PurchaseOrder"},
		},
	}
	for _, l := range alta.Lineas {
		dto.DocumentLines = append(dto.DocumentLines, altaLineaDTO{
			LineNum:         l.LineNum,
			ItemCode:        l.ItemCode,
			Quantity:        l.Quantity.InexactFloat64(),
			UnitPrice:       l.UnitPrice.InexactFloat64(),
			DiscountPercent: l.DiscountPercent.InexactFloat64(),
			LineTotal:       l.LineTotal.InexactFloat64(),
			TaxCode:         l.TaxCode,
		})
	}

	var creada struct {
		DocEntry int `json:"DocEntry"`
	}
	if err := s.cliente.hacer(ctx, http.MethodPost, s.id, "/PurchaseInvoices", dto, &creada); err != nil {
		return 0, err
	}
	return creada.DocEntry, nil
}

func consulta(v url.Values) string {
	return v.Encode()
}

// soloFecha recorta la parte de hora que el Service Layer agrega a veces
// (2024-05-10T00:00:00Z -> 2024-05-10).
func soloFecha(s string) string {
	if i := strings.IndexByte(s, 'T'); i > 0 {
		return s[:i]
	}
	return s
}
