// Package ports define los puertos de salida de la capa de aplicación.
// Las implementaciones viven en internal/infrastructure.
package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/solinntec/addon-facturas/internal/domain/entity"
)

// ArchivoPreparado resultado de la preparación de un adjunto.
type ArchivoPreparado struct {
	Ruta     string // ruta del archivo listo para la extracción
	MimeType string // application/pdf o image/webp
}

// PreparadorArchivo optimiza el adjunto para la extracción (PDF pasa
// directo; imágenes se reescalan y convierten a WebP).
type PreparadorArchivo interface {
	Preparar(ctx context.Context, ruta string) (ArchivoPreparado, error)
}

// ExtractorTexto obtiene texto local del documento como apoyo para la
// extracción (capa de texto del PDF u OCR). Siempre best-effort.
type ExtractorTexto interface {
	ExtraerTexto(ctx context.Context, archivo ArchivoPreparado) (string, error)
}

// ExtractorFactura es el oráculo que convierte el documento en una Factura.
type ExtractorFactura interface {
	ExtraerFactura(ctx context.Context, archivo ArchivoPreparado, textoApoyo string) (*entity.Factura, error)
}

// ResultadoValidacion veredicto del validador regulatorio.
type ResultadoValidacion struct {
	Valido        bool
	Observaciones string // motivos de rechazo, vacío si es válido
}

// Validador consulta la validez del comprobante ante AFIP/ARCA.
// Un comprobante observado devuelve (valido=false, err=nil); el error se
// reserva para fallas de transporte o autenticación.
type Validador interface {
	ValidarComprobante(ctx context.Context, f *entity.Factura) (ResultadoValidacion, error)
}

// FacturaRegistrada cabecera de una factura de compra ya existente en SAP.
type FacturaRegistrada struct {
	DocEntry    int
	DocDate     string
	DocTotal    decimal.Decimal
	Referencias []ReferenciaDocumento
}

// ReferenciaDocumento referencia de una factura a su documento base.
type ReferenciaDocumento struct {
	RefDocNum  string
	RefObjType string
}

// NotaCredito cabecera de una nota de crédito con las líneas que referencian
// facturas base.
type NotaCredito struct {
	DocEntry    int
	DocTotal    decimal.Decimal
	BaseEntries []int // DocEntry de las facturas que la nota acredita
}

// AltaFactura payload para crear la factura de compra en SAP.
type AltaFactura struct {
	CardCode         string
	DocDate          string
	DocDueDate       string
	DocCurrency      string
	FederalTaxID     string
	CodigoAutTipo    string // CAI o CAE
	CodigoAut        string
	FechaCodigoAut   string
	PointOfIssueCode string
	FolioNumberFrom  string
	FolioNumberTo    string
	Letter           string
	OrdenDocEntry    int
	Lineas           []AltaLinea
	Comentarios      string
}

// AltaLinea línea del alta de factura.
type AltaLinea struct {
	LineNum         int
	ItemCode        string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	LineTotal       decimal.Decimal
	TaxCode         string
}

// SesionERP sesión autenticada contra el ERP. Una sesión por procesamiento,
// nunca compartida entre corridas.
type SesionERP interface {
	// OrdenCompra busca la orden por DocNum con sus líneas.
	OrdenCompra(ctx context.Context, docNum string) (*entity.OrdenCompra, error)
	// ProveedorPorCUIT resuelve el CardCode del socio de negocio por FederalTaxID.
	ProveedorPorCUIT(ctx context.Context, cuit string) (string, error)
	// FacturasPorProveedor pagina facturas de compra del proveedor dentro del
	// rango de fechas y hasta el total indicado, ordenadas por fecha descendente.
	FacturasPorProveedor(ctx context.Context, cardCode, desde, hasta string, totalMax decimal.Decimal, skip, top int) ([]FacturaRegistrada, error)
	// NotasCreditoPorProveedor pagina notas de crédito del proveedor.
	NotasCreditoPorProveedor(ctx context.Context, cardCode string, skip, top int) ([]NotaCredito, error)
	// CrearFacturaCompra da de alta la factura. Folio duplicado devuelve
	// domain.ErrFacturaDuplicada.
	CrearFacturaCompra(ctx context.Context, alta AltaFactura) (docEntry int, err error)
	// Cerrar hace logout de la sesión.
	Cerrar(ctx context.Context) error
}

// GatewayERP abre sesiones contra el ERP.
type GatewayERP interface {
	IniciarSesion(ctx context.Context) (SesionERP, error)
}

// Notificacion contenido de un correo de resultado.
type Notificacion struct {
	Destinatario string
	OrdenNro     string
	Archivo      string // ruta del documento original para adjuntar
	Exito        bool
	Detalle      string // mensaje de error cuando Exito es false
}

// Notificador envía el correo de éxito o fracaso. Best-effort: sus errores
// se registran pero nunca cortan el flujo.
type Notificador interface {
	Notificar(ctx context.Context, n Notificacion) error
}

// RegistroProcesamiento fila de la bitácora de corridas.
type RegistroProcesamiento struct {
	Archivo   string
	OrdenNro  string
	Remitente string
	Exito     bool
	Detalle   string
	Total     *decimal.Decimal
}

// Bitacora persiste el resultado de cada corrida. Opcional y best-effort.
type Bitacora interface {
	Registrar(ctx context.Context, r RegistroProcesamiento) error
}
