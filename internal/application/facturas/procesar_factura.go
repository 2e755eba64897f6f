// Package facturas contiene la capa de aplicación del pipeline: el
// orquestador de procesamiento, la verificación de total acumulado y la
// cola de trabajo.
package facturas

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/solinntec/addon-facturas/internal/application/ports"
	"github.com/solinntec/addon-facturas/internal/domain"
	"github.com/solinntec/addon-facturas/internal/domain/entity"
	"github.com/solinntec/addon-facturas/internal/domain/matching"
	"github.com/solinntec/addon-facturas/pkg/afip"
	"github.com/solinntec/addon-facturas/pkg/logger"
)

// Trabajo una factura pendiente de procesar: el archivo en disco, el número
// de orden asociado y el remitente a notificar.
type Trabajo struct {
	Archivo   string
	OrdenNro  string
	Remitente string
}

// Resultado salida pública del procesamiento. Nunca escapa un error ni un
// panic: el fracaso se expresa con Exito=false y el detalle.
type Resultado struct {
	Exito   bool
	Factura *entity.Factura
	Detalle string // mensaje de error cuando Exito es false
}

// Servicio orquesta el procesamiento completo de una factura.
type Servicio struct {
	erp         ports.GatewayERP
	preparador  ports.PreparadorArchivo
	textos      ports.ExtractorTexto // opcional, nil deshabilita el texto de apoyo
	extractor   ports.ExtractorFactura
	validador   ports.Validador
	notificador ports.Notificador
	bitacora    ports.Bitacora // opcional
	log         *logger.Logger
}

// NewServicio construye el orquestador. textos y bitacora pueden ser nil.
func NewServicio(
	erp ports.GatewayERP,
	preparador ports.PreparadorArchivo,
	textos ports.ExtractorTexto,
	extractor ports.ExtractorFactura,
	validador ports.Validador,
	notificador ports.Notificador,
	bitacora ports.Bitacora,
	log *logger.Logger,
) *Servicio {
	return &Servicio{
		erp:         erp,
		preparador:  preparador,
		textos:      textos,
		extractor:   extractor,
		validador:   validador,
		notificador: notificador,
		bitacora:    bitacora,
		log:         log,
	}
}

// Procesar ejecuta las etapas en orden estricto y corta en el primer error.
// Siempre termina en una notificación (de éxito o de fracaso) y en el
// registro de bitácora; ambos son best-effort.
func (s *Servicio) Procesar(ctx context.Context, t Trabajo) (res Resultado) {
	log := s.log.With().Str("archivo", t.Archivo).Str("orden", t.OrdenNro).Logger()
	log.Info().Msg("procesamiento recibido")

	defer func() {
		if r := recover(); r != nil {
			res = Resultado{Exito: false, Detalle: fmt.Sprintf("error interno: %v", r)}
			log.Error().Interface("panic", r).Msg("pánico durante el procesamiento")
			s.notificarFracaso(ctx, t, res.Detalle)
			s.registrar(ctx, t, res, nil)
		}
	}()

	fallar := func(etapa string, err error) Resultado {
		log.Error().Err(err).Str("etapa", etapa).Msg("procesamiento fallido")
		res := Resultado{Exito: false, Detalle: err.Error()}
		s.notificarFracaso(ctx, t, res.Detalle)
		s.registrar(ctx, t, res, nil)
		return res
	}

	// Sesión contra el ERP, una por corrida
	sesion, err := s.erp.IniciarSesion(ctx)
	if err != nil {
		return fallar("sesion-erp", fmt.Errorf("iniciando sesión en SAP: %w", err))
	}
	defer func() {
		if err := sesion.Cerrar(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("no se pudo cerrar la sesión de SAP")
		}
	}()

	// Orden de compra
	orden, err := sesion.OrdenCompra(ctx, t.OrdenNro)
	if err != nil {
		return fallar("orden-obtenida", err)
	}
	if len(orden.Lineas) == 0 {
		return fallar("orden-obtenida", fmt.Errorf("%w: orden %s", domain.ErrOrdenSinLineas, t.OrdenNro))
	}
	log.Info().Int("docEntry", orden.DocEntry).Int("lineas", len(orden.Lineas)).Msg("orden de compra obtenida")

	// Preparación del adjunto
	archivo, err := s.preparador.Preparar(ctx, t.Archivo)
	if err != nil {
		return fallar("archivo-preparado", fmt.Errorf("preparando el adjunto: %w", err))
	}

	// Texto de apoyo, best-effort
	var textoApoyo string
	if s.textos != nil {
		textoApoyo, err = s.textos.ExtraerTexto(ctx, archivo)
		if err != nil {
			log.Warn().Err(err).Msg("no se pudo extraer texto de apoyo, se continúa sin él")
			textoApoyo = ""
		}
	}

	// Extracción con el oráculo
	factura, err := s.extractor.ExtraerFactura(ctx, archivo, textoApoyo)
	if err != nil {
		return fallar("extraida", fmt.Errorf("extrayendo la factura: %w", err))
	}
	log.Info().Str("codigo", factura.CodigoFactura).Str("cuit", factura.Emisor.CUIT).Msg("factura extraída")

	// Validación regulatoria
	veredicto, err := s.validador.ValidarComprobante(ctx, factura)
	if err != nil {
		return fallar("validada-afip", fmt.Errorf("consultando AFIP: %w", err))
	}
	if !veredicto.Valido {
		return fallar("validada-afip", fmt.Errorf("%w: %s", domain.ErrFacturaInvalida, veredicto.Observaciones))
	}

	// Proveedor
	cardCode, err := sesion.ProveedorPorCUIT(ctx, afip.SoloDigitos(factura.Emisor.CUIT))
	if err != nil {
		return fallar("proveedor-resuelto", err)
	}

	// Emparejamiento de ítems
	emparejados := matching.EmparejarItems(factura.Items, orden.Lineas)
	if !emparejados.Completo() {
		descripciones := make([]string, 0, len(emparejados.SinEmparejar))
		for _, it := range emparejados.SinEmparejar {
			descripciones = append(descripciones, it.Descripcion)
		}
		return fallar("items-emparejados", fmt.Errorf("%w: %v", domain.ErrItemsSinEmparejar, descripciones))
	}
	// Aviso no bloqueante cuando el total de la orden no coincide con la factura
	if !orden.DocTotal.Equal(factura.Total) {
		log.Warn().Str("totalOrden", orden.DocTotal.StringFixed(2)).
			Str("totalFactura", factura.Total.StringFixed(2)).
			Msg("el total de la orden no coincide con el de la factura")
	}

	// Guardia de total acumulado
	if err := verificarTotalAcumulado(ctx, sesion, orden, factura.Total); err != nil {
		return fallar("total-verificado", err)
	}

	// Alta en SAP
	alta := s.armarAlta(factura, orden, cardCode, emparejados.Emparejados)
	docEntry, err := sesion.CrearFacturaCompra(ctx, alta)
	if err != nil {
		if errors.Is(err, domain.ErrFacturaDuplicada) {
			return fallar("registrada", err)
		}
		return fallar("registrada", fmt.Errorf("creando la factura de compra: %w", err))
	}
	log.Info().Int("docEntry", docEntry).Msg("factura registrada en SAP")

	res = Resultado{Exito: true, Factura: factura}
	s.notificarExito(ctx, t, factura)
	s.registrar(ctx, t, res, factura)
	return res
}

// armarAlta traduce la factura extraída y los ítems emparejados al payload
// del Service Layer.
func (s *Servicio) armarAlta(f *entity.Factura, orden *entity.OrdenCompra, cardCode string, items []entity.ItemEmparejado) ports.AltaFactura {
	puntoVenta, folio := afip.SepararCodigo(f.CodigoFactura)
	letra, err := afip.Letra(f.TipoFactura)
	if err != nil {
		// Letra ilegible: se deja vacía y SAP decide
		letra = ""
	}

	var tasa decimal.Decimal
	if iva, ok := f.IVA(); ok {
		tasa = iva.Tasa
	}
	taxCode := afip.CodigoImpuesto(tasa)

	lineas := make([]ports.AltaLinea, 0, len(items))
	for i, m := range items {
		var descuento decimal.Decimal
		if m.Item.Bonificacion != nil {
			descuento = afip.PorcentajeBonificacion(*m.Item.Bonificacion)
		}
		lineas = append(lineas, ports.AltaLinea{
			LineNum:         i,
			ItemCode:        m.ItemCode,
			Quantity:        m.Item.CantidadUnidades,
			UnitPrice:       m.Item.PrecioUnidad,
			DiscountPercent: descuento,
			LineTotal:       m.Item.ImporteItem,
			TaxCode:         taxCode,
		})
	}

	return ports.AltaFactura{
		CardCode:         cardCode,
		DocDate:          f.FechaEmision,
		DocDueDate:       f.VencimientoOEmision(),
		DocCurrency:      f.DivisaONominal(),
		FederalTaxID:     afip.SoloDigitos(f.Emisor.CUIT),
		CodigoAutTipo:    f.CodigoAutorizacionTipo,
		CodigoAut:        f.CodigoAutorizacion,
		FechaCodigoAut:   f.FechaCodigoAutorizacion,
		PointOfIssueCode: puntoVenta,
		FolioNumberFrom:  folio,
		FolioNumberTo:    folio,
		Letter:           letra,
		OrdenDocEntry:    orden.DocEntry,
		Lineas:           lineas,
		Comentarios:      fmt.Sprintf("Factura %s procesada automáticamente contra la orden %d", f.CodigoFactura, orden.DocNum),
	}
}

func (s *Servicio) notificarExito(ctx context.Context, t Trabajo, f *entity.Factura) {
	if t.Remitente == "" {
		return
	}
	err := s.notificador.Notificar(ctx, ports.Notificacion{
		Destinatario: t.Remitente,
		OrdenNro:     t.OrdenNro,
		Archivo:      t.Archivo,
		Exito:        true,
		Detalle:      fmt.Sprintf("Factura %s registrada correctamente", f.CodigoFactura),
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("no se pudo enviar la notificación de éxito")
	}
}

func (s *Servicio) notificarFracaso(ctx context.Context, t Trabajo, detalle string) {
	if t.Remitente == "" {
		return
	}
	err := s.notificador.Notificar(ctx, ports.Notificacion{
		Destinatario: t.Remitente,
		OrdenNro:     t.OrdenNro,
		Archivo:      t.Archivo,
		Exito:        false,
		Detalle:      detalle,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("no se pudo enviar la notificación de fracaso")
	}
}

func (s *Servicio) registrar(ctx context.Context, t Trabajo, res Resultado, f *entity.Factura) {
	if s.bitacora == nil {
		return
	}
	reg := ports.RegistroProcesamiento{
		Archivo:   t.Archivo,
		OrdenNro:  t.OrdenNro,
		Remitente: t.Remitente,
		Exito:     res.Exito,
		Detalle:   res.Detalle,
	}
	if f != nil {
		total := f.Total
		reg.Total = &total
	}
	if err := s.bitacora.Registrar(ctx, reg); err != nil {
		s.log.Warn().Err(err).Msg("no se pudo registrar la corrida en la bitácora")
	}
}
