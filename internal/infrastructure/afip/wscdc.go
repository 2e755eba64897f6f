package afip

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/solinntec/addon-facturas/internal/application/ports"
	"github.com/solinntec/addon-facturas/internal/domain/entity"
	pkgafip "github.com/solinntec/addon-facturas/pkg/afip"
	"github.com/solinntec/addon-facturas/pkg/logger"
)

var _ ports.Validador = (*WSCDC)(nil)

// docTipoCUIT tipo de documento del receptor (80 = CUIT).
const docTipoCUIT = "80"

// WSCDC consulta la constatación de comprobantes de AFIP. Un comprobante
// observado o rechazado no es un error: el veredicto viaja en el resultado.
type WSCDC struct {
	url  string
	cuit string // CUIT del representado, receptor de los comprobantes
	wsaa *WSAA
	http *http.Client
	log  *logger.Logger
}

// NewWSCDC construye el validador.
func NewWSCDC(url, cuitRepresentado string, wsaa *WSAA, log *logger.Logger) *WSCDC {
	return &WSCDC{
		url:  url,
		cuit: pkgafip.SoloDigitos(cuitRepresentado),
		wsaa: wsaa,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log,
	}
}

type constatarEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	NsSoap  string   `xml:"xmlns:soapenv,attr"`
	NsCdc   string   `xml:"xmlns:cdc,attr"`
	Body    struct {
		Constatar struct {
			Auth struct {
				Token string `xml:"cdc:Token"`
				Sign  string `xml:"cdc:Sign"`
				Cuit  string `xml:"cdc:CuitRepresentada"`
			} `xml:"cdc:Auth"`
			CmpReq struct {
				CbteModo        string `xml:"cdc:CbteModo"`
				CuitEmisor      string `xml:"cdc:CuitEmisor"`
				PtoVta          string `xml:"cdc:PtoVta"`
				CbteTipo        string `xml:"cdc:CbteTipo"`
				CbteNro         string `xml:"cdc:CbteNro"`
				CbteFch         string `xml:"cdc:CbteFch"`
				ImpTotal        string `xml:"cdc:ImpTotal"`
				CodAutorizacion string `xml:"cdc:CodAutorizacion"`
				DocTipoReceptor string `xml:"cdc:DocTipoReceptor"`
				DocNroReceptor  string `xml:"cdc:DocNroReceptor"`
			} `xml:"cdc:CmpReq"`
		} `xml:"cdc:ComprobanteConstatar"`
	} `xml:"soapenv:Body"`
}

type constatarRespuesta struct {
	XMLName   xml.Name `xml:"Envelope"`
	Resultado string   `xml:"Body>ComprobanteConstatarResponse>ComprobanteConstatarResult>Resultado"`
	Obs       []struct {
		Code string `xml:"Code"`
		Msg  string `xml:"Msg"`
	} `xml:"Body>ComprobanteConstatarResponse>ComprobanteConstatarResult>Observaciones>Obs"`
	Errores []struct {
		Code string `xml:"Code"`
		Msg  string `xml:"Msg"`
	} `xml:"Body>ComprobanteConstatarResponse>ComprobanteConstatarResult>Errors>Err"`
	Fault struct {
		String string `xml:"faultstring"`
	} `xml:"Body>Fault"`
}

// ValidarComprobante arma el pedido ComprobanteConstatar a partir de la
// factura extraída. Una respuesta malformada se trata como comprobante no
// constatable, no como error.
func (w *WSCDC) ValidarComprobante(ctx context.Context, f *entity.Factura) (ports.ResultadoValidacion, error) {
	ticket, err := w.wsaa.ObtenerTicket(ctx)
	if err != nil {
		return ports.ResultadoValidacion{}, err
	}

	cbteTipo, err := pkgafip.TipoComprobante(f.TipoFactura)
	if err != nil {
		return ports.ResultadoValidacion{Valido: false, Observaciones: err.Error()}, nil
	}

	modo := f.CodigoAutorizacionTipo
	if modo == "" {
		modo = "CAE"
	}

	env := constatarEnvelope{
		NsSoap: "http://schemas.xmlsoap.org/soap/envelope/",
		NsCdc:  "http://servicios1.afip.gob.ar/wscdc/",
	}
	env.Body.Constatar.Auth.Token = ticket.Token
	env.Body.Constatar.Auth.Sign = ticket.Sign
	env.Body.Constatar.Auth.Cuit = w.cuit
	req := &env.Body.Constatar.CmpReq
	req.CbteModo = modo
	req.CuitEmisor = pkgafip.SoloDigitos(f.Emisor.CUIT)
	req.PtoVta = pkgafip.PuntoVenta(f.CodigoFactura)
	req.CbteTipo = cbteTipo
	req.CbteNro = pkgafip.NumeroComprobante(f.CodigoFactura)
	req.CbteFch = pkgafip.FechaCompacta(f.FechaEmision)
	req.ImpTotal = f.Total.StringFixed(2)
	req.CodAutorizacion = f.CodigoAutorizacion
	req.DocTipoReceptor = docTipoCUIT
	req.DocNroReceptor = w.cuit

	datos, err := w.llamar(ctx, env)
	if err != nil {
		return ports.ResultadoValidacion{}, err
	}

	var resp constatarRespuesta
	if err := xml.Unmarshal(datos, &resp); err != nil {
		w.log.Warn().Err(err).Msg("respuesta de WSCDC malformada")
		return ports.ResultadoValidacion{
			Valido:        false,
			Observaciones: "Error al parsear la respuesta de AFIP",
		}, nil
	}
	if resp.Fault.String != "" {
		return ports.ResultadoValidacion{}, fmt.Errorf("WSCDC devolvió fault: %s", resp.Fault.String)
	}

	// Observaciones o errores de negocio: comprobante no válido
	var motivos []string
	for _, o := range resp.Obs {
		motivos = append(motivos, fmt.Sprintf("[%s] %s", o.Code, o.Msg))
	}
	for _, e := range resp.Errores {
		motivos = append(motivos, fmt.Sprintf("[%s] %s", e.Code, e.Msg))
	}
	if len(motivos) > 0 {
		return ports.ResultadoValidacion{
			Valido:        false,
			Observaciones: strings.Join(motivos, "; "),
		}, nil
	}

	if resp.Resultado == "A" {
		return ports.ResultadoValidacion{Valido: true}, nil
	}
	return ports.ResultadoValidacion{
		Valido:        false,
		Observaciones: fmt.Sprintf("AFIP devolvió resultado %q", resp.Resultado),
	}, nil
}

func (w *WSCDC) llamar(ctx context.Context, env constatarEnvelope) ([]byte, error) {
	cuerpo, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("armando el sobre SOAP: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(cuerpo))
	if err != nil {
		return nil, fmt.Errorf("creando request a WSCDC: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://servicios1.afip.gob.ar/wscdc/ComprobanteConstatar")

	resp, err := w.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llamando a WSCDC: %w", err)
	}
	defer resp.Body.Close()

	datos, err := io.ReadAll(io.LimitReader(resp.Body, maxCuerpoSOAP))
	if err != nil {
		return nil, fmt.Errorf("leyendo respuesta de WSCDC: %w", err)
	}
	return datos, nil
}
