// Package afip implementa los web services de AFIP/ARCA: la obtención del
// ticket de acceso (WSAA, firma CMS del TRA) y la constatación de
// comprobantes (WSCDC).
package afip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"go.mozilla.org/pkcs7"
	"golang.org/x/crypto/pkcs12"

	"github.com/solinntec/addon-facturas/pkg/logger"
)

const (
	// servicioWSCDC nombre del servicio a autorizar en el TRA.
	servicioWSCDC = "wscdc"

	intentosTicket = 5
	esperaTicket   = time.Second

	maxCuerpoSOAP = 1 << 20 // 1 MB
)

// Ticket credenciales de acceso emitidas por WSAA.
type Ticket struct {
	Token  string
	Sign   string
	Expira time.Time
}

// vigente indica si el ticket sigue siendo usable (con margen).
func (t Ticket) vigente() bool {
	return t.Token != "" && time.Now().Add(5*time.Minute).Before(t.Expira)
}

// WSAA cliente del servicio de autenticación. Cachea el ticket hasta su
// expiración: AFIP rechaza pedidos de ticket con uno aún vigente.
type WSAA struct {
	url          string
	certPath     string
	certPassword string
	http         *http.Client
	log          *logger.Logger
	espera       time.Duration
	firmar       func() (string, error) // firma CMS del TRA

	mu     sync.Mutex
	ticket Ticket
}

// NewWSAA construye el cliente de WSAA.
func NewWSAA(url, certPath, certPassword string, log *logger.Logger) *WSAA {
	w := &WSAA{
		url:          url,
		certPath:     certPath,
		certPassword: certPassword,
		http:         &http.Client{Timeout: 30 * time.Second},
		log:          log,
		espera:       esperaTicket,
	}
	w.firmar = w.firmarTRA
	return w
}

// ObtenerTicket devuelve un ticket vigente, pidiendo uno nuevo a WSAA si
// hace falta. Reintenta hasta 5 veces con espera fija de 1 segundo.
func (w *WSAA) ObtenerTicket(ctx context.Context) (Ticket, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ticket.vigente() {
		return w.ticket, nil
	}

	var ultimo error
	for intento := 1; intento <= intentosTicket; intento++ {
		ticket, err := w.pedirTicket(ctx)
		if err == nil {
			w.ticket = ticket
			w.log.Info().Time("expira", ticket.Expira).Msg("ticket de WSAA obtenido")
			return ticket, nil
		}
		ultimo = err
		w.log.Warn().Err(err).Int("intento", intento).Msg("fallo al pedir el ticket de WSAA")

		select {
		case <-ctx.Done():
			return Ticket{}, ctx.Err()
		case <-time.After(w.espera):
		}
	}
	return Ticket{}, fmt.Errorf("WSAA no entregó ticket tras %d intentos: %w", intentosTicket, ultimo)
}

func (w *WSAA) pedirTicket(ctx context.Context) (Ticket, error) {
	cms, err := w.firmar()
	if err != nil {
		return Ticket{}, err
	}

	respuesta, err := w.llamarLoginCms(ctx, cms)
	if err != nil {
		return Ticket{}, err
	}
	return parsearTicket(respuesta)
}

// armarTRA construye el loginTicketRequest con vigencia de 12 horas.
func armarTRA(ahora time.Time) []byte {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	tra := doc.CreateElement("loginTicketRequest")
	tra.CreateAttr("version", "1.0")

	header := tra.CreateElement("header")
	header.CreateElement("uniqueId").SetText(fmt.Sprintf("%d", uuid.New().ID()))
	header.CreateElement("generationTime").SetText(ahora.Add(-10 * time.Minute).Format(time.RFC3339))
	header.CreateElement("expirationTime").SetText(ahora.Add(12 * time.Hour).Format(time.RFC3339))

	tra.CreateElement("service").SetText(servicioWSCDC)

	datos, _ := doc.WriteToBytes()
	return datos
}

// firmarTRA arma el TRA y lo firma CMS/PKCS#7 con el certificado .p12.
func (w *WSAA) firmarTRA() (string, error) {
	p12, err := os.ReadFile(w.certPath)
	if err != nil {
		return "", fmt.Errorf("leyendo el certificado %s: %w", w.certPath, err)
	}
	clave, cert, err := pkcs12.Decode(p12, w.certPassword)
	if err != nil {
		return "", fmt.Errorf("abriendo el certificado .p12: %w", err)
	}

	firmado, err := pkcs7.NewSignedData(armarTRA(time.Now()))
	if err != nil {
		return "", fmt.Errorf("preparando la firma CMS: %w", err)
	}
	if err := firmado.AddSigner(cert, clave, pkcs7.SignerInfoConfig{}); err != nil {
		return "", fmt.Errorf("firmando el TRA: %w", err)
	}
	der, err := firmado.Finish()
	if err != nil {
		return "", fmt.Errorf("serializando la firma CMS: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

type loginCmsEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	NsSoap  string   `xml:"xmlns:soapenv,attr"`
	NsWsaa  string   `xml:"xmlns:wsaa,attr"`
	Body    struct {
		LoginCms struct {
			In0 string `xml:"wsaa:in0"`
		} `xml:"wsaa:loginCms"`
	} `xml:"soapenv:Body"`
}

type loginCmsRespuesta struct {
	XMLName xml.Name `xml:"Envelope"`
	Return  string   `xml:"Body>loginCmsResponse>loginCmsReturn"`
	Fault   struct {
		Code   string `xml:"faultcode"`
		String string `xml:"faultstring"`
	} `xml:"Body>Fault"`
}

func (w *WSAA) llamarLoginCms(ctx context.Context, cms string) (string, error) {
	env := loginCmsEnvelope{
		NsSoap: "http://schemas.xmlsoap.org/soap/envelope/",
		NsWsaa: "http://wsaa.view.sua.dvadac.desein.afip.gov",
	}
	env.Body.LoginCms.In0 = cms

	cuerpo, err := xml.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("armando el sobre SOAP: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(cuerpo))
	if err != nil {
		return "", fmt.Errorf("creando request a WSAA: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	resp, err := w.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llamando a WSAA: %w", err)
	}
	defer resp.Body.Close()

	datos, err := io.ReadAll(io.LimitReader(resp.Body, maxCuerpoSOAP))
	if err != nil {
		return "", fmt.Errorf("leyendo respuesta de WSAA: %w", err)
	}

	var parsed loginCmsRespuesta
	if err := xml.Unmarshal(datos, &parsed); err != nil {
		return "", fmt.Errorf("parseando respuesta de WSAA (HTTP %d): %w", resp.StatusCode, err)
	}
	if parsed.Fault.String != "" {
		return "", fmt.Errorf("WSAA devolvió fault %s: %s", parsed.Fault.Code, parsed.Fault.String)
	}
	if parsed.Return == "" {
		return "", fmt.Errorf("WSAA no devolvió loginCmsReturn (HTTP %d)", resp.StatusCode)
	}
	return parsed.Return, nil
}

// parsearTicket extrae token, sign y expiración del loginTicketResponse.
func parsearTicket(respuesta string) (Ticket, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(respuesta); err != nil {
		return Ticket{}, fmt.Errorf("parseando el loginTicketResponse: %w", err)
	}

	token := doc.FindElement("//credentials/token")
	sign := doc.FindElement("//credentials/sign")
	if token == nil || sign == nil {
		return Ticket{}, fmt.Errorf("el loginTicketResponse no trae credenciales")
	}

	ticket := Ticket{Token: token.Text(), Sign: sign.Text()}
	if exp := doc.FindElement("//header/expirationTime"); exp != nil {
		if cuando, err := time.Parse(time.RFC3339, exp.Text()); err == nil {
			ticket.Expira = cuando
		}
	}
	if ticket.Expira.IsZero() {
		ticket.Expira = time.Now().Add(10 * time.Hour)
	}
	return ticket, nil
}
