package correo

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/solinntec/addon-facturas/pkg/logger"
)

// ConfigIMAP buzón de entrada.
type ConfigIMAP struct {
	Host        string
	Port        int
	Usuario     string
	Password    string
	AdjuntosDir string
	Intervalo   time.Duration
}

// EncolarFn entrega al pipeline todos los adjuntos de un correo, o ninguno.
// El error indica que la cola está llena y el mensaje debe quedar sin marcar
// para reintentarlo completo.
type EncolarFn func(archivos []string, ordenNro, remitente string) error

// Escucha sondea el buzón IMAP en busca de correos sin leer, guarda los
// adjuntos y los encola. El número de orden viaja en el asunto del correo.
type Escucha struct {
	cfg     ConfigIMAP
	encolar EncolarFn
	log     *logger.Logger
}

// reOrden primer número del asunto, ese es el número de orden de compra.
var reOrden = regexp.MustCompile(`\d+`)

// NewEscucha construye la escucha.
func NewEscucha(cfg ConfigIMAP, encolar EncolarFn, log *logger.Logger) *Escucha {
	if cfg.Intervalo <= 0 {
		cfg.Intervalo = time.Minute
	}
	return &Escucha{cfg: cfg, encolar: encolar, log: log}
}

// Ejecutar corre el ciclo de sondeo hasta que el contexto se cancele. Las
// fallas de conexión esperan con backoff acotado en lugar de reintentar en
// caliente.
func (e *Escucha) Ejecutar(ctx context.Context) {
	const esperaMaxima = 5 * time.Minute
	espera := e.cfg.Intervalo

	for {
		if err := e.revisar(ctx); err != nil {
			e.log.Error().Err(err).Dur("reintento", espera).Msg("fallo al revisar el buzón")
			espera *= 2
			if espera > esperaMaxima {
				espera = esperaMaxima
			}
		} else {
			espera = e.cfg.Intervalo
		}

		select {
		case <-ctx.Done():
			e.log.Info().Msg("escucha de correo detenida")
			return
		case <-time.After(espera):
		}
	}
}

// revisar abre una conexión, procesa los mensajes sin leer y la cierra.
func (e *Escucha) revisar(ctx context.Context) error {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port), nil)
	if err != nil {
		return fmt.Errorf("conectando a IMAP: %w", err)
	}
	defer c.Logout()

	if err := c.Login(e.cfg.Usuario, e.cfg.Password); err != nil {
		return fmt.Errorf("login IMAP: %w", err)
	}
	if _, err := c.Select("INBOX", false); err != nil {
		return fmt.Errorf("seleccionando INBOX: %w", err)
	}

	criterio := imap.NewSearchCriteria()
	criterio.WithoutFlags = []string{imap.SeenFlag}
	ids, err := c.Search(criterio)
	if err != nil {
		return fmt.Errorf("buscando correos sin leer: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	e.log.Info().Int("mensajes", len(ids)).Msg("correos nuevos en el buzón")

	seccion := &imap.BodySectionName{}
	conjunto := new(imap.SeqSet)
	conjunto.AddNum(ids...)

	mensajes := make(chan *imap.Message, len(ids))
	errFetch := make(chan error, 1)
	go func() {
		errFetch <- c.Fetch(conjunto, []imap.FetchItem{seccion.FetchItem(), imap.FetchEnvelope}, mensajes)
	}()

	procesados := new(imap.SeqSet)
	for msg := range mensajes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if e.procesarMensaje(msg, seccion) {
			procesados.AddNum(msg.SeqNum)
		}
	}
	if err := <-errFetch; err != nil {
		return fmt.Errorf("descargando correos: %w", err)
	}

	// Solo los mensajes entregados a la cola se marcan como leídos
	if !procesados.Empty() {
		marca := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := c.Store(procesados, marca, []interface{}{imap.SeenFlag}, nil); err != nil {
			return fmt.Errorf("marcando correos como leídos: %w", err)
		}
	}
	return nil
}

// procesarMensaje guarda los adjuntos del correo y los encola. Devuelve
// true cuando el mensaje quedó completamente entregado.
func (e *Escucha) procesarMensaje(msg *imap.Message, seccion *imap.BodySectionName) bool {
	log := e.log.With().Uint32("seqnum", msg.SeqNum).Logger()

	if msg.Envelope == nil {
		log.Warn().Msg("correo sin sobre, se ignora")
		return true
	}
	asunto := msg.Envelope.Subject

	ordenNro := reOrden.FindString(asunto)
	if ordenNro == "" {
		log.Warn().Str("asunto", asunto).Msg("el asunto no trae número de orden, se ignora")
		return true
	}

	remitente := ""
	if len(msg.Envelope.From) > 0 {
		remitente = msg.Envelope.From[0].Address()
	}

	cuerpo := msg.GetBody(seccion)
	if cuerpo == nil {
		log.Warn().Msg("correo sin cuerpo, se ignora")
		return true
	}
	lector, err := mail.CreateReader(cuerpo)
	if err != nil {
		log.Error().Err(err).Msg("no se pudo leer el MIME del correo")
		return true
	}

	// Primero se guardan todos los adjuntos; la entrega a la cola es todo
	// o nada para no duplicar trabajos cuando el correo se vuelva a leer
	var rutas []string
	for {
		parte, err := lector.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Error().Err(err).Msg("error recorriendo las partes del correo")
			break
		}

		encabezado, ok := parte.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		nombre, _ := encabezado.Filename()
		if nombre == "" {
			continue
		}

		ruta, err := e.guardarAdjunto(nombre, parte.Body)
		if err != nil {
			log.Error().Err(err).Str("adjunto", nombre).Msg("no se pudo guardar el adjunto")
			continue
		}
		rutas = append(rutas, ruta)
	}

	if len(rutas) == 0 {
		log.Info().Str("orden", ordenNro).Msg("correo sin adjuntos utilizables")
		return true
	}

	if err := e.encolar(rutas, ordenNro, remitente); err != nil {
		// Cola llena: se descartan los guardados y el correo queda sin
		// marcar, el próximo sondeo lo reintenta completo
		log.Warn().Err(err).Int("adjuntos", len(rutas)).Msg("no se pudo encolar el correo")
		for _, r := range rutas {
			if err := os.Remove(r); err != nil {
				log.Warn().Err(err).Str("archivo", r).Msg("no se pudo borrar el adjunto descartado")
			}
		}
		return false
	}

	log.Info().Str("orden", ordenNro).Int("adjuntos", len(rutas)).Msg("correo procesado")
	return true
}

// guardarAdjunto escribe el adjunto bajo un nombre único en el directorio
// configurado.
func (e *Escucha) guardarAdjunto(nombre string, cuerpo io.Reader) (string, error) {
	if err := os.MkdirAll(e.cfg.AdjuntosDir, 0o755); err != nil {
		return "", fmt.Errorf("creando el directorio de adjuntos: %w", err)
	}

	ruta := filepath.Join(e.cfg.AdjuntosDir, uuid.NewString()+filepath.Ext(nombre))
	destino, err := os.Create(ruta)
	if err != nil {
		return "", fmt.Errorf("creando %s: %w", ruta, err)
	}
	defer destino.Close()

	if _, err := io.Copy(destino, cuerpo); err != nil {
		os.Remove(ruta)
		return "", fmt.Errorf("escribiendo %s: %w", ruta, err)
	}
	return ruta, nil
}
