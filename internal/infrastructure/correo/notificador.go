// Package correo conecta el pipeline con el buzón: la escucha IMAP que
// encola facturas entrantes y el notificador SMTP de resultados.
package correo

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/gomail.v2"

	"github.com/solinntec/addon-facturas/internal/application/ports"
	"github.com/solinntec/addon-facturas/pkg/logger"
)

var _ ports.Notificador = (*Notificador)(nil)

// ConfigSMTP salida de correo.
type ConfigSMTP struct {
	Host      string
	Port      int
	Usuario   string
	Password  string
	Remitente string
}

// Notificador envía los correos de resultado por SMTP.
type Notificador struct {
	cfg ConfigSMTP
	log *logger.Logger
}

// NewNotificador construye el notificador.
func NewNotificador(cfg ConfigSMTP, log *logger.Logger) *Notificador {
	return &Notificador{cfg: cfg, log: log}
}

// Notificar envía el correo de éxito o de fracaso, adjuntando el documento
// original si sigue existiendo.
func (n *Notificador) Notificar(_ context.Context, msg ports.Notificacion) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.Remitente)
	m.SetHeader("To", msg.Destinatario)
	m.SetHeader("Subject", asunto(msg))
	m.SetBody("text/html", cuerpoHTML(msg))

	if msg.Archivo != "" {
		if _, err := os.Stat(msg.Archivo); err == nil {
			m.Attach(msg.Archivo)
		}
	}

	d := gomail.NewDialer(n.cfg.Host, n.cfg.Port, n.cfg.Usuario, n.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("enviando la notificación a %s: %w", msg.Destinatario, err)
	}
	n.log.Info().Str("destinatario", msg.Destinatario).Bool("exito", msg.Exito).Msg("notificación enviada")
	return nil
}

func asunto(msg ports.Notificacion) string {
	if msg.Exito {
		return fmt.Sprintf("Factura procesada - Orden %s", msg.OrdenNro)
	}
	return fmt.Sprintf("Error al procesar la factura - Orden %s", msg.OrdenNro)
}

func cuerpoHTML(msg ports.Notificacion) string {
	if msg.Exito {
		return fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; max-width: 600px;">
  <h2 style="color: #2e7d32;">Factura procesada correctamente</h2>
  <p>La factura asociada a la orden de compra <b>%s</b> fue registrada en SAP.</p>
  <p>%s</p>
  <p style="color: #777; font-size: 12px;">Este es un mensaje automático, no responder.</p>
</div>`, msg.OrdenNro, msg.Detalle)
	}
	return fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; max-width: 600px;">
  <h2 style="color: #c62828;">No se pudo procesar la factura</h2>
  <p>La factura asociada a la orden de compra <b>%s</b> no pudo registrarse.</p>
  <p><b>Motivo:</b> %s</p>
  <p>Verifique el documento y vuelva a enviarlo, o cargue la factura manualmente.</p>
  <p style="color: #777; font-size: 12px;">Este es un mensaje automático, no responder.</p>
</div>`, msg.OrdenNro, msg.Detalle)
}
