package correo

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solinntec/addon-facturas/pkg/logger"
)

func loggerDePrueba() *logger.Logger {
	return logger.New(logger.Config{Env: "production", Level: "error"})
}

// mensajeDePrueba arma un correo MIME con dos adjuntos PDF.
func mensajeDePrueba(asunto string, seccion *imap.BodySectionName) *imap.Message {
	cuerpo := strings.ReplaceAll(`From: proveedor@example.com
To: addon@example.com
Subject: `+asunto+`
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="frontera"

--frontera
Content-Type: application/pdf
Content-Disposition: attachment; filename="f1.pdf"

%PDF-1.4 uno
--frontera
Content-Type: application/pdf
Content-Disposition: attachment; filename="f2.pdf"

%PDF-1.4 dos
--frontera--
`, "\n", "\r\n")

	return &imap.Message{
		SeqNum: 1,
		Envelope: &imap.Envelope{
			Subject: asunto,
			From:    []*imap.Address{{MailboxName: "proveedor", HostName: "example.com"}},
		},
		Body: map[*imap.BodySectionName]imap.Literal{
			seccion: bytes.NewBufferString(cuerpo),
		},
	}
}

func TestProcesarMensaje_EntregaTodosLosAdjuntosJuntos(t *testing.T) {
	dir := t.TempDir()
	seccion := &imap.BodySectionName{}

	var recibidos []string
	var orden, remitente string
	llamadas := 0
	e := NewEscucha(ConfigIMAP{AdjuntosDir: dir}, func(archivos []string, ordenNro, rem string) error {
		llamadas++
		recibidos = archivos
		orden = ordenNro
		remitente = rem
		return nil
	}, loggerDePrueba())

	procesado := e.procesarMensaje(mensajeDePrueba("Factura orden 4500", seccion), seccion)
	assert.True(t, procesado, "el correo entregado se marca como leído")
	assert.Equal(t, 1, llamadas, "una sola entrega por correo")
	require.Len(t, recibidos, 2)
	assert.Equal(t, "4500", orden)
	assert.Equal(t, "proveedor@example.com", remitente)
	for _, ruta := range recibidos {
		_, err := os.Stat(ruta)
		assert.NoError(t, err, "el adjunto entregado queda en disco")
	}
}

func TestProcesarMensaje_ColaLlenaNoDejaAdjuntosNiEntregaParcial(t *testing.T) {
	dir := t.TempDir()
	seccion := &imap.BodySectionName{}

	llamadas := 0
	e := NewEscucha(ConfigIMAP{AdjuntosDir: dir}, func([]string, string, string) error {
		llamadas++
		return errors.New("la cola de procesamiento está llena")
	}, loggerDePrueba())

	procesado := e.procesarMensaje(mensajeDePrueba("Factura orden 4500", seccion), seccion)
	assert.False(t, procesado, "el correo rechazado queda sin marcar para reintentarlo")
	assert.Equal(t, 1, llamadas, "ningún adjunto se encola por separado")

	// El próximo sondeo vuelve a guardar desde cero: no quedan archivos
	entradas, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entradas, "los adjuntos descartados se borran")
}

func TestProcesarMensaje_SinNumeroDeOrdenSeIgnora(t *testing.T) {
	dir := t.TempDir()
	seccion := &imap.BodySectionName{}

	llamadas := 0
	e := NewEscucha(ConfigIMAP{AdjuntosDir: dir}, func([]string, string, string) error {
		llamadas++
		return nil
	}, loggerDePrueba())

	procesado := e.procesarMensaje(mensajeDePrueba("Factura sin referencia", seccion), seccion)
	assert.True(t, procesado, "el correo sin orden se marca para no reprocesarlo")
	assert.Equal(t, 0, llamadas)
}
