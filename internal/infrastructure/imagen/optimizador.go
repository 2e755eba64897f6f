// Package imagen prepara los adjuntos para la extracción: los PDF pasan
// directo y las imágenes se normalizan (escala, escala de grises, brillo,
// contraste, nitidez) y se recodifican en WebP.
package imagen

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registra el decodificador webp

	"github.com/solinntec/addon-facturas/internal/application/ports"
	"github.com/solinntec/addon-facturas/pkg/logger"
)

var _ ports.PreparadorArchivo = (*Optimizador)(nil)

const (
	ladoMaximo   = 2000
	calidadWebP  = 92
	umbralBrillo = 128 // luminancia media por encima: imagen clara
)

// Optimizador implementación del preparador de adjuntos.
type Optimizador struct {
	log *logger.Logger
}

// NewOptimizador construye el preparador.
func NewOptimizador(log *logger.Logger) *Optimizador {
	return &Optimizador{log: log}
}

// Preparar devuelve el archivo listo para el oráculo. Los PDF no se tocan;
// las imágenes se optimizan y el original no WebP se elimina tras el éxito.
func (o *Optimizador) Preparar(ctx context.Context, ruta string) (ports.ArchivoPreparado, error) {
	datos, err := os.ReadFile(ruta)
	if err != nil {
		return ports.ArchivoPreparado{}, fmt.Errorf("leyendo el adjunto %s: %w", ruta, err)
	}

	if esPDF(ruta, datos) {
		return ports.ArchivoPreparado{Ruta: ruta, MimeType: "application/pdf"}, nil
	}

	img, formato, err := image.Decode(bytes.NewReader(datos))
	if err != nil {
		return ports.ArchivoPreparado{}, fmt.Errorf("decodificando la imagen %s: %w", ruta, err)
	}

	optimizada := optimizar(img)

	// Se codifica en memoria: una falla no deja un webp a medias en disco
	// ni pisa el original cuando ya era webp
	var buf bytes.Buffer
	if err := webp.Encode(&buf, optimizada, &webp.Options{Quality: calidadWebP}); err != nil {
		return ports.ArchivoPreparado{}, fmt.Errorf("codificando %s a webp: %w", ruta, err)
	}

	destino := strings.TrimSuffix(ruta, filepath.Ext(ruta)) + ".webp"
	if err := os.WriteFile(destino, buf.Bytes(), 0o644); err != nil {
		return ports.ArchivoPreparado{}, fmt.Errorf("escribiendo %s: %w", destino, err)
	}

	// El original deja de hacer falta salvo que ya fuera el mismo archivo
	if destino != ruta {
		if err := os.Remove(ruta); err != nil {
			o.log.Warn().Err(err).Str("archivo", ruta).Msg("no se pudo borrar el original")
		}
	}

	o.log.Debug().Str("origen", formato).Str("archivo", destino).Msg("adjunto optimizado")
	return ports.ArchivoPreparado{Ruta: destino, MimeType: "image/webp"}, nil
}

// optimizar aplica la cadena de mejoras para la lectura del documento.
func optimizar(img image.Image) image.Image {
	ancho := img.Bounds().Dx()
	alto := img.Bounds().Dy()
	if ancho > ladoMaximo || alto > ladoMaximo {
		img = imaging.Fit(img, ladoMaximo, ladoMaximo, imaging.Lanczos)
	}

	gris := imaging.Grayscale(img)

	// Las imágenes oscuras reciben más refuerzo de brillo
	brillo := 40.0
	if luminanciaMedia(gris) > umbralBrillo {
		brillo = 20.0
	}
	gris = imaging.AdjustBrightness(gris, brillo)
	gris = imaging.AdjustContrast(gris, 30)
	return imaging.Sharpen(gris, 1.0)
}

// luminanciaMedia promedio de luminancia en [0, 255], muestreado.
func luminanciaMedia(img *image.NRGBA) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}

	// Muestrea como máximo ~10k píxeles
	paso := 1
	total := b.Dx() * b.Dy()
	for total/(paso*paso) > 10000 {
		paso++
	}

	var suma, cuenta float64
	for y := b.Min.Y; y < b.Max.Y; y += paso {
		for x := b.Min.X; x < b.Max.X; x += paso {
			i := img.PixOffset(x, y)
			// Ya está en escala de grises: R=G=B
			suma += float64(img.Pix[i])
			cuenta++
		}
	}
	return suma / cuenta
}

func esPDF(ruta string, datos []byte) bool {
	if strings.EqualFold(filepath.Ext(ruta), ".pdf") {
		return true
	}
	return bytes.HasPrefix(datos, []byte("%PDF"))
}
