package imagen

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xwebp "golang.org/x/image/webp"

	"github.com/solinntec/addon-facturas/pkg/logger"
)

func optimizadorDePrueba() *Optimizador {
	return NewOptimizador(logger.New(logger.Config{Env: "production", Level: "error"}))
}

func guardarPNG(t *testing.T, dir string, img image.Image) string {
	t.Helper()
	ruta := filepath.Join(dir, "factura.png")
	f, err := os.Create(ruta)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return ruta
}

func imagenUniforme(ancho, alto int, gris uint8) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, ancho, alto))
	for y := 0; y < alto; y++ {
		for x := 0; x < ancho; x++ {
			img.Set(x, y, color.NRGBA{R: gris, G: gris, B: gris, A: 255})
		}
	}
	return img
}

func TestPreparar_PDFPasaDirecto(t *testing.T) {
	dir := t.TempDir()
	ruta := filepath.Join(dir, "factura.pdf")
	require.NoError(t, os.WriteFile(ruta, []byte("%PDF-1.4 contenido"), 0o644))

	res, err := optimizadorDePrueba().Preparar(context.Background(), ruta)
	require.NoError(t, err)
	assert.Equal(t, ruta, res.Ruta, "el PDF no se transforma")
	assert.Equal(t, "application/pdf", res.MimeType)
	_, err = os.Stat(ruta)
	assert.NoError(t, err, "el PDF original se conserva")
}

func TestPreparar_ImagenSeConvierteAWebPYBorraElOriginal(t *testing.T) {
	dir := t.TempDir()
	ruta := guardarPNG(t, dir, imagenUniforme(100, 60, 200))

	res, err := optimizadorDePrueba().Preparar(context.Background(), ruta)
	require.NoError(t, err)
	assert.Equal(t, "image/webp", res.MimeType)
	assert.Equal(t, filepath.Join(dir, "factura.webp"), res.Ruta)

	// El resultado es WebP decodificable
	f, err := os.Open(res.Ruta)
	require.NoError(t, err)
	defer f.Close()
	decodificada, err := xwebp.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 100, decodificada.Bounds().Dx())

	_, err = os.Stat(ruta)
	assert.True(t, os.IsNotExist(err), "el original no WebP se elimina")
}

func TestPreparar_ImagenGrandeSeReduceSinDeformar(t *testing.T) {
	dir := t.TempDir()
	ruta := guardarPNG(t, dir, imagenUniforme(4000, 2000, 128))

	res, err := optimizadorDePrueba().Preparar(context.Background(), ruta)
	require.NoError(t, err)

	f, err := os.Open(res.Ruta)
	require.NoError(t, err)
	defer f.Close()
	img, err := xwebp.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 2000, img.Bounds().Dx(), "el lado mayor queda en el máximo")
	assert.Equal(t, 1000, img.Bounds().Dy(), "se mantiene la proporción")
}

func TestPreparar_ImagenChicaNoSeAgranda(t *testing.T) {
	dir := t.TempDir()
	ruta := guardarPNG(t, dir, imagenUniforme(80, 50, 128))

	res, err := optimizadorDePrueba().Preparar(context.Background(), ruta)
	require.NoError(t, err)

	f, err := os.Open(res.Ruta)
	require.NoError(t, err)
	defer f.Close()
	img, err := xwebp.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 80, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestPreparar_ArchivoIlegibleEsFatal(t *testing.T) {
	dir := t.TempDir()
	ruta := filepath.Join(dir, "roto.png")
	require.NoError(t, os.WriteFile(ruta, []byte("no es una imagen"), 0o644))

	_, err := optimizadorDePrueba().Preparar(context.Background(), ruta)
	assert.Error(t, err)

	// Una corrida fallida no deja salida parcial ni toca el original
	_, err = os.Stat(filepath.Join(dir, "roto.webp"))
	assert.True(t, os.IsNotExist(err), "no debe quedar un webp a medias")
	_, err = os.Stat(ruta)
	assert.NoError(t, err, "el original se conserva para adjuntarlo a la notificación")
}

func TestPreparar_WebPSeReoptimizaEnElMismoArchivo(t *testing.T) {
	dir := t.TempDir()
	ruta := filepath.Join(dir, "factura.webp")

	var buf bytes.Buffer
	require.NoError(t, webp.Encode(&buf, imagenUniforme(120, 80, 150), &webp.Options{Quality: 90}))
	require.NoError(t, os.WriteFile(ruta, buf.Bytes(), 0o644))

	res, err := optimizadorDePrueba().Preparar(context.Background(), ruta)
	require.NoError(t, err)
	assert.Equal(t, ruta, res.Ruta, "el destino coincide con el origen")

	f, err := os.Open(res.Ruta)
	require.NoError(t, err)
	defer f.Close()
	img, err := xwebp.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 120, img.Bounds().Dx(), "el archivo sigue siendo un webp válido")
}

func TestLuminanciaMedia(t *testing.T) {
	clara := imaging.Clone(imagenUniforme(50, 50, 220))
	oscura := imaging.Clone(imagenUniforme(50, 50, 30))

	assert.Greater(t, luminanciaMedia(clara), float64(umbralBrillo))
	assert.Less(t, luminanciaMedia(oscura), float64(umbralBrillo))
}
