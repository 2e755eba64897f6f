// Package texto obtiene texto local del documento como apoyo para la
// extracción: la capa de texto de los PDF y, si hay credenciales, OCR de
// documentos con Cloud Vision para las imágenes. Todo es best-effort.
package texto

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/apiv1"
	"github.com/ledongthuc/pdf"
	"google.golang.org/api/option"

	"github.com/solinntec/addon-facturas/internal/application/ports"
	"github.com/solinntec/addon-facturas/pkg/logger"
)

var _ ports.ExtractorTexto = (*Extractor)(nil)

// maxTextoApoyo límite del texto que se adjunta al pedido del oráculo.
const maxTextoApoyo = 20000

// Extractor implementación del extractor de texto de apoyo.
type Extractor struct {
	vision *vision.ImageAnnotatorClient // nil cuando el OCR está deshabilitado
	log    *logger.Logger
}

// NewExtractor construye el extractor. Sin ruta de credenciales el OCR de
// imágenes queda deshabilitado y solo se lee la capa de texto de los PDF.
func NewExtractor(ctx context.Context, credencialesOCR string, log *logger.Logger) (*Extractor, error) {
	e := &Extractor{log: log}
	if credencialesOCR == "" {
		log.Info().Msg("OCR deshabilitado: sin credenciales de Cloud Vision")
		return e, nil
	}

	cliente, err := vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credencialesOCR))
	if err != nil {
		return nil, fmt.Errorf("creando el cliente de Cloud Vision: %w", err)
	}
	e.vision = cliente
	return e, nil
}

// Cerrar libera el cliente de Vision si existe.
func (e *Extractor) Cerrar() error {
	if e.vision == nil {
		return nil
	}
	return e.vision.Close()
}

// ExtraerTexto devuelve el texto identificado en el documento. Un documento
// sin texto utilizable devuelve cadena vacía sin error.
func (e *Extractor) ExtraerTexto(ctx context.Context, archivo ports.ArchivoPreparado) (string, error) {
	if archivo.MimeType == "application/pdf" {
		return e.textoPDF(archivo.Ruta)
	}
	if e.vision == nil {
		return "", nil
	}
	return e.ocrImagen(ctx, archivo.Ruta)
}

// textoPDF lee la capa de texto del PDF. Los PDF escaneados no la tienen y
// devuelven vacío.
func (e *Extractor) textoPDF(ruta string) (string, error) {
	f, lector, err := pdf.Open(ruta)
	if err != nil {
		return "", fmt.Errorf("abriendo el PDF %s: %w", ruta, err)
	}
	defer f.Close()

	plano, err := lector.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("leyendo la capa de texto de %s: %w", ruta, err)
	}
	datos, err := io.ReadAll(io.LimitReader(plano, maxTextoApoyo))
	if err != nil {
		return "", fmt.Errorf("leyendo el texto de %s: %w", ruta, err)
	}
	return strings.TrimSpace(string(datos)), nil
}

// ocrImagen corre el OCR de documentos de Cloud Vision sobre la imagen.
func (e *Extractor) ocrImagen(ctx context.Context, ruta string) (string, error) {
	f, err := os.Open(ruta)
	if err != nil {
		return "", fmt.Errorf("abriendo la imagen %s: %w", ruta, err)
	}
	defer f.Close()

	imagen, err := vision.NewImageFromReader(f)
	if err != nil {
		return "", fmt.Errorf("preparando la imagen para OCR: %w", err)
	}

	anotacion, err := e.vision.DetectDocumentText(ctx, imagen, nil)
	if err != nil {
		return "", fmt.Errorf("OCR de %s: %w", ruta, err)
	}
	if anotacion == nil {
		return "", nil
	}

	texto := strings.TrimSpace(anotacion.GetText())
	if len(texto) > maxTextoApoyo {
		texto = texto[:maxTextoApoyo]
	}
	return texto, nil
}
