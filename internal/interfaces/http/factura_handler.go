// Package http expone el endpoint de carga manual de facturas y el estado
// del servicio sobre Fiber.
package http

import (
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/solinntec/addon-facturas/internal/application/facturas"
	"github.com/solinntec/addon-facturas/pkg/logger"
)

// FacturaHandler maneja la carga manual de facturas.
type FacturaHandler struct {
	servicio    *facturas.Servicio
	adjuntosDir string
	log         *logger.Logger
}

// NewFacturaHandler construye el handler.
func NewFacturaHandler(servicio *facturas.Servicio, adjuntosDir string, log *logger.Logger) *FacturaHandler {
	return &FacturaHandler{servicio: servicio, adjuntosDir: adjuntosDir, log: log}
}

type respuestaProcesar struct {
	Exito   bool   `json:"exito"`
	Factura any    `json:"factura,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Procesar recibe el multipart (file + ordenNro), corre el pipeline en la
// misma petición y elimina el archivo al terminar.
func (h *FacturaHandler) Procesar(c *fiber.Ctx) error {
	ordenNro := c.FormValue("ordenNro")
	if ordenNro == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "MISSING_ORDER", Message: "el campo ordenNro es obligatorio"})
	}

	archivo, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "MISSING_FILE", Message: "el campo file es obligatorio"})
	}

	if err := os.MkdirAll(h.adjuntosDir, 0o755); err != nil {
		h.log.Error().Err(err).Msg("no se pudo crear el directorio de adjuntos")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Code: "STORAGE_ERROR", Message: "no se pudo guardar el archivo"})
	}
	ruta := filepath.Join(h.adjuntosDir, uuid.NewString()+filepath.Ext(archivo.Filename))
	if err := c.SaveFile(archivo, ruta); err != nil {
		h.log.Error().Err(err).Msg("no se pudo guardar la subida")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Code: "STORAGE_ERROR", Message: "no se pudo guardar el archivo"})
	}
	defer limpiar(ruta, h.log)

	res := h.servicio.Procesar(c.UserContext(), facturas.Trabajo{
		Archivo:  ruta,
		OrdenNro: ordenNro,
	})

	if !res.Exito {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(respuestaProcesar{Exito: false, Error: res.Detalle})
	}
	return c.JSON(respuestaProcesar{Exito: true, Factura: res.Factura})
}

// limpiar borra la subida y, si la preparación la recodificó, también el
// derivado webp.
func limpiar(ruta string, log *logger.Logger) {
	candidatos := []string{ruta}
	if ext := filepath.Ext(ruta); ext != ".webp" && ext != ".pdf" {
		candidatos = append(candidatos, ruta[:len(ruta)-len(ext)]+".webp")
	}
	for _, r := range candidatos {
		if err := os.Remove(r); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("archivo", r).Msg("no se pudo borrar el archivo temporal")
		}
	}
}
