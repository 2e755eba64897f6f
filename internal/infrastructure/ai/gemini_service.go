// Package ai implementa el oráculo de extracción de facturas sobre la API
// REST de Gemini. La respuesta se exige en JSON y se decodifica directo a
// la entidad Factura.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/solinntec/addon-facturas/internal/application/ports"
	"github.com/solinntec/addon-facturas/internal/domain/entity"
	"github.com/solinntec/addon-facturas/pkg/logger"
)

var _ ports.ExtractorFactura = (*GeminiService)(nil)

const (
	geminiBaseURL  = "https://generativelanguage.googleapis.com/v1beta/models"
	maxRespuestaAI = 2 << 20 // 2 MB
)

// instruccionSistema prompt fijo de extracción. El modelo debe devolver el
// JSON con esta forma exacta; los campos ausentes en el documento van en null.
const instruccionSistema = `Sos un asistente experto en facturas argentinas de proveedores.
Recibís la imagen o PDF de una factura y, si está disponible, el texto identificado en ella.
Devolvé exclusivamente un JSON con esta estructura, sin texto adicional:
{
  "codigoFactura": "punto de venta y número, ej. 0003-00001234",
  "tipoFactura": "letra de la factura: A, B o C",
  "fechaEmision": "aaaa-mm-dd",
  "fechaVencimiento": "aaaa-mm-dd o null",
  "codigoAutorizacionTipo": "CAI o CAE",
  "codigoAutorizacion": "número de CAI/CAE",
  "fechaCodigoAutorizacion": "aaaa-mm-dd",
  "tipoCompra": "Service si es una factura de servicios, Items si es de productos",
  "emisor": {
    "nombre": "razón social del emisor",
    "direccion": "domicilio o null",
    "telefono": "teléfono o null",
    "email": "correo o null",
    "CUIT": "CUIT del emisor"
  },
  "items": [
    {
      "codigo": "código del artículo o null",
      "descripcion": "descripción del artículo",
      "cantidadUnidades": 0,
      "precioUnidad": 0,
      "importeItem": 0,
      "bonificacion": 0
    }
  ],
  "subtotal": 0,
  "impuestos": { "IVA": { "tasa": 0.21, "monto": 0 } },
  "total": 0,
  "totalTrasVencimiento": null,
  "divisa": "ARS o la divisa indicada, null si no figura"
}
Los montos van como números, sin separador de miles y con punto decimal.
Las fechas siempre en formato aaaa-mm-dd. No inventes datos que no estén en el documento.`

// Ejemplo de intercambio para fijar el formato de salida.
const (
	ejemploUsuario = `Texto identificado en la factura: FACTURA A 0001-00000042 PROVEEDOR EJEMPLO SA CUIT 30-11111111-5 17/05/2024 CAE 74000000000000 Tornillo x100 2 un 500,00 1000,00 Subtotal 1000,00 IVA 21% 210,00 TOTAL 1210,00`
	ejemploModelo  = `{"codigoFactura":"0001-00000042","tipoFactura":"A","fechaEmision":"2024-05-17","fechaVencimiento":null,"codigoAutorizacionTipo":"CAE","codigoAutorizacion":"74000000000000","fechaCodigoAutorizacion":"2024-05-27","tipoCompra":"Items","emisor":{"nombre":"PROVEEDOR EJEMPLO SA","direccion":null,"telefono":null,"email":null,"CUIT":"30-11111111-5"},"items":[{"codigo":null,"descripcion":"Tornillo x100","cantidadUnidades":2,"precioUnidad":500,"importeItem":1000,"bonificacion":null}],"subtotal":1000,"impuestos":{"IVA":{"tasa":0.21,"monto":210}},"total":1210,"totalTrasVencimiento":null,"divisa":"ARS"}`
)

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  genConfig       `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type genConfig struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP"`
	TopK             int     `json:"topK"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"response_mime_type"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GeminiService extractor de facturas sobre la API de Gemini.
type GeminiService struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// NewGeminiService construye el extractor.
func NewGeminiService(apiKey, model string, log *logger.Logger) *GeminiService {
	return &GeminiService{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiBaseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
		log:     log,
	}
}

// ExtraerFactura envía el documento y el texto de apoyo al modelo y
// decodifica el JSON resultante. Una respuesta que no sea JSON es fatal y
// conserva el texto crudo (acotado) en el error.
func (g *GeminiService) ExtraerFactura(ctx context.Context, archivo ports.ArchivoPreparado, textoApoyo string) (*entity.Factura, error) {
	datos, err := os.ReadFile(archivo.Ruta)
	if err != nil {
		return nil, fmt.Errorf("leyendo el documento %s: %w", archivo.Ruta, err)
	}

	mensaje := "Extraé los datos de la factura adjunta."
	if textoApoyo != "" {
		mensaje = "Texto identificado en la factura: " + textoApoyo
	}

	req := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: instruccionSistema}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: ejemploUsuario}}},
			{Role: "model", Parts: []geminiPart{{Text: ejemploModelo}}},
			{Role: "user", Parts: []geminiPart{
				{Text: mensaje},
				{InlineData: &inlineData{
					MimeType: archivo.MimeType,
					Data:     base64.StdEncoding.EncodeToString(datos),
				}},
			}},
		},
		GenerationConfig: genConfig{
			Temperature:      0.3,
			TopP:             0.99,
			TopK:             130,
			MaxOutputTokens:  4000,
			ResponseMimeType: "application/json",
		},
	}

	texto, err := g.generar(ctx, req)
	if err != nil {
		return nil, err
	}

	crudo := extraerJSON(texto)
	factura := &entity.Factura{}
	decodificador := json.NewDecoder(strings.NewReader(crudo))
	decodificador.UseNumber()
	if err := decodificador.Decode(factura); err != nil {
		return nil, fmt.Errorf("el modelo no devolvió JSON de factura: %w (respuesta: %s)", err, acotar(texto, 500))
	}
	return factura, nil
}

func (g *GeminiService) generar(ctx context.Context, reqBody geminiRequest) (string, error) {
	cuerpo, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("armando el pedido a Gemini: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(cuerpo))
	if err != nil {
		return "", fmt.Errorf("creando request a Gemini: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llamando a Gemini: %w", err)
	}
	defer resp.Body.Close()

	datos, err := io.ReadAll(io.LimitReader(resp.Body, maxRespuestaAI))
	if err != nil {
		return "", fmt.Errorf("leyendo respuesta de Gemini: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(datos, &parsed); err != nil {
		return "", fmt.Errorf("parseando respuesta de Gemini (HTTP %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("Gemini devolvió error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("Gemini no devolvió candidatos (HTTP %d)", resp.StatusCode)
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// extraerJSON quita el cerco markdown si el modelo lo agrega igual.
func extraerJSON(texto string) string {
	t := strings.TrimSpace(texto)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```json")
		t = strings.TrimPrefix(t, "```")
		if i := strings.LastIndex(t, "```"); i >= 0 {
			t = t[:i]
		}
	}
	return strings.TrimSpace(t)
}

func acotar(s string, max int) string {
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
