// Package sap implementa el gateway contra el Service Layer de SAP
// Business One: login por sesión, consultas OData y alta de facturas de
// compra. Usa net/http de la stdlib.
package sap

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/solinntec/addon-facturas/internal/domain"
	"github.com/solinntec/addon-facturas/pkg/logger"
)

// maxCuerpoRespuesta límite de lectura de respuestas del Service Layer.
const maxCuerpoRespuesta = 4 << 20 // 4 MB

// Config conexión al Service Layer.
type Config struct {
	BaseURL     string // ej. https://host:50000/b1s/v1
	CompanyDB   string
	Usuario     string
	Password    string
	InsecureTLS bool // el Service Layer suele exponer certificados autofirmados
	Timeout     time.Duration
}

// Cliente cliente HTTP del Service Layer. Abre una sesión por corrida de
// procesamiento a través de IniciarSesion.
type Cliente struct {
	cfg  Config
	http *http.Client
	log  *logger.Logger
}

// NewCliente construye el cliente.
func NewCliente(cfg Config, log *logger.Logger) *Cliente {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	transporte := &http.Transport{}
	if cfg.InsecureTLS {
		transporte.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Cliente{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transporte,
		},
		log: log,
	}
}

type loginRequest struct {
	CompanyDB string `json:"CompanyDB"`
	UserName  string `json:"UserName"`
	Password  string `json:"Password"`
}

type loginResponse struct {
	SessionID string `json:"SessionId"`
}

// errorEnvelope cuerpo de error del Service Layer.
type errorEnvelope struct {
	Error struct {
		Code    json.Number `json:"code"`
		Message struct {
			Value string `json:"value"`
		} `json:"message"`
	} `json:"error"`
}

// login autentica contra el Service Layer y devuelve el id de sesión.
func (c *Cliente) login(ctx context.Context) (string, error) {
	cuerpo, err := json.Marshal(loginRequest{
		CompanyDB: c.cfg.CompanyDB,
		UserName:  c.cfg.Usuario,
		Password:  c.cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("armando login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/Login", bytes.NewReader(cuerpo))
	if err != nil {
		return "", fmt.Errorf("creando request de login: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("login contra el Service Layer: %w", err)
	}
	defer resp.Body.Close()

	datos, err := io.ReadAll(io.LimitReader(resp.Body, maxCuerpoRespuesta))
	if err != nil {
		return "", fmt.Errorf("leyendo respuesta de login: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login rechazado (HTTP %d): %s", resp.StatusCode, resumen(datos))
	}

	var lr loginResponse
	if err := json.Unmarshal(datos, &lr); err != nil {
		return "", fmt.Errorf("parseando respuesta de login: %w", err)
	}
	if lr.SessionID == "" {
		return "", fmt.Errorf("el login no devolvió SessionId")
	}
	return lr.SessionID, nil
}

// hacer ejecuta una petición autenticada y decodifica la respuesta en out
// (out nil descarta el cuerpo). Los errores del Service Layer se traducen
// a errores de dominio cuando corresponde.
func (c *Cliente) hacer(ctx context.Context, metodo, sessionID, ruta string, cuerpo, out any) error {
	var lector io.Reader
	if cuerpo != nil {
		datos, err := json.Marshal(cuerpo)
		if err != nil {
			return fmt.Errorf("armando cuerpo de %s: %w", ruta, err)
		}
		lector = bytes.NewReader(datos)
	}

	req, err := http.NewRequestWithContext(ctx, metodo, c.cfg.BaseURL+ruta, lector)
	if err != nil {
		return fmt.Errorf("creando request %s: %w", ruta, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "B1SESSION", Value: sessionID})

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("llamando %s: %w", ruta, err)
	}
	defer resp.Body.Close()

	datos, err := io.ReadAll(io.LimitReader(resp.Body, maxCuerpoRespuesta))
	if err != nil {
		return fmt.Errorf("leyendo respuesta de %s: %w", ruta, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.traducirError(resp.StatusCode, datos)
	}
	if out == nil || len(datos) == 0 {
		return nil
	}
	if err := json.Unmarshal(datos, out); err != nil {
		return fmt.Errorf("parseando respuesta de %s: %w", ruta, err)
	}
	return nil
}

// traducirError inspecciona el cuerpo de error del Service Layer. El código
// -5002 con mensaje de folio sequence es el alta duplicada y se distingue
// para no reintentarla.
func (c *Cliente) traducirError(status int, datos []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(datos, &env); err == nil && env.Error.Message.Value != "" {
		mensaje := env.Error.Message.Value
		if env.Error.Code.String() == "-5002" && strings.Contains(strings.ToLower(mensaje), "folio sequence") {
			return fmt.Errorf("%w: %s", domain.ErrFacturaDuplicada, mensaje)
		}
		return fmt.Errorf("Service Layer (HTTP %d, código %s): %s", status, env.Error.Code.String(), mensaje)
	}
	return fmt.Errorf("Service Layer (HTTP %d): %s", status, resumen(datos))
}

// resumen acota el cuerpo para mensajes de error.
func resumen(datos []byte) string {
	const max = 500
	s := strings.TrimSpace(string(datos))
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
