package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/solinntec/addon-facturas/internal/application/facturas"
	"github.com/solinntec/addon-facturas/internal/application/ports"
	infraafip "github.com/solinntec/addon-facturas/internal/infrastructure/afip"
	infraai "github.com/solinntec/addon-facturas/internal/infrastructure/ai"
	"github.com/solinntec/addon-facturas/internal/infrastructure/correo"
	"github.com/solinntec/addon-facturas/internal/infrastructure/imagen"
	"github.com/solinntec/addon-facturas/internal/infrastructure/postgres"
	"github.com/solinntec/addon-facturas/internal/infrastructure/sap"
	"github.com/solinntec/addon-facturas/internal/infrastructure/texto"
	httpRouter "github.com/solinntec/addon-facturas/internal/interfaces/http"
	"github.com/solinntec/addon-facturas/pkg/config"
	"github.com/solinntec/addon-facturas/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:      cfg.App.Env,
		Servicio: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx, detener := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer detener()

	// ERP
	erp := sap.NewCliente(sap.Config{
		BaseURL:     cfg.SAP.ServiceLayerURL,
		CompanyDB:   cfg.SAP.CompanyDB,
		Usuario:     cfg.SAP.User,
		Password:    cfg.SAP.Password,
		InsecureTLS: cfg.SAP.InsecureTLS,
	}, log)

	// AFIP
	wsaa := infraafip.NewWSAA(cfg.AFIP.WSAAURL, cfg.AFIP.CertPath, cfg.AFIP.CertPassword, log)
	validador := infraafip.NewWSCDC(cfg.AFIP.WSCDCURL, cfg.AFIP.CUIT, wsaa, log)

	// Extracción
	preparador := imagen.NewOptimizador(log)
	textos, err := texto.NewExtractor(ctx, cfg.AI.VisionCredsPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializando el extractor de texto")
	}
	defer textos.Cerrar()
	extractor := infraai.NewGeminiService(cfg.AI.APIKey, cfg.AI.Model, log)

	// Notificaciones
	notificador := correo.NewNotificador(correo.ConfigSMTP{
		Host:      cfg.Correo.SMTPHost,
		Port:      cfg.Correo.SMTPPort,
		Usuario:   cfg.Correo.Usuario,
		Password:  cfg.Correo.Password,
		Remitente: cfg.Correo.Remitente,
	}, log)

	// Bitácora opcional
	var bitacora ports.Bitacora
	if cfg.DB.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DB.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		bitacora = postgres.NewBitacoraRepository(pool)
	} else {
		log.Info().Msg("bitácora deshabilitada: DATABASE_URL vacío")
	}

	servicio := facturas.NewServicio(erp, preparador, textos, extractor, validador, notificador, bitacora, log)

	// Cola con un único consumidor: las facturas del buzón se procesan de a una
	cola := facturas.NewCola(32, log)
	go cola.Consumir(ctx, servicio.Procesar)

	// Escucha del buzón (opcional)
	if cfg.Correo.IMAPHost != "" {
		escucha := correo.NewEscucha(correo.ConfigIMAP{
			Host:        cfg.Correo.IMAPHost,
			Port:        cfg.Correo.IMAPPort,
			Usuario:     cfg.Correo.Usuario,
			Password:    cfg.Correo.Password,
			AdjuntosDir: cfg.App.AdjuntosDir,
			Intervalo:   time.Duration(cfg.Correo.IntervaloSeg) * time.Second,
		}, func(archivos []string, ordenNro, remitente string) error {
			trabajos := make([]facturas.Trabajo, 0, len(archivos))
			for _, archivo := range archivos {
				trabajos = append(trabajos, facturas.Trabajo{Archivo: archivo, OrdenNro: ordenNro, Remitente: remitente})
			}
			return cola.EncolarLote(trabajos)
		}, log)
		go escucha.Ejecutar(ctx)
	} else {
		log.Info().Msg("escucha de correo deshabilitada: IMAP_HOST vacío")
	}

	// API HTTP
	handler := httpRouter.NewFacturaHandler(servicio, cfg.App.AdjuntosDir, log)
	app := httpRouter.Router(handler, cfg.JWT.Secret)

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Fatal().Err(err).Msg("servidor HTTP")
		}
	}()
	log.Info().Str("addr", cfg.HTTP.Addr()).Msg("servidor HTTP escuchando")

	<-ctx.Done()
	log.Info().Msg("apagando la aplicación")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("apagado del servidor HTTP")
	}
}
