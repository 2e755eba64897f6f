package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App    AppConfig
	HTTP   HTTPConfig
	JWT    JWTConfig
	SAP    SAPConfig
	AFIP   AFIPConfig
	AI     AIConfig
	Correo CorreoConfig
	DB     DBConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env         string // development, staging, production
	Name        string
	AdjuntosDir string // directorio donde se guardan adjuntos y subidas temporales
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JWTConfig configuración de JWT para el endpoint de carga.
// Si Secret está vacío el endpoint queda sin autenticación (solo development).
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// SAPConfig credenciales del Service Layer de SAP Business One.
type SAPConfig struct {
	ServiceLayerURL string // ej. https://host:50000/b1s/v1
	CompanyDB       string
	User            string
	Password        string
	InsecureTLS     bool // certificados autofirmados del Service Layer
}

// AFIPConfig configuración de los web services de AFIP/ARCA.
type AFIPConfig struct {
	WSAAURL      string // endpoint LoginCms
	WSCDCURL     string // endpoint ComprobanteConstatar
	CertPath     string // ruta al certificado .p12 del representado
	CertPassword string
	CUIT         string // CUIT del representado (receptor de los comprobantes)
}

// AIConfig configuración del oráculo de extracción.
type AIConfig struct {
	APIKey          string // Google AI Studio
	Model           string // ej. gemini-2.0-flash
	VisionCredsPath string // credenciales de Cloud Vision para OCR (vacío = OCR deshabilitado)
}

// CorreoConfig buzón de entrada IMAP y salida SMTP.
type CorreoConfig struct {
	IMAPHost     string
	IMAPPort     int
	SMTPHost     string
	SMTPPort     int
	Usuario      string
	Password     string
	Remitente    string // dirección From de las notificaciones (vacío = Usuario)
	IntervaloSeg int    // segundos entre sondeos del buzón
}

// DBConfig bitácora opcional en PostgreSQL.
// DatabaseURL vacío deshabilita la bitácora por completo.
type DBConfig struct {
	DatabaseURL string
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, SERVICE_LAYER_URL, AFIP_CUIT, etc.
func Load() (*Config, error) {
	v := viper.New()

	// Opcional: archivo de configuración (.env)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	// Bind de variables de entorno (Viper las lee automáticamente si AutomaticEnv está activo)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:         getString(v, "APP_ENV", "development"),
			Name:        getString(v, "APP_NAME", "addon-facturas"),
			AdjuntosDir: getString(v, "ADJUNTOS_DIR", "./adjuntos"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "addon-facturas"),
		},
		SAP: SAPConfig{
			ServiceLayerURL: getString(v, "SERVICE_LAYER_URL", ""),
			CompanyDB:       getString(v, "SAP_COMPANY_DB", ""),
			User:            getString(v, "SAP_USER", ""),
			Password:        getString(v, "SAP_PASSWORD", ""),
			InsecureTLS:     getBool(v, "SAP_INSECURE_TLS", false),
		},
		AFIP: AFIPConfig{
			WSAAURL:      getString(v, "AFIP_WSAA_URL", "https://wsaa.afip.gov.ar/ws/services/LoginCms"),
			WSCDCURL:     getString(v, "AFIP_WSCDC_URL", "https://servicios1.afip.gov.ar/WSCDC/service.asmx"),
			CertPath:     getString(v, "AFIP_CERT_PATH", ""),
			CertPassword: getString(v, "AFIP_CERT_PASSWORD", ""),
			CUIT:         getString(v, "AFIP_CUIT", ""),
		},
		AI: AIConfig{
			APIKey:          getString(v, "GOOGLE_API_KEY", ""),
			Model:           getString(v, "AI_MODEL", "gemini-2.0-flash"),
			VisionCredsPath: getString(v, "VISION_CREDENTIALS_PATH", ""),
		},
		Correo: CorreoConfig{
			IMAPHost:     getString(v, "IMAP_HOST", ""),
			IMAPPort:     getInt(v, "IMAP_PORT", 993),
			SMTPHost:     getString(v, "SMTP_HOST", ""),
			SMTPPort:     getInt(v, "SMTP_PORT", 465),
			Usuario:      getString(v, "CORREO_USUARIO", ""),
			Password:     getString(v, "CORREO_PASSWORD", ""),
			Remitente:    getString(v, "CORREO_REMITENTE", ""),
			IntervaloSeg: getInt(v, "CORREO_INTERVALO_SEG", 60),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
		},
	}

	if cfg.Correo.SMTPHost == "" {
		cfg.Correo.SMTPHost = cfg.Correo.IMAPHost
	}
	if cfg.Correo.Remitente == "" {
		cfg.Correo.Remitente = cfg.Correo.Usuario
	}

	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, _ := strconv.Atoi(v.GetString(key))
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if v.IsSet(key) {
		return v.GetBool(key)
	}
	return def
}
