package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, parseLevel("trace", "production"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error", "development"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("cualquiera", "production"))
}

func TestParseLevel_DefectoSegunEntorno(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("", "development"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("", "production"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("", ""))
}

func TestNew_NivelExplicitoGanaAlEntorno(t *testing.T) {
	l := New(Config{Env: "development", Level: "error", Servicio: "addon-facturas"})
	assert.Equal(t, zerolog.ErrorLevel, l.Zerolog().GetLevel())
}
