package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokensNormalizados(t *testing.T) {
	// Minúsculas, sin acentos, raíces españolas, sin raíces cortas
	tokens := TokensNormalizados("Tornillos GALVANIZADOS de 3/4")
	assert.Contains(t, tokens, "tornill")
	assert.Contains(t, tokens, "galvaniz")
	assert.NotContains(t, tokens, "de", "las raíces cortas se descartan")

	// Acentos no cambian la raíz
	conAcento := TokensNormalizados("Lámpara halógena")
	sinAcento := TokensNormalizados("lampara halogena")
	assert.Equal(t, sinAcento, conAcento)

	assert.Empty(t, TokensNormalizados(""))
	assert.Empty(t, TokensNormalizados("de la el"))
}

func TestPuntajeSimilitud_Limites(t *testing.T) {
	// Descripciones idénticas puntúan 1.0
	p := PuntajeSimilitud("Caja de tornillos galvanizados", "Caja de tornillos galvanizados")
	assert.InDelta(t, 1.0, p, 1e-9)

	// Sin palabras en común puntúa 0
	p = PuntajeSimilitud("Cemento portland", "Lámpara halógena")
	assert.Zero(t, p)

	// Vacíos puntúan 0
	assert.Zero(t, PuntajeSimilitud("", "algo"))
	assert.Zero(t, PuntajeSimilitud("algo", ""))
}

func TestPuntajeSimilitud_Acotado(t *testing.T) {
	casos := [][2]string{
		{"Tornillo galvanizado 3/4", "Tornillos galvanizados"},
		{"Aceite lubricante 10W40 x 1L", "Aceite 10W40"},
		{"Resma papel A4 75g", "Papel A4"},
	}
	for _, c := range casos {
		p := PuntajeSimilitud(c[0], c[1])
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestPuntajeSimilitud_InterseccionParcial(t *testing.T) {
	// Una raíz compartida alcanza el bono pero el Jaccard pesa la diferencia
	p := PuntajeSimilitud("Aceite lubricante sintético", "Aceite mineral pesado")
	assert.Greater(t, p, 0.3, "comparte raíz: recibe el bono")
	assert.Less(t, p, 1.0)
}
