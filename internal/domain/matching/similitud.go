// Package matching implementa el emparejamiento de ítems de factura contra
// las líneas de una orden de compra: por código, por similitud de
// descripción y por precio, en ese orden.
package matching

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/spanish"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Peso de la similitud Jaccard y bono por palabras clave compartidas.
const (
	pesoJaccard     = 0.7
	bonoPalabras    = 0.3
	umbralPuntaje   = 0.5
	largoMinimoRaiz = 2 // raíces de 2 caracteres o menos se descartan
)

var quitarAcentos = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// TokensNormalizados tokeniza una descripción: minúsculas, sin acentos,
// raíces en español (Snowball) y descarte de raíces muy cortas.
func TokensNormalizados(s string) []string {
	plano, _, err := transform.String(quitarAcentos, strings.ToLower(s))
	if err != nil {
		plano = strings.ToLower(s)
	}

	crudos := strings.FieldsFunc(plano, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(crudos))
	for _, t := range crudos {
		raiz := spanish.Stem(t, true)
		if len(raiz) <= largoMinimoRaiz {
			continue
		}
		tokens = append(tokens, raiz)
	}
	return tokens
}

// PuntajeSimilitud compara dos descripciones: Jaccard sobre los conjuntos
// de raíces ponderado 0.7, más un bono de 0.3 si comparten al menos una
// raíz. El resultado queda en [0, 1].
func PuntajeSimilitud(a, b string) float64 {
	setA := aConjunto(TokensNormalizados(a))
	setB := aConjunto(TokensNormalizados(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	interseccion := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			interseccion++
		}
	}
	union := len(setA) + len(setB) - interseccion

	puntaje := pesoJaccard * float64(interseccion) / float64(union)
	if interseccion > 0 {
		puntaje += bonoPalabras
	}
	return puntaje
}

func aConjunto(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
