package filter

import (
	"net/url"
	"strings"
)

// maxDecodePasses acota las pasadas de URL-decoding. Los clientes reales
// llegan con una o dos codificaciones; más de eso es input hostil.
const maxDecodePasses = 3

// decode aplica URL-decoding acotado a la expresión cruda: decodifica
// mientras queden escapes %XX y el texto siga cambiando, hasta
// maxDecodePasses. Un error de decodificación no es fatal: se retorna la
// última forma decodificada con éxito (el parser reportará el error
// sintáctico real si lo hay).
//
// Se usa PathUnescape y no QueryUnescape: la capa de transporte ya decodificó
// la query string una vez ('+' como espacio incluido); las pasadas extra solo
// resuelven escapes %XX residuales y nunca reinterpretan un '+' literal
// dentro de un string ("C++" sobrevive junto a un "%25" re-escapado).
func decode(raw string) string {
	s := raw
	for i := 0; i < maxDecodePasses; i++ {
		if !strings.Contains(s, "%") {
			return s
		}
		decoded, err := url.PathUnescape(s)
		if err != nil || decoded == s {
			return s
		}
		s = decoded
	}
	return s
}
