package filter

import (
	"strconv"
	"strings"
)

// ToSQL renderiza la lista de predicados como fragmento WHERE
// parametrizado (sin la palabra WHERE), con placeholders posicionales a
// partir de $startArg. Los nombres de columna salen del allow-list, nunca
// del input del cliente; los valores van siempre como argumentos.
func ToSQL(preds []Predicate, startArg int) (string, []any) {
	if len(preds) == 0 {
		return "", nil
	}
	if startArg < 1 {
		startArg = 1
	}

	var b strings.Builder
	var args []any
	n := startArg

	for i, p := range preds {
		if i > 0 {
			b.WriteString(" " + string(p.Combinator) + " ")
		}
		b.WriteString(strings.Repeat("(", p.OpenGroups))

		b.WriteString(p.Column)
		b.WriteString(" ")
		b.WriteString(p.Op.SQL())

		if p.Value.Kind == KindList {
			placeholders := make([]string, len(p.Value.List))
			for j, item := range p.Value.List {
				placeholders[j] = "$" + strconv.Itoa(n)
				args = append(args, item.Value())
				n++
			}
			b.WriteString(" (" + strings.Join(placeholders, ", ") + ")")
		} else {
			b.WriteString(" $" + strconv.Itoa(n))
			args = append(args, p.Value.Value())
			n++
		}

		b.WriteString(strings.Repeat(")", p.CloseGroups))
	}
	return b.String(), args
}
