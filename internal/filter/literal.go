package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind discrimina la unión de literales del lenguaje de filtros.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindDate
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindList:
		return "list"
	}
	return "unknown"
}

// Literal es la unión etiquetada de valores de filtro. Solo el campo que
// corresponde al Kind es significativo; los demás quedan en cero.
type Literal struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
	Date time.Time
	List []Literal
}

func StringLit(v string) Literal  { return Literal{Kind: KindString, Str: v} }
func NumberLit(v float64) Literal { return Literal{Kind: KindNumber, Num: v} }
func BoolLit(v bool) Literal      { return Literal{Kind: KindBool, Bool: v} }
func DateLit(v time.Time) Literal { return Literal{Kind: KindDate, Date: v} }
func ListLit(vs ...Literal) Literal {
	return Literal{Kind: KindList, List: vs}
}

// Value retorna el valor Go nativo del literal, listo para usar como
// argumento posicional de una query parametrizada.
func (l Literal) Value() any {
	switch l.Kind {
	case KindString:
		return l.Str
	case KindNumber:
		return l.Num
	case KindBool:
		return l.Bool
	case KindDate:
		return l.Date
	case KindList:
		vs := make([]any, len(l.List))
		for i, item := range l.List {
			vs[i] = item.Value()
		}
		return vs
	}
	return nil
}

// String retorna una forma canónica estable del literal (debug y logs).
func (l Literal) String() string {
	switch l.Kind {
	case KindString:
		return strconv.Quote(l.Str)
	case KindNumber:
		return strconv.FormatFloat(l.Num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(l.Bool)
	case KindDate:
		return l.Date.Format(time.RFC3339)
	case KindList:
		parts := make([]string, len(l.List))
		for i, item := range l.List {
			parts[i] = item.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return "<nil>"
}

// dateLayouts son los formatos ISO-8601 aceptados para literales de fecha,
// probados en orden.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate interpreta un string como fecha ISO-8601.
func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not an ISO-8601 date: %q", s)
}
