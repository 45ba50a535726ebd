package filter

import "strings"

// Token es el tipo léxico de la gramática de filtros.
type Token int

const (
	ILLEGAL Token = iota
	EOF

	IDENT  // status, responsible.id
	STRING // "ACTIVE", 'ACTIVE'
	NUMBER // 42, -3.14
	TRUE
	FALSE

	AND
	OR
	NOT
	IN
	LIKE
	ILIKE

	EQ  // =
	NEQ // !=
	GT  // >
	LT  // <
	GTE // >=
	LTE // <=

	LPAREN // (
	RPAREN // )
	COMMA  // ,
)

var tokens = map[Token]string{
	ILLEGAL: "ILLEGAL",
	EOF:     "EOF",
	IDENT:   "IDENT",
	STRING:  "STRING",
	NUMBER:  "NUMBER",
	TRUE:    "TRUE",
	FALSE:   "FALSE",
	AND:     "AND",
	OR:      "OR",
	NOT:     "NOT",
	IN:      "IN",
	LIKE:    "LIKE",
	ILIKE:   "ILIKE",
	EQ:      "=",
	NEQ:     "!=",
	GT:      ">",
	LT:      "<",
	GTE:     ">=",
	LTE:     "<=",
	LPAREN:  "(",
	RPAREN:  ")",
	COMMA:   ",",
}

// String retorna la representación textual del token.
func (t Token) String() string {
	if s, ok := tokens[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// keywords mapea palabras reservadas (case-insensitive) a su token.
var keywords = map[string]Token{
	"AND":   AND,
	"OR":    OR,
	"NOT":   NOT,
	"IN":    IN,
	"LIKE":  LIKE,
	"ILIKE": ILIKE,
	"TRUE":  TRUE,
	"FALSE": FALSE,
}

// lookupIdent clasifica un identificador escaneado: keyword o IDENT.
func lookupIdent(lit string) Token {
	if tok, ok := keywords[strings.ToUpper(lit)]; ok {
		return tok
	}
	return IDENT
}
