package filter

import "fmt"

// Code es el código estable de un error de compilación de filtro.
// Coincide 1:1 con la taxonomía HTTP de 400s de filtro.
type Code string

const (
	CodeSyntax           Code = "FILTER_SYNTAX_INVALID"
	CodeUnknownField     Code = "FILTER_UNKNOWN_FIELD"
	CodeOperatorMismatch Code = "FILTER_OPERATOR_MISMATCH"
	CodeInvalidLiteral   Code = "FILTER_INVALID_LITERAL"
	CodeTooComplex       Code = "FILTER_TOO_COMPLEX"
)

// Error es la falla tipada del compilador: código estable, posición en
// la expresión decodificada (offset en runas) y detalle técnico. El
// detalle describe el filtro del cliente, nunca estado interno.
type Error struct {
	Code   Code
	Pos    int
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at %d: %s", e.Code, e.Pos, e.Detail)
}

func newError(code Code, pos int, format string, args ...any) *Error {
	return &Error{Code: code, Pos: pos, Detail: fmt.Sprintf(format, args...)}
}
