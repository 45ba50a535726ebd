package filter

// Op es un operador de comparación de la gramática.
type Op int

const (
	OpEq Op = iota
	OpNeq
	OpGt
	OpLt
	OpGte
	OpLte
	OpLike
	OpILike
	OpIn
	OpNotIn
)

var opNames = map[Op]string{
	OpEq:    "=",
	OpNeq:   "!=",
	OpGt:    ">",
	OpLt:    "<",
	OpGte:   ">=",
	OpLte:   "<=",
	OpLike:  "LIKE",
	OpILike: "ILIKE",
	OpIn:    "IN",
	OpNotIn: "NOT IN",
}

func (o Op) String() string { return opNames[o] }

// SQL retorna la forma SQL del operador.
func (o Op) SQL() string { return opNames[o] }

// Combinator une un predicado con el anterior en la lista compilada.
type Combinator string

const (
	CombinatorNone Combinator = ""
	CombinatorAnd  Combinator = "AND"
	CombinatorOr   Combinator = "OR"
)

// Expr es un nodo del AST de filtros.
type Expr interface {
	expr()
}

func (*ComparisonExpr) expr() {}
func (*LogicalExpr) expr()    {}
func (*ParenExpr) expr()      {}

// ComparisonExpr es una comparación campo-operador-valor. Field es el
// path textual tal como fue escrito (la resolución a columna ocurre en
// la compilación); Pos apunta al inicio del campo para errores.
type ComparisonExpr struct {
	Field string
	Op    Op
	Value Literal
	Pos   int
}

// LogicalExpr une dos subexpresiones con AND u OR. El parser produce
// árboles asociados a izquierda: a AND b OR c es ((a AND b) OR c).
type LogicalExpr struct {
	Op  Combinator
	LHS Expr
	RHS Expr
}

// ParenExpr marca un agrupamiento explícito, preservado en el AST para
// que la compilación emita los límites de grupo.
type ParenExpr struct {
	Expr Expr
}
