package filter

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/metrics"
)

// Predicate es un descriptor compilado: una condición lista para que el
// ejecutor de queries la aplique. La lista de predicados es ordenada;
// Combinator une cada predicado con el anterior (vacío en el primero) y
// OpenGroups/CloseGroups marcan límites de paréntesis alrededor de este
// predicado.
type Predicate struct {
	Field       string
	Column      string
	Op          Op
	Value       Literal
	Combinator  Combinator
	OpenGroups  int
	CloseGroups int
}

// Config parametriza el compilador.
type Config struct {
	MaxDepth int
	MaxNodes int
	// CacheTTL habilita la memoización de filtros compilados; <= 0 la apaga.
	CacheTTL time.Duration
}

// Compiler compila expresiones de filtro para una entidad. Puro respecto
// del datastore: nunca toca el pool ni hace I/O. Las compilaciones se
// memoizan por (entidad, filtro crudo) con TTL.
type Compiler struct {
	maxDepth int
	maxNodes int
	cache    *gocache.Cache
}

// New crea un Compiler con los límites dados.
func New(cfg Config) *Compiler {
	c := &Compiler{maxDepth: cfg.MaxDepth, maxNodes: cfg.MaxNodes}
	if cfg.CacheTTL > 0 {
		c.cache = gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return c
}

// Compile decodifica, parsea y valida la expresión para la entidad,
// retornando la lista ordenada de predicados. Filtro vacío compila a
// lista vacía. El error es siempre *Error con código estable.
//
// El slice retornado es compartido entre llamadas memoizadas: los
// callers lo tratan como de solo lectura.
func (c *Compiler) Compile(raw, entity string) ([]Predicate, error) {
	if !KnownEntity(entity) {
		return nil, fmt.Errorf("filter: unknown entity %q", entity)
	}
	if raw == "" {
		return nil, nil
	}

	key := entity + "\x00" + raw
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			return v.([]Predicate), nil
		}
	}

	preds, err := c.compile(raw, entity)
	if err != nil {
		if ferr, ok := err.(*Error); ok {
			metrics.FilterCompileErrors.WithLabelValues(string(ferr.Code)).Inc()
		}
		return nil, err
	}

	if c.cache != nil {
		c.cache.SetDefault(key, preds)
	}
	return preds, nil
}

func (c *Compiler) compile(raw, entity string) ([]Predicate, error) {
	decoded := decode(raw)

	expr, err := NewParser(decoded, c.maxDepth, c.maxNodes).Parse()
	if err != nil {
		return nil, err
	}

	w := &walker{entity: entity}
	if err := w.walk(expr); err != nil {
		return nil, err
	}
	return w.preds, nil
}

// walker aplana el AST en la lista de predicados, validando cada
// comparación en orden: campo → operador/tipo → literal.
type walker struct {
	entity string
	preds  []Predicate
	// next es el combinador pendiente para el próximo predicado emitido.
	next Combinator
}

func (w *walker) walk(expr Expr) error {
	switch e := expr.(type) {
	case *LogicalExpr:
		start := len(w.preds)
		if err := w.walk(e.LHS); err != nil {
			return err
		}
		// La asociación a izquierda del parser es implícita en el AST, pero el
		// datastore aplica su precedencia nativa (AND sobre OR) a un fragmento
		// plano. Cuando la cadena mezcla combinadores, el LHS asociado se
		// materializa como grupo explícito para que el SQL evalúe en el mismo
		// orden que la gramática: a OR b AND c → (a OR b) AND c.
		if inner, ok := e.LHS.(*LogicalExpr); ok && inner.Op != e.Op && len(w.preds) > start {
			w.preds[start].OpenGroups++
			w.preds[len(w.preds)-1].CloseGroups++
		}
		w.next = e.Op
		return w.walk(e.RHS)

	case *ParenExpr:
		start := len(w.preds)
		if err := w.walk(e.Expr); err != nil {
			return err
		}
		if len(w.preds) > start {
			w.preds[start].OpenGroups++
			w.preds[len(w.preds)-1].CloseGroups++
		}
		return nil

	case *ComparisonExpr:
		pred, err := w.validate(e)
		if err != nil {
			return err
		}
		pred.Combinator = w.next
		w.next = CombinatorNone
		w.preds = append(w.preds, pred)
		return nil
	}
	return newError(CodeSyntax, 0, "unsupported expression node")
}

func (w *walker) validate(e *ComparisonExpr) (Predicate, error) {
	f, ok := lookupField(w.entity, e.Field)
	if !ok {
		return Predicate{}, newError(CodeUnknownField, e.Pos,
			"field %q is not filterable on entity %q", e.Field, w.entity)
	}

	if !opApplicable(e.Op, f.Type) {
		return Predicate{}, newError(CodeOperatorMismatch, e.Pos,
			"operator %s does not apply to %s field %q", e.Op, f.Type, e.Field)
	}

	value, err := coerceLiteral(e.Value, f, e.Pos)
	if err != nil {
		return Predicate{}, err
	}

	return Predicate{
		Field:  e.Field,
		Column: f.Column,
		Op:     e.Op,
		Value:  value,
	}, nil
}

// coerceLiteral verifica que el literal parsee al tipo declarado del
// campo y lo promueve si corresponde (string ISO-8601 → fecha).
func coerceLiteral(lit Literal, f Field, pos int) (Literal, error) {
	if lit.Kind == KindList {
		if len(lit.List) == 0 {
			return Literal{}, newError(CodeInvalidLiteral, pos,
				"IN list for field %q must not be empty", f.Path)
		}
		items := make([]Literal, len(lit.List))
		for i, item := range lit.List {
			coerced, err := coerceScalar(item, f, pos)
			if err != nil {
				return Literal{}, err
			}
			items[i] = coerced
		}
		return ListLit(items...), nil
	}
	return coerceScalar(lit, f, pos)
}

func coerceScalar(lit Literal, f Field, pos int) (Literal, error) {
	switch f.Type {
	case TypeID, TypeString:
		if lit.Kind != KindString {
			return Literal{}, newError(CodeInvalidLiteral, pos,
				"field %q expects a quoted string, got %s", f.Path, lit.Kind)
		}
		return lit, nil

	case TypeNumber:
		if lit.Kind != KindNumber {
			return Literal{}, newError(CodeInvalidLiteral, pos,
				"field %q expects a number, got %s", f.Path, lit.Kind)
		}
		return lit, nil

	case TypeBool:
		if lit.Kind != KindBool {
			return Literal{}, newError(CodeInvalidLiteral, pos,
				"field %q expects true/false, got %s", f.Path, lit.Kind)
		}
		return lit, nil

	case TypeDate:
		if lit.Kind != KindString {
			return Literal{}, newError(CodeInvalidLiteral, pos,
				"field %q expects an ISO-8601 date string, got %s", f.Path, lit.Kind)
		}
		t, err := parseDate(lit.Str)
		if err != nil {
			return Literal{}, newError(CodeInvalidLiteral, pos,
				"field %q: %v", f.Path, err)
		}
		return DateLit(t), nil
	}
	return Literal{}, newError(CodeInvalidLiteral, pos, "field %q has unsupported type", f.Path)
}
