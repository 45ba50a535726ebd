package filter

import "strconv"

// Límites por defecto del parser ante input adversarial.
const (
	DefaultMaxDepth = 8
	DefaultMaxNodes = 64
)

// Parser es el recursive-descent sobre la gramática:
//
//	expr       := term (("AND"|"OR") term)*
//	term       := "(" expr ")" | comparison
//	comparison := field op value
//
// AND y OR asocian a izquierda con igual precedencia; cualquier otro
// agrupamiento requiere paréntesis explícitos. Profundidad de paréntesis
// y cantidad de nodos están acotadas.
type Parser struct {
	s *Scanner

	tok      Token
	pos      int
	lit      string
	buffered bool

	depth    int
	nodes    int
	maxDepth int
	maxNodes int
}

// NewParser crea un Parser sobre la expresión ya decodificada.
// maxDepth/maxNodes <= 0 usan los defaults.
func NewParser(src string, maxDepth, maxNodes int) *Parser {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	return &Parser{s: NewScanner(src), maxDepth: maxDepth, maxNodes: maxNodes}
}

// Parse consume la expresión completa y retorna el AST.
func (p *Parser) Parse() (Expr, error) {
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok, pos, lit := p.scan(); tok != EOF {
		return nil, newError(CodeSyntax, pos, "unexpected %q after expression", lit)
	}
	return expr, nil
}

func (p *Parser) scan() (Token, int, string) {
	if p.buffered {
		p.buffered = false
		return p.tok, p.pos, p.lit
	}
	p.tok, p.pos, p.lit = p.s.Scan()
	return p.tok, p.pos, p.lit
}

func (p *Parser) unscan() { p.buffered = true }

func (p *Parser) countNode(pos int) error {
	p.nodes++
	if p.nodes > p.maxNodes {
		return newError(CodeTooComplex, pos, "expression exceeds %d nodes", p.maxNodes)
	}
	return nil
}

// parseExpr implementa la cadena izquierda-a-derecha de términos.
func (p *Parser) parseExpr() (Expr, error) {
	lhs, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		tok, pos, lit := p.scan()
		switch tok {
		case AND, OR:
			if err := p.countNode(pos); err != nil {
				return nil, err
			}
			rhs, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			comb := CombinatorAnd
			if tok == OR {
				comb = CombinatorOr
			}
			lhs = &LogicalExpr{Op: comb, LHS: lhs, RHS: rhs}
		case EOF, RPAREN:
			p.unscan()
			return lhs, nil
		default:
			return nil, newError(CodeSyntax, pos, "expected AND/OR, got %q", lit)
		}
	}
}

func (p *Parser) parseTerm() (Expr, error) {
	tok, pos, lit := p.scan()
	if tok == LPAREN {
		p.depth++
		if p.depth > p.maxDepth {
			return nil, newError(CodeTooComplex, pos, "grouping deeper than %d levels", p.maxDepth)
		}
		defer func() { p.depth-- }()

		if err := p.countNode(pos); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if tok, pos, lit := p.scan(); tok != RPAREN {
			return nil, newError(CodeSyntax, pos, "expected ), got %q", lit)
		}
		return &ParenExpr{Expr: inner}, nil
	}

	if tok != IDENT {
		return nil, newError(CodeSyntax, pos, "expected field, got %q", lit)
	}
	return p.parseComparison(pos, lit)
}

func (p *Parser) parseComparison(fieldPos int, field string) (Expr, error) {
	if err := p.countNode(fieldPos); err != nil {
		return nil, err
	}

	op, err := p.parseOp()
	if err != nil {
		return nil, err
	}

	var value Literal
	if op == OpIn || op == OpNotIn {
		value, err = p.parseList()
	} else {
		value, err = p.parseScalar()
	}
	if err != nil {
		return nil, err
	}

	return &ComparisonExpr{Field: field, Op: op, Value: value, Pos: fieldPos}, nil
}

func (p *Parser) parseOp() (Op, error) {
	tok, pos, lit := p.scan()
	switch tok {
	case EQ:
		return OpEq, nil
	case NEQ:
		return OpNeq, nil
	case GT:
		return OpGt, nil
	case LT:
		return OpLt, nil
	case GTE:
		return OpGte, nil
	case LTE:
		return OpLte, nil
	case LIKE:
		return OpLike, nil
	case ILIKE:
		return OpILike, nil
	case IN:
		return OpIn, nil
	case NOT:
		if tok, pos, lit := p.scan(); tok != IN {
			return 0, newError(CodeSyntax, pos, "expected IN after NOT, got %q", lit)
		}
		return OpNotIn, nil
	}
	return 0, newError(CodeSyntax, pos, "expected operator, got %q", lit)
}

// parseScalar escanea un literal simple. Los strings quedan como
// KindString; la promoción a fecha (campos Date) ocurre en compilación.
func (p *Parser) parseScalar() (Literal, error) {
	tok, pos, lit := p.scan()
	switch tok {
	case STRING:
		return StringLit(lit), nil
	case NUMBER:
		n, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return Literal{}, newError(CodeInvalidLiteral, pos, "malformed number %q", lit)
		}
		return NumberLit(n), nil
	case TRUE:
		return BoolLit(true), nil
	case FALSE:
		return BoolLit(false), nil
	}
	return Literal{}, newError(CodeSyntax, pos, "expected value, got %q", lit)
}

// parseList escanea la lista entre paréntesis de IN / NOT IN.
func (p *Parser) parseList() (Literal, error) {
	if tok, pos, lit := p.scan(); tok != LPAREN {
		return Literal{}, newError(CodeSyntax, pos, "expected ( after IN, got %q", lit)
	}

	// La lista vacía se acepta acá y se rechaza tipada en compilación.
	if tok, _, _ := p.scan(); tok == RPAREN {
		return ListLit(), nil
	}
	p.unscan()

	var items []Literal
	for {
		item, err := p.parseScalar()
		if err != nil {
			return Literal{}, err
		}
		items = append(items, item)

		tok, pos, lit := p.scan()
		if tok == COMMA {
			continue
		}
		if tok == RPAREN {
			return ListLit(items...), nil
		}
		return Literal{}, newError(CodeSyntax, pos, "expected , or ) in list, got %q", lit)
	}
}
