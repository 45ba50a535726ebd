package filter

import "strings"

const eof = rune(0)

// Scanner tokeniza una expresión de filtro. Opera sobre el texto ya
// URL-decodificado; no hace I/O ni asignaciones más allá de los literales.
type Scanner struct {
	src []rune
	pos int
}

// NewScanner crea un Scanner sobre la expresión dada.
func NewScanner(src string) *Scanner {
	return &Scanner{src: []rune(src)}
}

func (s *Scanner) read() rune {
	if s.pos >= len(s.src) {
		return eof
	}
	ch := s.src[s.pos]
	s.pos++
	return ch
}

func (s *Scanner) unread() {
	if s.pos > 0 {
		s.pos--
	}
}

func (s *Scanner) peek() rune {
	if s.pos >= len(s.src) {
		return eof
	}
	return s.src[s.pos]
}

// Scan retorna el próximo token, su posición (offset en runas) y el
// literal crudo. En ILLEGAL el literal es el carácter ofensor.
func (s *Scanner) Scan() (tok Token, pos int, lit string) {
	s.skipWhitespace()
	pos = s.pos

	ch := s.read()
	switch {
	case ch == eof:
		return EOF, pos, ""
	case isIdentStart(ch):
		s.unread()
		return s.scanIdent()
	case isDigit(ch) || (ch == '-' && isDigit(s.peek())):
		s.unread()
		return s.scanNumber()
	case ch == '"' || ch == '\'':
		s.unread()
		return s.scanString()
	}

	switch ch {
	case '=':
		return EQ, pos, "="
	case '!':
		if s.peek() == '=' {
			s.read()
			return NEQ, pos, "!="
		}
		return ILLEGAL, pos, "!"
	case '>':
		if s.peek() == '=' {
			s.read()
			return GTE, pos, ">="
		}
		return GT, pos, ">"
	case '<':
		if s.peek() == '=' {
			s.read()
			return LTE, pos, "<="
		}
		if s.peek() == '>' {
			s.read()
			return NEQ, pos, "<>"
		}
		return LT, pos, "<"
	case '(':
		return LPAREN, pos, "("
	case ')':
		return RPAREN, pos, ")"
	case ',':
		return COMMA, pos, ","
	}
	return ILLEGAL, pos, string(ch)
}

func (s *Scanner) skipWhitespace() {
	for {
		ch := s.read()
		if ch == eof {
			return
		}
		if ch != ' ' && ch != '\t' && ch != '\n' && ch != '\r' {
			s.unread()
			return
		}
	}
}

// scanIdent escanea un identificador o keyword. Los field paths con un
// nivel de relación (responsible.id) se escanean como un solo IDENT; la
// validación del path es tarea del compilador, no del lexer.
func (s *Scanner) scanIdent() (Token, int, string) {
	pos := s.pos
	var b strings.Builder
	for {
		ch := s.read()
		if ch == eof {
			break
		}
		if !isIdentPart(ch) && ch != '.' {
			s.unread()
			break
		}
		b.WriteRune(ch)
	}
	lit := b.String()
	return lookupIdent(lit), pos, lit
}

func (s *Scanner) scanNumber() (Token, int, string) {
	pos := s.pos
	var b strings.Builder
	if s.peek() == '-' {
		b.WriteRune(s.read())
	}
	seenDot := false
	for {
		ch := s.read()
		if ch == eof {
			break
		}
		if ch == '.' && !seenDot && isDigit(s.peek()) {
			seenDot = true
			b.WriteRune(ch)
			continue
		}
		if !isDigit(ch) {
			s.unread()
			break
		}
		b.WriteRune(ch)
	}
	return NUMBER, pos, b.String()
}

// scanString escanea un literal entre comillas simples o dobles, con
// backslash como escape. El literal retornado NO incluye las comillas.
func (s *Scanner) scanString() (Token, int, string) {
	pos := s.pos
	quote := s.read()
	var b strings.Builder
	for {
		ch := s.read()
		switch ch {
		case eof:
			// Comilla sin cerrar.
			return ILLEGAL, pos, b.String()
		case '\\':
			next := s.read()
			if next == eof {
				return ILLEGAL, pos, b.String()
			}
			b.WriteRune(next)
		case quote:
			return STRING, pos, b.String()
		default:
			b.WriteRune(ch)
		}
	}
}

func isIdentStart(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}
