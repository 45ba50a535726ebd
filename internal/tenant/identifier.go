package tenant

import (
	"errors"
	"regexp"
	"strings"
)

// Tenant identifier rules:
// - Charset [A-Za-z0-9_] only (safe for Postgres identifier contexts).
// - Length 1..MaxIDLength after trimming (63 matches the backing store's
//   schema-identifier limit once the prefix is accounted for upstream).
// - Excludes quotes, semicolons and whitespace by construction.
//
// Examples valid: acme_corp, Tenant01, a
// Examples invalid: "", "acme corp", "acme;drop", "acme-corp", 64+ chars.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// DefaultMaxIDLength es el largo máximo por defecto de un tenant id.
const DefaultMaxIDLength = 63

// DefaultSchemaPrefix es el prefijo fijo de los schemas de tenant.
const DefaultSchemaPrefix = "crmx_database_"

var (
	ErrHeaderMissing = errors.New("tenant: header missing")
	ErrHeaderEmpty   = errors.New("tenant: header empty")
	ErrFormatInvalid = errors.New("tenant: identifier format invalid")
)

// Validator normaliza y valida identificadores de tenant crudos.
// Puro y determinista: seguro frente a input hostil y llamadas repetidas.
type Validator struct {
	maxLen int
}

// NewValidator crea un Validator; maxLen <= 0 usa DefaultMaxIDLength.
func NewValidator(maxLen int) *Validator {
	if maxLen <= 0 || maxLen > DefaultMaxIDLength {
		maxLen = DefaultMaxIDLength
	}
	return &Validator{maxLen: maxLen}
}

// Validate convierte el valor crudo del header en un id saneado.
// raw == "" se interpreta como header ausente (el header HTTP inexistente
// llega como string vacío); un valor con solo espacios es header vacío.
func (v *Validator) Validate(raw string) (string, error) {
	if raw == "" {
		return "", ErrHeaderMissing
	}
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", ErrHeaderEmpty
	}
	if len(id) > v.maxLen || !idPattern.MatchString(id) {
		return "", ErrFormatInvalid
	}
	return id, nil
}

// Deriver mapea un tenant id ya validado a su nombre de schema.
// No re-valida: confía en la precondición del Validator. Como el charset
// está acotado, el nombre derivado es inyectable-safe en contextos de
// identificador (SET search_path).
type Deriver struct {
	prefix string
}

// NewDeriver crea un Deriver; prefix vacío usa DefaultSchemaPrefix.
func NewDeriver(prefix string) *Deriver {
	if prefix == "" {
		prefix = DefaultSchemaPrefix
	}
	return &Deriver{prefix: prefix}
}

// SchemaName deriva el nombre de schema: concatenación determinista e
// inyectiva (prefijo fijo + id) dentro del charset validado.
func (d *Deriver) SchemaName(tenantID string) string {
	return d.prefix + tenantID
}

// Prefix expone el prefijo configurado (para logs y tooling).
func (d *Deriver) Prefix() string { return d.prefix }
