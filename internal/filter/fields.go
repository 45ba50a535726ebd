package filter

import (
	"fmt"
	"sort"
)

// FieldType es el tipo declarado de un campo filtrable. Gobierna qué
// operadores aplican y cómo se interpretan los literales.
type FieldType int

const (
	TypeID FieldType = iota
	TypeString
	TypeNumber
	TypeBool
	TypeDate
)

func (t FieldType) String() string {
	switch t {
	case TypeID:
		return "id"
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBool:
		return "bool"
	case TypeDate:
		return "date"
	}
	return "unknown"
}

// Field es una entrada del allow-list de una entidad: el path tal como lo
// escribe el cliente y la columna real a la que compila.
type Field struct {
	Path   string
	Column string
	Type   FieldType
}

// entities es el registro de campos filtrables por entidad. Solo lo que
// figura acá es consultable; cualquier otro path falla en compilación.
// Los dot-paths de relación (un nivel) compilan a columnas
// desnormalizadas del propio schema del tenant.
var entities = map[string]map[string]Field{
	"account": fieldSet(
		Field{"id", "id", TypeID},
		Field{"name", "name", TypeString},
		Field{"status", "status", TypeString},
		Field{"type", "type", TypeString},
		Field{"industry", "industry", TypeString},
		Field{"annual_revenue", "annual_revenue", TypeNumber},
		Field{"active", "active", TypeBool},
		Field{"created_at", "created_at", TypeDate},
		Field{"responsible.id", "responsible_id", TypeID},
		Field{"responsible.name", "responsible_name", TypeString},
	),
	"contact": fieldSet(
		Field{"id", "id", TypeID},
		Field{"name", "name", TypeString},
		Field{"email", "email", TypeString},
		Field{"phone", "phone", TypeString},
		Field{"created_at", "created_at", TypeDate},
		Field{"account.id", "account_id", TypeID},
		Field{"responsible.id", "responsible_id", TypeID},
	),
	"business": fieldSet(
		Field{"id", "id", TypeID},
		Field{"name", "name", TypeString},
		Field{"stage", "stage", TypeString},
		Field{"amount", "amount", TypeNumber},
		Field{"probability", "probability", TypeNumber},
		Field{"close_date", "close_date", TypeDate},
		Field{"created_at", "created_at", TypeDate},
		Field{"account.id", "account_id", TypeID},
		Field{"responsible.id", "responsible_id", TypeID},
	),
}

func fieldSet(fields ...Field) map[string]Field {
	m := make(map[string]Field, len(fields))
	for _, f := range fields {
		m[f.Path] = f
	}
	return m
}

// Entities retorna los nombres de entidad registrados, ordenados.
func Entities() []string {
	names := make([]string, 0, len(entities))
	for name := range entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KnownEntity indica si la entidad tiene registro de campos filtrables.
func KnownEntity(entity string) bool {
	_, ok := entities[entity]
	return ok
}

// TableFor retorna la tabla de la entidad (hoy 1:1 con el nombre).
func TableFor(entity string) (string, error) {
	if !KnownEntity(entity) {
		return "", fmt.Errorf("filter: unknown entity %q", entity)
	}
	return entity, nil
}

// ColumnFor resuelve un path de campo a su columna real. Lo usa la capa
// de queries para validar columnas de ordenamiento con el mismo
// allow-list que gobierna los filtros.
func ColumnFor(entity, path string) (string, bool) {
	f, ok := lookupField(entity, path)
	if !ok {
		return "", false
	}
	return f.Column, true
}

// lookupField resuelve un path de campo dentro del allow-list de la entidad.
func lookupField(entity, path string) (Field, bool) {
	fields, ok := entities[entity]
	if !ok {
		return Field{}, false
	}
	f, ok := fields[path]
	return f, ok
}

// opApplicable decide si el operador aplica al tipo declarado del campo.
// LIKE/ILIKE son exclusivos de strings; IN/NOT IN aplican a tipos con
// igualdad discreta; los ordenados aceptan comparaciones de rango.
func opApplicable(op Op, t FieldType) bool {
	switch op {
	case OpEq, OpNeq:
		return true
	case OpGt, OpLt, OpGte, OpLte:
		return t == TypeNumber || t == TypeDate
	case OpLike, OpILike:
		return t == TypeString
	case OpIn, OpNotIn:
		return t == TypeID || t == TypeString || t == TypeNumber
	}
	return false
}
