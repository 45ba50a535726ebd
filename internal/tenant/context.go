package tenant

import "time"

// Context es el binding tenant→schema de un request.
// Se crea una vez por request en el Resolver, vive en el request scope y
// nunca se persiste.
type Context struct {
	TenantID    string
	SchemaName  string
	IsValidated bool
	CreatedAt   time.Time
	// RequestID correlaciona errores y logs del request que creó el binding.
	RequestID string
}
