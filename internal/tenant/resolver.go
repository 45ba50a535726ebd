package tenant

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/leonardocardososenior/crmx-x-backend-sub000/internal/httpx/errors"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/infra/tenantsql"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/metrics"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/observability/logger"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/tenant/schemacache"
)

// ConnSource es lo que el Resolver necesita del pool manager: adquirir una
// conexión ya fijada al schema del tenant, verificar existencia del schema
// y provisionarlo. *tenantsql.Manager lo satisface; los tests usan fakes.
type ConnSource interface {
	Acquire(ctx context.Context, tenantID string, admin bool) (tenantsql.Handle, error)
	SchemaExists(ctx context.Context, schemaName string) (bool, error)
	ProvisionSchema(ctx context.Context, tenantID, schemaName string) (bool, error)
}

// ResolverConfig agrupa los colaboradores del Resolver.
type ResolverConfig struct {
	Validator *Validator
	Deriver   *Deriver
	Cache     schemacache.Client
	Source    ConnSource
	Locks     *LockRegistry

	// AutoProvision habilita la creación de schema en el primer request de
	// un tenant desconocido. Apagado, un tenant sin schema es 404.
	AutoProvision bool

	// LockWait acota la espera de un vuelo perdedor sobre el lock de
	// creación antes de fallar con conflicto. <= 0 usa 30s.
	LockWait time.Duration
}

// Resolver es el orquestador del binding tenant→schema por request:
// valida el identificador, deriva el schema, consulta el cache de
// validación, provisiona si corresponde y entrega una conexión del pool
// del tenant junto con el Context del request.
//
// Toda falla sale como *apperrors.AppError con tenant y request id
// adjuntos; el caller HTTP solo necesita WriteError.
type Resolver struct {
	cfg ResolverConfig
	log *zap.Logger
}

// NewResolver crea un Resolver. Validator, Deriver, Cache, Source y Locks
// son obligatorios; se normalizan los defaults de espera.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Validator == nil || cfg.Deriver == nil {
		return nil, errors.New("tenant: resolver requires validator and deriver")
	}
	if cfg.Cache == nil || cfg.Source == nil || cfg.Locks == nil {
		return nil, errors.New("tenant: resolver requires cache, source and locks")
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 30 * time.Second
	}
	return &Resolver{cfg: cfg, log: logger.Named("tenant.resolver")}, nil
}

// Resolve ejecuta el pipeline completo para el valor crudo del header de
// tenant. Retorna el Context del request y un Handle que el caller DEBE
// liberar al terminar (defer h.Release()).
func (r *Resolver) Resolve(ctx context.Context, rawHeader, requestID string) (*Context, tenantsql.Handle, error) {
	id, err := r.cfg.Validator.Validate(rawHeader)
	if err != nil {
		return nil, nil, r.fail(validationError(err), "", requestID)
	}

	schema := r.cfg.Deriver.SchemaName(id)

	exists, err := r.schemaExists(ctx, id, schema)
	if err != nil {
		return nil, nil, r.fail(apperrors.ErrSchemaValidationFailed.WithCause(err), id, requestID)
	}

	if !exists {
		if !r.cfg.AutoProvision {
			return nil, nil, r.fail(apperrors.ErrTenantNotFound, id, requestID)
		}
		if appErr := r.ensureProvisioned(ctx, id, schema); appErr != nil {
			return nil, nil, r.fail(appErr, id, requestID)
		}
	}

	h, err := r.cfg.Source.Acquire(ctx, id, false)
	if err != nil {
		return nil, nil, r.fail(acquisitionError(err), id, requestID)
	}

	return &Context{
		TenantID:    id,
		SchemaName:  schema,
		IsValidated: true,
		CreatedAt:   time.Now(),
		RequestID:   requestID,
	}, h, nil
}

// schemaExists consulta primero el cache de validación; en miss va al
// datastore y cachea el resultado (positivo o negativo, mismo TTL).
func (r *Resolver) schemaExists(ctx context.Context, tenantID, schema string) (bool, error) {
	if exists, ok := r.cfg.Cache.Get(ctx, tenantID); ok {
		return exists, nil
	}
	exists, err := r.cfg.Source.SchemaExists(ctx, schema)
	if err != nil {
		return false, err
	}
	r.cfg.Cache.Set(ctx, tenantID, exists)
	return exists, nil
}

// ensureProvisioned serializa la creación del schema dentro del proceso:
// un único vuelo gana el lock y provisiona; los demás esperan acotado y
// re-verifican. La serialización cross-process vive en el advisory lock
// del ProvisionSchema.
func (r *Resolver) ensureProvisioned(ctx context.Context, tenantID, schema string) *apperrors.AppError {
	if r.cfg.Locks.TryAcquire(tenantID) {
		defer r.cfg.Locks.Release(tenantID)

		// Double-check con el lock tomado: un vuelo anterior pudo haber
		// provisionado entre nuestro miss y la adquisición del lock.
		r.cfg.Cache.Invalidate(ctx, tenantID)
		exists, err := r.cfg.Source.SchemaExists(ctx, schema)
		if err != nil {
			return apperrors.ErrSchemaValidationFailed.WithCause(err)
		}
		if exists {
			r.cfg.Cache.Set(ctx, tenantID, true)
			return nil
		}

		created, err := r.cfg.Source.ProvisionSchema(ctx, tenantID, schema)
		if err != nil {
			// Nunca dejar cacheado un estado que no refleja el datastore.
			r.cfg.Cache.Invalidate(ctx, tenantID)
			return apperrors.ErrSchemaOperationFailed.WithCause(err)
		}
		r.cfg.Cache.Set(ctx, tenantID, true)
		if !created {
			r.log.Warn("schema already provisioned by a concurrent flight",
				logger.TenantID(tenantID), logger.SchemaName(schema))
		}
		return nil
	}

	// Vuelo perdedor: esperar a que el ganador termine y re-verificar.
	if !r.cfg.Locks.WaitReleased(ctx, tenantID, r.cfg.LockWait) {
		return apperrors.ErrSchemaCreationConflict
	}

	r.cfg.Cache.Invalidate(ctx, tenantID)
	exists, err := r.schemaExists(ctx, tenantID, schema)
	if err != nil {
		return apperrors.ErrSchemaValidationFailed.WithCause(err)
	}
	if !exists {
		// El ganador falló; este request no reintenta la creación.
		return apperrors.ErrConcurrentOperation
	}
	return nil
}

// fail adjunta tenant y request id, cuenta la métrica y loggea una vez.
func (r *Resolver) fail(appErr *apperrors.AppError, tenantID, requestID string) *apperrors.AppError {
	out := appErr
	if tenantID != "" {
		out = out.WithTenant(tenantID)
	}
	if requestID != "" {
		out = out.WithRequestID(requestID)
	}

	label := tenantID
	if label == "" {
		label = "unknown"
	}
	metrics.ResolverFailures.WithLabelValues(out.Code, label).Inc()

	r.log.Warn("tenant resolution failed",
		logger.ErrorCode(out.Code),
		logger.TenantID(label),
		logger.RequestID(requestID),
		logger.Err(out),
	)
	return out
}

// validationError mapea los errores del Validator a la taxonomía HTTP.
func validationError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, ErrHeaderMissing):
		return apperrors.ErrTenantHeaderMissing
	case errors.Is(err, ErrHeaderEmpty):
		return apperrors.ErrTenantHeaderEmpty
	default:
		return apperrors.ErrTenantFormatInvalid
	}
}

// acquisitionError mapea fallas del pool manager a la taxonomía HTTP.
func acquisitionError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, tenantsql.ErrAcquireTimeout), errors.Is(err, tenantsql.ErrCapacityExceeded):
		return apperrors.ErrPoolExhausted.WithCause(err)
	default:
		return apperrors.ErrDatabaseUnavailable.WithCause(err)
	}
}
