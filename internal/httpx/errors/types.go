package errors

import (
	"fmt"
	"net/http"
)

// AppError define la estructura estándar para errores de la aplicación.
// El texto de Message es corto y estable; la localización humana es
// responsabilidad del caller, nunca de este core.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	TenantID   string `json:"tenant_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	HTTPStatus int    `json:"-"` // No se serializa, usado para el header
	Err        error  `json:"-"` // Causa original, útil para logs, nunca se expone al cliente
}

// Error implementa la interfaz error.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap permite acceder al error original.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New crea un nuevo AppError.
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// FromError intenta convertir un error genérico en un AppError.
// Si no es un AppError, devuelve un error interno genérico conservando la causa.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternalServerError.WithCause(err)
}

// WithDetail agrega detalles adicionales al error.
// Devuelve una COPIA para no mutar las variables globales base.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause agrega el error original (causa). Devuelve una COPIA.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// WithTenant agrega el tenant id ofensor (si se resolvió). Devuelve una COPIA.
func (e *AppError) WithTenant(tenantID string) *AppError {
	newErr := *e
	newErr.TenantID = tenantID
	return &newErr
}

// WithRequestID agrega el id de correlación del request. Devuelve una COPIA.
func (e *AppError) WithRequestID(requestID string) *AppError {
	newErr := *e
	newErr.RequestID = requestID
	return &newErr
}

// =================================================================================
// LISTA DE ERRORES PREDEFINIDOS
// =================================================================================

// ---------------------------------------------------------------------------------
// 400 Bad Request - Tenant header / filtros (errores deterministas del cliente)
// ---------------------------------------------------------------------------------

var (
	ErrTenantHeaderMissing = &AppError{
		Code:       "TENANT_HEADER_MISSING",
		Message:    "Falta el header de tenant en la solicitud.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrTenantHeaderEmpty = &AppError{
		Code:       "TENANT_HEADER_EMPTY",
		Message:    "El header de tenant está vacío.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrTenantFormatInvalid = &AppError{
		Code:       "TENANT_FORMAT_INVALID",
		Message:    "El identificador de tenant tiene un formato inválido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrFilterSyntax = &AppError{
		Code:       "FILTER_SYNTAX_INVALID",
		Message:    "La expresión de filtro no es sintácticamente válida.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrFilterUnknownField = &AppError{
		Code:       "FILTER_UNKNOWN_FIELD",
		Message:    "El filtro referencia un campo no filtrable.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrFilterOperatorMismatch = &AppError{
		Code:       "FILTER_OPERATOR_MISMATCH",
		Message:    "El operador no aplica al tipo del campo.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrFilterInvalidLiteral = &AppError{
		Code:       "FILTER_INVALID_LITERAL",
		Message:    "Un literal del filtro no parsea al tipo esperado.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrFilterTooComplex = &AppError{
		Code:       "FILTER_TOO_COMPLEX",
		Message:    "La expresión de filtro excede los límites de profundidad o tamaño.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidParameter = &AppError{
		Code:       "INVALID_PARAMETER",
		Message:    "Uno de los parámetros de la Query String es inválido.",
		HTTPStatus: http.StatusBadRequest,
	}
)

// ---------------------------------------------------------------------------------
// 404 Not Found
// ---------------------------------------------------------------------------------

var (
	ErrRecordNotFound = &AppError{
		Code:       "RECORD_NOT_FOUND",
		Message:    "El registro solicitado no existe.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrTenantNotFound = &AppError{
		Code:       "TENANT_NOT_FOUND",
		Message:    "El tenant especificado no tiene schema provisionado.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrRouteNotFound = &AppError{
		Code:       "ROUTE_NOT_FOUND",
		Message:    "La ruta solicitada no existe.",
		HTTPStatus: http.StatusNotFound,
	}
)

// ---------------------------------------------------------------------------------
// 409 Conflict - Concurrencia (transitorios, reintentables por el caller)
// ---------------------------------------------------------------------------------

var (
	ErrSchemaCreationConflict = &AppError{
		Code:       "SCHEMA_CREATION_CONFLICT",
		Message:    "Otra solicitud está provisionando el schema de este tenant.",
		HTTPStatus: http.StatusConflict,
	}

	ErrConcurrentOperation = &AppError{
		Code:       "CONCURRENT_OPERATION_FAILED",
		Message:    "Una operación concurrente impidió completar la solicitud.",
		HTTPStatus: http.StatusConflict,
	}
)

// ---------------------------------------------------------------------------------
// 500 - Backend / provisioning
// ---------------------------------------------------------------------------------

var (
	ErrSchemaValidationFailed = &AppError{
		Code:       "SCHEMA_VALIDATION_FAILED",
		Message:    "No se pudo verificar la existencia del schema del tenant.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrSchemaOperationFailed = &AppError{
		Code:       "SCHEMA_OPERATION_FAILED",
		Message:    "Falló la creación o migración del schema del tenant.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Ocurrió un error interno en el servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}
)

// ---------------------------------------------------------------------------------
// 503 - Infraestructura
// ---------------------------------------------------------------------------------

var (
	ErrDatabaseUnavailable = &AppError{
		Code:       "DATABASE_UNAVAILABLE",
		Message:    "El datastore no está disponible temporalmente.",
		HTTPStatus: http.StatusServiceUnavailable,
	}

	ErrPoolExhausted = &AppError{
		Code:       "POOL_EXHAUSTED",
		Message:    "No hay conexiones disponibles para el tenant.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
