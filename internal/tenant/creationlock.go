package tenant

import (
	"context"
	"sync"
	"time"
)

// LockRegistry serializa el flujo de provisioning "primer request de un
// tenant nuevo": a lo sumo un vuelo de creación por tenant id a la vez.
//
// Test-and-set atómico bajo mutex; un lock expirado (holder colgado o
// proceso muerto a mitad de vuelo) se considera liberado y es reclamable.
// La mitad cross-process de esta garantía es el advisory lock de Postgres
// dentro del provisioning; este registro evita que dos goroutines del mismo
// proceso concluyan "el schema falta, lo creo yo".
type LockRegistry struct {
	mu      sync.Mutex
	held    map[string]time.Time // tenantID → acquiredAt
	timeout time.Duration
	now     func() time.Time
}

// NewLockRegistry crea el registro; timeout <= 0 usa 30s.
func NewLockRegistry(timeout time.Duration) *LockRegistry {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LockRegistry{
		held:    make(map[string]time.Time),
		timeout: timeout,
		now:     time.Now,
	}
}

func (r *LockRegistry) isActive(acquiredAt time.Time) bool {
	return r.now().Before(acquiredAt.Add(r.timeout))
}

// TryAcquire intenta tomar el lock del tenant. Retorna false si otro vuelo
// lo tiene activo. Locks vencidos se reclaman en el mismo paso.
func (r *LockRegistry) TryAcquire(tenantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if at, ok := r.held[tenantID]; ok && r.isActive(at) {
		return false
	}
	r.held[tenantID] = r.now()
	return true
}

// Release libera el lock del tenant (idempotente).
func (r *LockRegistry) Release(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.held, tenantID)
}

// Held indica si hay un lock activo para el tenant.
func (r *LockRegistry) Held(tenantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.held[tenantID]
	return ok && r.isActive(at)
}

// WaitReleased espera (acotado por maxWait y por ctx) a que el lock del
// tenant quede libre. Retorna false si el lock sigue tomado al expirar la
// espera; el caller decide entre reintentar o fallar con conflicto.
func (r *LockRegistry) WaitReleased(ctx context.Context, tenantID string, maxWait time.Duration) bool {
	deadline := r.now().Add(maxWait)
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !r.Held(tenantID) {
			return true
		}
		if r.now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
