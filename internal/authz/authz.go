package authz

import (
	"strings"
	"sync"

	"prizeledger/internal/domain"
	apperrors "prizeledger/pkg/errors"
)

// Authorizer answers whether an address holds a ledger capability. The
// ledger queries this before every privileged operation.
type Authorizer interface {
	HasRole(role domain.Role, address string) bool
}

// Registry is an in-process role registry with admin-gated grant/revoke.
// Addresses are compared case-insensitively.
type Registry struct {
	mu    sync.RWMutex
	roles map[domain.Role]map[string]struct{}
}

// NewRegistry creates a registry with the seed address holding the admin
// role, mirroring the deployer receiving the default admin role.
func NewRegistry(seedAdmin string) *Registry {
	r := &Registry{roles: make(map[domain.Role]map[string]struct{})}
	if seedAdmin != "" {
		r.grant(domain.RoleAdmin, seedAdmin)
	}
	return r
}

// HasRole reports whether address holds role.
func (r *Registry) HasRole(role domain.Role, address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.roles[role][normalize(address)]
	return ok
}

// Grant gives address the role. Caller must hold the admin role.
func (r *Registry) Grant(caller string, role domain.Role, address string) error {
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	if !domain.ValidRole(role) {
		return apperrors.New(apperrors.KindValidation, "unknown role: "+string(role))
	}
	if domain.IsZeroAddress(address) {
		return apperrors.New(apperrors.KindInvalidAddress, "cannot grant a role to the zero address")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grant(role, address)
	return nil
}

// Revoke removes the role from address. Caller must hold the admin role.
func (r *Registry) Revoke(caller string, role domain.Role, address string) error {
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	if !domain.ValidRole(role) {
		return apperrors.New(apperrors.KindValidation, "unknown role: "+string(role))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if members, ok := r.roles[role]; ok {
		delete(members, normalize(address))
	}
	return nil
}

func (r *Registry) requireAdmin(caller string) error {
	if !r.HasRole(domain.RoleAdmin, caller) {
		return apperrors.New(apperrors.KindUnauthorized, "admin role required")
	}
	return nil
}

// grant inserts without authorization checks. Caller holds the lock or is
// the constructor.
func (r *Registry) grant(role domain.Role, address string) {
	if r.roles[role] == nil {
		r.roles[role] = make(map[string]struct{})
	}
	r.roles[role][normalize(address)] = struct{}{}
}

func normalize(address string) string {
	return strings.ToLower(address)
}
