package engine

import (
	"fmt"
	"sync"

	"github.com/MatrixLabsTech/crystal-caves-zk/core"
)

// Role is a capability grantable to a caller address.
type Role string

const (
	// RoleOperator may replace configuration, manage the reward pool,
	// register verifying keys and grant or revoke roles.
	RoleOperator Role = "operator"
	// RolePauser may pause and unpause the engine.
	RolePauser Role = "pauser"
)

// AccessList is the capability layer in front of operator operations:
// an authenticated caller maps to a set of roles. It replaces deployment-
// specific role machinery with an explicit, queryable permission set.
type AccessList struct {
	mu    sync.RWMutex
	roles map[string]map[Role]bool
}

// NewAccessList creates an AccessList with operator bootstrapped as the
// initial RoleOperator holder.
func NewAccessList(operator string) *AccessList {
	a := &AccessList{roles: make(map[string]map[Role]bool)}
	a.Grant(operator, RoleOperator)
	return a
}

// Grant gives caller the role.
func (a *AccessList) Grant(caller string, role Role) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.roles[caller] == nil {
		a.roles[caller] = make(map[Role]bool)
	}
	a.roles[caller][role] = true
}

// Revoke removes the role from caller.
func (a *AccessList) Revoke(caller string, role Role) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.roles[caller], role)
}

// Has reports whether caller holds role.
func (a *AccessList) Has(caller string, role Role) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.roles[caller][role]
}

// Require returns ErrPermissionDenied unless caller holds role. Operators
// implicitly hold every role.
func (a *AccessList) Require(caller string, role Role) error {
	if a.Has(caller, role) || a.Has(caller, RoleOperator) {
		return nil
	}
	return fmt.Errorf("%w: %s needs %s", core.ErrPermissionDenied, caller, role)
}
