// Package tenant carries the explicit tenant scope every core call receives.
package tenant

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
)

// ErrInvalidTenant indicates a malformed tenant identifier.
var ErrInvalidTenant = errors.New("invalid tenant")

var slugRE = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// Scope identifies the tenant a call acts for and, optionally, the subset of
// accounts it may see. An empty AccountIDs means every account of the tenant.
type Scope struct {
	TenantID   string
	AccountIDs []int
}

// New returns a Scope for tenantID after validating it. Tenant IDs end up in
// file paths and SQL parameters, so only lowercase slugs are accepted.
func New(tenantID string, accountIDs ...int) (Scope, error) {
	if !slugRE.MatchString(tenantID) {
		return Scope{}, fmt.Errorf("%w: %q", ErrInvalidTenant, tenantID)
	}
	return Scope{TenantID: tenantID, AccountIDs: accountIDs}, nil
}

// Includes reports whether accountID is visible in the scope.
func (s Scope) Includes(accountID int) bool {
	if len(s.AccountIDs) == 0 {
		return true
	}
	return slices.Contains(s.AccountIDs, accountID)
}

// Restricted reports whether the scope names an explicit account subset.
func (s Scope) Restricted() bool {
	return len(s.AccountIDs) > 0
}
