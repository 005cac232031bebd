package models

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/userportal/internal/common"
)

// Role is a tagged user role; each role maps to a fixed authority set.
type Role string

const (
	RoleUser       Role = "ROLE_USER"
	RoleHR         Role = "ROLE_HR"
	RoleManager    Role = "ROLE_MANAGER"
	RoleAdmin      Role = "ROLE_ADMIN"
	RoleSuperAdmin Role = "ROLE_SUPER_ADMIN"
)

// Authorities understood by the HTTP layer.
const (
	AuthorityRead   = "user:read"
	AuthorityUpdate = "user:update"
	AuthorityCreate = "user:create"
	AuthorityDelete = "user:delete"
)

var roleAuthorities = map[Role][]string{
	RoleUser:       {AuthorityRead},
	RoleHR:         {AuthorityRead, AuthorityUpdate},
	RoleManager:    {AuthorityRead, AuthorityUpdate},
	RoleAdmin:      {AuthorityRead, AuthorityUpdate, AuthorityCreate},
	RoleSuperAdmin: {AuthorityRead, AuthorityUpdate, AuthorityCreate, AuthorityDelete},
}

// ParseRole accepts a role name in any case, with or without the "ROLE_"
// prefix.
func ParseRole(s string) (Role, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(name, "ROLE_") {
		name = "ROLE_" + name
	}
	r := Role(name)
	if _, ok := roleAuthorities[r]; !ok {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidRole, s)
	}
	return r, nil
}

// Authorities returns a copy of the role's authority set. Unknown roles have
// none.
func (r Role) Authorities() []string {
	a := roleAuthorities[r]
	out := make([]string, len(a))
	copy(out, a)
	return out
}
