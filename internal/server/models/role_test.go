package models

import (
	"errors"
	"testing"

	"github.com/dmitrijs2005/userportal/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"ROLE_USER", RoleUser},
		{"role_hr", RoleHR},
		{"manager", RoleManager},
		{" Admin ", RoleAdmin},
		{"SUPER_ADMIN", RoleSuperAdmin},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseRole_Unknown(t *testing.T) {
	for _, in := range []string{"", "root", "ROLE_"} {
		_, err := ParseRole(in)
		if !errors.Is(err, common.ErrInvalidRole) {
			t.Fatalf("ParseRole(%q): want ErrInvalidRole, got %v", in, err)
		}
	}
}

func TestRole_Authorities(t *testing.T) {
	assert.Equal(t, []string{"user:read"}, RoleUser.Authorities())
	assert.Equal(t, []string{"user:read", "user:update"}, RoleHR.Authorities())
	assert.Equal(t, []string{"user:read", "user:update"}, RoleManager.Authorities())
	assert.Equal(t, []string{"user:read", "user:update", "user:create"}, RoleAdmin.Authorities())
	assert.Equal(t, []string{"user:read", "user:update", "user:create", "user:delete"}, RoleSuperAdmin.Authorities())
	assert.Empty(t, Role("ROLE_GHOST").Authorities())
}

func TestRole_AuthoritiesIsACopy(t *testing.T) {
	a := RoleAdmin.Authorities()
	a[0] = "tampered"
	assert.Equal(t, AuthorityRead, RoleAdmin.Authorities()[0])
}

func TestUser_SetRole(t *testing.T) {
	u := &User{}
	u.SetRole(RoleAdmin)

	assert.Equal(t, RoleAdmin, u.Role)
	assert.Contains(t, u.Authorities, AuthorityCreate)
	assert.NotContains(t, u.Authorities, AuthorityDelete)

	u.SetRole(RoleUser)
	assert.Equal(t, []string{AuthorityRead}, u.Authorities)
}
