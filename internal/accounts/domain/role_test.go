package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoleCanManage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		actor  Role
		target Role
		want   bool
	}{
		{RoleSuperAdmin, RoleSuperAdmin, true},
		{RoleSuperAdmin, RoleCoachManager, true},
		{RoleSuperAdmin, RoleStudent, true},
		{RoleCoachManager, RoleStudent, true},
		{RoleCoachManager, RoleCoach, true},
		{RoleCoachManager, RoleCoachManager, false},
		{RoleCoachManager, RoleSuperAdmin, false},
		{RoleCoach, RoleStudent, false},
		{RoleSuperAdmin, "", false},
		{RoleSuperAdmin, "owner", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.actor)+"->"+string(tt.target), func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.actor.CanManage(tt.target))
		})
	}
}
