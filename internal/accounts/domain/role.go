package domain

// Role is the platform role carried by a UserRecord.
type Role string

const (
	RoleStudent      Role = "user"
	RoleCoach        Role = "coach"
	RoleCoachManager Role = "coach_manager"
	RoleSuperAdmin   Role = "super_admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleCoach, RoleCoachManager, RoleSuperAdmin:
		return true
	}
	return false
}

// CanManage reports whether a caller holding r may invite, block or unblock
// accounts with the target role. Only super admins act on staff roles.
func (r Role) CanManage(target Role) bool {
	if !target.Valid() {
		return false
	}
	switch r {
	case RoleSuperAdmin:
		return true
	case RoleCoachManager:
		return target == RoleStudent || target == RoleCoach
	default:
		return false
	}
}

// ProfileKind returns which role profile a record with this role gets.
func (r Role) ProfileKind() ProfileKind {
	switch r {
	case RoleCoach, RoleCoachManager:
		return ProfileCoach
	case RoleStudent:
		return ProfileStudent
	default:
		return ProfileNone
	}
}

// Label is the human-readable role name used in emails and status messages.
func (r Role) Label() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleCoach:
		return "coach"
	case RoleCoachManager:
		return "coach manager"
	case RoleSuperAdmin:
		return "super admin"
	default:
		return string(r)
	}
}
