package rbac

// Role names carried in access tokens.
const (
	RoleAdmin    = "admin"     // add-on lifecycle and everything below
	RoleUser     = "user"      // service calls and state reads
	RoleReadOnly = "read_only" // state reads only
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// IsKnown reports whether role can be issued.
func IsKnown(role string) bool {
	switch role {
	case RoleAdmin, RoleUser, RoleReadOnly:
		return true
	default:
		return false
	}
}
