package auth

// Permission represents a named capability of the API.
type Permission string

// Permission constants.
const (
	PermRegistryRead    Permission = "registry:read"
	PermEventsSubscribe Permission = "events:subscribe"
	PermAuditRead       Permission = "audit:read"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleReader: {
		PermRegistryRead,
		PermEventsSubscribe,
	},
	RoleAdmin: {
		PermRegistryRead,
		PermEventsSubscribe,
		PermAuditRead,
	},
}

// HasPermission reports whether role grants perm. Unknown roles grant nothing.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
