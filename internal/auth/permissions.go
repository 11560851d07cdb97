package auth

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermNetworkRead      Permission = "network:read"
	PermNetworkWrite     Permission = "network:write"
	PermMeasurementWrite Permission = "measurement:write"
	PermUserManage       Permission = "user:manage"
	PermAuditRead        Permission = "audit:read"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermNetworkRead,
	},
	RoleOperator: {
		PermNetworkRead,
		PermNetworkWrite,
		PermMeasurementWrite,
	},
	RoleAdmin: {
		PermNetworkRead,
		PermNetworkWrite,
		PermMeasurementWrite,
		PermUserManage,
		PermAuditRead,
	},
}

// HasPermission returns true if the given role has the specified permission.
// Unknown roles have no permissions.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsFor returns a copy of the permissions granted to role.
func PermissionsFor(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}
