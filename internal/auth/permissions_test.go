package auth

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleViewer, PermNetworkRead, true},
		{RoleViewer, PermNetworkWrite, false},
		{RoleViewer, PermMeasurementWrite, false},
		{RoleViewer, PermUserManage, false},
		{RoleOperator, PermNetworkRead, true},
		{RoleOperator, PermNetworkWrite, true},
		{RoleOperator, PermMeasurementWrite, true},
		{RoleOperator, PermUserManage, false},
		{RoleAdmin, PermNetworkRead, true},
		{RoleAdmin, PermNetworkWrite, true},
		{RoleAdmin, PermMeasurementWrite, true},
		{RoleAdmin, PermUserManage, true},
		{RoleAdmin, PermAuditRead, true},
		{RoleOperator, PermAuditRead, false},
		{Role("unknown"), PermNetworkRead, false},
	}

	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.want {
			t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}

func TestPermissionsFor_ReturnsCopy(t *testing.T) {
	perms := PermissionsFor(RoleViewer)
	if len(perms) != 1 {
		t.Fatalf("viewer permissions = %v", perms)
	}
	perms[0] = PermUserManage
	if HasPermission(RoleViewer, PermUserManage) {
		t.Error("mutating the returned slice changed the role table")
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range ValidRoles {
		if !IsValidRole(r) {
			t.Errorf("IsValidRole(%s) = false", r)
		}
	}
	if IsValidRole("owner") || IsValidRole("") {
		t.Error("unknown roles should be invalid")
	}
}

func TestIsValidUsername(t *testing.T) {
	for name, want := range map[string]bool{
		"alice":      true,
		"j.doe-2_x":  true,
		"":           false,
		"has space":  false,
		"semi;colon": false,
	} {
		if got := IsValidUsername(name); got != want {
			t.Errorf("IsValidUsername(%q) = %v, want %v", name, got, want)
		}
	}
}
