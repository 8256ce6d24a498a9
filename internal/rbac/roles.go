// Package rbac guards HTTP routes by user role.
package rbac

import "strings"

// Application roles. Stored on the user record and mirrored into the
// session at login.
const (
	RoleAdmin     = "ADMIN"
	RoleCDUser    = "USUARIO_CD"
	RoleStore     = "LOJA"
	RoleB2BClient = "CLIENTE_B2B"
)

// KnownRole reports whether the value is one of the application roles.
func KnownRole(role string) bool {
	switch NormalizeRole(role) {
	case RoleAdmin, RoleCDUser, RoleStore, RoleB2BClient:
		return true
	}
	return false
}

// NormalizeRole canonicalises role values coming from user input.
func NormalizeRole(role string) string {
	return strings.ToUpper(strings.TrimSpace(role))
}
