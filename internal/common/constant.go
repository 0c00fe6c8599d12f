package common

// Roles a profile can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
	RoleOwner = "owner"
)

// AuthorizationHeader carries the bearer access token on HTTP requests.
const AuthorizationHeader = "Authorization"

// IsModeratorRole reports whether role may take moderation actions.
func IsModeratorRole(role string) bool {
	return role == RoleAdmin || role == RoleOwner
}
