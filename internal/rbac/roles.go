package rbac

// Role names. Keep these stable; they are part of the auth contract and are
// embedded in issued access tokens.
const (
	RoleOperator = "operator" // regular intercom user
	RoleAdmin    = "admin"    // user management + maintenance endpoints
)

func IsAdmin(role string) bool { return role == RoleAdmin }
