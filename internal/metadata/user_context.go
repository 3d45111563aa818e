package metadata

// UserContext carries the authenticated user through a request.
type UserContext struct {
	ID    string
	Roles []string
}

// IsAdmin returns true if the user has the admin role.
func (u *UserContext) IsAdmin() bool {
	for _, r := range u.Roles {
		if r == "admin" {
			return true
		}
	}
	return false
}
