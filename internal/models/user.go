package models

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the profile returned alongside a login token.
type User struct {
	ID       ID     `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// DisplayName prefers the full name, then the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// SignupRequest is the registration payload for a new account.
type SignupRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}
