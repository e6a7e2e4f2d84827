package models

import "time"

// Session represents a logged-in user. The token is opaque to the client.
type Session struct {
	Token      string    `json:"token"`
	User       *User     `json:"user,omitempty"`
	LoggedInAt time.Time `json:"loggedInAt"`
}

// IsAuthenticated reports whether the session carries a token.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Token != ""
}
