package domain

import "fmt"

// User is the staff member a session belongs to.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// Validate reports whether the record carries the fields a session needs.
func (u *User) Validate() error {
	if u == nil {
		return fmt.Errorf("user: missing")
	}
	if u.ID == "" {
		return fmt.Errorf("user: missing id")
	}
	return nil
}

// DisplayName is the name shown in greetings, or the email when unnamed.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
