// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an identity record. Username and Email are unique across all
// users; Authorities is derived from Role whenever the role changes.
type User struct {
	ID              int64  `json:"-"`
	UserID          string `json:"userId"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	PasswordHash    string `json:"-"`
	ProfileImageURL string `json:"profileImageUrl"`

	// LastLoginDate is the current login; LastLoginDateDisplay keeps the
	// previous one so it can be shown to the user.
	LastLoginDate        *time.Time `json:"lastLoginDate"`
	LastLoginDateDisplay *time.Time `json:"lastLoginDateDisplay"`
	JoinDate             time.Time  `json:"joinDate"`

	Role        Role     `json:"role"`
	Authorities []string `json:"authorities"`
	Active      bool     `json:"active"`
	Locked      bool     `json:"locked"`
}

// SetRole assigns the role and refreshes the derived authority set.
func (u *User) SetRole(r Role) {
	u.Role = r
	u.Authorities = r.Authorities()
}
