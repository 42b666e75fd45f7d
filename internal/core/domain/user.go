package domain

import "time"

// UserStatus is the soft lifecycle state of an account. Accounts are never
// hard-deleted.
type UserStatus string

const (
	UserPending   UserStatus = "pending"
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserPending, UserActive, UserSuspended:
		return true
	}
	return false
}

// User is a stored credential record. The role is referenced by id, never
// embedded.
type User struct {
	ID                  string     `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	FirstName           string     `json:"first_name,omitempty"`
	LastName            string     `json:"last_name,omitempty"`
	PasswordHash        string     `json:"-"`
	Branch              Branch     `json:"branch"`
	RoleID              string     `json:"role_id"`
	Status              UserStatus `json:"status"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// UserFilter narrows user listings. Empty Branches means no branch at all.
type UserFilter struct {
	Branches []Branch
	Status   UserStatus
}
