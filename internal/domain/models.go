package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// AccountStatus is the account lifecycle state. Deactivated accounts stay on
// record and flip back to active on the next successful login.
type AccountStatus string

const (
	AccountActive      AccountStatus = "active"
	AccountDeactivated AccountStatus = "deactivated"
)

type User struct {
	ID                string
	Name              string
	Email             string
	Role              Role
	Status            AccountStatus
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ChangedPasswordAfter reports whether the password was changed after the
// given session-token issue time. Comparison is at second granularity because
// that is the precision the token carries.
func (u User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > issuedAt.Unix()
}

// UserWithPassword carries the stored hash alongside the user. Stores return
// it only from the explicit credential lookups, never from default queries.
type UserWithPassword struct {
	User
	PasswordHash string
}

// ProfileUpdate is the fixed projection of self-service profile fields. A new
// sensitive field cannot become updatable without being added here explicitly.
type ProfileUpdate struct {
	Name  *string
	Email *string
}

type Link struct {
	ID        string
	OwnerID   string
	Owner     *User
	Responses []LinkResponse
	CreatedAt time.Time
}

type LinkResponse struct {
	ID        int64
	Text      string
	CreatedAt time.Time
}
