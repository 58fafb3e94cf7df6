package user

import "time"

// User is a domain entity representing an application account.
type User struct {
	ID        int64
	Username  string
	CreatedAt time.Time
}

// IsNew reports whether the user has not been persisted yet.
func (u User) IsNew() bool {
	return u.ID == 0
}
