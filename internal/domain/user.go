package domain

import "time"

// User represents a registered account and its session/reset state.
type User struct {
	ID             int64
	Email          string
	HashedPassword []byte
	SessionID      *string
	ResetToken     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasSession reports whether the user currently holds a live session id.
func (u *User) HasSession() bool {
	return u != nil && u.SessionID != nil && *u.SessionID != ""
}

// HasPendingReset reports whether a password reset token is outstanding.
func (u *User) HasPendingReset() bool {
	return u != nil && u.ResetToken != nil && *u.ResetToken != ""
}

// NullString describes a change to a nullable text column.
// The zero value leaves the column untouched.
type NullString struct {
	Set   bool
	Value *string
}

// SetString returns a change that stores v.
func SetString(v string) NullString {
	return NullString{Set: true, Value: &v}
}

// ClearString returns a change that stores NULL.
func ClearString() NullString {
	return NullString{Set: true}
}
