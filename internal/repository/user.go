package repository

import (
	"context"
	"errors"

	"user-auth/internal/domain"
)

var (
	// ErrNotFound is returned when no user matches a lookup or update.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidQuery is returned for a filter that carries no constraints.
	ErrInvalidQuery = errors.New("invalid user query")
	// ErrInvalidField is returned for an update that changes no known field.
	ErrInvalidField = errors.New("invalid user field")
	// ErrAlreadyExists is returned when the email is already taken.
	ErrAlreadyExists = errors.New("user already exists")
	// ErrMultipleFound is returned when a lookup matches more than one user.
	ErrMultipleFound = errors.New("multiple users found")
)

// UserFilter is a set of equality constraints combined with AND.
// Nil fields are ignored.
type UserFilter struct {
	ID         *int64
	Email      *string
	SessionID  *string
	ResetToken *string
}

func ByID(id int64) UserFilter             { return UserFilter{ID: &id} }
func ByEmail(email string) UserFilter      { return UserFilter{Email: &email} }
func BySessionID(id string) UserFilter     { return UserFilter{SessionID: &id} }
func ByResetToken(token string) UserFilter { return UserFilter{ResetToken: &token} }

// IsEmpty reports whether the filter has no constraints.
func (f UserFilter) IsEmpty() bool {
	return f.ID == nil && f.Email == nil && f.SessionID == nil && f.ResetToken == nil
}

// Matches reports whether user satisfies every constraint in the filter.
func (f UserFilter) Matches(user *domain.User) bool {
	if user == nil {
		return false
	}
	if f.ID != nil && user.ID != *f.ID {
		return false
	}
	if f.Email != nil && user.Email != *f.Email {
		return false
	}
	if f.SessionID != nil && (user.SessionID == nil || *user.SessionID != *f.SessionID) {
		return false
	}
	if f.ResetToken != nil && (user.ResetToken == nil || *user.ResetToken != *f.ResetToken) {
		return false
	}
	return true
}

// UserUpdate is a partial update applied to a single user.
type UserUpdate struct {
	Email          *string
	HashedPassword []byte
	SessionID      domain.NullString
	ResetToken     domain.NullString
}

// IsEmpty reports whether the update changes nothing.
func (u UserUpdate) IsEmpty() bool {
	return u.Email == nil && u.HashedPassword == nil && !u.SessionID.Set && !u.ResetToken.Set
}

// Apply copies the changes onto user.
func (u UserUpdate) Apply(user *domain.User) {
	if u.Email != nil {
		user.Email = *u.Email
	}
	if u.HashedPassword != nil {
		user.HashedPassword = append([]byte(nil), u.HashedPassword...)
	}
	if u.SessionID.Set {
		user.SessionID = copyString(u.SessionID.Value)
	}
	if u.ResetToken.Set {
		user.ResetToken = copyString(u.ResetToken.Value)
	}
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Reset(ctx context.Context) error
	Add(ctx context.Context, email string, hashedPassword []byte) (*domain.User, error)
	FindBy(ctx context.Context, filter UserFilter) (*domain.User, error)
	Update(ctx context.Context, id int64, changes UserUpdate) error
}
