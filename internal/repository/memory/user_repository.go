// Package memory implements an in-memory user repository for development and testing.
package memory

import (
	"context"
	"sync"
	"time"

	"user-auth/internal/domain"
	"user-auth/internal/repository"
)

// UserRepository keeps users in a slice guarded by a mutex.
type UserRepository struct {
	mu     sync.RWMutex
	users  []*domain.User
	nextID int64
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

func (r *UserRepository) Init(ctx context.Context) error {
	return nil
}

func (r *UserRepository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users = nil
	r.nextID = 0
	return nil
}

func (r *UserRepository) Add(ctx context.Context, email string, hashedPassword []byte) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			return nil, repository.ErrAlreadyExists
		}
	}

	r.nextID++
	now := time.Now().UTC()
	user := &domain.User{
		ID:             r.nextID,
		Email:          email,
		HashedPassword: append([]byte(nil), hashedPassword...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.users = append(r.users, user)
	return clone(user), nil
}

func (r *UserRepository) FindBy(ctx context.Context, filter repository.UserFilter) (*domain.User, error) {
	if filter.IsEmpty() {
		return nil, repository.ErrInvalidQuery
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *domain.User
	for _, u := range r.users {
		if !filter.Matches(u) {
			continue
		}
		if found != nil {
			return nil, repository.ErrMultipleFound
		}
		found = u
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return clone(found), nil
}

func (r *UserRepository) Update(ctx context.Context, id int64, changes repository.UserUpdate) error {
	if changes.IsEmpty() {
		return repository.ErrInvalidField
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var target *domain.User
	for _, u := range r.users {
		if u.ID == id {
			target = u
			break
		}
	}
	if target == nil {
		return repository.ErrNotFound
	}
	if changes.Email != nil {
		for _, u := range r.users {
			if u.ID != id && u.Email == *changes.Email {
				return repository.ErrAlreadyExists
			}
		}
	}

	changes.Apply(target)
	target.UpdatedAt = time.Now().UTC()
	return nil
}

// clone hands out copies so callers never share state with the store.
func clone(u *domain.User) *domain.User {
	c := *u
	c.HashedPassword = append([]byte(nil), u.HashedPassword...)
	if u.SessionID != nil {
		s := *u.SessionID
		c.SessionID = &s
	}
	if u.ResetToken != nil {
		s := *u.ResetToken
		c.ResetToken = &s
	}
	return &c
}
