package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"agroai/internal/models"
	"agroai/internal/repository"
)

// fakeUserRepo enforces email uniqueness the way the unique index does.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int64]models.User
	nextID int64

	// hideOnLookup and skipTakenCheck make the application-level checks miss,
	// simulating a race where the row appears between the check and the write.
	hideOnLookup   bool
	skipTakenCheck bool
	failWith       error

	getByIDCalls int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]models.User)}
}

func (r *fakeUserRepo) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	if r.hideOnLookup {
		return nil, repository.ErrUserNotFound
	}
	for _, u := range r.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getByIDCalls++
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) EmailTakenByOther(_ context.Context, email string, excludeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.skipTakenCheck {
		return false, nil
	}
	for id, u := range r.users {
		if u.Email == email && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) UpdateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	for id, u := range r.users {
		if u.Email == user.Email && id != user.ID {
			return repository.ErrDuplicateEmail
		}
	}
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) byEmail(email string) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			found := u
			return &found
		}
	}
	return nil
}

type failingDenylist struct{}

func (failingDenylist) Revoke(context.Context, string, time.Time) error {
	return errors.New("denylist down")
}

func (failingDenylist) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("denylist down")
}
