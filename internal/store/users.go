package store

import (
	"context"

	"github.com/wolfman30/lumeskin-platform/internal/models"
)

func (s *Store) Users(ctx context.Context) (users []models.User, err error) {
	ctx, done := s.observe(ctx, "users")
	defer done(&err)
	return readCollection[models.User](ctx, s, usersKey)
}

// AddUser appends without checking for duplicate emails.
func (s *Store) AddUser(ctx context.Context, user models.User) (err error) {
	ctx, done := s.observe(ctx, "add_user")
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := readCollection[models.User](ctx, s, usersKey)
	if err != nil {
		return err
	}
	return writeCollection(ctx, s, usersKey, append(users, user))
}

// FindUserByEmail returns the first user whose email matches exactly.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	users, err := s.Users(ctx)
	if err != nil {
		return models.User{}, err
	}
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, ErrUserNotFound
}

func (s *Store) FindUserByID(ctx context.Context, id string) (models.User, error) {
	users, err := s.Users(ctx)
	if err != nil {
		return models.User{}, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, ErrUserNotFound
}
