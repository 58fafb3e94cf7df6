package user

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxUsernameLength is the longest accepted username, in runes.
const MaxUsernameLength = 64

// UseCase describes user management behavior on top of a Repository.
type UseCase interface {
	Register(ctx context.Context, username string) (User, error)
	Rename(ctx context.Context, id int64, username string) (User, error)
	Get(ctx context.Context, id int64) (User, bool, error)
	Lookup(ctx context.Context, username string) (User, bool, error)
	List(ctx context.Context) ([]User, error)
	Remove(ctx context.Context, id int64) (bool, error)
}

type service struct {
	repo Repository
}

// NewService returns default implementation of UseCase.
func NewService(repo Repository) UseCase {
	return &service{repo: repo}
}

// NormalizeUsername trims surrounding whitespace and validates the result.
func NormalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidUsername, MaxUsernameLength)
	}
	if strings.IndexFunc(username, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("%w: contains control characters", ErrInvalidUsername)
	}
	return username, nil
}

func (s *service) Register(ctx context.Context, username string) (User, error) {
	username, err := NormalizeUsername(username)
	if err != nil {
		return User{}, err
	}
	return s.repo.Save(ctx, User{Username: username})
}

func (s *service) Rename(ctx context.Context, id int64, username string) (User, error) {
	username, err := NormalizeUsername(username)
	if err != nil {
		return User{}, err
	}

	var renamed User
	rename := func(repo Repository) error {
		existing, ok, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		existing.Username = username
		renamed, err = repo.Save(ctx, existing)
		return err
	}

	if txRepo, ok := s.repo.(TxRepository); ok {
		err = txRepo.InTx(ctx, rename)
	} else {
		err = rename(s.repo)
	}
	if err != nil {
		return User{}, err
	}
	return renamed, nil
}

func (s *service) Get(ctx context.Context, id int64) (User, bool, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) Lookup(ctx context.Context, username string) (User, bool, error) {
	return s.repo.FindByUsername(ctx, strings.TrimSpace(username))
}

func (s *service) List(ctx context.Context) ([]User, error) {
	var users []User
	for u, err := range s.repo.FindAll(ctx) {
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *service) Remove(ctx context.Context, id int64) (bool, error) {
	return s.repo.DeleteByID(ctx, id)
}
