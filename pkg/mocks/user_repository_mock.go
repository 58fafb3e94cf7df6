package mocks

import (
	"context"
	"iter"

	"github.com/stretchr/testify/mock"

	"github.com/artem13815/users/pkg/user"
)

type UserRepository struct{ mock.Mock }

func (m *UserRepository) Save(ctx context.Context, u user.User) (user.User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(user.User), args.Error(1)
}

func (m *UserRepository) FindByID(ctx context.Context, id int64) (user.User, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(user.User), args.Bool(1), args.Error(2)
}

func (m *UserRepository) FindByUsername(ctx context.Context, username string) (user.User, bool, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(user.User), args.Bool(1), args.Error(2)
}

func (m *UserRepository) FindAll(ctx context.Context) iter.Seq2[user.User, error] {
	return m.Called(ctx).Get(0).(iter.Seq2[user.User, error])
}

func (m *UserRepository) DeleteByID(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// TxUserRepository runs InTx callbacks against itself.
type TxUserRepository struct{ UserRepository }

func (m *TxUserRepository) InTx(ctx context.Context, fn func(user.Repository) error) error {
	if err := m.Called(ctx).Error(0); err != nil {
		return err
	}
	return fn(&m.UserRepository)
}
