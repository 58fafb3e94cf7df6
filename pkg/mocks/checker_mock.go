package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type Checker struct{ mock.Mock }

func (m *Checker) Name() string { return m.Called().String(0) }

func (m *Checker) Check(ctx context.Context) error { return m.Called(ctx).Error(0) }
