package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/certgate/internal/domain/models"
)

// MockCommandExecutor is a mock implementation of service.CommandExecutor
type MockCommandExecutor struct {
	mock.Mock
}

func (m *MockCommandExecutor) Execute(ctx context.Context, op string, args []string) (*models.ExecResult, error) {
	ret := m.Called(ctx, op, args)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*models.ExecResult), ret.Error(1)
}
