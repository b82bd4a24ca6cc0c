package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/turtacn/certgate/internal/domain/models"
)

// MockVarsStore is a mock implementation of service.VarsStore
type MockVarsStore struct {
	mock.Mock
}

func (m *MockVarsStore) Read() (models.CAConfig, bool, error) {
	args := m.Called()
	return args.Get(0).(models.CAConfig), args.Bool(1), args.Error(2)
}

func (m *MockVarsStore) Write(cfg models.CAConfig) error {
	args := m.Called(cfg)
	return args.Error(0)
}
