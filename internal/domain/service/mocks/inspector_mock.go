package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/certgate/internal/domain/models"
)

// MockCertificateInspector is a mock implementation of service.CertificateInspector
type MockCertificateInspector struct {
	mock.Mock
}

func (m *MockCertificateInspector) Inspect(ctx context.Context, path string) (*models.CertificateMetadata, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CertificateMetadata), args.Error(1)
}

func (m *MockCertificateInspector) ExtendedKeyUsage(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

func (m *MockCertificateInspector) Describe(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}
