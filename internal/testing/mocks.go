package testing

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/imamik/podstrap/internal/packages"
)

// MockPackageManager is a mock implementation of packages.Manager.
type MockPackageManager struct {
	mock.Mock
}

var _ packages.Manager = (*MockPackageManager)(nil)

// Installed returns the mocked subset of installed packages.
func (m *MockPackageManager) Installed(ctx context.Context, names []string) ([]string, error) {
	args := m.Called(ctx, names)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// Remove records a removal.
func (m *MockPackageManager) Remove(ctx context.Context, names []string) error {
	args := m.Called(ctx, names)
	return args.Error(0)
}

// Refresh records an index refresh.
func (m *MockPackageManager) Refresh(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Install records an installation.
func (m *MockPackageManager) Install(ctx context.Context, names []string) error {
	args := m.Called(ctx, names)
	return args.Error(0)
}
