// Package mockuserapi provides a testify-based mock of the user service client.
// It is used by the service and router tests to script the answers of the remote service.
package mockuserapi

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/signup/internal/models"
)

// UserServiceMock implements the CreateUser/UpdateUser pair of the user service client.
type UserServiceMock struct {
	mock.Mock
}

// CreateUser mocks the registration call.
func (m *UserServiceMock) CreateUser(ctx context.Context, request models.CreateUserRequest) (*models.UserProfile, error) {
	args := m.Called(ctx, request)
	user, _ := args.Get(0).(*models.UserProfile)
	return user, args.Error(1)
}

// UpdateUser mocks the update-by-id call.
func (m *UserServiceMock) UpdateUser(ctx context.Context, request models.UpdateUserRequest) (*models.UserProfile, error) {
	args := m.Called(ctx, request)
	user, _ := args.Get(0).(*models.UserProfile)
	return user, args.Error(1)
}
