package adminauth_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	adminauth "github.com/goliatone/go-admin-auth"
)

// MockProfileStore implements adminauth.ProfileStore
type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) Get(ctx context.Context, identityID string) (*adminauth.AdminProfile, error) {
	args := m.Called(ctx, identityID)
	profile, _ := args.Get(0).(*adminauth.AdminProfile)
	return profile, args.Error(1)
}

func (m *MockProfileStore) Put(ctx context.Context, identityID string, patch adminauth.ProfilePatch, merge bool) error {
	args := m.Called(ctx, identityID, patch, merge)
	return args.Error(0)
}

// MockKeyValueStore implements adminauth.KeyValueStore
type MockKeyValueStore struct {
	mock.Mock
}

func (m *MockKeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockKeyValueStore) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockKeyValueStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
