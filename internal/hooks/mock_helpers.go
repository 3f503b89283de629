package hooks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cognaterra/better-drinking-bird/internal/sentinel"
)

// MockBranchResolver is a mock implementation of safety.BranchResolver for testing.
type MockBranchResolver struct {
	mock.Mock
}

// CurrentBranch is a mock implementation of safety.BranchResolver.CurrentBranch.
func (m *MockBranchResolver) CurrentBranch(dir string) (string, error) {
	args := m.Called(dir)
	return args.String(0), args.Error(1)
}

// MockProcessKiller is a mock implementation of ProcessKiller for testing.
type MockProcessKiller struct {
	mock.Mock
}

// KillParent is a mock implementation of ProcessKiller.KillParent.
func (m *MockProcessKiller) KillParent() error {
	args := m.Called()
	return args.Error(0)
}

// MockStateReader is a mock implementation of StateReader for testing.
type MockStateReader struct {
	mock.Mock
}

// IsPaused is a mock implementation of StateReader.IsPaused.
func (m *MockStateReader) IsPaused(cwd string) (bool, string) {
	args := m.Called(cwd)
	return args.Bool(0), args.String(1)
}

// Mode is a mock implementation of StateReader.Mode.
func (m *MockStateReader) Mode(cwd string) (sentinel.Mode, string) {
	args := m.Called(cwd)
	return args.Get(0).(sentinel.Mode), args.String(1)
}

// MockPipeline is a mock implementation of Pipeline for testing.
type MockPipeline struct {
	mock.Mock
}

// Handle is a mock implementation of Pipeline.Handle.
func (m *MockPipeline) Handle(ctx context.Context, event *Event) (Decision, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(Decision), args.Error(1)
}
