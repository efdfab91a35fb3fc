package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"enrolldash/internal/infrastructure"
	"enrolldash/pkg/contracts/domain"
	"enrolldash/pkg/contracts/events"
)

// MockSessionStore is a mock for SessionStore
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Create(ctx context.Context) domain.SessionSnapshot {
	return m.Called(ctx).Get(0).(domain.SessionSnapshot)
}

func (m *MockSessionStore) Snapshot(id string) (domain.SessionSnapshot, error) {
	args := m.Called(id)
	return args.Get(0).(domain.SessionSnapshot), args.Error(1)
}

func (m *MockSessionStore) Dispatch(ctx context.Context, id string, ev events.Event) (domain.SessionSnapshot, error) {
	args := m.Called(ctx, id, ev)
	return args.Get(0).(domain.SessionSnapshot), args.Error(1)
}

func (m *MockSessionStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSessionStore) Len() int {
	return m.Called().Int(0)
}

// MockPublisher is a mock for SnapshotPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.EventType, snap domain.SessionSnapshot) error {
	return m.Called(ctx, event, snap).Error(0)
}

type fixedClients int

func (c fixedClients) ClientCount() int { return int(c) }

type fixedRuntime infrastructure.RuntimeStats

func (r fixedRuntime) Latest(context.Context) infrastructure.RuntimeStats {
	return infrastructure.RuntimeStats(r)
}
