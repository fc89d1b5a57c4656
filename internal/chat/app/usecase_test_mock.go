package app

import (
	"context"
	"time"

	"marketplace_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockGateway Mock repository.Gateway
type MockGateway struct {
	mock.Mock
}

// CreateConversation mock create conversation
func (m *MockGateway) CreateConversation(ctx context.Context, participants []string) (*domain.Conversation, error) {
	args := m.Called(ctx, participants)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindConversation mock find conversation
func (m *MockGateway) FindConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// AddParticipant mock atomic participant add
func (m *MockGateway) AddParticipant(ctx context.Context, id, userID string) (*domain.Conversation, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// TouchConversation mock activity bump
func (m *MockGateway) TouchConversation(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MarkDraining mock draining marker
func (m *MockGateway) MarkDraining(ctx context.Context, id string, since time.Time) error {
	return m.Called(ctx, id, since).Error(0)
}

// ClearDraining mock draining marker removal
func (m *MockGateway) ClearDraining(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// DeleteConversation mock cascade delete
func (m *MockGateway) DeleteConversation(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// CreateMessage mock create message
func (m *MockGateway) CreateMessage(ctx context.Context, conversationID, sender, content string) (*domain.Message, error) {
	args := m.Called(ctx, conversationID, sender, content)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListMessages mock list messages
func (m *MockGateway) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListConversationsForUser mock list conversations
func (m *MockGateway) ListConversationsForUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// CountConversationsCreatedSince mock quota count
func (m *MockGateway) CountConversationsCreatedSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	args := m.Called(ctx, userID, since)
	return args.Get(0).(int64), args.Error(1)
}

// ListDrainingConversations mock draining listing
func (m *MockGateway) ListDrainingConversations(ctx context.Context, before time.Time) ([]domain.Conversation, error) {
	args := m.Called(ctx, before)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockPlanSource Mock PlanSource
type MockPlanSource struct {
	mock.Mock
}

// GetPlan mock plan lookup
func (m *MockPlanSource) GetPlan(ctx context.Context, userID string) (domain.Plan, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.Plan), args.Error(1)
}

// MockReportPublisher Mock repository.ReportPublisher
type MockReportPublisher struct {
	mock.Mock
}

// PublishReport mock publish
func (m *MockReportPublisher) PublishReport(ctx context.Context, event domain.ReportEvent) error {
	return m.Called(ctx, event).Error(0)
}

// MockCleanupScheduler Mock CleanupScheduler
type MockCleanupScheduler struct {
	mock.Mock
}

// ScheduleCleanup mock schedule
func (m *MockCleanupScheduler) ScheduleCleanup(conversationID string, cause error) {
	m.Called(conversationID, cause)
}
