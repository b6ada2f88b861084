package usecase

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/k-negishi/chat-scheduler/internal/domain"
)

// MockExtractor は Extractor のテスト用モック
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, req ExtractionRequest) (domain.RawExtraction, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.RawExtraction), args.Error(1)
}

// MockEventRepository は EventRepository のテスト用モック
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) ListEvents(ctx context.Context, userID string) ([]domain.Event, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Event), args.Error(1)
}

func (m *MockEventRepository) CreateEvent(ctx context.Context, userID string, fields domain.EventFields) (domain.Event, error) {
	args := m.Called(ctx, userID, fields)
	return args.Get(0).(domain.Event), args.Error(1)
}

func (m *MockEventRepository) UpdateEvent(ctx context.Context, userID, eventID string, patch domain.EventPatch) (domain.Event, error) {
	args := m.Called(ctx, userID, eventID, patch)
	return args.Get(0).(domain.Event), args.Error(1)
}

func (m *MockEventRepository) DeleteEvent(ctx context.Context, userID, eventID string) error {
	args := m.Called(ctx, userID, eventID)
	return args.Error(0)
}

// MockCategoryRepository は CategoryRepository のテスト用モック
type MockCategoryRepository struct {
	mock.Mock
}

func (m *MockCategoryRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *MockCategoryRepository) CreateCategory(ctx context.Context, fields domain.CategoryFields) (domain.Category, error) {
	args := m.Called(ctx, fields)
	return args.Get(0).(domain.Category), args.Error(1)
}

// MockTodoRepository は TodoRepository のテスト用モック
type MockTodoRepository struct {
	mock.Mock
}

func (m *MockTodoRepository) CreateTodo(ctx context.Context, userID string, fields domain.TodoFields) (domain.Todo, error) {
	args := m.Called(ctx, userID, fields)
	return args.Get(0).(domain.Todo), args.Error(1)
}
