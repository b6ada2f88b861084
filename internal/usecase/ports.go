package usecase

import (
	"context"
	"time"

	"github.com/k-negishi/chat-scheduler/internal/domain"
)

// ExtractionRequest 抽出サービスへ渡す入力
type ExtractionRequest struct {
	LocalTime     time.Time
	CategoryNames []string
	Utterance     string
}

// Extractor 自然文から意図とエンティティを抽出するポート
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) (domain.RawExtraction, error)
}

// EventRepository ユーザーのイベントを永続化するポート
type EventRepository interface {
	ListEvents(ctx context.Context, userID string) ([]domain.Event, error)
	CreateEvent(ctx context.Context, userID string, fields domain.EventFields) (domain.Event, error)
	UpdateEvent(ctx context.Context, userID, eventID string, patch domain.EventPatch) (domain.Event, error)
	DeleteEvent(ctx context.Context, userID, eventID string) error
}

// CategoryRepository カテゴリを永続化するポート
type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, fields domain.CategoryFields) (domain.Category, error)
}

// TodoRepository TODOを永続化するポート
type TodoRepository interface {
	CreateTodo(ctx context.Context, userID string, fields domain.TodoFields) (domain.Todo, error)
}

// Replier チャットのメッセージに返信するポート
type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// Notifier ユーザーに通知を送信するポート
type Notifier interface {
	Push(ctx context.Context, to, text string) error
}

// Settings コマンド処理の設定値
type Settings struct {
	WorkingHours     domain.WorkingHours
	SearchWindowDays int
	Location         *time.Location
}

func (s Settings) location() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

func (s Settings) searchWindowDays() int {
	if s.SearchWindowDays <= 0 {
		return domain.DefaultSearchWindowDays
	}
	return s.SearchWindowDays
}

func (s Settings) workingHours() domain.WorkingHours {
	wh := s.WorkingHours
	if wh.End.Hour*60+wh.End.Minute <= wh.Start.Hour*60+wh.Start.Minute {
		return domain.DefaultWorkingHours()
	}
	return wh
}
