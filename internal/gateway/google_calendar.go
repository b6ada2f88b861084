package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/k-negishi/chat-scheduler/internal/domain"
)

// 拡張プロパティのキー
const (
	propUserID     = "userId"
	propCategoryID = "categoryId"
	propDuration   = "duration"
)

// EventsProvider Google Calendar API の呼び出しを抽象化（テスト用にモック可能）
type EventsProvider interface {
	ListEvents(ctx context.Context, calendarID, privateProperty string) ([]*calendar.Event, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error)
	InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
	PatchEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// calendarServiceProvider calendar.Service を使った EventsProvider の実装
type calendarServiceProvider struct {
	service *calendar.Service
}

func (p *calendarServiceProvider) ListEvents(ctx context.Context, calendarID, privateProperty string) ([]*calendar.Event, error) {
	// 繰り返しイベントは展開せずマスターのまま取得し、ドメイン側で展開する
	call := p.service.Events.List(calendarID).
		PrivateExtendedProperty(privateProperty).
		SingleEvents(false).
		MaxResults(2500)

	var items []*calendar.Event
	err := call.Pages(ctx, func(page *calendar.Events) error {
		items = append(items, page.Items...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (p *calendarServiceProvider) GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error) {
	return p.service.Events.Get(calendarID, eventID).Context(ctx).Do()
}

func (p *calendarServiceProvider) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	return p.service.Events.Insert(calendarID, event).Context(ctx).Do()
}

func (p *calendarServiceProvider) PatchEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error) {
	return p.service.Events.Patch(calendarID, eventID, event).Context(ctx).Do()
}

func (p *calendarServiceProvider) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	return p.service.Events.Delete(calendarID, eventID).Context(ctx).Do()
}

// GoogleCalendarRepository Google Calendar APIを使用したEventRepositoryの実装
//
// 1つのカレンダーを複数ユーザーで共有し、各イベントの拡張プロパティ userId で所有者を区別する。
type GoogleCalendarRepository struct {
	provider   EventsProvider
	calendarID string
	timezone   *time.Location
}

// NewGoogleCalendarRepository サービスアカウントの認証情報からGoogle Calendarリポジトリを作成
func NewGoogleCalendarRepository(ctx context.Context, credentialsJSON []byte, calendarID string, timezone *time.Location) (*GoogleCalendarRepository, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("google認証情報の読み込みに失敗しました: %w", err)
	}

	service, err := calendar.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("google Calendar APIサービスの作成に失敗しました: %w", err)
	}

	return NewGoogleCalendarRepositoryWithProvider(&calendarServiceProvider{service: service}, calendarID, timezone), nil
}

// NewGoogleCalendarRepositoryWithProvider 任意の EventsProvider でリポジトリを作成
func NewGoogleCalendarRepositoryWithProvider(provider EventsProvider, calendarID string, timezone *time.Location) *GoogleCalendarRepository {
	if timezone == nil {
		timezone = time.Local
	}
	return &GoogleCalendarRepository{
		provider:   provider,
		calendarID: calendarID,
		timezone:   timezone,
	}
}

// ListEvents ユーザーの全イベントを取得
func (r *GoogleCalendarRepository) ListEvents(ctx context.Context, userID string) ([]domain.Event, error) {
	items, err := r.provider.ListEvents(ctx, r.calendarID, propUserID+"="+userID)
	if err != nil {
		return nil, fmt.Errorf("カレンダーイベントの取得に失敗しました: %w", err)
	}

	events := make([]domain.Event, 0, len(items))
	for _, item := range items {
		if item.Status == "cancelled" {
			continue
		}
		event, err := r.convertToEvent(item)
		if err != nil {
			log.Printf("Warning: イベントの変換をスキップしました (id=%s): %v", item.Id, err)
			continue
		}
		events = append(events, event)
	}

	domain.SortEvents(events)
	return events, nil
}

// CreateEvent イベントを作成
func (r *GoogleCalendarRepository) CreateEvent(ctx context.Context, userID string, fields domain.EventFields) (domain.Event, error) {
	event := domain.Event{
		Title:          fields.Title,
		Date:           fields.Date,
		StartTime:      fields.StartTime,
		EndTime:        &fields.EndTime,
		CategoryID:     fields.CategoryID,
		Duration:       fields.Duration,
		RecurrenceRule: fields.RecurrenceRule,
	}

	created, err := r.provider.InsertEvent(ctx, r.calendarID, r.convertFromEvent(userID, event))
	if err != nil {
		return domain.Event{}, fmt.Errorf("カレンダーイベントの作成に失敗しました: %w", err)
	}
	return r.convertToEvent(created)
}

// UpdateEvent イベントを部分更新
func (r *GoogleCalendarRepository) UpdateEvent(ctx context.Context, userID, eventID string, patch domain.EventPatch) (domain.Event, error) {
	current, err := r.getOwned(ctx, userID, eventID)
	if err != nil {
		return domain.Event{}, err
	}

	merged := current.Apply(patch)
	updated, err := r.provider.PatchEvent(ctx, r.calendarID, eventID, r.convertFromEvent(userID, merged))
	if err != nil {
		return domain.Event{}, fmt.Errorf("カレンダーイベントの更新に失敗しました: %w", notFound(err))
	}
	return r.convertToEvent(updated)
}

// DeleteEvent イベントを削除
func (r *GoogleCalendarRepository) DeleteEvent(ctx context.Context, userID, eventID string) error {
	if _, err := r.getOwned(ctx, userID, eventID); err != nil {
		return err
	}
	if err := r.provider.DeleteEvent(ctx, r.calendarID, eventID); err != nil {
		return fmt.Errorf("カレンダーイベントの削除に失敗しました: %w", notFound(err))
	}
	return nil
}

// getOwned ユーザーが所有するイベントを取得。他ユーザーのイベントは存在しないものとして扱う
func (r *GoogleCalendarRepository) getOwned(ctx context.Context, userID, eventID string) (domain.Event, error) {
	item, err := r.provider.GetEvent(ctx, r.calendarID, eventID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("カレンダーイベントの取得に失敗しました: %w", notFound(err))
	}
	if item.Status == "cancelled" || privateProperty(item, propUserID) != userID {
		return domain.Event{}, fmt.Errorf("イベント %s: %w", eventID, domain.ErrNotFound)
	}
	return r.convertToEvent(item)
}

// notFound 404/410 を domain.ErrNotFound に変換
func notFound(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	return err
}

// convertToEvent Google Calendar APIのイベントをドメインエンティティに変換
func (r *GoogleCalendarRepository) convertToEvent(event *calendar.Event) (domain.Event, error) {
	domainEvent := domain.Event{
		ID:         event.Id,
		Title:      event.Summary,
		CategoryID: privateProperty(event, propCategoryID),
		Duration:   privateProperty(event, propDuration),
	}

	// タイトルが空の場合は「(untitled)」に設定
	if domainEvent.Title == "" {
		domainEvent.Title = domain.UntitledTitle
	}

	for _, line := range event.Recurrence {
		if strings.HasPrefix(line, "RRULE:") {
			domainEvent.RecurrenceRule = strings.TrimPrefix(line, "RRULE:")
			break
		}
	}

	if event.Start == nil {
		return domain.Event{}, fmt.Errorf("開始時刻が設定されていません")
	}

	// 開始時刻の処理
	switch {
	case event.Start.DateTime != "":
		start, err := time.Parse(time.RFC3339, event.Start.DateTime)
		if err != nil {
			return domain.Event{}, fmt.Errorf("開始時刻の解析に失敗しました: %w", err)
		}
		start = start.In(r.timezone)
		domainEvent.Date = civil.DateOf(start)
		domainEvent.StartTime = civil.TimeOf(start)
	case event.Start.Date != "":
		// 終日イベント
		date, err := civil.ParseDate(event.Start.Date)
		if err != nil {
			return domain.Event{}, fmt.Errorf("開始日の解析に失敗しました: %w", err)
		}
		domainEvent.Date = date
		domainEvent.IsAllDay = true
		return domainEvent, nil
	default:
		return domain.Event{}, fmt.Errorf("開始時刻が設定されていません")
	}

	// 終了時刻の処理。日付をまたぐ場合はその日の最後までとする
	if event.End != nil && event.End.DateTime != "" {
		end, err := time.Parse(time.RFC3339, event.End.DateTime)
		if err != nil {
			return domain.Event{}, fmt.Errorf("終了時刻の解析に失敗しました: %w", err)
		}
		end = end.In(r.timezone)
		endTime := civil.TimeOf(end)
		if civil.DateOf(end) != domainEvent.Date {
			endTime = civil.Time{Hour: 23, Minute: 59}
		}
		domainEvent.EndTime = &endTime
	}

	return domainEvent, nil
}

// convertFromEvent ドメインエンティティをGoogle Calendar APIのイベントに変換
func (r *GoogleCalendarRepository) convertFromEvent(userID string, e domain.Event) *calendar.Event {
	private := map[string]string{propUserID: userID}
	if e.CategoryID != "" {
		private[propCategoryID] = e.CategoryID
	}
	if e.Duration != "" {
		private[propDuration] = e.Duration
	}

	event := &calendar.Event{
		Summary:            e.Title,
		ExtendedProperties: &calendar.EventExtendedProperties{Private: private},
	}
	if e.RecurrenceRule != "" {
		event.Recurrence = []string{"RRULE:" + strings.TrimPrefix(e.RecurrenceRule, "RRULE:")}
	}

	if e.IsAllDay {
		event.Start = &calendar.EventDateTime{Date: e.Date.String()}
		event.End = &calendar.EventDateTime{Date: e.Date.AddDays(1).String()}
		return event
	}

	span := e.Span(r.timezone)
	event.Start = &calendar.EventDateTime{DateTime: span.Start.Format(time.RFC3339), TimeZone: r.timezone.String()}
	event.End = &calendar.EventDateTime{DateTime: span.End.Format(time.RFC3339), TimeZone: r.timezone.String()}
	return event
}

func privateProperty(event *calendar.Event, key string) string {
	if event.ExtendedProperties == nil {
		return ""
	}
	return event.ExtendedProperties.Private[key]
}
