package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/k-negishi/chat-scheduler/internal/domain"
)

// NotifyAgendaUseCase 今日と明日の予定を通知するユースケース
type NotifyAgendaUseCase struct {
	events   EventRepository
	notifier Notifier
	settings Settings
}

// NewNotifyAgendaUseCase ユースケースを生成
func NewNotifyAgendaUseCase(events EventRepository, notifier Notifier, settings Settings) *NotifyAgendaUseCase {
	return &NotifyAgendaUseCase{
		events:   events,
		notifier: notifier,
		settings: settings,
	}
}

// Execute userID の今日と明日の予定を to に送信する。両日とも予定が無ければ送信しない
func (uc *NotifyAgendaUseCase) Execute(ctx context.Context, userID, to string, today civil.Date) (skipped bool, err error) {
	events, err := uc.events.ListEvents(ctx, userID)
	if err != nil {
		log.Printf("予定の取得に失敗しました: %v", err)
		return false, err
	}

	loc := uc.settings.location()
	tomorrow := today.AddDays(1)
	todayEvents := domain.OccurrencesBetween(events, today, today, loc)
	tomorrowEvents := domain.OccurrencesBetween(events, tomorrow, tomorrow, loc)

	// 予定が両日ともない場合はスキップ
	if len(todayEvents) == 0 && len(tomorrowEvents) == 0 {
		return true, nil
	}

	if err := uc.notifier.Push(ctx, to, buildAgendaMessage(today, todayEvents, tomorrowEvents)); err != nil {
		log.Printf("予定通知の送信に失敗しました: %v", err)
		return false, err
	}

	return false, nil
}

// buildAgendaMessage 予定通知用のメッセージを構築
func buildAgendaMessage(today civil.Date, todayEvents, tomorrowEvents []domain.Event) string {
	var builder strings.Builder
	appendAgendaDay(&builder, "Today", today, todayEvents)
	builder.WriteString("\n")
	appendAgendaDay(&builder, "Tomorrow", today.AddDays(1), tomorrowEvents)
	return strings.TrimRight(builder.String(), "\n")
}

func appendAgendaDay(builder *strings.Builder, label string, date civil.Date, events []domain.Event) {
	heading := fmt.Sprintf("%s %s %d/%d", label, date.In(time.UTC).Weekday().String()[:3], int(date.Month), date.Day)
	if len(events) == 0 {
		builder.WriteString(fmt.Sprintf("%s: no events\n", heading))
		return
	}
	builder.WriteString(fmt.Sprintf("%s (%d):\n", heading, len(events)))
	for _, e := range events {
		if e.IsAllDay {
			builder.WriteString(fmt.Sprintf("- (all day) %s\n", e.Title))
			continue
		}
		builder.WriteString(fmt.Sprintf("- %s–%s %s\n", domain.FormatClock(e.StartTime), formatEnd(e), e.Title))
	}
}
