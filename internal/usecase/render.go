package usecase

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/k-negishi/chat-scheduler/internal/domain"
)

// renderSchedule 予定一覧を1行1件のテキストにする
func renderSchedule(events []domain.Event, from, to civil.Date) string {
	period := fmt.Sprintf("on %s", from)
	if from != to {
		period = fmt.Sprintf("between %s and %s", from, to)
	}

	if len(events) == 0 {
		return fmt.Sprintf("You have no events %s.", period)
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Here's your schedule %s (%d):\n", period, len(events)))
	for _, e := range events {
		appendEventLine(&builder, e)
	}
	return strings.TrimRight(builder.String(), "\n")
}

// appendEventLine イベントを1行追加
func appendEventLine(builder *strings.Builder, e domain.Event) {
	if e.IsAllDay {
		builder.WriteString(fmt.Sprintf("- %s (all day) %s\n", e.Date, e.Title))
		return
	}
	builder.WriteString(fmt.Sprintf("- %s %s–%s %s\n", e.Date, domain.FormatClock(e.StartTime), formatEnd(e), e.Title))
}

// formatEnd 終了時刻。未設定なら開始 + 60分
func formatEnd(e domain.Event) string {
	if e.EndTime != nil {
		return domain.FormatClock(*e.EndTime)
	}
	end := domain.At(e.Date, e.StartTime, time.UTC).Add(domain.DefaultEventDuration)
	return end.Format("15:04")
}

// eventPayload 返答データ用のイベント表現
func eventPayload(e domain.Event) map[string]any {
	payload := map[string]any{
		"id":         e.ID,
		"title":      e.Title,
		"date":       e.Date.String(),
		"start_time": domain.FormatClock(e.StartTime),
		"end_time":   formatEnd(e),
	}
	if e.IsAllDay {
		payload["all_day"] = true
	}
	if e.CategoryID != "" {
		payload["category_id"] = e.CategoryID
	}
	if e.RecurrenceRule != "" {
		payload["recurrence_rule"] = e.RecurrenceRule
	}
	return payload
}
