package domain

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// DefaultEventDuration 終了時刻が無いイベントに補う長さ
const DefaultEventDuration = 60 * time.Minute

// UntitledTitle タイトルが空のイベント・TODOに付ける表示名
const UntitledTitle = "(untitled)"

// Event カレンダーイベントのドメインエンティティ
//
// 永続化層が所有する読み取り専用の射影。EndTime が nil の場合は StartTime + 60分 とみなす。
type Event struct {
	ID             string
	Title          string
	Date           civil.Date
	StartTime      civil.Time
	EndTime        *civil.Time
	IsAllDay       bool
	CategoryID     string
	Duration       string
	RecurrenceRule string
}

// EventFields イベント作成時のフィールド
type EventFields struct {
	Title          string
	Date           civil.Date
	StartTime      civil.Time
	EndTime        civil.Time
	CategoryID     string
	Duration       string
	RecurrenceRule string
}

// EventPatch イベントの部分更新。nil のフィールドは変更しない
type EventPatch struct {
	Title      *string
	Date       *civil.Date
	StartTime  *civil.Time
	EndTime    *civil.Time
	CategoryID *string
	Duration   *string
}

// IsEmpty 変更対象のフィールドが一つも無いか
func (p EventPatch) IsEmpty() bool {
	return p.Title == nil && p.Date == nil && p.StartTime == nil &&
		p.EndTime == nil && p.CategoryID == nil && p.Duration == nil
}

// Apply パッチを適用したコピーを返す。時刻が指定されたら終日イベントではなくなる
func (e Event) Apply(p EventPatch) Event {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
		e.IsAllDay = false
	}
	if p.EndTime != nil {
		end := *p.EndTime
		e.EndTime = &end
		e.IsAllDay = false
	}
	if p.CategoryID != nil {
		e.CategoryID = *p.CategoryID
	}
	if p.Duration != nil {
		e.Duration = *p.Duration
	}
	return e
}

// CompletePatch 終了時刻を補ったパッチを返す
//
// 開始時刻や所要時間だけが変わる場合は、元の長さ（所要時間の指定があればそれ）を保つ終了時刻を補う。
// 日付をまたぐ終了時刻は 23:59 に丸める。時刻を変える場合、適用後の時間帯が開始 < 終了 を満たさなければ ErrInvalidInterval。
func (e Event) CompletePatch(p EventPatch, loc *time.Location) (EventPatch, error) {
	if p.EndTime == nil && (p.StartTime != nil || (p.Duration != nil && !e.IsAllDay)) {
		date := e.Date
		if p.Date != nil {
			date = *p.Date
		}
		start := e.StartTime
		if p.StartTime != nil {
			start = *p.StartTime
		}

		length := DefaultEventDuration
		switch {
		case p.Duration != nil:
			length = ParseDuration(*p.Duration)
		case !e.IsAllDay:
			length = e.Span(loc).Duration()
		}
		end := EndOfDaySpan(date, start, length, loc)
		p.EndTime = &end
	}

	if p.StartTime == nil && p.EndTime == nil {
		return p, nil
	}
	updated := e.Apply(p)
	if updated.EndTime == nil {
		return p, nil
	}
	if err := CheckTimes(updated.Date, updated.StartTime, *updated.EndTime, loc); err != nil {
		return EventPatch{}, err
	}
	return p, nil
}

// CheckTimes 同じ日の start〜end が正しい区間か
func CheckTimes(date civil.Date, start, end civil.Time, loc *time.Location) error {
	_, err := NewInterval(At(date, start, loc), At(date, end, loc))
	return err
}

// EndOfDaySpan start に length を足した終了時刻。日付をまたぐ場合はその日の 23:59
func EndOfDaySpan(date civil.Date, start civil.Time, length time.Duration, loc *time.Location) civil.Time {
	end := At(date, start, loc).Add(length)
	if civil.DateOf(end.In(loc)) != date {
		return civil.Time{Hour: 23, Minute: 59}
	}
	return civil.TimeOf(end.In(loc))
}

// StartOfDaySpan end から length を引いた開始時刻。前日にさかのぼる場合はその日の 00:00
func StartOfDaySpan(date civil.Date, end civil.Time, length time.Duration, loc *time.Location) civil.Time {
	start := At(date, end, loc).Add(-length)
	if civil.DateOf(start.In(loc)) != date {
		return civil.Time{}
	}
	return civil.TimeOf(start.In(loc))
}

// Span 指定タイムゾーンでのイベントの占有区間を返す
func (e Event) Span(loc *time.Location) Interval {
	if e.IsAllDay {
		start := e.Date.In(loc)
		return Interval{Start: start, End: e.Date.AddDays(1).In(loc)}
	}

	start := At(e.Date, e.StartTime, loc)
	end := start.Add(DefaultEventDuration)
	if e.EndTime != nil {
		if explicit := At(e.Date, *e.EndTime, loc); explicit.After(start) {
			end = explicit
		}
	}
	return Interval{Start: start, End: end}
}

// At 日付と時刻を指定タイムゾーンの time.Time に合成
func At(d civil.Date, t civil.Time, loc *time.Location) time.Time {
	return civil.DateTime{Date: d, Time: t}.In(loc)
}

// FormatClock 時刻を HH:MM 形式で返す
func FormatClock(t civil.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseClock HH:MM または HH:MM:SS 形式の時刻を解析
func ParseClock(s string) (civil.Time, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.TimeOf(t), nil
		}
	}
	return civil.Time{}, fmt.Errorf("時刻の解析に失敗しました: %q", s)
}
