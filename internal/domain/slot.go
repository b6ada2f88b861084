package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// DefaultSearchWindowDays 空き時間検索のデフォルト日数
const DefaultSearchWindowDays = 7

// MaxSearchWindowDays 1回の空き時間検索で走査する日数の上限
const MaxSearchWindowDays = 62

// WorkingHours 自動スケジュールの対象になる1日の時間帯
type WorkingHours struct {
	Start civil.Time
	End   civil.Time
}

// DefaultWorkingHours 09:00〜17:00
func DefaultWorkingHours() WorkingHours {
	return WorkingHours{
		Start: civil.Time{Hour: 9},
		End:   civil.Time{Hour: 17},
	}
}

// SlotRequest 空き時間検索の条件
type SlotRequest struct {
	EarliestDate     civil.Date
	Duration         time.Duration
	SearchWindowDays int
	WorkingHours     WorkingHours
}

// FindSlot 勤務時間内で既存の予定と重ならない最初の区間を探す
//
// 日付順・開始時刻順に走査し、重なりを見つけたら候補の開始をその予定の終了時刻まで進める。
// 見つからなければ false を返す。
func FindSlot(events []Event, req SlotRequest, loc *time.Location) (Interval, bool) {
	duration := req.Duration
	if duration <= 0 {
		duration = DefaultEventDuration
	}
	days := ClampSearchWindowDays(req.SearchWindowDays)

	for offset := 0; offset < days; offset++ {
		day := req.EarliestDate.AddDays(offset)
		busy := NewBusyDay(day, events, loc)

		dayEnd := At(day, req.WorkingHours.End, loc)
		start := At(day, req.WorkingHours.Start, loc)
		cursor := 0

		for !start.Add(duration).After(dayEnd) {
			candidate := Interval{Start: start, End: start.Add(duration)}
			conflict, idx, found := busy.FirstConflict(candidate, cursor)
			if !found {
				return candidate, true
			}
			start = conflict.End
			cursor = idx + 1
		}
	}

	return Interval{}, false
}

// ClampSearchWindowDays 検索日数を 1〜MaxSearchWindowDays に収める。0 以下はデフォルト日数
func ClampSearchWindowDays(days int) int {
	switch {
	case days <= 0:
		return DefaultSearchWindowDays
	case days > MaxSearchWindowDays:
		return MaxSearchWindowDays
	default:
		return days
	}
}

var durationPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(h|hr|hrs|hour|hours|m|min|mins|minute|minutes)$`)

// ParseDuration "1h" "1.5h" "90m" などの所要時間を解析。解析できなければ60分
func ParseDuration(s string) time.Duration {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultEventDuration
	}

	if m := durationPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseFloat(m[1], 64)
		if err == nil && n > 0 {
			if strings.HasPrefix(m[2], "h") {
				return time.Duration(n * float64(time.Hour))
			}
			return time.Duration(n * float64(time.Minute))
		}
		return DefaultEventDuration
	}

	// "1h30m" のような形式
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return DefaultEventDuration
}
