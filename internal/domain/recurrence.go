package domain

import (
	"log"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/teambition/rrule-go"
)

// maxOccurrencesPerEvent 1イベントあたりの展開上限
const maxOccurrencesPerEvent = 1000

// OccurrencesBetween from〜to（両端含む）の日付に発生するイベントを返す
//
// 繰り返しイベントは発生日ごとに Date を差し替えたコピーに展開する。
// 結果は (日付, 開始時刻) の昇順。
func OccurrencesBetween(events []Event, from, to civil.Date, loc *time.Location) []Event {
	if to.Before(from) {
		from, to = to, from
	}

	var out []Event
	for _, e := range events {
		if e.RecurrenceRule == "" {
			if inRange(e.Date, from, to) {
				out = append(out, e)
			}
			continue
		}

		dates, err := recurrenceDates(e, from, to, loc)
		if err != nil {
			log.Printf("Warning: 繰り返しルールの解析に失敗したため単発として扱います (id=%s, rule=%s): %v", e.ID, e.RecurrenceRule, err)
			if inRange(e.Date, from, to) {
				out = append(out, e)
			}
			continue
		}
		for _, d := range dates {
			occurrence := e
			occurrence.Date = d
			out = append(out, occurrence)
		}
	}

	SortEvents(out)
	return out
}

// SortEvents (日付, 開始時刻) の昇順に安定ソート。終日イベントはその日の先頭
func SortEvents(events []Event) {
	sort.SliceStable(events, func(a, b int) bool {
		ea, eb := events[a], events[b]
		if ea.Date != eb.Date {
			return ea.Date.Before(eb.Date)
		}
		if ea.IsAllDay != eb.IsAllDay {
			return ea.IsAllDay
		}
		return clockMinutes(ea.StartTime) < clockMinutes(eb.StartTime)
	})
}

func recurrenceDates(e Event, from, to civil.Date, loc *time.Location) ([]civil.Date, error) {
	rule := strings.TrimPrefix(strings.TrimSpace(e.RecurrenceRule), "RRULE:")
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, err
	}

	dtStart := At(e.Date, e.StartTime, loc)
	if e.IsAllDay {
		dtStart = e.Date.In(loc)
	}
	r.DTStart(dtStart)

	// to の翌日 00:00 は含めない
	times := r.Between(from.In(loc), to.AddDays(1).In(loc), true)
	if len(times) > maxOccurrencesPerEvent {
		times = times[:maxOccurrencesPerEvent]
	}

	dates := make([]civil.Date, 0, len(times))
	for _, t := range times {
		d := civil.DateOf(t.In(loc))
		if inRange(d, from, to) {
			dates = append(dates, d)
		}
	}
	return dates, nil
}

func inRange(d, from, to civil.Date) bool {
	return !d.Before(from) && !d.After(to)
}

func clockMinutes(t civil.Time) int {
	return t.Hour*60 + t.Minute
}
