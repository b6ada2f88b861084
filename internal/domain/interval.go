package domain

import (
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
)

// Interval 半開区間 [Start, End) の時間帯
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval 区間を生成。Start < End でなければエラー
func NewInterval(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: %s - %s", ErrInvalidInterval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

// Overlaps 2つの区間が重なるか。端点が接しているだけの場合は重ならない
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Duration 区間の長さ
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// BusyDay ある日付の予定で埋まっている区間の一覧（開始時刻の昇順）
type BusyDay struct {
	Date      civil.Date
	Intervals []Interval
}

// NewBusyDay イベント一覧から指定日の BusyDay を構築
func NewBusyDay(date civil.Date, events []Event, loc *time.Location) BusyDay {
	occurrences := OccurrencesBetween(events, date, date, loc)

	intervals := make([]Interval, 0, len(occurrences))
	for _, e := range occurrences {
		intervals = append(intervals, e.Span(loc))
	}

	// 走査の決定性のため開始時刻順は必須
	sort.SliceStable(intervals, func(a, b int) bool {
		return intervals[a].Start.Before(intervals[b].Start)
	})

	return BusyDay{Date: date, Intervals: intervals}
}

// FirstConflict candidate と重なる最初の区間を from 以降から探す。見つかった位置も返す
func (d BusyDay) FirstConflict(candidate Interval, from int) (Interval, int, bool) {
	for idx := from; idx < len(d.Intervals); idx++ {
		busy := d.Intervals[idx]
		if !busy.Start.Before(candidate.End) {
			// 以降の区間はすべて candidate より後に始まる
			break
		}
		if busy.Overlaps(candidate) {
			return busy, idx, true
		}
	}
	return Interval{}, len(d.Intervals), false
}
