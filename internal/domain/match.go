package domain

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// SearchCriteria 既存イベントを特定するための条件
type SearchCriteria struct {
	TitleKeyword string
	Date         *civil.Date
}

// MatchStatus イベント照合の結果種別
type MatchStatus int

const (
	MatchNotFound MatchStatus = iota
	MatchFound
	MatchAmbiguous
)

// MatchResult イベント照合の結果
//
// MatchAmbiguous の場合も Event には入力順で最初の候補が入る。
type MatchResult struct {
	Status     MatchStatus
	Event      Event
	Candidates []Event
}

// Resolved 対象イベントが1件に決まったか
func (r MatchResult) Resolved() (Event, bool) {
	if r.Status == MatchNotFound {
		return Event{}, false
	}
	return r.Event, true
}

// MatchEvent タイトルの部分一致（大文字小文字無視）と日付で対象イベントを探す
func MatchEvent(events []Event, criteria SearchCriteria) MatchResult {
	keyword := strings.ToLower(strings.TrimSpace(criteria.TitleKeyword))
	if keyword == "" {
		return MatchResult{Status: MatchNotFound}
	}

	var candidates []Event
	for _, e := range events {
		if !strings.Contains(strings.ToLower(e.Title), keyword) {
			continue
		}
		if criteria.Date != nil && e.Date != *criteria.Date {
			continue
		}
		candidates = append(candidates, e)
	}

	switch len(candidates) {
	case 0:
		return MatchResult{Status: MatchNotFound}
	case 1:
		return MatchResult{Status: MatchFound, Event: candidates[0], Candidates: candidates}
	default:
		// TODO: 直近の予定を優先する案を検討中。現状は入力順の先頭
		return MatchResult{Status: MatchAmbiguous, Event: candidates[0], Candidates: candidates}
	}
}

// MatchOccurrence 日付指定がある場合は繰り返しイベントをその日の発生に展開してから照合する
//
// 発生は元のイベントの ID と RecurrenceRule を引き継ぐ。
func MatchOccurrence(events []Event, criteria SearchCriteria, loc *time.Location) MatchResult {
	if criteria.Date != nil {
		events = OccurrencesBetween(events, *criteria.Date, *criteria.Date, loc)
	}
	return MatchEvent(events, criteria)
}
