package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchFixtures() []Event {
	return []Event{
		{ID: "1", Title: "Gym session", Date: day(2024, 3, 1), StartTime: clock(18, 0)},
		{ID: "2", Title: "Dentist appointment", Date: day(2024, 3, 2), StartTime: clock(10, 0)},
		{ID: "3", Title: "gym with Ken", Date: day(2024, 3, 3), StartTime: clock(7, 0)},
	}
}

func TestMatchEvent_SingleCandidate(t *testing.T) {
	result := MatchEvent(matchFixtures(), SearchCriteria{TitleKeyword: "DENTIST"})

	assert.Equal(t, MatchFound, result.Status)
	event, ok := result.Resolved()
	require.True(t, ok)
	assert.Equal(t, "2", event.ID)
}

func TestMatchEvent_AmbiguousPicksFirst(t *testing.T) {
	result := MatchEvent(matchFixtures(), SearchCriteria{TitleKeyword: "gym"})

	assert.Equal(t, MatchAmbiguous, result.Status)
	assert.Len(t, result.Candidates, 2)
	event, ok := result.Resolved()
	require.True(t, ok)
	assert.Equal(t, "1", event.ID)
}

func TestMatchEvent_DateFilter(t *testing.T) {
	d := day(2024, 3, 3)
	result := MatchEvent(matchFixtures(), SearchCriteria{TitleKeyword: "gym", Date: &d})

	assert.Equal(t, MatchFound, result.Status)
	assert.Equal(t, "3", result.Event.ID)
}

func TestMatchEvent_NotFound(t *testing.T) {
	d := day(2024, 3, 9)

	tests := []struct {
		name     string
		criteria SearchCriteria
	}{
		{"キーワードが空", SearchCriteria{TitleKeyword: "  "}},
		{"該当タイトルなし", SearchCriteria{TitleKeyword: "yoga"}},
		{"日付が一致しない", SearchCriteria{TitleKeyword: "gym", Date: &d}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MatchEvent(matchFixtures(), tt.criteria)
			assert.Equal(t, MatchNotFound, result.Status)
			_, ok := result.Resolved()
			assert.False(t, ok)
		})
	}
}

func TestMatchEvent_Deterministic(t *testing.T) {
	events := matchFixtures()
	first := MatchEvent(events, SearchCriteria{TitleKeyword: "gym"})
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, MatchEvent(events, SearchCriteria{TitleKeyword: "gym"}))
	}
}

// --- MatchOccurrence テスト ---

func TestMatchOccurrence_RecurringOnLaterDate(t *testing.T) {
	events := []Event{
		{ID: "gym", Title: "Gym", Date: day(2024, 3, 1), StartTime: clock(18, 0), RecurrenceRule: "FREQ=WEEKLY"},
		{ID: "other", Title: "Gym bag repair", Date: day(2024, 3, 9), StartTime: clock(10, 0)},
	}
	d := day(2024, 3, 8)

	// 元のイベントの日付だけでは一致しない
	assert.Equal(t, MatchNotFound, MatchEvent(events, SearchCriteria{TitleKeyword: "gym", Date: &d}).Status)

	result := MatchOccurrence(events, SearchCriteria{TitleKeyword: "gym", Date: &d}, jst)

	assert.Equal(t, MatchFound, result.Status)
	assert.Equal(t, "gym", result.Event.ID)
	assert.Equal(t, d, result.Event.Date)
	assert.Equal(t, "FREQ=WEEKLY", result.Event.RecurrenceRule)
}

func TestMatchOccurrence_NoOccurrenceThatDay(t *testing.T) {
	events := []Event{
		{ID: "gym", Title: "Gym", Date: day(2024, 3, 1), StartTime: clock(18, 0), RecurrenceRule: "FREQ=WEEKLY"},
	}
	d := day(2024, 3, 7)

	result := MatchOccurrence(events, SearchCriteria{TitleKeyword: "gym", Date: &d}, jst)

	assert.Equal(t, MatchNotFound, result.Status)
}

func TestMatchOccurrence_WithoutDateUsesMasters(t *testing.T) {
	result := MatchOccurrence(matchFixtures(), SearchCriteria{TitleKeyword: "gym"}, jst)

	assert.Equal(t, MatchAmbiguous, result.Status)
	assert.Equal(t, "1", result.Event.ID)
}
