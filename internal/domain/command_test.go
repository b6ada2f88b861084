package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_CreateEvent(t *testing.T) {
	raw := RawExtraction{
		Intent: "create_event",
		Entities: map[string]any{
			"title":         "Gym",
			"date":          "2024-03-01",
			"startTime":     "18:00",
			"category_name": "Health",
			"duration":      "1h",
		},
		ResponseText: "Booked!",
	}

	interp, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "Booked!", interp.ResponseText)

	cmd, ok := interp.Command.(CreateEventCommand)
	require.True(t, ok)
	assert.Equal(t, "Gym", cmd.Entities.Title)
	require.NotNil(t, cmd.Entities.Date)
	assert.Equal(t, day(2024, 3, 1), *cmd.Entities.Date)
	require.NotNil(t, cmd.Entities.StartTime)
	assert.Equal(t, clock(18, 0), *cmd.Entities.StartTime)
	assert.Nil(t, cmd.Entities.EndTime)
	assert.Equal(t, "Health", cmd.Entities.CategoryName)
	assert.False(t, cmd.Entities.WantsAutoSchedule())
}

func TestNormalize_CreateEventAutoSchedule(t *testing.T) {
	raw := RawExtraction{
		Intent: "create_event",
		Entities: map[string]any{
			"auto_schedule":    "true",
			"time_range_start": "2024-03-01",
			"duration":         "1h",
		},
	}

	interp, err := Normalize(raw)
	require.NoError(t, err)

	cmd := interp.Command.(CreateEventCommand)
	assert.True(t, cmd.Entities.AutoSchedule)
	assert.True(t, cmd.Entities.HasRangeHint())
	assert.True(t, cmd.Entities.WantsAutoSchedule())
	assert.Equal(t, UntitledTitle, cmd.Entities.Title)
	assert.Equal(t, DefaultClarification, interp.ResponseText)
}

func TestNormalize_IgnoresMalformedFields(t *testing.T) {
	raw := RawExtraction{
		Intent: "create_event",
		Entities: map[string]any{
			"title":     "Lunch",
			"date":      "next friday",
			"startTime": 12,
			"endTime":   "25:99",
		},
	}

	interp, err := Normalize(raw)
	require.NoError(t, err)

	cmd := interp.Command.(CreateEventCommand)
	assert.Nil(t, cmd.Entities.Date)
	assert.Nil(t, cmd.Entities.StartTime)
	assert.Nil(t, cmd.Entities.EndTime)
	assert.True(t, cmd.Entities.WantsAutoSchedule())
}

func TestNormalize_EndTimeOnlyIsNotAutoScheduled(t *testing.T) {
	raw := RawExtraction{
		Intent: "create_event",
		Entities: map[string]any{
			"title":   "Call",
			"date":    "2024-03-01",
			"endTime": "11:00",
		},
	}

	interp, err := Normalize(raw)
	require.NoError(t, err)

	cmd := interp.Command.(CreateEventCommand)
	assert.Nil(t, cmd.Entities.StartTime)
	require.NotNil(t, cmd.Entities.EndTime)
	assert.False(t, cmd.Entities.WantsAutoSchedule())
}

func TestNormalize_UpdatePrefersUpdates(t *testing.T) {
	raw := RawExtraction{
		Intent:         "update_event",
		Entities:       map[string]any{"title": "gym"},
		SearchCriteria: map[string]any{"title_keyword": "gym", "date": "2024-03-01"},
		Updates:        map[string]any{"startTime": "19:00"},
	}

	interp, err := Normalize(raw)
	require.NoError(t, err)

	cmd := interp.Command.(UpdateEventCommand)
	assert.Equal(t, "gym", cmd.Criteria.TitleKeyword)
	require.NotNil(t, cmd.Criteria.Date)
	assert.Equal(t, day(2024, 3, 1), *cmd.Criteria.Date)
	assert.Empty(t, cmd.Changes.Title)
	require.NotNil(t, cmd.Changes.StartTime)
	assert.Equal(t, clock(19, 0), *cmd.Changes.StartTime)
}

func TestNormalize_UpdateFallsBackToEntities(t *testing.T) {
	raw := RawExtraction{
		Intent:         "update_event",
		Entities:       map[string]any{"date": "2024-03-05"},
		SearchCriteria: map[string]any{"title_keyword": "gym"},
	}

	interp, err := Normalize(raw)
	require.NoError(t, err)

	cmd := interp.Command.(UpdateEventCommand)
	require.NotNil(t, cmd.Changes.Date)
	assert.Equal(t, day(2024, 3, 5), *cmd.Changes.Date)
}

func TestNormalize_DeleteWithoutCriteria(t *testing.T) {
	interp, err := Normalize(RawExtraction{Intent: "delete_event"})
	require.NoError(t, err)

	cmd := interp.Command.(DeleteEventCommand)
	assert.Empty(t, cmd.Criteria.TitleKeyword)
	assert.Nil(t, cmd.Criteria.Date)
}

func TestNormalize_CreateTodo(t *testing.T) {
	raw := RawExtraction{
		Intent: "create_todo",
		Entities: map[string]any{
			"title":    "Buy milk",
			"priority": "HIGH",
			"due_date": "2024-03-02",
		},
	}

	interp, err := Normalize(raw)
	require.NoError(t, err)

	cmd := interp.Command.(CreateTodoCommand)
	assert.Equal(t, "Buy milk", cmd.Title)
	assert.Equal(t, PriorityHigh, cmd.Priority)
	require.NotNil(t, cmd.DueDate)
	assert.Equal(t, day(2024, 3, 2), *cmd.DueDate)
}

func TestNormalize_CreateCategory(t *testing.T) {
	interp, err := Normalize(RawExtraction{
		Intent:   "create_category",
		Entities: map[string]any{"name": "Work"},
	})
	require.NoError(t, err)

	cmd := interp.Command.(CreateCategoryCommand)
	assert.Equal(t, "Work", cmd.Fields.Name)
	assert.Equal(t, DefaultCategoryColor, cmd.Fields.Color)
	assert.Empty(t, cmd.Fields.Description)
}

func TestNormalize_CreateCategoryWithoutName(t *testing.T) {
	_, err := Normalize(RawExtraction{Intent: "create_category", Entities: map[string]any{}})
	assert.ErrorIs(t, err, ErrMalformedExtraction)
}

func TestNormalize_QueryCalendarSingleDate(t *testing.T) {
	interp, err := Normalize(RawExtraction{
		Intent:   "query_calendar",
		Entities: map[string]any{"date": "2024-03-01"},
	})
	require.NoError(t, err)

	cmd := interp.Command.(QueryCalendarCommand)
	require.NotNil(t, cmd.From)
	require.NotNil(t, cmd.To)
	assert.Equal(t, *cmd.From, *cmd.To)
}

func TestNormalize_UnknownIntent(t *testing.T) {
	for _, intent := range []string{"unknown", "", "book_flight"} {
		t.Run(intent, func(t *testing.T) {
			interp, err := Normalize(RawExtraction{Intent: intent, ResponseText: "What do you mean?"})
			require.NoError(t, err)
			assert.Equal(t, IntentUnknown, interp.Command.Intent())
			assert.Equal(t, "What do you mean?", interp.ResponseText)
		})
	}
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, PriorityLow, ParsePriority("low"))
	assert.Equal(t, PriorityHigh, ParsePriority(" High "))
	assert.Equal(t, PriorityMedium, ParsePriority(""))
	assert.Equal(t, PriorityMedium, ParsePriority("urgent"))
}
