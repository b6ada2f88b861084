package gateway

import (
	"errors"
	"fmt"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-negishi/chat-scheduler/internal/domain"
)

// --- eventRecord.toDomain テスト ---

func TestEventRecordToDomain(t *testing.T) {
	record := eventRecord{
		ID:         "42",
		Title:      "Dentist",
		Date:       "2024-03-08",
		StartTime:  "11:00",
		EndTime:    ptr("11:45"),
		CategoryID: "3",
		Duration:   "45m",
	}

	event, err := record.toDomain()
	require.NoError(t, err)
	assert.Equal(t, "42", event.ID)
	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 8}, event.Date)
	assert.Equal(t, civil.Time{Hour: 11}, event.StartTime)
	require.NotNil(t, event.EndTime)
	assert.Equal(t, civil.Time{Hour: 11, Minute: 45}, *event.EndTime)
	assert.Equal(t, "3", event.CategoryID)
}

func TestEventRecordToDomain_NoEndAndNoTitle(t *testing.T) {
	record := eventRecord{ID: "1", Date: "2024-03-08", StartTime: "09:00"}

	event, err := record.toDomain()
	require.NoError(t, err)
	assert.Nil(t, event.EndTime)
	assert.Equal(t, domain.UntitledTitle, event.Title)
}

func TestEventRecordToDomain_InvalidDate(t *testing.T) {
	record := eventRecord{ID: "1", Date: "2024/03/08", StartTime: "09:00"}

	_, err := record.toDomain()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "日付の解析に失敗しました")
}

// --- ヘルパー テスト ---

func TestNullableID(t *testing.T) {
	assert.Nil(t, nullableID(""))
	assert.Nil(t, nullableID("abc"))
	require.NotNil(t, nullableID("12"))
	assert.Equal(t, "12", *nullableID("12"))
}

func TestIsUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgUniqueViolation})
	assert.True(t, isUniqueViolation(wrapped))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
	assert.False(t, isUniqueViolation(nil))
}
