package usecase

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/k-negishi/chat-scheduler/internal/domain"
)

// FindFreeSlotUseCase 言語モデルを介さずに空き時間を検索するユースケース
type FindFreeSlotUseCase struct {
	events   EventRepository
	settings Settings
}

// NewFindFreeSlotUseCase ユースケースを生成
func NewFindFreeSlotUseCase(events EventRepository, settings Settings) *FindFreeSlotUseCase {
	return &FindFreeSlotUseCase{events: events, settings: settings}
}

// Execute from から days 日間で duration の空き枠を探す。見つからなければ found=false
func (uc *FindFreeSlotUseCase) Execute(ctx context.Context, userID string, from civil.Date, duration time.Duration, days int) (slot domain.Interval, found bool, err error) {
	events, err := uc.events.ListEvents(ctx, userID)
	if err != nil {
		return domain.Interval{}, false, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}

	if days <= 0 {
		days = uc.settings.searchWindowDays()
	}

	slot, found = domain.FindSlot(events, domain.SlotRequest{
		EarliestDate:     from,
		Duration:         duration,
		SearchWindowDays: days,
		WorkingHours:     uc.settings.workingHours(),
	}, uc.settings.location())
	return slot, found, nil
}
