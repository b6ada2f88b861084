package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/k-negishi/chat-scheduler/internal/config"
	"github.com/k-negishi/chat-scheduler/internal/gateway"
	"github.com/k-negishi/chat-scheduler/internal/usecase"
)

// App 設定から組み立てたユースケースとゲートウェイ一式
type App struct {
	Config   *config.Config
	Location *time.Location

	Store       *gateway.PostgresStore
	Interpreter *usecase.InterpretCommandUseCase
	FreeSlot    *usecase.FindFreeSlotUseCase

	// LINE設定が無い場合は nil
	Webhook *gateway.LINEWebhookParser
	Replies *usecase.ReplyMessagesUseCase
	Agenda  *usecase.NotifyAgendaUseCase
}

// New 設定に従って依存関係を組み立てる
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	workingHours, err := cfg.WorkingHours()
	if err != nil {
		return nil, err
	}
	settings := usecase.Settings{
		WorkingHours:     workingHours,
		SearchWindowDays: cfg.SlotSearchDays,
		Location:         loc,
	}

	store, err := gateway.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}

	events, err := eventRepository(ctx, cfg, store, loc)
	if err != nil {
		store.Close()
		return nil, err
	}

	extractor, err := gateway.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.ExtractionTimeout)
	if err != nil {
		store.Close()
		return nil, err
	}
	extractor.WithResponseLogging(strings.EqualFold(cfg.LogLevel, "DEBUG"))

	a := &App{
		Config:      cfg,
		Location:    loc,
		Store:       store,
		Interpreter: usecase.NewInterpretCommandUseCase(extractor, events, store, store, settings),
		FreeSlot:    usecase.NewFindFreeSlotUseCase(events, settings),
	}

	if cfg.LINEEnabled() {
		messenger := gateway.NewLINEMessenger(cfg.LineChannelAccessToken)
		a.Webhook = gateway.NewLINEWebhookParser(cfg.LineChannelSecret)
		a.Replies = usecase.NewReplyMessagesUseCase(a.Interpreter, messenger, settings)
		a.Agenda = usecase.NewNotifyAgendaUseCase(events, messenger, settings)
	} else {
		log.Printf("Warning: LINEの設定が無いため Webhook と予定通知は無効です")
	}

	return a, nil
}

// eventRepository Google認証情報があれば Google Calendar、無ければ PostgreSQL を使う
func eventRepository(ctx context.Context, cfg *config.Config, store *gateway.PostgresStore, loc *time.Location) (usecase.EventRepository, error) {
	if !cfg.UsesGoogleCalendar() {
		return store, nil
	}

	credentials, err := cfg.GetGoogleCredentialsJSON()
	if err != nil {
		return nil, err
	}
	credentialsJSON, err := json.Marshal(credentials)
	if err != nil {
		return nil, fmt.Errorf("Google認証情報の変換に失敗しました: %w", err)
	}

	repo, err := gateway.NewGoogleCalendarRepository(ctx, credentialsJSON, cfg.CalendarID, loc)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// Close 保持しているリソースを解放
func (a *App) Close() {
	a.Store.Close()
}
