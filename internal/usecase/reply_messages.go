package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/k-negishi/chat-scheduler/internal/domain"
)

// Interpreter 1件のコマンドを処理するポート。InterpretCommandUseCase が実装する
type Interpreter interface {
	Execute(ctx context.Context, req CommandRequest) CommandResult
}

// ReplyMessagesUseCase チャットで受け取ったメッセージを順に処理して返信するユースケース
type ReplyMessagesUseCase struct {
	interpreter Interpreter
	replier     Replier
	settings    Settings
}

// NewReplyMessagesUseCase ユースケースを生成
func NewReplyMessagesUseCase(interpreter Interpreter, replier Replier, settings Settings) *ReplyMessagesUseCase {
	return &ReplyMessagesUseCase{
		interpreter: interpreter,
		replier:     replier,
		settings:    settings,
	}
}

// Execute メッセージを受信順に1件ずつ処理する。返信に失敗しても残りのメッセージは処理を続ける
func (uc *ReplyMessagesUseCase) Execute(ctx context.Context, messages []domain.ChatMessage) error {
	var errs []error
	for _, message := range messages {
		req := CommandRequest{UserID: message.UserID, Message: message.Text}
		if !message.SentAt.IsZero() {
			req.LocalTime = message.SentAt.In(uc.settings.location())
		}

		result := uc.interpreter.Execute(ctx, req)
		if message.ReplyToken == "" {
			continue
		}
		if err := uc.replier.Reply(ctx, message.ReplyToken, result.ResponseText); err != nil {
			log.Printf("返信の送信に失敗しました (user=%s): %v", message.UserID, err)
			errs = append(errs, fmt.Errorf("ユーザー %s への返信に失敗しました: %w", message.UserID, err))
		}
	}
	return errors.Join(errs...)
}
