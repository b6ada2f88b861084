package gateway

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/k-negishi/chat-scheduler/internal/domain"
)

// ErrInvalidSignature X-Line-Signature が一致しない
var ErrInvalidSignature = webhook.ErrInvalidSignature

// LINEWebhookParser 署名を検証してWebhookからテキストメッセージを取り出す
type LINEWebhookParser struct {
	channelSecret string
}

// NewLINEWebhookParser パーサーを作成
func NewLINEWebhookParser(channelSecret string) *LINEWebhookParser {
	return &LINEWebhookParser{channelSecret: channelSecret}
}

// Parse 署名を検証し、ユーザーからのテキストメッセージだけを返す
//
// ユーザーIDには "line:" を付けて他の経路のユーザーと区別する。
func (p *LINEWebhookParser) Parse(body []byte, signature string) ([]domain.ChatMessage, error) {
	req, err := http.NewRequest(http.MethodPost, "/line/webhook", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("Webhookリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("X-Line-Signature", signature)

	callback, err := webhook.ParseRequest(p.channelSecret, req)
	if errors.Is(err, webhook.ErrInvalidSignature) {
		return nil, ErrInvalidSignature
	}
	if err != nil {
		return nil, fmt.Errorf("WebhookボディのJSON解析に失敗しました: %w", err)
	}

	messages := make([]domain.ChatMessage, 0, len(callback.Events))
	for _, event := range callback.Events {
		e, ok := event.(webhook.MessageEvent)
		if !ok {
			continue
		}
		text, ok := e.Message.(webhook.TextMessageContent)
		if !ok {
			continue
		}
		userID := sourceUserID(e.Source)
		if userID == "" {
			continue
		}
		messages = append(messages, domain.ChatMessage{
			ReplyToken: e.ReplyToken,
			UserID:     LINEUserKey(userID),
			Text:       text.Text,
			SentAt:     time.UnixMilli(e.Timestamp),
		})
	}
	return messages, nil
}

// sourceUserID 送信元のユーザーID。取得できなければ空文字
func sourceUserID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	default:
		return ""
	}
}

// LINEUserKey LINEのユーザーIDをアプリ内のユーザーIDに変換
func LINEUserKey(lineUserID string) string {
	return "line:" + lineUserID
}
