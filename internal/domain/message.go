package domain

import "time"

// ChatMessage チャット経由で受け取った1件のテキストメッセージ
type ChatMessage struct {
	// ReplyToken 返信に使うトークン。空なら返信できない
	ReplyToken string
	UserID     string
	Text       string
	SentAt     time.Time
}
