package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"
)

const (
	lineReplyEndpoint = "https://api.line.me/v2/bot/message/reply"
	linePushEndpoint  = "https://api.line.me/v2/bot/message/push"

	// LINE のテキストメッセージは1件5000文字、1リクエスト5件まで
	lineMaxTextLength = 5000
	lineMaxMessages   = 5
)

// LINEMessenger LINE Messaging APIを使用したメッセージ送信クライアント
type LINEMessenger struct {
	channelAccessToken string
	httpClient         *http.Client
	replyEndpoint      string
	pushEndpoint       string
}

// lineMessage LINE APIに送信するメッセージ構造体
type lineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// lineReplyRequest LINE Reply APIのリクエスト構造体
type lineReplyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []lineMessage `json:"messages"`
}

// linePushRequest LINE Push APIのリクエスト構造体
type linePushRequest struct {
	To       string        `json:"to"`
	Messages []lineMessage `json:"messages"`
}

// lineErrorResponse LINE APIのエラーレスポンス構造体
type lineErrorResponse struct {
	Message string `json:"message"`
	Details []struct {
		Message  string `json:"message"`
		Property string `json:"property"`
	} `json:"details"`
}

// NewLINEMessenger LINE送信クライアントを作成
func NewLINEMessenger(channelAccessToken string) *LINEMessenger {
	return &LINEMessenger{
		channelAccessToken: channelAccessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		replyEndpoint: lineReplyEndpoint,
		pushEndpoint:  linePushEndpoint,
	}
}

// Reply Webhookのリプライトークンで返信
func (n *LINEMessenger) Reply(ctx context.Context, replyToken, text string) error {
	return n.post(ctx, n.replyEndpoint, lineReplyRequest{
		ReplyToken: replyToken,
		Messages:   textMessages(text),
	})
}

// Push 指定ユーザーにメッセージを送信
func (n *LINEMessenger) Push(ctx context.Context, to, text string) error {
	return n.post(ctx, n.pushEndpoint, linePushRequest{
		To:       to,
		Messages: textMessages(text),
	})
}

// textMessages 長いテキストを上限ごとに分割する。入りきらない分は切り捨てる
func textMessages(text string) []lineMessage {
	var messages []lineMessage
	for len(messages) < lineMaxMessages {
		if utf8.RuneCountInString(text) <= lineMaxTextLength {
			messages = append(messages, lineMessage{Type: "text", Text: text})
			break
		}
		runes := []rune(text)
		messages = append(messages, lineMessage{Type: "text", Text: string(runes[:lineMaxTextLength])})
		text = string(runes[lineMaxTextLength:])
	}
	return messages
}

// post LINE APIにJSONを送信
func (n *LINEMessenger) post(ctx context.Context, endpoint string, payload any) error {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエストボディのJSON変換に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", n.channelAccessToken))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("LINE APIリクエストの送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// エラーレスポンスの詳細を取得
		var errorResponse lineErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errorResponse); err != nil {
			return fmt.Errorf("LINE API呼び出しが失敗しました (Status: %d, レスポンス解析不可: %v)", resp.StatusCode, err)
		}

		errorDetails := errorResponse.Message
		if len(errorResponse.Details) > 0 {
			errorDetails += fmt.Sprintf(" (詳細: %s)", errorResponse.Details[0].Message)
		}

		return fmt.Errorf("LINE API呼び出しが失敗しました (Status: %d): %s", resp.StatusCode, errorDetails)
	}

	return nil
}
