package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sign LINEプラットフォームと同じ方法で署名を作る
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

const webhookBody = `{
  "destination": "Uxxxxxxxx",
  "events": [
    {
      "type": "message",
      "mode": "active",
      "webhookEventId": "01H0000000000000000000001",
      "deliveryContext": {"isRedelivery": false},
      "replyToken": "token-1",
      "timestamp": 1709251200000,
      "source": {"type": "user", "userId": "U123"},
      "message": {"id": "1", "type": "text", "quoteToken": "q1", "text": "book gym tomorrow"}
    },
    {
      "type": "message",
      "mode": "active",
      "webhookEventId": "01H0000000000000000000002",
      "deliveryContext": {"isRedelivery": false},
      "replyToken": "token-2",
      "timestamp": 1709251200000,
      "source": {"type": "user", "userId": "U123"},
      "message": {"id": "2", "type": "sticker", "quoteToken": "q2", "packageId": "1", "stickerId": "1", "stickerResourceType": "STATIC"}
    },
    {
      "type": "follow",
      "mode": "active",
      "webhookEventId": "01H0000000000000000000003",
      "deliveryContext": {"isRedelivery": false},
      "replyToken": "token-3",
      "timestamp": 1709251200000,
      "source": {"type": "user", "userId": "U456"},
      "follow": {"isUnblocked": false}
    },
    {
      "type": "message",
      "mode": "active",
      "webhookEventId": "01H0000000000000000000004",
      "deliveryContext": {"isRedelivery": false},
      "replyToken": "token-4",
      "timestamp": 1709251260000,
      "source": {"type": "group", "groupId": "G1", "userId": "U789"},
      "message": {"id": "3", "type": "text", "quoteToken": "q3", "text": "what's on today"}
    }
  ]
}`

func TestParse_TextMessagesOnly(t *testing.T) {
	parser := NewLINEWebhookParser("secret")
	body := []byte(webhookBody)

	messages, err := parser.Parse(body, sign("secret", body))

	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "token-1", messages[0].ReplyToken)
	assert.Equal(t, "line:U123", messages[0].UserID)
	assert.Equal(t, "book gym tomorrow", messages[0].Text)
	assert.True(t, messages[0].SentAt.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	// グループからのメッセージは送信したユーザーに紐付ける
	assert.Equal(t, "line:U789", messages[1].UserID)
	assert.Equal(t, "what's on today", messages[1].Text)
}

func TestParse_InvalidSignature(t *testing.T) {
	parser := NewLINEWebhookParser("secret")
	body := []byte(webhookBody)

	tests := []struct {
		name      string
		signature string
	}{
		{"別のシークレット", sign("other", body)},
		{"署名なし", ""},
		{"base64ではない", "not base64!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(body, tt.signature)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	parser := NewLINEWebhookParser("secret")
	body := []byte(`{"events": [`)

	_, err := parser.Parse(body, sign("secret", body))

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidSignature)
	assert.Contains(t, err.Error(), "JSON解析に失敗しました")
}

func TestLINEUserKey(t *testing.T) {
	assert.Equal(t, "line:U123", LINEUserKey("U123"))
}
