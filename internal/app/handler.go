package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/aws/aws-lambda-go/events"

	"github.com/k-negishi/chat-scheduler/internal/domain"
	"github.com/k-negishi/chat-scheduler/internal/gateway"
	"github.com/k-negishi/chat-scheduler/internal/usecase"
)

// WebhookParser LINE Webhookのボディからメッセージを取り出す
type WebhookParser interface {
	Parse(body []byte, signature string) ([]domain.ChatMessage, error)
}

// MessageReplier 受信メッセージを処理して返信する
type MessageReplier interface {
	Execute(ctx context.Context, messages []domain.ChatMessage) error
}

// AgendaNotifier 今日と明日の予定を通知する
type AgendaNotifier interface {
	Execute(ctx context.Context, userID, to string, today civil.Date) (skipped bool, err error)
}

// Handler Lambdaのイベントを各ユースケースに振り分ける
type Handler struct {
	interpreter usecase.Interpreter
	webhook     WebhookParser
	replies     MessageReplier
	agenda      AgendaNotifier
	agendaTo    string
	location    *time.Location
	clock       func() time.Time
}

// NewHandler App からハンドラーを作成
func NewHandler(a *App) *Handler {
	h := &Handler{
		interpreter: a.Interpreter,
		agendaTo:    a.Config.LineUserID,
		location:    a.Location,
		clock:       time.Now,
	}
	// nil ポインタを非 nil のインターフェースとして保持しない
	if a.Webhook != nil {
		h.webhook = a.Webhook
	}
	if a.Replies != nil {
		h.replies = a.Replies
	}
	if a.Agenda != nil {
		h.agenda = a.Agenda
	}
	return h
}

// LambdaResponse スケジュール実行の結果
type LambdaResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// chatRequest POST /chat のリクエストボディ
type chatRequest struct {
	Message   string `json:"message"`
	LocalTime string `json:"local_time"`
	UserID    string `json:"user_id"`
}

// Invoke 生のイベントを判別して処理する。API Gateway 以外はスケジュール実行として扱う
func (h *Handler) Invoke(ctx context.Context, payload json.RawMessage) (any, error) {
	var probe struct {
		HTTPMethod string `json:"httpMethod"`
	}
	if err := json.Unmarshal(payload, &probe); err == nil && probe.HTTPMethod != "" {
		var req events.APIGatewayProxyRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return h.HandleHTTP(ctx, req)
	}
	return h.HandleSchedule(ctx)
}

// HandleHTTP API Gateway からのリクエストを処理
func (h *Handler) HandleHTTP(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if req.HTTPMethod != http.MethodPost {
		return textResponse(http.StatusMethodNotAllowed, "method not allowed"), nil
	}

	switch strings.TrimSuffix(req.Path, "/") {
	case "/chat":
		return h.handleChat(ctx, req)
	case "/line/webhook":
		return h.handleLINEWebhook(ctx, req)
	default:
		return textResponse(http.StatusNotFound, "not found"), nil
	}
}

func (h *Handler) handleChat(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body chatRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return textResponse(http.StatusBadRequest, "invalid JSON body"), nil
	}
	if strings.TrimSpace(body.Message) == "" {
		return textResponse(http.StatusBadRequest, "message is required"), nil
	}
	if body.UserID == "" {
		return textResponse(http.StatusBadRequest, "user_id is required"), nil
	}

	cmd := usecase.CommandRequest{UserID: body.UserID, Message: body.Message}
	if body.LocalTime != "" {
		localTime, err := time.Parse(time.RFC3339, body.LocalTime)
		if err != nil {
			return textResponse(http.StatusBadRequest, "local_time must be RFC3339"), nil
		}
		cmd.LocalTime = localTime
	}

	result := h.interpreter.Execute(ctx, cmd)
	encoded, err := json.Marshal(result)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(encoded),
	}, nil
}

func (h *Handler) handleLINEWebhook(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if h.webhook == nil || h.replies == nil {
		return textResponse(http.StatusNotFound, "LINE is not configured"), nil
	}

	messages, err := h.webhook.Parse([]byte(req.Body), header(req.Headers, "X-Line-Signature"))
	if errors.Is(err, gateway.ErrInvalidSignature) {
		log.Printf("Warning: LINE署名の検証に失敗しました")
		return textResponse(http.StatusUnauthorized, "invalid signature"), nil
	}
	if err != nil {
		return textResponse(http.StatusBadRequest, "invalid webhook body"), nil
	}

	// 返信に失敗しても 200 を返す（LINE側の再送で二重に処理されるため）
	if err := h.replies.Execute(ctx, messages); err != nil {
		log.Printf("LINEメッセージの処理中にエラーが発生しました: %v", err)
	}
	return textResponse(http.StatusOK, "ok"), nil
}

// HandleSchedule EventBridge からの定期実行で今日と明日の予定を通知
func (h *Handler) HandleSchedule(ctx context.Context) (LambdaResponse, error) {
	if h.agenda == nil || h.agendaTo == "" {
		return LambdaResponse{
			StatusCode: 200,
			Message:    "通知先が未設定のため通知スキップ",
		}, nil
	}

	today := civil.DateOf(h.clock().In(h.location))
	skipped, err := h.agenda.Execute(ctx, gateway.LINEUserKey(h.agendaTo), h.agendaTo, today)
	if err != nil {
		log.Printf("予定通知に失敗しました: %v", err)
		return LambdaResponse{
			StatusCode: 500,
			Message:    "予定通知エラー",
		}, err
	}
	if skipped {
		return LambdaResponse{
			StatusCode: 200,
			Message:    "予定なしのため通知スキップ",
		}, nil
	}
	return LambdaResponse{
		StatusCode: 200,
		Message:    "通知送信完了",
	}, nil
}

// header ヘッダー名の大文字小文字を区別せずに値を取得
func header(headers map[string]string, name string) string {
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

func textResponse(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "text/plain; charset=utf-8"},
		Body:       body,
	}
}
