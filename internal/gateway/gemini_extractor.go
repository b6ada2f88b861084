package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	generativelanguage "google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"

	"github.com/k-negishi/chat-scheduler/internal/domain"
	"github.com/k-negishi/chat-scheduler/internal/usecase"
)

// DefaultGeminiModel モデル名の指定が無い場合に使うモデル
const DefaultGeminiModel = "gemini-1.5-flash"

// ContentGenerator Gemini generateContent の呼び出しを抽象化（テスト用にモック可能）
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, req *generativelanguage.GenerateContentRequest) (*generativelanguage.GenerateContentResponse, error)
}

// geminiService generativelanguage.Service を使った ContentGenerator の実装
type geminiService struct {
	service *generativelanguage.Service
}

func (g *geminiService) GenerateContent(ctx context.Context, model string, req *generativelanguage.GenerateContentRequest) (*generativelanguage.GenerateContentResponse, error) {
	return g.service.Models.GenerateContent("models/"+model, req).Context(ctx).Do()
}

// GeminiExtractor Gemini APIを使用したExtractorの実装
type GeminiExtractor struct {
	generator    ContentGenerator
	model        string
	timeout      time.Duration
	logResponses bool
}

// NewGeminiExtractor APIキーからExtractorを作成。キーが空ならすべての抽出が ErrExtractionUnavailable になる
func NewGeminiExtractor(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiExtractor, error) {
	if strings.TrimSpace(apiKey) == "" {
		log.Printf("Warning: GEMINI_API_KEY が設定されていないため言語モデルを使用できません")
		return NewGeminiExtractorWithGenerator(nil, model, timeout), nil
	}

	service, err := generativelanguage.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("Gemini APIサービスの作成に失敗しました: %w", err)
	}
	return NewGeminiExtractorWithGenerator(&geminiService{service: service}, model, timeout), nil
}

// NewGeminiExtractorWithGenerator 任意の ContentGenerator でExtractorを作成
func NewGeminiExtractorWithGenerator(generator ContentGenerator, model string, timeout time.Duration) *GeminiExtractor {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiExtractor{generator: generator, model: model, timeout: timeout}
}

// WithResponseLogging 言語モデルの生の応答をログに出すか
func (e *GeminiExtractor) WithResponseLogging(enabled bool) *GeminiExtractor {
	e.logResponses = enabled
	return e
}

// Extract 発話から意図とエンティティを抽出
func (e *GeminiExtractor) Extract(ctx context.Context, req usecase.ExtractionRequest) (domain.RawExtraction, error) {
	if e.generator == nil {
		return domain.RawExtraction{}, domain.ErrExtractionUnavailable
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.generator.GenerateContent(ctx, e.model, &generativelanguage.GenerateContentRequest{
		SystemInstruction: &generativelanguage.Content{
			Parts: []*generativelanguage.Part{{Text: buildSystemPrompt(req.LocalTime, req.CategoryNames)}},
		},
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: []*generativelanguage.Part{{Text: req.Utterance}},
		}},
		GenerationConfig: &generativelanguage.GenerationConfig{
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		return domain.RawExtraction{}, fmt.Errorf("Gemini APIの呼び出しに失敗しました: %w", err)
	}

	text := responseText(resp)
	if e.logResponses {
		log.Printf("言語モデルの応答: %s", text)
	}
	return parseExtraction(text)
}

// responseText 最初の候補のテキストパートを連結
func responseText(resp *generativelanguage.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var builder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			builder.WriteString(part.Text)
		}
	}
	return builder.String()
}

// parseExtraction 応答テキストを RawExtraction に変換。壊れたJSONは修復を1回だけ試みる
func parseExtraction(text string) (domain.RawExtraction, error) {
	text = stripCodeFence(text)
	if text == "" {
		return domain.RawExtraction{}, fmt.Errorf("%w: 応答が空です", domain.ErrMalformedExtraction)
	}

	var raw domain.RawExtraction
	err := json.Unmarshal([]byte(text), &raw)
	if err == nil {
		return raw, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(text)
	if repairErr != nil {
		return domain.RawExtraction{}, fmt.Errorf("%w: %v", domain.ErrMalformedExtraction, err)
	}
	raw = domain.RawExtraction{}
	if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
		return domain.RawExtraction{}, fmt.Errorf("%w: %v", domain.ErrMalformedExtraction, err)
	}
	log.Printf("Warning: 言語モデルの応答JSONを修復しました")
	return raw, nil
}

// stripCodeFence ```json ... ``` で囲まれた応答から中身を取り出す
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// buildSystemPrompt 現在時刻と既存カテゴリを含むシステムプロンプト
func buildSystemPrompt(localTime time.Time, categoryNames []string) string {
	categories := "(none)"
	if len(categoryNames) > 0 {
		categories = strings.Join(categoryNames, ", ")
	}

	var b strings.Builder
	b.WriteString("You are an intelligent scheduling assistant.\n")
	fmt.Fprintf(&b, "Current Local Time: %s (%s)\n", localTime.Format(time.RFC3339), localTime.Weekday())
	fmt.Fprintf(&b, "Existing Categories: %s\n\n", categories)
	b.WriteString(`Extract the user's intent and entities for exactly one of these actions:
create_event, update_event, delete_event, create_todo, create_category, query_calendar.

Output strictly valid JSON with this structure:
{
  "intent": "create_event" | "update_event" | "delete_event" | "create_todo" | "create_category" | "query_calendar" | "unknown",
  "entities": {
    // create_event / update_event
    "title": "string", "date": "YYYY-MM-DD", "startTime": "HH:MM", "endTime": "HH:MM",
    "category_name": "string (optional)", "duration": "string (optional, e.g. '1h', '90m')",
    "auto_schedule": true | false, "time_range_start": "YYYY-MM-DD", "time_range_end": "YYYY-MM-DD",
    "recurrence_rule": "RFC 5545 RRULE without the RRULE: prefix (optional)",
    // create_todo
    "title": "string", "description": "string", "priority": "low" | "medium" | "high",
    "due_date": "YYYY-MM-DD (optional)", "estimated_duration": "string (optional)", "category_name": "string (optional)",
    // create_category
    "name": "string", "color": "hex string (optional)", "description": "string (optional)",
    // query_calendar
    "start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD"
  },
  "search_criteria": { "title_keyword": "string", "date": "YYYY-MM-DD (optional)" },
  "updates": { "title": "...", "date": "...", "startTime": "...", "endTime": "...", "category_name": "...", "duration": "..." },
  "response_text": "A short natural language reply to show the user."
}

Rules:
- Resolve relative dates (tomorrow, next friday) against Current Local Time.
- If a time is given without an end time, assume a 1 hour duration.
- If the user asks to find time or gives no start time, set auto_schedule to true and describe the window with time_range_start and time_range_end.
- For update_event and delete_event, fill search_criteria to identify the event, and put only the changed fields in updates.
- Match category_name against Existing Categories when possible.
- If you cannot understand, set intent to "unknown" and ask for clarification in response_text.
`)
	return b.String()
}
