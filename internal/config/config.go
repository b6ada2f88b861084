package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/joho/godotenv"

	"github.com/k-negishi/chat-scheduler/internal/domain"
)

// SSMParameterGetter Parameter Store の読み出しを抽象化（テスト用にモック可能）
type SSMParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Config アプリケーション設定構造体
type Config struct {
	// Gemini設定
	GeminiAPIKey      string
	GeminiModel       string
	ExtractionTimeout time.Duration

	// PostgreSQL設定
	DatabaseURL string

	// Google Calendar設定（未設定ならイベントもPostgreSQLに保存）
	GoogleCredentials string
	CalendarID        string

	// LINE API設定
	LineChannelAccessToken string
	LineChannelSecret      string
	// LineUserID 予定通知の送信先
	LineUserID string

	// スケジューリング設定
	Timezone          string
	WorkingHoursStart string
	WorkingHoursEnd   string
	SlotSearchDays    int

	// その他設定
	LogLevel string

	// AWS関連（本番環境でのみ使用）
	ssmClient SSMParameterGetter
}

// Load 環境に応じて設定を読み込み
func Load() (*Config, error) {
	// AWS Lambda環境かどうか判定
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		return loadAWSConfig()
	}
	return loadLocalConfig()
}

// loadLocalConfig ローカル開発環境用の設定読み込み
func loadLocalConfig() (*Config, error) {
	// .envファイルを読み込み（存在する場合のみ）
	if err := godotenv.Load(); err != nil {
		// .envファイルが存在しない場合はエラーにしない
		fmt.Printf("Warning: .envファイルが見つかりません: %v\n", err)
	}

	cfg := &Config{
		GeminiAPIKey:           getEnvOrDefault("GEMINI_API_KEY", ""),
		DatabaseURL:            getEnvOrDefault("DATABASE_URL", ""),
		GoogleCredentials:      getEnvOrDefault("GOOGLE_CREDENTIALS", ""),
		LineChannelAccessToken: getEnvOrDefault("LINE_CHANNEL_ACCESS_TOKEN", ""),
		LineChannelSecret:      getEnvOrDefault("LINE_CHANNEL_SECRET", ""),
		LineUserID:             getEnvOrDefault("LINE_USER_ID", ""),
	}
	if err := cfg.loadSettings(); err != nil {
		return nil, err
	}

	// 必須設定項目の確認
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL環境変数が設定されていません")
	}

	return cfg, nil
}

// loadAWSConfig AWS Lambda環境用の設定読み込み
func loadAWSConfig() (*Config, error) {
	// AWS設定を初期化
	awsConfig, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("AWS設定の読み込みに失敗しました: %w", err)
	}

	cfg := &Config{ssmClient: ssm.NewFromConfig(awsConfig)}
	if err := cfg.loadSettings(); err != nil {
		return nil, err
	}

	// Parameter Storeから機密情報を取得
	if err := cfg.loadFromParameterStore(); err != nil {
		return nil, fmt.Errorf("Parameter Storeからの設定読み込みに失敗しました: %w", err)
	}

	return cfg, nil
}

// loadSettings 機密でない設定を環境変数から読み込み
func (c *Config) loadSettings() error {
	c.GeminiModel = getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash")
	c.CalendarID = getEnvOrDefault("CALENDAR_ID", "primary")
	c.Timezone = getEnvOrDefault("TIMEZONE", "Asia/Tokyo")
	c.WorkingHoursStart = getEnvOrDefault("WORKING_HOURS_START", "09:00")
	c.WorkingHoursEnd = getEnvOrDefault("WORKING_HOURS_END", "17:00")
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", "INFO")

	timeout, err := time.ParseDuration(getEnvOrDefault("EXTRACTION_TIMEOUT", "30s"))
	if err != nil {
		return fmt.Errorf("EXTRACTION_TIMEOUTの解析に失敗しました: %w", err)
	}
	c.ExtractionTimeout = timeout

	days, err := strconv.Atoi(getEnvOrDefault("SLOT_SEARCH_DAYS", strconv.Itoa(domain.DefaultSearchWindowDays)))
	if err != nil || days <= 0 {
		return fmt.Errorf("SLOT_SEARCH_DAYSは正の整数で指定してください")
	}
	c.SlotSearchDays = days

	return nil
}

// loadFromParameterStore Parameter Storeから機密情報を読み込み
func (c *Config) loadFromParameterStore() error {
	ctx := context.TODO()

	// データベース接続文字列は必須
	databaseURL, err := c.getParameter(ctx, getEnvOrDefault("SSM_DATABASE_URL_PARAM", "/chat-scheduler/database-url"), true)
	if err != nil {
		return fmt.Errorf("データベース接続文字列の取得に失敗しました: %w", err)
	}
	c.DatabaseURL = databaseURL

	optional := []struct {
		envKey       string
		defaultParam string
		target       *string
	}{
		{"SSM_GEMINI_API_KEY_PARAM", "/chat-scheduler/gemini-api-key", &c.GeminiAPIKey},
		{"SSM_GOOGLE_CREDS_PARAM", "/chat-scheduler/google-creds", &c.GoogleCredentials},
		{"SSM_LINE_TOKEN_PARAM", "/chat-scheduler/line-channel-access-token", &c.LineChannelAccessToken},
		{"SSM_LINE_SECRET_PARAM", "/chat-scheduler/line-channel-secret", &c.LineChannelSecret},
		{"SSM_LINE_USER_ID_PARAM", "/chat-scheduler/line-user-id", &c.LineUserID},
	}
	for _, p := range optional {
		value, err := c.getOptionalParameter(ctx, getEnvOrDefault(p.envKey, p.defaultParam))
		if err != nil {
			return err
		}
		*p.target = value
	}

	return nil
}

// getParameter Parameter Storeから指定されたパラメータを取得
func (c *Config) getParameter(ctx context.Context, paramName string, withDecryption bool) (string, error) {
	input := &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(withDecryption),
	}

	result, err := c.ssmClient.GetParameter(ctx, input)
	if err != nil {
		return "", fmt.Errorf("パラメータ %s の取得に失敗しました: %w", paramName, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil || *result.Parameter.Value == "" {
		return "", fmt.Errorf("パラメータ %s が空の値です", paramName)
	}

	return *result.Parameter.Value, nil
}

// getOptionalParameter 存在しないパラメータは空文字として扱う
func (c *Config) getOptionalParameter(ctx context.Context, paramName string) (string, error) {
	value, err := c.getParameter(ctx, paramName, true)
	var notFound *types.ParameterNotFound
	if errors.As(err, &notFound) {
		return "", nil
	}
	return value, err
}

// GetGoogleCredentialsJSON Google認証情報をJSONとして解析
func (c *Config) GetGoogleCredentialsJSON() (map[string]interface{}, error) {
	var credentials map[string]interface{}
	if err := json.Unmarshal([]byte(c.GoogleCredentials), &credentials); err != nil {
		return nil, fmt.Errorf("Google認証情報のJSON解析に失敗しました: %w", err)
	}
	return credentials, nil
}

// UsesGoogleCalendar イベントの保存先がGoogle Calendarか
func (c *Config) UsesGoogleCalendar() bool {
	return c.GoogleCredentials != ""
}

// LINEEnabled LINE Webhookを受け付けるか
func (c *Config) LINEEnabled() bool {
	return c.LineChannelAccessToken != "" && c.LineChannelSecret != ""
}

// Location タイムゾーンを読み込み
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("タイムゾーン %s の読み込みに失敗しました: %w", c.Timezone, err)
	}
	return loc, nil
}

// WorkingHours 自動スケジュールの対象時間帯を解析
func (c *Config) WorkingHours() (domain.WorkingHours, error) {
	start, err := domain.ParseClock(c.WorkingHoursStart)
	if err != nil {
		return domain.WorkingHours{}, fmt.Errorf("WORKING_HOURS_STARTの解析に失敗しました: %w", err)
	}
	end, err := domain.ParseClock(c.WorkingHoursEnd)
	if err != nil {
		return domain.WorkingHours{}, fmt.Errorf("WORKING_HOURS_ENDの解析に失敗しました: %w", err)
	}
	if end.Hour*60+end.Minute <= start.Hour*60+start.Minute {
		return domain.WorkingHours{}, fmt.Errorf("WORKING_HOURS_START は WORKING_HOURS_END より前である必要があります")
	}
	return domain.WorkingHours{Start: start, End: end}, nil
}

// getEnvOrDefault 環境変数を取得し、存在しない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
