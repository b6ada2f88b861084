package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSSMClient は SSMParameterGetter のテスト用モック
type MockSSMClient struct {
	mock.Mock
}

func (m *MockSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ssm.GetParameterOutput), args.Error(1)
}

func paramNamed(name string) interface{} {
	return mock.MatchedBy(func(input *ssm.GetParameterInput) bool {
		return *input.Name == name
	})
}

func paramValue(value string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(value)}}
}

// --- getEnvOrDefault テスト ---

func TestGetEnvOrDefault_WithValue(t *testing.T) {
	t.Setenv("TEST_ENV_KEY", "test-value")
	result := getEnvOrDefault("TEST_ENV_KEY", "default")
	assert.Equal(t, "test-value", result)
}

func TestGetEnvOrDefault_WithDefault(t *testing.T) {
	result := getEnvOrDefault("NONEXISTENT_KEY_FOR_TEST_12345", "default-value")
	assert.Equal(t, "default-value", result)
}

func TestGetEnvOrDefault_TrimsWhitespace(t *testing.T) {
	t.Setenv("TEST_ENV_WHITESPACE", "  trimmed  ")
	result := getEnvOrDefault("TEST_ENV_WHITESPACE", "default")
	assert.Equal(t, "trimmed", result)
}

// --- GetGoogleCredentialsJSON テスト ---

func TestGetGoogleCredentialsJSON_Valid(t *testing.T) {
	cfg := &Config{GoogleCredentials: `{"type": "service_account", "project_id": "test"}`}
	result, err := cfg.GetGoogleCredentialsJSON()
	require.NoError(t, err)
	assert.Equal(t, "service_account", result["type"])
	assert.Equal(t, "test", result["project_id"])
}

func TestGetGoogleCredentialsJSON_Invalid(t *testing.T) {
	cfg := &Config{GoogleCredentials: "not valid json"}
	_, err := cfg.GetGoogleCredentialsJSON()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Google認証情報のJSON解析に失敗しました")
}

// --- loadLocalConfig テスト ---

func TestLoadLocalConfig_MissingRequired(t *testing.T) {
	// 必須環境変数が未設定の状態をシミュレート
	t.Setenv("DATABASE_URL", "")

	_, err := loadLocalConfig()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "環境変数が設定されていません")
}

func TestLoadLocalConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("EXTRACTION_TIMEOUT", "")
	t.Setenv("TIMEZONE", "")
	t.Setenv("WORKING_HOURS_START", "")
	t.Setenv("WORKING_HOURS_END", "")
	t.Setenv("SLOT_SEARCH_DAYS", "")
	t.Setenv("GOOGLE_CREDENTIALS", "")
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "")

	cfg, err := loadLocalConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.GeminiAPIKey)
	assert.Equal(t, "gemini-1.5-flash", cfg.GeminiModel)
	assert.Equal(t, 30*time.Second, cfg.ExtractionTimeout)
	assert.Equal(t, "Asia/Tokyo", cfg.Timezone)
	assert.Equal(t, 7, cfg.SlotSearchDays)
	assert.False(t, cfg.UsesGoogleCalendar())
	assert.False(t, cfg.LINEEnabled())
}

func TestLoadLocalConfig_InvalidSearchDays(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("SLOT_SEARCH_DAYS", "zero")

	_, err := loadLocalConfig()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SLOT_SEARCH_DAYS")
}

// --- WorkingHours / Location テスト ---

func TestWorkingHours(t *testing.T) {
	cfg := &Config{WorkingHoursStart: "08:30", WorkingHoursEnd: "18:00"}
	wh, err := cfg.WorkingHours()
	require.NoError(t, err)
	assert.Equal(t, civil.Time{Hour: 8, Minute: 30}, wh.Start)
	assert.Equal(t, civil.Time{Hour: 18}, wh.End)
}

func TestWorkingHours_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
	}{
		{"開始が解析できない", "nine", "17:00"},
		{"終了が解析できない", "09:00", "5pm"},
		{"開始が終了以降", "17:00", "09:00"},
		{"同時刻", "09:00", "09:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{WorkingHoursStart: tt.start, WorkingHoursEnd: tt.end}
			_, err := cfg.WorkingHours()
			assert.Error(t, err)
		})
	}
}

func TestLocation_Invalid(t *testing.T) {
	cfg := &Config{Timezone: "Mars/Olympus"}
	_, err := cfg.Location()
	assert.Error(t, err)
}

// --- getParameter テスト（モック使用） ---

func TestGetParameter_Success(t *testing.T) {
	mockSSM := new(MockSSMClient)
	cfg := &Config{ssmClient: mockSSM}

	mockSSM.On("GetParameter", mock.Anything, mock.MatchedBy(func(input *ssm.GetParameterInput) bool {
		return *input.Name == "/test/param" && *input.WithDecryption == true
	})).Return(paramValue("test-value"), nil)

	result, err := cfg.getParameter(context.Background(), "/test/param", true)
	require.NoError(t, err)
	assert.Equal(t, "test-value", result)
	mockSSM.AssertExpectations(t)
}

func TestGetParameter_EmptyValue(t *testing.T) {
	mockSSM := new(MockSSMClient)
	cfg := &Config{ssmClient: mockSSM}

	mockSSM.On("GetParameter", mock.Anything, mock.Anything).Return(paramValue(""), nil)

	_, err := cfg.getParameter(context.Background(), "/test/param", true)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "空の値です")
}

func TestGetParameter_APIError(t *testing.T) {
	mockSSM := new(MockSSMClient)
	cfg := &Config{ssmClient: mockSSM}

	mockSSM.On("GetParameter", mock.Anything, mock.Anything).Return(nil, errors.New("SSM API error"))

	_, err := cfg.getParameter(context.Background(), "/test/param", true)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "パラメータ /test/param の取得に失敗しました")
	mockSSM.AssertExpectations(t)
}

func TestGetOptionalParameter_NotFound(t *testing.T) {
	mockSSM := new(MockSSMClient)
	cfg := &Config{ssmClient: mockSSM}

	mockSSM.On("GetParameter", mock.Anything, mock.Anything).Return(nil, &types.ParameterNotFound{})

	value, err := cfg.getOptionalParameter(context.Background(), "/test/param")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestLoadFromParameterStore(t *testing.T) {
	mockSSM := new(MockSSMClient)
	cfg := &Config{ssmClient: mockSSM}

	// デフォルトのパラメータ名を使用させるため環境変数をクリア
	t.Setenv("SSM_DATABASE_URL_PARAM", "")
	t.Setenv("SSM_GEMINI_API_KEY_PARAM", "")
	t.Setenv("SSM_GOOGLE_CREDS_PARAM", "")
	t.Setenv("SSM_LINE_TOKEN_PARAM", "")
	t.Setenv("SSM_LINE_SECRET_PARAM", "")
	t.Setenv("SSM_LINE_USER_ID_PARAM", "")

	mockSSM.On("GetParameter", mock.Anything, paramNamed("/chat-scheduler/database-url")).
		Return(paramValue("postgres://db/scheduler"), nil)
	mockSSM.On("GetParameter", mock.Anything, paramNamed("/chat-scheduler/gemini-api-key")).
		Return(paramValue("gemini-key"), nil)
	mockSSM.On("GetParameter", mock.Anything, paramNamed("/chat-scheduler/google-creds")).
		Return(nil, &types.ParameterNotFound{})
	mockSSM.On("GetParameter", mock.Anything, paramNamed("/chat-scheduler/line-channel-access-token")).
		Return(paramValue("line-token-value"), nil)
	mockSSM.On("GetParameter", mock.Anything, paramNamed("/chat-scheduler/line-channel-secret")).
		Return(paramValue("line-secret-value"), nil)
	mockSSM.On("GetParameter", mock.Anything, paramNamed("/chat-scheduler/line-user-id")).
		Return(paramValue("line-user-id-value"), nil)

	err := cfg.loadFromParameterStore()
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/scheduler", cfg.DatabaseURL)
	assert.Equal(t, "gemini-key", cfg.GeminiAPIKey)
	assert.Empty(t, cfg.GoogleCredentials)
	assert.Equal(t, "line-token-value", cfg.LineChannelAccessToken)
	assert.Equal(t, "line-secret-value", cfg.LineChannelSecret)
	assert.Equal(t, "line-user-id-value", cfg.LineUserID)
	assert.True(t, cfg.LINEEnabled())
	mockSSM.AssertExpectations(t)
}

func TestLoadFromParameterStore_MissingDatabaseURL(t *testing.T) {
	mockSSM := new(MockSSMClient)
	cfg := &Config{ssmClient: mockSSM}
	t.Setenv("SSM_DATABASE_URL_PARAM", "")

	mockSSM.On("GetParameter", mock.Anything, paramNamed("/chat-scheduler/database-url")).
		Return(nil, &types.ParameterNotFound{})

	err := cfg.loadFromParameterStore()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "データベース接続文字列の取得に失敗しました")
}
