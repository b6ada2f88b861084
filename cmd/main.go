package main

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/k-negishi/chat-scheduler/internal/app"
	"github.com/k-negishi/chat-scheduler/internal/config"
)

var (
	mu      sync.Mutex
	handler *app.Handler
)

// getHandler 初回呼び出し時に依存関係を組み立てる。失敗した場合は次回の呼び出しで再試行する
func getHandler(ctx context.Context) (*app.Handler, error) {
	mu.Lock()
	defer mu.Unlock()

	if handler != nil {
		return handler, nil
	}

	// 設定を読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Printf("設定読み込みエラー: %v", err)
		return nil, err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Printf("初期化エラー: %v", err)
		return nil, err
	}

	handler = app.NewHandler(a)
	return handler, nil
}

// invoke Lambda関数のメインハンドラー
func invoke(ctx context.Context, payload json.RawMessage) (any, error) {
	h, err := getHandler(ctx)
	if err != nil {
		return app.LambdaResponse{
			StatusCode: 500,
			Message:    "初期化エラー",
		}, err
	}
	return h.Invoke(ctx, payload)
}

func main() {
	lambda.Start(invoke)
}
