package domain

import "errors"

var (
	// ErrNotFound 対象のレコードが存在しない
	ErrNotFound = errors.New("not found")

	// ErrCategoryExists 同名（大文字小文字を区別しない）のカテゴリが既に存在する
	ErrCategoryExists = errors.New("category already exists")

	// ErrExtractionUnavailable 言語モデルの認証情報や接続が無く、コマンドを解釈できない
	ErrExtractionUnavailable = errors.New("extraction service unavailable")

	// ErrMalformedExtraction 言語モデルの応答が構造化データとして解釈できない
	ErrMalformedExtraction = errors.New("malformed extraction")

	// ErrInvalidInterval 開始が終了より後、または同時刻の区間
	ErrInvalidInterval = errors.New("interval start must be before end")
)
