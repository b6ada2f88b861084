package domain

import "strings"

// DefaultCategoryColor 色の指定が無いカテゴリに使う色
const DefaultCategoryColor = "#3B82F6"

// Category イベント・TODOの分類
type Category struct {
	ID          string
	Name        string
	Color       string
	Description string
	// UsageCount ストアが一覧取得のたびに再計算する件数
	UsageCount int
}

// CategoryFields カテゴリ作成時のフィールド
type CategoryFields struct {
	Name        string
	Color       string
	Description string
}

// SameCategoryName カテゴリ名が大文字小文字を無視して一致するか
func SameCategoryName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
