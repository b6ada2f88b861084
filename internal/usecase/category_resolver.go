package usecase

import (
	"context"
	"fmt"

	"github.com/k-negishi/chat-scheduler/internal/domain"
)

// CategoryResolver コマンド開始時点のカテゴリ一覧に対して名前を解決する
//
// 1コマンドの間は一覧を再取得しない。
type CategoryResolver struct {
	snapshot []domain.Category
	repo     CategoryRepository
}

// NewCategoryResolver カテゴリ一覧のスナップショットからリゾルバを作成
func NewCategoryResolver(snapshot []domain.Category, repo CategoryRepository) *CategoryResolver {
	copied := make([]domain.Category, len(snapshot))
	copy(copied, snapshot)
	return &CategoryResolver{snapshot: copied, repo: repo}
}

// Resolve 大文字小文字を無視した完全一致でカテゴリを探す
func (r *CategoryResolver) Resolve(name string) (domain.Category, bool) {
	if name == "" {
		return domain.Category{}, false
	}
	for _, c := range r.snapshot {
		if domain.SameCategoryName(c.Name, name) {
			return c, true
		}
	}
	return domain.Category{}, false
}

// Names スナップショット内のカテゴリ名
func (r *CategoryResolver) Names() []string {
	names := make([]string, 0, len(r.snapshot))
	for _, c := range r.snapshot {
		names = append(names, c.Name)
	}
	return names
}

// EnsureCreated 同名カテゴリが無ければ作成する。既にあれば domain.ErrCategoryExists
func (r *CategoryResolver) EnsureCreated(ctx context.Context, fields domain.CategoryFields) (domain.Category, error) {
	if _, ok := r.Resolve(fields.Name); ok {
		return domain.Category{}, fmt.Errorf("%w: %s", domain.ErrCategoryExists, fields.Name)
	}

	created, err := r.repo.CreateCategory(ctx, fields)
	if err != nil {
		return domain.Category{}, err
	}
	r.snapshot = append(r.snapshot, created)
	return created, nil
}
