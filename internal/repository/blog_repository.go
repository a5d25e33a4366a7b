package repository

import (
	"context"
	"fmt"
	"github.com/jmoiron/sqlx"
	"lumashot/internal/domain"
)

// BlogRepository разрешает блоги пользователя. Пайплайну изображений
// блоги нужны только как корни перечисления при расчёте квоты.
type BlogRepository struct {
	db *sqlx.DB
}

func NewBlogRepository(db *sqlx.DB) *BlogRepository {
	return &BlogRepository{db: db}
}

func (r *BlogRepository) GetByOwner(ctx context.Context, ownerID string) ([]domain.Blog, error) {
	var blogs []domain.Blog

	err := r.db.SelectContext(ctx, &blogs,
		`SELECT * FROM blogs WHERE owner_id = $1 ORDER BY id`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get blogs: %w", err)
	}

	return blogs, nil
}
