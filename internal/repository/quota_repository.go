package repository

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/jmoiron/sqlx"
	"lumashot/internal/domain"
)

type QuotaRepository struct {
	db *sqlx.DB
}

func NewQuotaRepository(db *sqlx.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

func (r *QuotaRepository) GetLimit(ctx context.Context, ownerID string) (*domain.QuotaLimit, error) {
	var limit domain.QuotaLimit

	err := r.db.GetContext(ctx, &limit,
		`SELECT * FROM quota_limits WHERE owner_id = $1`,
		ownerID)

	if err != nil {
		// Если лимит не найден, создаем новый с дефолтным значением
		if err == sql.ErrNoRows {
			limit = domain.QuotaLimit{
				OwnerID:    ownerID,
				LimitBytes: domain.DefaultQuotaLimitBytes,
			}

			if err := r.Create(ctx, &limit); err != nil {
				return nil, fmt.Errorf("failed to create quota limit: %w", err)
			}
			return &limit, nil
		}
		return nil, fmt.Errorf("failed to get quota limit: %w", err)
	}

	return &limit, nil
}

func (r *QuotaRepository) Create(ctx context.Context, limit *domain.QuotaLimit) error {
	query := `
        INSERT INTO quota_limits (owner_id, limit_bytes)
        VALUES ($1, $2)
        RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		limit.OwnerID,
		limit.LimitBytes,
	).Scan(&limit.CreatedAt, &limit.UpdatedAt)
}

func (r *QuotaRepository) UpdateLimit(ctx context.Context, ownerID string, newLimit int64) error {
	query := `
        UPDATE quota_limits
        SET limit_bytes = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, newLimit, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update quota limit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("quota limit not found for owner: %s", ownerID)
	}

	return nil
}
