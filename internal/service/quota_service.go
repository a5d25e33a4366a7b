package service

import (
	"context"
	"fmt"
	"log"

	"lumashot/internal/domain"
	"lumashot/internal/service/s3"
)

// QuotaLimitStore — доступ к административным лимитам
type QuotaLimitStore interface {
	GetLimit(ctx context.Context, ownerID string) (*domain.QuotaLimit, error)
	UpdateLimit(ctx context.Context, ownerID string, newLimit int64) error
}

// BlogStore — доступ к блогам пользователя
type BlogStore interface {
	GetByOwner(ctx context.Context, ownerID string) ([]domain.Blog, error)
}

// QuotaService отвечает за расчёт занятого места и решение о допустимости
// загрузки. Счётчик не персистится: использование пересчитывается полным
// обходом хранилища по требованию.
type QuotaService struct {
	storage   s3.Storage
	quotaRepo QuotaLimitStore
	blogRepo  BlogStore
}

func NewQuotaService(
	storage s3.Storage,
	quotaRepo QuotaLimitStore,
	blogRepo BlogStore,
) *QuotaService {
	return &QuotaService{
		storage:   storage,
		quotaRepo: quotaRepo,
		blogRepo:  blogRepo,
	}
}

// ComputeUsage рекурсивно обходит все файлы пользователя и суммирует
// их размеры. Ошибка на корневом уровне фатальна; ошибка в поддереве
// фиксируется в отчёте, а вклад поддерева принимается за 0.
func (s *QuotaService) ComputeUsage(ctx context.Context, userID string) (*domain.UsageReport, error) {
	roots := []string{domain.SandboxRoot(userID)}

	// Блоги дают дополнительные корни перечисления
	blogs, err := s.blogRepo.GetByOwner(ctx, userID)
	if err != nil {
		log.Printf("[Quota] Не удалось получить блоги пользователя %s: %v", userID, err)
	} else {
		for _, blog := range blogs {
			roots = append(roots, fmt.Sprintf("users/%s/blogs/%d/images", userID, blog.ID))
		}
	}

	report := &domain.UsageReport{}

	for i, root := range roots {
		listing, err := s.storage.List(ctx, root)
		if err != nil {
			// Отказ корня песочницы — отказ всей операции
			if i == 0 {
				return nil, fmt.Errorf("%w: failed to list root %s: %v", domain.ErrStorageUnavailable, root, err)
			}
			log.Printf("[Quota] Ошибка перечисления корня %s: %v", root, err)
			report.FailedPrefixes = append(report.FailedPrefixes, root)
			continue
		}
		s.sumTree(ctx, listing, report)
	}

	return report, nil
}

// sumTree суммирует файлы уровня и рекурсивно спускается в подпапки
func (s *QuotaService) sumTree(ctx context.Context, listing *s3.ListResult, report *domain.UsageReport) {
	for _, obj := range listing.Objects {
		report.UsedBytes += obj.SizeBytes
		if obj.SizeBytes > 0 {
			report.FileCount++
		}
	}

	for _, prefix := range listing.Prefixes {
		sub, err := s.storage.List(ctx, prefix)
		if err != nil {
			log.Printf("[Quota] Ошибка перечисления поддерева %s: %v", prefix, err)
			report.FailedPrefixes = append(report.FailedPrefixes, prefix)
			continue
		}
		s.sumTree(ctx, sub, report)
	}
}

// CanUpload выносит чистое решение о допустимости загрузки кандидата.
// Ничего не мутирует и безопасен для повторного вызова в рамках одной
// логической загрузки (оценка до сжатия и точная проверка после).
func (s *QuotaService) CanUpload(ctx context.Context, userID string, candidateBytes int64) (*domain.QuotaDecision, error) {
	if candidateBytes < 0 {
		return nil, fmt.Errorf("%w: candidate size cannot be negative", domain.ErrInvalidInput)
	}

	limit, err := s.quotaRepo.GetLimit(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quota limit: %w", err)
	}

	report, err := s.ComputeUsage(ctx, userID)
	if err != nil {
		return nil, err
	}

	decision := &domain.QuotaDecision{
		CurrentUsage: report.UsedBytes,
		LimitBytes:   limit.LimitBytes,
	}

	if report.UsedBytes+candidateBytes > limit.LimitBytes {
		decision.Allowed = false
		decision.Reason = fmt.Sprintf(
			"upload of %d bytes would exceed the %d byte limit (currently using %d bytes)",
			candidateBytes, limit.LimitBytes, report.UsedBytes)
		return decision, nil
	}

	decision.Allowed = true
	return decision, nil
}

// EstimateCandidate возвращает эвристическую оценку размера артефакта
// до фактического сжатия
func EstimateCandidate(sourceBytes int64) int64 {
	return sourceBytes * 8 / 10
}

// GetQuotaInfo собирает сводку для пользователя
func (s *QuotaService) GetQuotaInfo(ctx context.Context, userID string) (*domain.QuotaInfo, error) {
	limit, err := s.quotaRepo.GetLimit(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quota limit: %w", err)
	}

	report, err := s.ComputeUsage(ctx, userID)
	if err != nil {
		return nil, err
	}

	usagePercent := 0.0
	if limit.LimitBytes > 0 {
		usagePercent = float64(report.UsedBytes) / float64(limit.LimitBytes) * 100
	}

	return &domain.QuotaInfo{
		TotalSpace:     limit.LimitBytes,
		UsedSpace:      report.UsedBytes,
		AvailableSpace: limit.LimitBytes - report.UsedBytes,
		UsagePercent:   usagePercent,
		FailedPrefixes: report.FailedPrefixes,
	}, nil
}

// UpdateQuotaLimit обновляет административный лимит пользователя
func (s *QuotaService) UpdateQuotaLimit(ctx context.Context, ownerID string, newLimit int64) error {
	if newLimit < 0 {
		return fmt.Errorf("%w: new quota limit cannot be negative", domain.ErrInvalidInput)
	}
	// Гарантируем существование строки лимита
	if _, err := s.quotaRepo.GetLimit(ctx, ownerID); err != nil {
		return err
	}
	return s.quotaRepo.UpdateLimit(ctx, ownerID, newLimit)
}
