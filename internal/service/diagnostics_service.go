package service

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"lumashot/internal/auth"
	"lumashot/internal/cache"
	"lumashot/internal/codec"
	"lumashot/internal/domain"
	"lumashot/internal/metrics"
	"lumashot/internal/service/s3"
)

// CheckStatus — исход одной проверки
type CheckStatus string

const (
	StatusPassed CheckStatus = "passed"
	StatusFailed CheckStatus = "failed"
)

// Severity — агрегированная оценка батареи проверок
type Severity string

const (
	SeverityHealthy  Severity = "healthy"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// CheckResult — результат одной проверки. Details заполняется и при
// успехе, и при отказе: отчёт должен быть самодостаточным.
type CheckResult struct {
	Name       string      `json:"name"`
	Status     CheckStatus `json:"status"`
	Details    string      `json:"details"`
	DurationMs int64       `json:"duration_ms"`
}

// Report — итог прогона всех проверок
type Report struct {
	RanAt    time.Time     `json:"ran_at"`
	Checks   []CheckResult `json:"checks"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Severity Severity      `json:"severity"`
}

// DiagnosticsService прогоняет батарею проверок работоспособности
// всех зависимостей конвейера загрузки. Проверки выполняются
// последовательно; отказ одной не прерывает остальные.
type DiagnosticsService struct {
	db       *sqlx.DB
	storage  s3.Storage
	cache    *cache.ListingCache
	codec    codec.Codec
	blogRepo BlogStore
	httpc    *http.Client
}

func NewDiagnosticsService(
	db *sqlx.DB,
	storage s3.Storage,
	listingCache *cache.ListingCache,
	imageCodec codec.Codec,
	blogRepo BlogStore,
) *DiagnosticsService {
	return &DiagnosticsService{
		db:       db,
		storage:  storage,
		cache:    listingCache,
		codec:    imageCodec,
		blogRepo: blogRepo,
		httpc:    &http.Client{Timeout: 10 * time.Second},
	}
}

type check struct {
	name string
	run  func(ctx context.Context, userID string) (string, error)
}

// Run выполняет полную батарею от имени пользователя
func (s *DiagnosticsService) Run(ctx context.Context, userID string) (*Report, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}

	checks := []check{
		{"authentication", s.checkAuthentication},
		{"storageAccess", s.checkStorageAccess},
		{"uploadPipeline", s.checkUploadPipeline},
		{"dataAssociation", s.checkDataAssociation},
		{"urlAccessibility", s.checkURLAccessibility},
		{"offlineCache", s.checkOfflineCache},
		{"browserCompatibility", s.checkFormatSupport},
	}

	report := &Report{RanAt: time.Now().UTC()}

	for _, c := range checks {
		started := time.Now()
		details, err := c.run(ctx, userID)

		result := CheckResult{
			Name:       c.name,
			DurationMs: time.Since(started).Milliseconds(),
		}
		if err != nil {
			result.Status = StatusFailed
			result.Details = err.Error()
			report.Failed++
			log.Printf("[Diagnostics] Проверка %s провалена: %v", c.name, err)
		} else {
			result.Status = StatusPassed
			result.Details = details
			report.Passed++
		}
		report.Checks = append(report.Checks, result)
	}

	switch {
	case report.Failed == 0:
		report.Severity = SeverityHealthy
	case report.Failed <= 2:
		report.Severity = SeverityWarning
	default:
		report.Severity = SeverityCritical
	}

	metrics.DiagnosticsFailed.Set(float64(report.Failed))

	log.Printf("[Diagnostics] Прогон для %s: %d/%d, severity=%s",
		userID, report.Passed, report.Passed+report.Failed, report.Severity)

	return report, nil
}

func (s *DiagnosticsService) checkAuthentication(ctx context.Context, userID string) (string, error) {
	if !auth.Ready() {
		return "", fmt.Errorf("token verifier is not configured")
	}
	return fmt.Sprintf("verified identity %s", userID), nil
}

func (s *DiagnosticsService) checkStorageAccess(ctx context.Context, userID string) (string, error) {
	root := domain.SandboxRoot(userID)
	listing, err := s.storage.List(ctx, root+"/")
	if err != nil {
		return "", fmt.Errorf("cannot list sandbox %s: %w", root, err)
	}
	return fmt.Sprintf("sandbox reachable, %d objects at top level", len(listing.Objects)), nil
}

// checkUploadPipeline записывает, перечитывает и удаляет пробный объект
// в служебном подкаталоге песочницы
func (s *DiagnosticsService) checkUploadPipeline(ctx context.Context, userID string) (string, error) {
	key := fmt.Sprintf("%s/diagnostics/probe-%d.txt", domain.SandboxRoot(userID), time.Now().UnixNano())
	payload := []byte("diagnostics probe")

	if err := s.storage.Put(ctx, key, payload, "text/plain", nil); err != nil {
		return "", fmt.Errorf("probe write failed: %w", err)
	}

	info, err := s.storage.Head(ctx, key)
	if err != nil {
		return "", fmt.Errorf("probe readback failed: %w", err)
	}
	if info.SizeBytes != int64(len(payload)) {
		return "", fmt.Errorf("probe size mismatch: wrote %d, read %d", len(payload), info.SizeBytes)
	}

	if err := s.storage.Delete(ctx, key); err != nil {
		return "", fmt.Errorf("probe cleanup failed: %w", err)
	}

	return "write, readback and delete all succeeded", nil
}

func (s *DiagnosticsService) checkDataAssociation(ctx context.Context, userID string) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database is not configured")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return "", fmt.Errorf("database unreachable: %w", err)
	}
	blogs, err := s.blogRepo.GetByOwner(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("cannot resolve blogs for user: %w", err)
	}
	return fmt.Sprintf("database reachable, %d blogs associated", len(blogs)), nil
}

// checkURLAccessibility проверяет, что подписанная ссылка на объект
// песочницы действительно отвечает по HTTP
func (s *DiagnosticsService) checkURLAccessibility(ctx context.Context, userID string) (string, error) {
	root := domain.SandboxRoot(userID)
	listing, err := s.storage.List(ctx, root+"/")
	if err != nil {
		return "", fmt.Errorf("cannot list sandbox: %w", err)
	}

	var key string
	for _, obj := range listing.Objects {
		key = obj.Key
		break
	}
	if key == "" {
		return "no objects in sandbox, URL check skipped", nil
	}

	url, err := s.storage.PresignGet(ctx, key, 5*time.Minute)
	if err != nil {
		return "", fmt.Errorf("cannot presign %s: %w", key, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("presigned URL unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("presigned URL answered %d", resp.StatusCode)
	}
	return fmt.Sprintf("presigned URL for %s answered 200", key), nil
}

func (s *DiagnosticsService) checkOfflineCache(ctx context.Context, userID string) (string, error) {
	if s.cache == nil {
		return "", fmt.Errorf("cache is not configured")
	}
	key := fmt.Sprintf("diagnostics:%s:%d", userID, time.Now().UnixNano())
	if err := s.cache.RoundTrip(ctx, key, "probe"); err != nil {
		return "", fmt.Errorf("cache round trip failed: %w", err)
	}
	return "cache set/get round trip succeeded", nil
}

func (s *DiagnosticsService) checkFormatSupport(ctx context.Context, userID string) (string, error) {
	required := []domain.ImageFormat{domain.FormatWebP, domain.FormatJPEG, domain.FormatPNG}
	for _, f := range required {
		if !s.codec.Supports(f) {
			return "", fmt.Errorf("codec does not support %s", f)
		}
	}
	return "all output formats supported: webp, jpeg, png", nil
}
