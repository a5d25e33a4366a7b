package service

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lumashot/internal/cache"
	"lumashot/internal/domain"
	"lumashot/internal/metrics"
	"lumashot/internal/service/s3"
)

const (
	// maxSourceSize — максимальный размер исходного изображения (10 MiB)
	maxSourceSize = 10 * 1024 * 1024

	// attemptTTL — сколько живёт завершённая попытка в реестре
	attemptTTL = 1 * time.Hour
)

// uploadAttempt — одна попытка загрузки. Состояние меняется только
// методами сервиса; UI читает снимок через View.
type uploadAttempt struct {
	mu sync.Mutex

	id          uuid.UUID
	userID      string
	fileName    string
	contentType string
	source      []byte
	selectedAt  time.Time
	subPath     string

	state    domain.UploadState
	settings domain.CompressionSettings
	preview  *domain.CompressionResult
	commit   *domain.CompressionResult

	progress   float64
	storedPath string
	quota      *domain.QuotaDecision
	failure    error
	finishedAt time.Time
}

// AttemptView — снимок попытки для слоя представления
type AttemptView struct {
	ID         uuid.UUID                  `json:"id"`
	State      domain.UploadState         `json:"state"`
	FileName   string                     `json:"file_name"`
	SourceSize int64                      `json:"source_size"`
	Settings   domain.CompressionSettings `json:"settings"`
	Preview    *domain.CompressionResult  `json:"preview,omitempty"`
	Commit     *domain.CompressionResult  `json:"commit,omitempty"`
	Progress   float64                    `json:"progress"`
	Simulated  bool                       `json:"simulated"`
	StoredPath string                     `json:"stored_path,omitempty"`
	ErrorKind  domain.ErrorKind           `json:"error_kind,omitempty"`
	Error      string                     `json:"error,omitempty"`
	Quota      *domain.QuotaDecision      `json:"quota,omitempty"`
}

func (a *uploadAttempt) view() *AttemptView {
	v := &AttemptView{
		ID:         a.id,
		State:      a.state,
		FileName:   a.fileName,
		SourceSize: int64(len(a.source)),
		Settings:   a.settings,
		Preview:    a.preview,
		Commit:     a.commit,
		Progress:   a.progress,
		Simulated:  true,
		StoredPath: a.storedPath,
		Quota:      a.quota,
	}
	if a.failure != nil {
		v.ErrorKind = domain.Categorize(a.failure)
		v.Error = a.failure.Error()
	}
	return v
}

// UploadService ведет попытки загрузки через явный конечный автомат:
// Idle -> FileSelected -> PreviewCompressing -> PreviewReady ->
// CommitCompressing -> {QuotaExceeded | SizeConfirmationPending | Persisting}
// -> Verifying -> {Done | Failed}.
// Порядок фиксирован: сжатие строго раньше проверки квоты, проверка
// квоты строго раньше записи, запись строго раньше верификации.
type UploadService struct {
	compression *CompressionService
	quota       *QuotaService
	storage     s3.Storage
	cache       *cache.ListingCache

	mu       sync.RWMutex
	attempts map[uuid.UUID]*uploadAttempt
}

func NewUploadService(
	compression *CompressionService,
	quota *QuotaService,
	storage s3.Storage,
	listingCache *cache.ListingCache,
) *UploadService {
	return &UploadService{
		compression: compression,
		quota:       quota,
		storage:     storage,
		cache:       listingCache,
		attempts:    make(map[uuid.UUID]*uploadAttempt),
	}
}

// StartCleanupTask запускает периодическое удаление завершённых попыток
func (s *UploadService) StartCleanupTask() {
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		for range ticker.C {
			s.mu.Lock()
			for id, a := range s.attempts {
				a.mu.Lock()
				stale := a.state.Terminal() && time.Since(a.finishedAt) > attemptTTL
				a.mu.Unlock()
				if stale {
					delete(s.attempts, id)
				}
			}
			s.mu.Unlock()
		}
	}()
}

// get возвращает попытку пользователя или ErrNotFound, не раскрывая
// чужие попытки
func (s *UploadService) get(userID string, id uuid.UUID) (*uploadAttempt, error) {
	s.mu.RLock()
	attempt, ok := s.attempts[id]
	s.mu.RUnlock()
	if !ok || attempt.userID != userID {
		return nil, fmt.Errorf("%w: upload attempt %s", domain.ErrNotFound, id)
	}
	return attempt, nil
}

// SelectFile валидирует источник, делает оценочную проверку квоты и
// строит первое превью с настройками по умолчанию. Любое нарушение
// не оставляет частичного состояния — попытка не регистрируется.
func (s *UploadService) SelectFile(
	ctx context.Context,
	userID string,
	fileName string,
	contentType string,
	data []byte,
	subPath string,
) (*AttemptView, error) {
	if fileName == "" || userID == "" {
		return nil, fmt.Errorf("%w: missing required parameters", domain.ErrInvalidInput)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: only images can be uploaded, got %q", domain.ErrInvalidInput, contentType)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: source file is empty", domain.ErrInvalidInput)
	}
	if int64(len(data)) > maxSourceSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidInput, maxSourceSize)
	}
	if subPath != "" {
		for _, segment := range strings.Split(subPath, "/") {
			if err := ValidateFolderName(segment); err != nil {
				return nil, err
			}
		}
	}

	// Оценочная проверка квоты до сжатия
	decision, err := s.quota.CanUpload(ctx, userID, EstimateCandidate(int64(len(data))))
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: %s", domain.ErrQuotaExceeded, decision.Reason)
	}

	attempt := &uploadAttempt{
		id:          uuid.New(),
		userID:      userID,
		fileName:    fileName,
		contentType: contentType,
		source:      data,
		selectedAt:  time.Now(),
		subPath:     subPath,
		state:       domain.StateFileSelected,
		settings:    domain.DefaultCompressionSettings(),
	}

	if err := s.runPreview(attempt); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.attempts[attempt.id] = attempt
	s.mu.Unlock()

	log.Printf("[Upload] Выбран файл %s (%d байт) пользователем %s, попытка %s",
		fileName, len(data), userID, attempt.id)

	return attempt.view(), nil
}

// runPreview кодирует превью с текущими настройками попытки.
// Превью никогда не сохраняется — финальное кодирование происходит
// заново в момент коммита.
func (s *UploadService) runPreview(a *uploadAttempt) error {
	a.state = domain.StatePreviewCompressing

	req, err := domain.NewCompressionRequest(a.source, a.settings)
	if err != nil {
		return err
	}

	result, err := s.compression.Compress(req)
	if err != nil {
		return err
	}

	a.preview = result
	a.state = domain.StatePreviewReady
	return nil
}

// UpdateSettings меняет параметры кодирования и пересобирает превью.
// Допустимо, пока попытка не ушла в коммит.
func (s *UploadService) UpdateSettings(ctx context.Context, userID string, id uuid.UUID, settings domain.CompressionSettings) (*AttemptView, error) {
	attempt, err := s.get(userID, id)
	if err != nil {
		return nil, err
	}

	attempt.mu.Lock()
	defer attempt.mu.Unlock()

	if attempt.state != domain.StatePreviewReady {
		return nil, fmt.Errorf("%w: settings can only change in state %s, current %s",
			domain.ErrInvalidInput, domain.StatePreviewReady, attempt.state)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	attempt.settings = settings
	if err := s.runPreview(attempt); err != nil {
		attempt.fail(err)
		return attempt.view(), nil
	}

	return attempt.view(), nil
}

// Commit выполняет финальное кодирование и точную проверку квоты.
// Превью-блоб не переиспользуется: настройки могли устареть.
func (s *UploadService) Commit(ctx context.Context, userID string, id uuid.UUID) (*AttemptView, error) {
	attempt, err := s.get(userID, id)
	if err != nil {
		return nil, err
	}

	attempt.mu.Lock()
	defer attempt.mu.Unlock()

	if attempt.state != domain.StatePreviewReady {
		return nil, fmt.Errorf("%w: commit requires state %s, current %s",
			domain.ErrInvalidInput, domain.StatePreviewReady, attempt.state)
	}

	attempt.state = domain.StateCommitCompressing

	req, err := domain.NewCompressionRequest(attempt.source, attempt.settings)
	if err != nil {
		attempt.fail(err)
		return attempt.view(), nil
	}

	result, err := s.compression.Compress(req)
	if err != nil {
		attempt.fail(err)
		return attempt.view(), nil
	}
	attempt.commit = result

	// Точная проверка квоты с реальным размером артефакта
	decision, err := s.quota.CanUpload(ctx, userID, result.SizeBytes)
	if err != nil {
		attempt.fail(err)
		return attempt.view(), nil
	}
	attempt.quota = decision

	if !decision.Allowed {
		// Терминальный отказ: ни одной записи в хранилище не было
		attempt.state = domain.StateQuotaExceeded
		attempt.finishedAt = time.Now()
		metrics.UploadsTotal.WithLabelValues("quota_exceeded").Inc()
		log.Printf("[Upload] Попытка %s отклонена по квоте: %s", attempt.id, decision.Reason)
		return attempt.view(), nil
	}

	if result.IsLargerThanSource {
		// Артефакт вырос, но помещается в квоту: требуем явного
		// подтверждения пользователя
		attempt.state = domain.StateSizeConfirmationPending
		log.Printf("[Upload] Попытка %s ждёт подтверждения: %d -> %d байт",
			attempt.id, result.OriginalSizeBytes, result.SizeBytes)
		return attempt.view(), nil
	}

	s.persist(ctx, attempt)
	return attempt.view(), nil
}

// ConfirmOversize подтверждает сохранение артефакта, который больше исходника
func (s *UploadService) ConfirmOversize(ctx context.Context, userID string, id uuid.UUID) (*AttemptView, error) {
	attempt, err := s.get(userID, id)
	if err != nil {
		return nil, err
	}

	attempt.mu.Lock()
	defer attempt.mu.Unlock()

	if attempt.state != domain.StateSizeConfirmationPending {
		return nil, fmt.Errorf("%w: nothing to confirm in state %s", domain.ErrInvalidInput, attempt.state)
	}

	s.persist(ctx, attempt)
	return attempt.view(), nil
}

// CancelOversize отменяет подтверждение: выбранный файл и настройки
// сохраняются, попытка возвращается к готовому превью
func (s *UploadService) CancelOversize(ctx context.Context, userID string, id uuid.UUID) (*AttemptView, error) {
	attempt, err := s.get(userID, id)
	if err != nil {
		return nil, err
	}

	attempt.mu.Lock()
	defer attempt.mu.Unlock()

	if attempt.state != domain.StateSizeConfirmationPending {
		return nil, fmt.Errorf("%w: nothing to cancel in state %s", domain.ErrInvalidInput, attempt.state)
	}

	attempt.commit = nil
	attempt.quota = nil
	attempt.state = domain.StatePreviewReady
	return attempt.view(), nil
}

// Get возвращает снимок попытки
func (s *UploadService) Get(ctx context.Context, userID string, id uuid.UUID) (*AttemptView, error) {
	attempt, err := s.get(userID, id)
	if err != nil {
		return nil, err
	}

	attempt.mu.Lock()
	defer attempt.mu.Unlock()
	return attempt.view(), nil
}

func (a *uploadAttempt) fail(err error) {
	a.failure = err
	a.state = domain.StateFailed
	a.finishedAt = time.Now()
	metrics.UploadsTotal.WithLabelValues(string(domain.Categorize(err))).Inc()
}

// sanitizeBaseName приводит имя файла без расширения к допустимому
// для ключа хранилища виду
func sanitizeBaseName(fileName string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}

// persist записывает артефакт и верифицирует запись. Вызывается с
// удержанным attempt.mu.
func (s *UploadService) persist(ctx context.Context, a *uploadAttempt) {
	root := domain.SandboxRoot(a.userID)
	dir := root
	if a.subPath != "" {
		dir = root + "/" + a.subPath
	}
	key := fmt.Sprintf("%s/%s-%d.%s", dir, sanitizeBaseName(a.fileName), a.selectedAt.Unix(), a.settings.Format)

	// Последний рубеж защиты от выхода за префикс: путь собран выше из
	// проверенных частей, но проверяем непосредственно перед записью
	if !domain.InSandbox(a.userID, key) {
		metrics.SandboxViolations.Inc()
		a.fail(fmt.Errorf("%w: %s", domain.ErrSecurityViolation, key))
		return
	}

	a.state = domain.StatePersisting
	a.progress = 0

	// Синтетический прогресс: запись атомарна, реального побайтового
	// прогресса не существует. Тикаем до 90, затем 100 по завершении.
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(150 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				a.mu.Lock()
				if a.progress < 90 {
					a.progress += 10
				}
				a.mu.Unlock()
			}
		}
	}()

	metadata := domain.UploadMetadata{
		OriginalName:     a.fileName,
		OriginalSize:     int64(len(a.source)),
		CompressedSize:   a.commit.SizeBytes,
		CompressionRatio: strconv.FormatFloat(a.commit.CompressionRatio, 'f', 2, 64),
		Quality:          strconv.Itoa(a.settings.Quality),
		MaxWidth:         strconv.Itoa(a.settings.MaxWidth),
		MaxHeight:        strconv.Itoa(a.settings.MaxHeight),
		UploadedBy:       a.userID,
		UploadedAt:       time.Now().UTC().Format(time.RFC3339),
	}.ToMap()

	contentType := "image/" + string(a.settings.Format)

	// attempt.mu держим на протяжении записи: попытка недоступна другим
	// операциям, пока идет персист
	a.mu.Unlock()
	putErr := s.storage.Put(ctx, key, a.commit.Data, contentType, metadata)
	a.mu.Lock()
	close(done)

	if putErr != nil {
		// Состояние неоднозначно: запись могла и пройти. Трактуем как
		// отказ; осиротевший объект обнаружит следующий пересчёт квоты.
		a.fail(fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, putErr))
		return
	}

	// Верификация: немедленно перечитываем метаданные записанного ключа
	a.state = domain.StateVerifying

	a.mu.Unlock()
	info, headErr := s.storage.Head(ctx, key)
	a.mu.Lock()

	if headErr != nil {
		// Байты записаны, но подтверждения нет — операция отчитывается
		// как отказ. Несогласованность сохранена осознанно.
		a.fail(fmt.Errorf("%w: %v", domain.ErrVerificationFailed, headErr))
		return
	}
	if info.SizeBytes != a.commit.SizeBytes {
		a.fail(fmt.Errorf("%w: stored size %d does not match artifact size %d",
			domain.ErrVerificationFailed, info.SizeBytes, a.commit.SizeBytes))
		return
	}

	a.storedPath = key
	a.progress = 100
	a.state = domain.StateDone
	a.finishedAt = time.Now()

	metrics.UploadsTotal.WithLabelValues("done").Inc()
	metrics.CompressionRatio.Observe(a.commit.CompressionRatio)

	log.Printf("[Upload] Попытка %s завершена: %s (%d байт)", a.id, key, a.commit.SizeBytes)

	if s.cache != nil {
		s.cache.InvalidateSandbox(ctx, a.userID)
	}

	// Асинхронный пересчёт квоты; успех загрузки его не ждёт
	userID := a.userID
	go func() {
		recomputeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.quota.ComputeUsage(recomputeCtx, userID); err != nil {
			log.Printf("[Upload] Ошибка пересчёта квоты после загрузки: %v", err)
		}
	}()
}
