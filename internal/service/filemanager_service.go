package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"lumashot/internal/cache"
	"lumashot/internal/domain"
	"lumashot/internal/metrics"
	"lumashot/internal/service/s3"
)

// folderMarker — объект нулевого размера, обозначающий пустую папку
const folderMarker = ".keep"

const (
	maxFolderNameLength = 50
	maxFileNameLength   = 100
)

var (
	folderNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	fileNamePattern   = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// FileManagerService выполняет операции над деревом хранилища строго
// внутри песочницы пользователя. Проверка префикса выполняется до
// любого обращения к бэкенду — имя папки или путь назначения, пришедшие
// от клиента, не могут привести к записи за пределами песочницы.
type FileManagerService struct {
	storage s3.Storage
	cache   *cache.ListingCache
}

func NewFileManagerService(storage s3.Storage, listingCache *cache.ListingCache) *FileManagerService {
	return &FileManagerService{
		storage: storage,
		cache:   listingCache,
	}
}

// guardPath отклоняет любой путь вне песочницы пользователя
func guardPath(userID, path string) error {
	if !domain.InSandbox(userID, path) {
		metrics.SandboxViolations.Inc()
		log.Printf("[FileManager] Отклонён путь вне песочницы пользователя %s: %s", userID, path)
		return fmt.Errorf("%w: %s", domain.ErrSecurityViolation, path)
	}
	return nil
}

// ValidateFolderName проверяет имя папки до любого сетевого вызова
func ValidateFolderName(name string) error {
	if len(name) < 1 || len(name) > maxFolderNameLength {
		return fmt.Errorf("%w: folder name must be 1-%d characters", domain.ErrInvalidName, maxFolderNameLength)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: folder name must not contain path separators", domain.ErrInvalidName)
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("%w: folder name must not start or end with a dot", domain.ErrInvalidName)
	}
	if !folderNamePattern.MatchString(name) {
		return fmt.Errorf("%w: folder name may only contain letters, digits, '_' and '-'", domain.ErrInvalidName)
	}
	return nil
}

// ValidateFileName проверяет имя файла до любого сетевого вызова
func ValidateFileName(name string) error {
	if len(name) < 1 || len(name) > maxFileNameLength {
		return fmt.Errorf("%w: file name must be 1-%d characters", domain.ErrInvalidName, maxFileNameLength)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: file name must not contain path separators", domain.ErrInvalidName)
	}
	if !fileNamePattern.MatchString(name) {
		return fmt.Errorf("%w: file name may only contain letters, digits, '_', '.', '-'", domain.ErrInvalidName)
	}
	return nil
}

// List возвращает содержимое папки: сначала папки, затем файлы, внутри
// групп — лексикографически с учётом регистра. Этот порядок — контракт,
// на который опирается отрисовка.
func (s *FileManagerService) List(ctx context.Context, userID, path string) ([]domain.StoredAsset, error) {
	if err := guardPath(userID, path); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached := s.cache.GetListing(ctx, userID, path); cached != nil {
			return cached, nil
		}
	}

	listing, err := s.storage.List(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	assets := make([]domain.StoredAsset, 0, len(listing.Prefixes)+len(listing.Objects))

	for _, prefix := range listing.Prefixes {
		trimmed := strings.TrimSuffix(prefix, "/")
		assets = append(assets, domain.StoredAsset{
			Path: trimmed,
			Name: leafName(trimmed),
			Kind: domain.KindFolder,
		})
	}

	for _, obj := range listing.Objects {
		name := leafName(obj.Key)
		if name == folderMarker {
			continue
		}
		asset := domain.StoredAsset{
			Path:        obj.Key,
			Name:        name,
			SizeBytes:   obj.SizeBytes,
			ContentType: obj.ContentType,
			Kind:        domain.KindFile,
		}
		if !obj.LastModified.IsZero() {
			t := obj.LastModified
			asset.CreatedAt = &t
		}
		assets = append(assets, asset)
	}

	sortAssets(assets)

	if s.cache != nil {
		s.cache.PutListing(ctx, userID, path, assets)
	}

	return assets, nil
}

// sortAssets упорядочивает: папки раньше файлов, внутри групп по имени
func sortAssets(assets []domain.StoredAsset) {
	sort.SliceStable(assets, func(i, j int) bool {
		if assets[i].Kind != assets[j].Kind {
			return assets[i].Kind == domain.KindFolder
		}
		return assets[i].Name < assets[j].Name
	})
}

func leafName(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

func parentPath(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// CreateFolder создает папку-маркер внутри path
func (s *FileManagerService) CreateFolder(ctx context.Context, userID, path, name string) (*domain.StoredAsset, error) {
	if err := ValidateFolderName(name); err != nil {
		return nil, err
	}

	target := path + "/" + name
	if err := guardPath(userID, path); err != nil {
		return nil, err
	}
	if err := guardPath(userID, target); err != nil {
		return nil, err
	}

	markerKey := target + "/" + folderMarker
	if err := s.storage.Put(ctx, markerKey, []byte{}, "application/octet-stream", nil); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	s.invalidate(ctx, userID)

	return &domain.StoredAsset{
		Path: target,
		Name: name,
		Kind: domain.KindFolder,
	}, nil
}

// kindOf определяет, является ли путь файлом или папкой
func (s *FileManagerService) kindOf(ctx context.Context, path string) (domain.AssetKind, error) {
	if _, err := s.storage.Head(ctx, path); err == nil {
		return domain.KindFile, nil
	}

	listing, err := s.storage.List(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if len(listing.Objects) > 0 || len(listing.Prefixes) > 0 {
		return domain.KindFolder, nil
	}

	return "", fmt.Errorf("%w: %s", domain.ErrNotFound, path)
}

// collectKeys рекурсивно собирает все ключи объектов под префиксом
func (s *FileManagerService) collectKeys(ctx context.Context, prefix string) ([]string, error) {
	listing, err := s.storage.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	var keys []string
	for _, obj := range listing.Objects {
		keys = append(keys, obj.Key)
	}
	for _, sub := range listing.Prefixes {
		subKeys, err := s.collectKeys(ctx, sub)
		if err != nil {
			return nil, err
		}
		keys = append(keys, subKeys...)
	}

	return keys, nil
}

// relocate переносит объект или всё поддерево на новый префикс.
// Для вызывающего операция задумана как атомарная, фактически это
// последовательность copy+delete без распределённой транзакции:
// частичный отказ оставляет часть объектов скопированными.
func (s *FileManagerService) relocate(ctx context.Context, userID, srcPath, dstPath string) error {
	if err := guardPath(userID, srcPath); err != nil {
		return err
	}
	if err := guardPath(userID, dstPath); err != nil {
		return err
	}

	kind, err := s.kindOf(ctx, srcPath)
	if err != nil {
		return err
	}

	if kind == domain.KindFile {
		if err := s.storage.Copy(ctx, srcPath, dstPath); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
		if err := s.storage.Delete(ctx, srcPath); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
		return nil
	}

	keys, err := s.collectKeys(ctx, srcPath)
	if err != nil {
		return err
	}

	for _, key := range keys {
		newKey := dstPath + strings.TrimPrefix(key, srcPath)
		if err := guardPath(userID, newKey); err != nil {
			return err
		}
		if err := s.storage.Copy(ctx, key, newKey); err != nil {
			return fmt.Errorf("%w: failed to copy %s: %v", domain.ErrStorageUnavailable, key, err)
		}
	}
	for _, key := range keys {
		if err := s.storage.Delete(ctx, key); err != nil {
			return fmt.Errorf("%w: failed to delete %s: %v", domain.ErrStorageUnavailable, key, err)
		}
	}

	return nil
}

// Rename переименовывает файл или папку, сохраняя родителя
func (s *FileManagerService) Rename(ctx context.Context, userID, path, newName string) error {
	if err := guardPath(userID, path); err != nil {
		return err
	}

	// Правила имени зависят от вида цели, поэтому сначала определяем его;
	// kindOf читает, но не мутирует
	kind, err := s.kindOf(ctx, path)
	if err != nil {
		return err
	}

	if kind == domain.KindFolder {
		if err := ValidateFolderName(newName); err != nil {
			return err
		}
	} else {
		if err := ValidateFileName(newName); err != nil {
			return err
		}
	}

	dst := parentPath(path) + "/" + newName
	if dst == path {
		return nil
	}

	if err := s.relocate(ctx, userID, path, dst); err != nil {
		return err
	}

	s.invalidate(ctx, userID)
	return nil
}

// Move перемещает файл или папку в папку destPath
func (s *FileManagerService) Move(ctx context.Context, userID, path, destPath string) error {
	if err := guardPath(userID, path); err != nil {
		return err
	}
	if err := guardPath(userID, destPath); err != nil {
		return err
	}

	if destPath == path || strings.HasPrefix(destPath+"/", path+"/") {
		return fmt.Errorf("%w: cannot move into itself or its own subtree", domain.ErrInvalidInput)
	}

	dst := destPath + "/" + leafName(path)
	if err := s.relocate(ctx, userID, path, dst); err != nil {
		return err
	}

	s.invalidate(ctx, userID)
	return nil
}

// Delete удаляет файл либо папку; папка требует recursive, если не пуста
func (s *FileManagerService) Delete(ctx context.Context, userID, path string, recursive bool) error {
	if err := guardPath(userID, path); err != nil {
		return err
	}

	kind, err := s.kindOf(ctx, path)
	if err != nil {
		return err
	}

	if kind == domain.KindFile {
		if err := s.storage.Delete(ctx, path); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
		s.invalidate(ctx, userID)
		return nil
	}

	keys, err := s.collectKeys(ctx, path)
	if err != nil {
		return err
	}

	if !recursive {
		for _, key := range keys {
			if leafName(key) != folderMarker {
				return fmt.Errorf("%w: folder %s is not empty", domain.ErrInvalidInput, path)
			}
		}
	}

	for _, key := range keys {
		if err := s.storage.Delete(ctx, key); err != nil {
			return fmt.Errorf("%w: failed to delete %s: %v", domain.ErrStorageUnavailable, key, err)
		}
	}

	s.invalidate(ctx, userID)
	return nil
}

func (s *FileManagerService) invalidate(ctx context.Context, userID string) {
	if s.cache != nil {
		s.cache.InvalidateSandbox(ctx, userID)
	}
}
