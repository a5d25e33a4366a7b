package domain

import (
	"fmt"
	"strings"
	"time"
)

// AssetKind различает файлы и папки в песочнице
type AssetKind string

const (
	KindFile   AssetKind = "file"
	KindFolder AssetKind = "folder"
)

// StoredAsset представляет один объект в песочнице пользователя.
// Для папок SizeBytes равен 0, ContentType и CreatedAt отсутствуют:
// папки — это маркеры директорий, а не отслеживаемые сущности.
type StoredAsset struct {
	Path        string     `json:"path"`
	Name        string     `json:"name"`
	SizeBytes   int64      `json:"size_bytes"`
	ContentType string     `json:"content_type,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	Kind        AssetKind  `json:"kind"`
}

// SandboxRoot возвращает корневой префикс хранилища пользователя.
// Запись за пределами этого префикса невозможна.
func SandboxRoot(userID string) string {
	return fmt.Sprintf("users/%s/public_images", userID)
}

// InSandbox проверяет, что путь лежит внутри песочницы пользователя
func InSandbox(userID, path string) bool {
	root := SandboxRoot(userID)
	return path == root || strings.HasPrefix(path, root+"/")
}
