// storage.go
package s3

import (
	"context"
	"time"
)

// ObjectInfo описывает один объект в хранилище
type ObjectInfo struct {
	Key          string
	SizeBytes    int64
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// ListResult — результат листинга по префиксу с разделителем:
// Prefixes соответствуют "папкам", Objects — файлам на этом уровне
type ListResult struct {
	Prefixes []string
	Objects  []ObjectInfo
}

// Storage определяет интерфейс для работы с S3-совместимым хранилищем
type Storage interface {
	List(ctx context.Context, prefix string) (*ListResult, error)
	Head(ctx context.Context, key string) (*ObjectInfo, error)
	Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error
	Copy(ctx context.Context, srcKey, dstKey string) error
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}
