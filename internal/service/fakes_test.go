package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"lumashot/internal/codec"
	"lumashot/internal/domain"
	"lumashot/internal/service/s3"
)

// storedObject — объект в фейковом хранилище
type storedObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

// fakeStorage эмулирует S3-листинг с разделителем и считает обращения
// к бэкенду: тесты песочницы проверяют, что отклонённые операции не
// делают ни одного вызова
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string]storedObject

	calls      int
	listErrors map[string]error
	putErr     error
	headErr    error
	deleteErr  error
	copyErr    error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		objects:    make(map[string]storedObject),
		listErrors: make(map[string]error),
	}
}

func (f *fakeStorage) put(key string, size int) {
	f.objects[key] = storedObject{
		data:     make([]byte, size),
		modified: time.Now(),
	}
}

func (f *fakeStorage) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// snapshot возвращает копию содержимого; тесты загрузки читают через
// него, потому что после Done хранилище параллельно обходит пересчёт квоты
func (f *fakeStorage) snapshot() map[string]storedObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]storedObject, len(f.objects))
	for k, v := range f.objects {
		out[k] = v
	}
	return out
}

func (f *fakeStorage) List(ctx context.Context, prefix string) (*s3.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if err, ok := f.listErrors[prefix]; ok {
		return nil, err
	}

	result := &s3.ListResult{}
	seen := make(map[string]bool)

	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if idx := strings.Index(rest, "/"); idx >= 0 {
			sub := prefix + rest[:idx+1]
			if !seen[sub] {
				seen[sub] = true
				result.Prefixes = append(result.Prefixes, sub)
			}
			continue
		}
		obj := f.objects[key]
		result.Objects = append(result.Objects, s3.ObjectInfo{
			Key:          key,
			SizeBytes:    int64(len(obj.data)),
			ContentType:  obj.contentType,
			LastModified: obj.modified,
			Metadata:     obj.metadata,
		})
	}

	return result, nil
}

func (f *fakeStorage) Head(ctx context.Context, key string) (*s3.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.headErr != nil {
		return nil, f.headErr
	}
	obj, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return &s3.ObjectInfo{
		Key:          key,
		SizeBytes:    int64(len(obj.data)),
		ContentType:  obj.contentType,
		LastModified: obj.modified,
		Metadata:     obj.metadata,
	}, nil
}

func (f *fakeStorage) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = storedObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		metadata:    metadata,
		modified:    time.Now(),
	}
	return nil
}

func (f *fakeStorage) Copy(ctx context.Context, srcKey, dstKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.copyErr != nil {
		return f.copyErr
	}
	obj, ok := f.objects[srcKey]
	if !ok {
		return fmt.Errorf("object %s not found", srcKey)
	}
	f.objects[dstKey] = obj
	return nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return "https://storage.test/" + key, nil
}

type fakeLimitStore struct {
	limit   int64
	getErr  error
	updated int64
}

func (f *fakeLimitStore) GetLimit(ctx context.Context, ownerID string) (*domain.QuotaLimit, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &domain.QuotaLimit{OwnerID: ownerID, LimitBytes: f.limit}, nil
}

func (f *fakeLimitStore) UpdateLimit(ctx context.Context, ownerID string, newLimit int64) error {
	f.updated = newLimit
	return nil
}

type fakeBlogStore struct {
	blogs []domain.Blog
	err   error
}

func (f *fakeBlogStore) GetByOwner(ctx context.Context, ownerID string) ([]domain.Blog, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.blogs, nil
}

// stubCodec возвращает заранее заданный выход вместо реального
// кодирования: bimg требует libvips и непригоден для юнит-тестов
type stubCodec struct {
	output []byte
	err    error
}

func (c *stubCodec) Encode(data []byte, opts codec.EncodeOptions) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.output, nil
}

func (c *stubCodec) Supports(format domain.ImageFormat) bool {
	return true
}
