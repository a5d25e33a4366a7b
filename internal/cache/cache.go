package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"lumashot/internal/domain"
)

// listingTTL — время жизни закэшированного листинга. Короткое по смыслу:
// кэш ускоряет повторные открытия папки, но любая мутация в песочнице
// инвалидирует его целиком.
const listingTTL = 30 * time.Second

// ListingCache хранит листинги папок песочницы в Redis.
// Авторитетные размеры квоты здесь никогда не кэшируются.
type ListingCache struct {
	client *redis.Client
}

func NewListingCache(client *redis.Client) *ListingCache {
	return &ListingCache{client: client}
}

// NewClient создает клиент Redis и проверяет соединение
func NewClient(cfg *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

func listingKey(path string) string {
	return "listing:" + path
}

func sandboxVersionKey(userID string) string {
	return "sandbox_version:" + userID
}

// GetListing возвращает закэшированный листинг или nil при промахе.
// Ошибки кэша — не ошибки листинга: при любой проблеме возвращается промах.
func (c *ListingCache) GetListing(ctx context.Context, userID, path string) []domain.StoredAsset {
	version, err := c.client.Get(ctx, sandboxVersionKey(userID)).Result()
	if err != nil {
		return nil
	}

	raw, err := c.client.Get(ctx, listingKey(version+":"+path)).Bytes()
	if err != nil {
		return nil
	}

	var assets []domain.StoredAsset
	if err := json.Unmarshal(raw, &assets); err != nil {
		log.Printf("[Cache] Повреждённый листинг в кэше для %s: %v", path, err)
		return nil
	}

	return assets
}

// PutListing сохраняет листинг с коротким TTL
func (c *ListingCache) PutListing(ctx context.Context, userID, path string, assets []domain.StoredAsset) {
	version, err := c.client.Get(ctx, sandboxVersionKey(userID)).Result()
	if err == redis.Nil {
		version = "0"
		if err := c.client.Set(ctx, sandboxVersionKey(userID), version, 0).Err(); err != nil {
			return
		}
	} else if err != nil {
		return
	}

	raw, err := json.Marshal(assets)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, listingKey(version+":"+path), raw, listingTTL).Err(); err != nil {
		log.Printf("[Cache] Не удалось сохранить листинг для %s: %v", path, err)
	}
}

// InvalidateSandbox сбрасывает все листинги пользователя после мутации.
// Версионный ключ инкрементируется, старые записи умирают по TTL.
func (c *ListingCache) InvalidateSandbox(ctx context.Context, userID string) {
	if err := c.client.Incr(ctx, sandboxVersionKey(userID)).Err(); err != nil {
		log.Printf("[Cache] Не удалось инвалидировать песочницу %s: %v", userID, err)
	}
}

// Ping проверяет доступность кэша; используется диагностикой
func (c *ListingCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// RoundTrip выполняет пробную запись-чтение с TTL; используется
// диагностикой для проверки свежести кэша
func (c *ListingCache) RoundTrip(ctx context.Context, key, value string) error {
	probeKey := "diagnostics:" + key

	if err := c.client.Set(ctx, probeKey, value, 10*time.Second).Err(); err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}

	got, err := c.client.Get(ctx, probeKey).Result()
	if err != nil {
		return fmt.Errorf("cache read failed: %w", err)
	}
	if got != value {
		return fmt.Errorf("cache returned stale value: want %q, got %q", value, got)
	}

	ttl, err := c.client.TTL(ctx, probeKey).Result()
	if err != nil {
		return fmt.Errorf("cache ttl query failed: %w", err)
	}
	if ttl <= 0 {
		return fmt.Errorf("cache entry has no expiry, staleness cannot be bounded")
	}

	return c.client.Del(ctx, probeKey).Err()
}
