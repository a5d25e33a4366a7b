package domain

import "time"

// DefaultQuotaLimitBytes — лимит по умолчанию для нового пользователя (100 MB)
const DefaultQuotaLimitBytes = 100 * 1024 * 1024

// QuotaLimit — административно заданный потолок хранилища пользователя
type QuotaLimit struct {
	OwnerID    string    `json:"owner_id" db:"owner_id"`
	LimitBytes int64     `json:"limit_bytes" db:"limit_bytes"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// UsageReport — результат полного обхода хранилища пользователя.
// Счётчик не персистится: использование пересчитывается по требованию.
// FailedPrefixes перечисляет поддеревья, которые не удалось обойти и
// вклад которых принят за 0 — вызывающий сам решает, доверять ли числу.
type UsageReport struct {
	UsedBytes      int64    `json:"used_bytes"`
	FileCount      int      `json:"file_count"`
	FailedPrefixes []string `json:"failed_prefixes,omitempty"`
}

// QuotaDecision — чистое решение о допустимости загрузки
type QuotaDecision struct {
	Allowed      bool   `json:"allowed"`
	CurrentUsage int64  `json:"current_usage"`
	LimitBytes   int64  `json:"limit_bytes"`
	Reason       string `json:"reason,omitempty"`
}

// QuotaInfo — сводка для пользователя
type QuotaInfo struct {
	TotalSpace     int64    `json:"total_space"`
	UsedSpace      int64    `json:"used_space"`
	AvailableSpace int64    `json:"available_space"`
	UsagePercent   float64  `json:"usage_percent"`
	FailedPrefixes []string `json:"failed_prefixes,omitempty"`
}

// Blog — запись блога пользователя; пайплайну изображений нужна только
// для определения корней перечисления при расчёте квоты
type Blog struct {
	ID        int64     `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
