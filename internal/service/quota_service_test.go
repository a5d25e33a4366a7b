package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumashot/internal/domain"
)

func newQuotaFixture(limit int64) (*QuotaService, *fakeStorage, *fakeLimitStore, *fakeBlogStore) {
	storage := newFakeStorage()
	limits := &fakeLimitStore{limit: limit}
	blogs := &fakeBlogStore{}
	return NewQuotaService(storage, limits, blogs), storage, limits, blogs
}

func TestComputeUsage_EmptySandbox(t *testing.T) {
	svc, _, _, _ := newQuotaFixture(domain.DefaultQuotaLimitBytes)

	report, err := svc.ComputeUsage(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, int64(0), report.UsedBytes)
	assert.Equal(t, 0, report.FileCount)
	assert.Empty(t, report.FailedPrefixes)
}

func TestComputeUsage_SumsNestedTree(t *testing.T) {
	svc, storage, _, _ := newQuotaFixture(domain.DefaultQuotaLimitBytes)

	storage.put("users/u1/public_images/a.webp", 1000)
	storage.put("users/u1/public_images/gallery/b.webp", 2500)
	storage.put("users/u1/public_images/gallery/deep/c.webp", 500)
	// Маркеры папок нулевого размера не считаются файлами
	storage.put("users/u1/public_images/empty/.keep", 0)
	// Чужие объекты не попадают в расчёт
	storage.put("users/u2/public_images/x.webp", 9999)

	report, err := svc.ComputeUsage(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, int64(4000), report.UsedBytes)
	assert.Equal(t, 3, report.FileCount)
}

func TestComputeUsage_IncludesBlogRoots(t *testing.T) {
	svc, storage, _, blogs := newQuotaFixture(domain.DefaultQuotaLimitBytes)

	blogs.blogs = []domain.Blog{{ID: 7, OwnerID: "u1", Slug: "travel"}}
	storage.put("users/u1/public_images/a.webp", 100)
	storage.put("users/u1/blogs/7/images/cover.webp", 300)

	report, err := svc.ComputeUsage(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, int64(400), report.UsedBytes)
}

func TestComputeUsage_RootFailureIsFatal(t *testing.T) {
	svc, storage, _, _ := newQuotaFixture(domain.DefaultQuotaLimitBytes)
	storage.listErrors["users/u1/public_images/"] = errors.New("connection refused")

	_, err := svc.ComputeUsage(context.Background(), "u1")
	assert.True(t, errors.Is(err, domain.ErrStorageUnavailable))
}

func TestComputeUsage_SubtreeFailureIsRecorded(t *testing.T) {
	svc, storage, _, _ := newQuotaFixture(domain.DefaultQuotaLimitBytes)

	storage.put("users/u1/public_images/a.webp", 100)
	storage.put("users/u1/public_images/broken/b.webp", 200)
	storage.listErrors["users/u1/public_images/broken/"] = errors.New("timeout")

	report, err := svc.ComputeUsage(context.Background(), "u1")
	require.NoError(t, err)

	// Вклад недоступного поддерева равен нулю, но отказ виден в отчёте
	assert.Equal(t, int64(100), report.UsedBytes)
	assert.Equal(t, []string{"users/u1/public_images/broken/"}, report.FailedPrefixes)
}

func TestCanUpload_Boundary(t *testing.T) {
	const limit = 104857600 // 100 MiB

	cases := []struct {
		name      string
		used      int64
		candidate int64
		allowed   bool
	}{
		{"fits with room", 104000000, 800000, true},
		{"exactly at limit", 104000000, 857600, true},
		{"one byte over", 104000000, 857601, false},
		{"typical overflow", 104000000, 2000000, false},
		{"empty storage", 0, limit, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, storage, _, _ := newQuotaFixture(limit)
			if tc.used > 0 {
				storage.put("users/u1/public_images/existing.webp", int(tc.used))
			}

			decision, err := svc.CanUpload(context.Background(), "u1", tc.candidate)
			require.NoError(t, err)

			assert.Equal(t, tc.allowed, decision.Allowed)
			assert.Equal(t, tc.used, decision.CurrentUsage)
			assert.Equal(t, int64(limit), decision.LimitBytes)
			if !tc.allowed {
				assert.NotEmpty(t, decision.Reason)
			}
		})
	}
}

func TestCanUpload_NegativeCandidate(t *testing.T) {
	svc, _, _, _ := newQuotaFixture(domain.DefaultQuotaLimitBytes)

	_, err := svc.CanUpload(context.Background(), "u1", -1)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestEstimateCandidate(t *testing.T) {
	assert.Equal(t, int64(800), EstimateCandidate(1000))
	assert.Equal(t, int64(0), EstimateCandidate(0))
}

func TestGetQuotaInfo(t *testing.T) {
	svc, storage, _, _ := newQuotaFixture(1000)
	storage.put("users/u1/public_images/a.webp", 250)

	info, err := svc.GetQuotaInfo(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, int64(1000), info.TotalSpace)
	assert.Equal(t, int64(250), info.UsedSpace)
	assert.Equal(t, int64(750), info.AvailableSpace)
	assert.InDelta(t, 25.0, info.UsagePercent, 0.001)
}

func TestUpdateQuotaLimit(t *testing.T) {
	svc, _, limits, _ := newQuotaFixture(1000)

	require.NoError(t, svc.UpdateQuotaLimit(context.Background(), "u1", 5000))
	assert.Equal(t, int64(5000), limits.updated)

	err := svc.UpdateQuotaLimit(context.Background(), "u1", -5)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
