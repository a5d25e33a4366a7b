package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumashot/internal/auth"
	"lumashot/internal/cache"
	"lumashot/internal/domain"
)

func newDiagnosticsFixture(t *testing.T) (*DiagnosticsService, *fakeStorage) {
	t.Helper()

	auth.InitVerifier(&auth.Config{JWTSecret: "test-secret"})

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	storage := newFakeStorage()
	svc := NewDiagnosticsService(nil, storage, cache.NewListingCache(client), &stubCodec{output: []byte("x")}, &fakeBlogStore{})
	return svc, storage
}

func checkByName(t *testing.T, report *Report, name string) CheckResult {
	t.Helper()
	for _, c := range report.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s missing from report", name)
	return CheckResult{}
}

func TestDiagnostics_RunsFullBattery(t *testing.T) {
	svc, _ := newDiagnosticsFixture(t)

	report, err := svc.Run(context.Background(), "u1")
	require.NoError(t, err)

	require.Len(t, report.Checks, 7)
	assert.Equal(t, len(report.Checks), report.Passed+report.Failed)

	// База не сконфигурирована в этой сборке — единственный отказ
	assert.Equal(t, StatusFailed, checkByName(t, report, "dataAssociation").Status)
	assert.Equal(t, StatusPassed, checkByName(t, report, "authentication").Status)
	assert.Equal(t, StatusPassed, checkByName(t, report, "storageAccess").Status)
	assert.Equal(t, StatusPassed, checkByName(t, report, "uploadPipeline").Status)
	assert.Equal(t, StatusPassed, checkByName(t, report, "offlineCache").Status)
	assert.Equal(t, StatusPassed, checkByName(t, report, "browserCompatibility").Status)

	assert.Equal(t, SeverityWarning, report.Severity)
}

func TestDiagnostics_ProbeLeavesNoTrace(t *testing.T) {
	svc, storage := newDiagnosticsFixture(t)

	_, err := svc.Run(context.Background(), "u1")
	require.NoError(t, err)

	assert.Empty(t, storage.objects, "pipeline probe must clean up after itself")
}

func TestDiagnostics_FailuresDoNotAbortTheRun(t *testing.T) {
	svc, storage := newDiagnosticsFixture(t)
	storage.putErr = errors.New("access denied")

	report, err := svc.Run(context.Background(), "u1")
	require.NoError(t, err)

	require.Len(t, report.Checks, 7)
	assert.Equal(t, StatusFailed, checkByName(t, report, "uploadPipeline").Status)
	assert.Equal(t, StatusPassed, checkByName(t, report, "browserCompatibility").Status)
}

func TestDiagnostics_SeverityThresholds(t *testing.T) {
	svc, storage := newDiagnosticsFixture(t)

	// dataAssociation + uploadPipeline + storageAccess = три отказа
	storage.putErr = errors.New("denied")
	storage.listErrors[domain.SandboxRoot("u1")+"/"] = errors.New("denied")

	report, err := svc.Run(context.Background(), "u1")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, report.Failed, 3)
	assert.Equal(t, SeverityCritical, report.Severity)
}

func TestDiagnostics_RequiresUser(t *testing.T) {
	svc, _ := newDiagnosticsFixture(t)

	_, err := svc.Run(context.Background(), "")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
