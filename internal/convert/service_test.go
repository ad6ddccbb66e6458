package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docconv/internal/artifacts"
	"docconv/internal/config"
	"docconv/internal/domain"
	"docconv/internal/infra/cache"
)

// fakeConverter succeeds for inputs whose content starts with "ok" and fails otherwise.
type fakeConverter struct {
	calls []string
}

func (f *fakeConverter) Convert(_ context.Context, in, out string) domain.ConversionResult {
	f.calls = append(f.calls, in)
	src, err := os.ReadFile(in)
	if err != nil {
		return domain.Failed(err.Error())
	}
	if !strings.HasPrefix(string(src), "ok") {
		return domain.Failed("engine failed: " + filepath.Base(in))
	}
	body := "%PDF-" + string(src)
	if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
		return domain.Failed(err.Error())
	}
	return domain.Succeeded(out, int64(len(body)), domain.StrategyBrowser)
}

func newStore(t *testing.T) *artifacts.Store {
	t.Helper()
	s := artifacts.New(config.StorageConfig{
		BaseDir:       t.TempDir(),
		PurgeDelay:    time.Second,
		SweepInterval: time.Hour,
		MaxAge:        time.Hour,
	})
	require.NoError(t, s.EnsureDirs())
	t.Cleanup(s.Close)
	return s
}

func upload(t *testing.T, s *artifacts.Store, name, body string) *domain.ConversionJob {
	t.Helper()
	p := s.UploadPath(name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return NewJob(s, name, p, "converted")
}

func gone(path string) bool {
	_, err := os.Stat(path)
	return errors.Is(err, os.ErrNotExist)
}

func TestNewJob(t *testing.T) {
	s := newStore(t)
	a := NewJob(s, "a.docx", "/in/a", "batch")
	b := NewJob(s, "a.docx", "/in/a", "batch")

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.OutputPath, b.OutputPath)
	assert.Equal(t, s.OutputDir, filepath.Dir(a.OutputPath))
	assert.True(t, strings.HasPrefix(filepath.Base(a.OutputPath), "batch-"))
	assert.Equal(t, "a.docx", a.OriginalName)
	assert.Empty(t, a.Strategy)
}

func TestRun_RemovesUploadOnSuccess(t *testing.T) {
	s := newStore(t)
	svc := NewService(s, &fakeConverter{}, nil)
	job := upload(t, s, "good.docx", "ok body")

	res := svc.Run(context.Background(), job)
	require.True(t, res.OK())
	assert.True(t, gone(job.InputPath), "upload must be removed after success")
	assert.Equal(t, domain.StrategyBrowser, job.Strategy)

	succ, _ := res.Success()
	data, err := os.ReadFile(succ.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-ok body", string(data))
}

func TestRun_RemovesUploadOnFailure(t *testing.T) {
	s := newStore(t)
	svc := NewService(s, &fakeConverter{}, nil)
	job := upload(t, s, "bad.docx", "broken")

	res := svc.Run(context.Background(), job)
	require.False(t, res.OK())
	assert.True(t, gone(job.InputPath), "upload must be removed after failure")
	assert.Empty(t, job.Strategy)
}

func TestRunBatch_ItemsAreIndependent(t *testing.T) {
	s := newStore(t)
	conv := &fakeConverter{}
	svc := NewService(s, conv, nil)
	jobs := []*domain.ConversionJob{
		upload(t, s, "one.docx", "ok one"),
		upload(t, s, "two.docx", "broken"),
		upload(t, s, "three.docx", "ok three"),
	}

	results := svc.RunBatch(context.Background(), jobs)
	require.Len(t, results, 3)
	assert.True(t, results[0].Result.OK())
	assert.False(t, results[1].Result.OK())
	assert.True(t, results[2].Result.OK(), "a failed item must not stop the batch")

	f, _ := results[1].Result.Failure()
	assert.Contains(t, f.Reason, "engine failed")
	for i, job := range jobs {
		assert.Same(t, job, results[i].Job)
		assert.True(t, gone(job.InputPath), "upload %d must be removed", i)
	}
	assert.Len(t, conv.calls, 3)
}

func TestRun_CacheHitSkipsConversion(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := newStore(t)
	conv := &fakeConverter{}
	svc := NewService(s, conv, cache.New(rdb, time.Minute))

	first := upload(t, s, "a.docx", "ok same")
	require.True(t, svc.Run(context.Background(), first).OK())
	assert.True(t, mr.Exists(cache.Key([]byte("ok same"))))

	second := upload(t, s, "b.docx", "ok same")
	res := svc.Run(context.Background(), second)
	require.True(t, res.OK())
	succ, _ := res.Success()
	assert.Equal(t, domain.StrategyCache, succ.Strategy)
	assert.Equal(t, domain.StrategyCache, second.Strategy)
	assert.Len(t, conv.calls, 1, "second run must be served from the cache")
	assert.True(t, gone(second.InputPath))

	data, err := os.ReadFile(second.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-ok same", string(data))
}

func TestRun_FailuresAreNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := newStore(t)
	svc := NewService(s, &fakeConverter{}, cache.New(rdb, time.Minute))
	require.False(t, svc.Run(context.Background(), upload(t, s, "x.docx", "broken")).OK())
	assert.Empty(t, mr.Keys())
}

func TestNewService_TypedNilCacheDisablesCaching(t *testing.T) {
	s := newStore(t)
	var pc *cache.PDFCache
	svc := NewService(s, &fakeConverter{}, pc)
	assert.Nil(t, svc.cache)
	assert.True(t, svc.Run(context.Background(), upload(t, s, "a.docx", "ok")).OK())
}
