// Package convert runs conversion jobs from upload to a terminal result.
package convert

import (
	"context"
	"os"

	"github.com/google/uuid"

	"docconv/internal/artifacts"
	"docconv/internal/domain"
	"docconv/internal/infra/cache"
	"docconv/internal/infra/logging"
)

// Converter renders one document through the fallback chain.
type Converter interface {
	Convert(ctx context.Context, inputPath, outputPath string) domain.ConversionResult
}

// ResultCache keeps finished PDFs keyed by their source document.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte)
}

// ItemResult is the outcome of one job of a batch.
type ItemResult struct {
	Job    *domain.ConversionJob
	Result domain.ConversionResult
}

type Service struct {
	store     *artifacts.Store
	converter Converter
	cache     ResultCache
}

// NewService wires a job runner. rc may be nil to disable result caching.
func NewService(store *artifacts.Store, converter Converter, rc ResultCache) *Service {
	if c, ok := rc.(*cache.PDFCache); ok && c == nil {
		rc = nil
	}
	return &Service{store: store, converter: converter, cache: rc}
}

// NewJob allocates a job for an upload already stored at inputPath. Its output name
// starts with prefix.
func NewJob(store *artifacts.Store, originalName, inputPath, prefix string) *domain.ConversionJob {
	return &domain.ConversionJob{
		ID:           uuid.NewString(),
		InputPath:    inputPath,
		OriginalName: originalName,
		OutputPath:   store.OutputPath(store.OutputName(prefix)),
	}
}

// Run converts job. The upload at job.InputPath is removed before Run returns,
// whatever the outcome.
func (s *Service) Run(ctx context.Context, job *domain.ConversionJob) domain.ConversionResult {
	defer s.removeUpload(job)

	var key string
	if s.cache != nil {
		if src, err := os.ReadFile(job.InputPath); err == nil {
			key = cache.Key(src)
			if res, ok := s.fromCache(ctx, key, job); ok {
				return res
			}
		}
	}

	res := s.converter.Convert(ctx, job.InputPath, job.OutputPath)
	if succ, ok := res.Success(); ok {
		job.Strategy = succ.Strategy
		if key != "" {
			if data, err := os.ReadFile(succ.OutputPath); err == nil {
				s.cache.Set(ctx, key, data)
			}
		}
	}
	return res
}

func (s *Service) fromCache(ctx context.Context, key string, job *domain.ConversionJob) (domain.ConversionResult, bool) {
	data, err := s.cache.Get(ctx, key)
	if err != nil || len(data) == 0 {
		return domain.ConversionResult{}, false
	}
	if err := os.WriteFile(job.OutputPath, data, 0o644); err != nil {
		logging.Warn("Could not write cached PDF", "job", job.ID, "error", err)
		return domain.ConversionResult{}, false
	}
	job.Strategy = domain.StrategyCache
	return domain.Succeeded(job.OutputPath, int64(len(data)), domain.StrategyCache), true
}

func (s *Service) removeUpload(job *domain.ConversionJob) {
	if err := s.store.Remove(job.InputPath); err != nil {
		logging.Warn("Could not remove upload", "job", job.ID, "path", job.InputPath, "error", err)
	}
}

// RunBatch runs jobs one after another. A failed job does not stop the batch.
func (s *Service) RunBatch(ctx context.Context, jobs []*domain.ConversionJob) []ItemResult {
	results := make([]ItemResult, 0, len(jobs))
	for _, job := range jobs {
		res := s.Run(ctx, job)
		if f, failed := res.Failure(); failed {
			logging.Warn("Batch item failed", "job", job.ID, "name", job.OriginalName, "reason", f.Reason)
		}
		results = append(results, ItemResult{Job: job, Result: res})
	}
	return results
}
