// Package pipeline runs documents through the renderer fallback chain.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"docconv/internal/domain"
	"docconv/internal/infra/logging"
	"docconv/internal/render"
)

// Remover deletes a file. Deleting a missing file must succeed.
type Remover interface {
	Remove(path string) error
}

// Attempt is the outcome of one stage of the chain.
type Attempt struct {
	Strategy domain.StrategyName
	Size     int64
	Err      error
	Elapsed  time.Duration
}

func (a Attempt) OK() bool { return a.Err == nil }

// Orchestrator tries its adapters one after another until one leaves a non-empty
// output file.
type Orchestrator struct {
	adapters     []render.Adapter
	stageTimeout time.Duration
	remover      Remover
}

// New builds an orchestrator. Adapters are ordered by their rank in
// domain.DefaultStrategy; adapters with other names run last, in the order given.
// A stageTimeout of zero leaves stages bounded only by the caller's context.
func New(stageTimeout time.Duration, remover Remover, adapters ...render.Adapter) *Orchestrator {
	ordered := slices.Clone(adapters)
	slices.SortStableFunc(ordered, func(a, b render.Adapter) int {
		return rank(a.Name()) - rank(b.Name())
	})
	return &Orchestrator{adapters: ordered, stageTimeout: stageTimeout, remover: remover}
}

func rank(name domain.StrategyName) int {
	if i := slices.Index(domain.DefaultStrategy, name); i >= 0 {
		return i
	}
	return len(domain.DefaultStrategy)
}

// Strategies lists the adapter names in the order they are tried.
func (o *Orchestrator) Strategies() []domain.StrategyName {
	names := make([]domain.StrategyName, len(o.adapters))
	for i, a := range o.adapters {
		names[i] = a.Name()
	}
	return names
}

// Convert renders inputPath into outputPath. On failure no file is left at outputPath
// and the reason is the error of the last attempt.
func (o *Orchestrator) Convert(ctx context.Context, inputPath, outputPath string) domain.ConversionResult {
	res, _ := o.Run(ctx, inputPath, outputPath)
	return res
}

// Run is Convert that also returns every attempt made, in order.
func (o *Orchestrator) Run(ctx context.Context, inputPath, outputPath string) (domain.ConversionResult, []Attempt) {
	attempts := make([]Attempt, 0, len(o.adapters))
	var lastErr error = domain.ErrAllStrategiesFailed

	for _, a := range o.adapters {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		at := o.attempt(ctx, a, inputPath, outputPath)
		attempts = append(attempts, at)
		if at.OK() {
			logging.Info("Conversion succeeded", "strategy", at.Strategy, "input", inputPath,
				"size", at.Size, "elapsed_ms", at.Elapsed.Milliseconds())
			return domain.Succeeded(outputPath, at.Size, at.Strategy), attempts
		}

		logging.Warn("Conversion strategy failed", "strategy", at.Strategy, "input", inputPath, "error", at.Err)
		o.discard(outputPath)
		lastErr = at.Err
	}

	o.discard(outputPath)
	logging.Error("All conversion strategies failed", "input", inputPath, "attempts", len(attempts), "error", lastErr)
	return domain.Failed(lastErr.Error()), attempts
}

func (o *Orchestrator) attempt(ctx context.Context, a render.Adapter, inputPath, outputPath string) Attempt {
	start := time.Now()
	stageCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.stageTimeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, o.stageTimeout)
	}
	defer cancel()

	at := Attempt{Strategy: a.Name()}
	if err := a.Render(stageCtx, inputPath, outputPath); err != nil {
		at.Err = err
	} else {
		at.Size, at.Err = verify(outputPath)
	}
	at.Elapsed = time.Since(start)
	return at
}

// verify checks that path is a regular file with content.
func verify(path string) (int64, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrNoOutput, err)
	}
	if !st.Mode().IsRegular() || st.Size() == 0 {
		return 0, fmt.Errorf("%w: %s is empty", domain.ErrNoOutput, path)
	}
	return st.Size(), nil
}

func (o *Orchestrator) discard(path string) {
	var err error
	if o.remover != nil {
		err = o.remover.Remove(path)
	} else if err = os.Remove(path); os.IsNotExist(err) {
		err = nil
	}
	if err != nil {
		logging.Warn("Could not remove partial output", "path", path, "error", err)
	}
}
