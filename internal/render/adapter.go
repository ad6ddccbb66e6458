package render

import (
	"context"

	"docconv/internal/domain"
)

// Adapter converts the document at inputPath into a PDF at outputPath.
// It fails only when its engine fails; checking the output is left to the caller.
type Adapter interface {
	Name() domain.StrategyName
	Render(ctx context.Context, inputPath, outputPath string) error
}

// Scratch hands out unique paths for temporary files.
type Scratch interface {
	TempPath(ext string) string
}
