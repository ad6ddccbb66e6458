package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"docconv/internal/domain"
	"docconv/internal/infra/logging"
)

// OfficeAdapter converts documents with a headless LibreOffice.
type OfficeAdapter struct {
	Binary  string
	Scratch Scratch
}

func NewOfficeAdapter(binary string, scratch Scratch) *OfficeAdapter {
	if binary == "" {
		binary = "soffice"
	}
	return &OfficeAdapter{Binary: binary, Scratch: scratch}
}

func (a *OfficeAdapter) Name() domain.StrategyName { return domain.StrategyOffice }

// Render runs one LibreOffice process with its own profile in a scratch directory,
// then moves the produced PDF to outputPath. The scratch directory never survives
// the call.
func (a *OfficeAdapter) Render(ctx context.Context, inputPath, outputPath string) error {
	work := a.Scratch.TempPath("")
	if err := os.MkdirAll(work, 0o755); err != nil {
		return fmt.Errorf("office scratch dir: %w", err)
	}
	defer os.RemoveAll(work)

	absInput, err := filepath.Abs(inputPath)
	if err != nil {
		return err
	}
	profile := "file://" + filepath.ToSlash(filepath.Join(work, "profile"))

	cmd := exec.CommandContext(ctx, a.Binary,
		"-env:UserInstallation="+profile,
		"--headless",
		"--norestore",
		"--nolockcheck",
		"--convert-to", "pdf",
		"--outdir", work,
		absInput,
	)
	out, err := cmd.CombinedOutput()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("libreoffice: %w", ctxErr)
	}
	if err != nil {
		return fmt.Errorf("libreoffice: %w: %s", err, strings.TrimSpace(string(out)))
	}
	logging.Debug("LibreOffice finished", "input", inputPath, "output", strings.TrimSpace(string(out)))

	base := strings.TrimSuffix(filepath.Base(absInput), filepath.Ext(absInput))
	produced := filepath.Join(work, base+".pdf")
	if _, err := os.Stat(produced); err != nil {
		return fmt.Errorf("%w: libreoffice wrote no pdf", domain.ErrNoOutput)
	}
	return moveFile(produced, outputPath)
}

// moveFile renames src to dst, copying when they live on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
