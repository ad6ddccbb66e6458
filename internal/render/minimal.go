package render

import (
	"context"
	"strings"

	"github.com/go-pdf/fpdf"

	"docconv/internal/domain"
)

// Page geometry of the degraded renderer, in PDF points with the origin at the
// bottom-left corner.
const (
	minimalPageWidth  = 595.28
	minimalPageHeight = 841.89
	minimalMarginX    = 50
	minimalFirstLineY = 800
	minimalBottomY    = 50
	minimalFontSize   = 12
	minimalLineHeight = 14
)

// MinimalMaxLines is the number of text lines that fit on the single page.
// Lines beyond it are dropped.
const MinimalMaxLines = (minimalFirstLineY - minimalBottomY) / minimalLineHeight

// MinimalAdapter writes the document's plain text onto a single A4 page.
type MinimalAdapter struct{}

func NewMinimalAdapter() *MinimalAdapter { return &MinimalAdapter{} }

func (a *MinimalAdapter) Name() domain.StrategyName { return domain.StrategyMinimal }

func (a *MinimalAdapter) Render(ctx context.Context, inputPath, outputPath string) error {
	text, err := PlainText(inputPath)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeTextPage(textLines(text), outputPath)
}

// textLines splits text on newlines, dropping the empty tail a trailing newline leaves.
func textLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

func writeTextPage(lines []string, outputPath string) error {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: minimalPageWidth, Ht: minimalPageHeight},
	})
	pdf.SetCreator("docconv", true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", minimalFontSize)
	pdf.SetTextColor(0, 0, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if len(lines) > MinimalMaxLines {
		lines = lines[:MinimalMaxLines]
	}
	y := float64(minimalFirstLineY)
	for _, line := range lines {
		// fpdf measures y from the top edge.
		pdf.Text(minimalMarginX, minimalPageHeight-y, tr(strings.ReplaceAll(line, "\t", "    ")))
		y -= minimalLineHeight
	}
	return pdf.OutputFileAndClose(outputPath)
}
