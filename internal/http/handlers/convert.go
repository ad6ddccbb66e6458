package handlers

import (
	"fmt"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"docconv/internal/domain"
	"docconv/internal/infra/logging"
)

// Convert handles POST /convert-docx-to-pdf with a multipart "file" field.
func (h *Handler) Convert(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "No file uploaded")
	}
	if err := h.checkUpload(fh); err != nil {
		return err
	}

	job, err := h.save(c, fh, singlePrefix)
	if err != nil {
		logging.Error("Could not store upload", "name", fh.Filename, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Could not store upload")
	}

	res := h.runner.Run(c.UserContext(), job)
	succ, ok := res.Success()
	if !ok {
		f, _ := res.Failure()
		reason := f.Reason
		if reason == "" {
			reason = "Conversion failed"
		}
		return fiber.NewError(fiber.StatusInternalServerError, reason)
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"message":       "File converted successfully",
		"downloadUrl":   downloadURL(succ.OutputPath),
		"originalName":  job.OriginalName,
		"convertedName": filepath.Base(succ.OutputPath),
		"fileSize":      succ.SizeBytes,
		"strategy":      succ.Strategy,
	})
}

// batchItem is one entry of the batch response.
type batchItem struct {
	OriginalName  string              `json:"originalName"`
	ConvertedName string              `json:"convertedName,omitempty"`
	Success       bool                `json:"success"`
	DownloadURL   string              `json:"downloadUrl,omitempty"`
	Strategy      domain.StrategyName `json:"strategy,omitempty"`
	Error         string              `json:"error,omitempty"`
}

// Batch handles POST /convert-batch with up to max_batch_files "files" fields.
// Items run one after another; per-item failures are reported inline.
func (h *Handler) Batch(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "No files uploaded")
	}
	files := form.File["files"]
	if len(files) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "No files uploaded")
	}
	if len(files) > h.cfg.Upload.MaxBatchFiles {
		return fiber.NewError(fiber.StatusBadRequest, "Too many files")
	}
	for _, fh := range files {
		if err := h.checkUpload(fh); err != nil {
			return err
		}
	}

	jobs := make([]*domain.ConversionJob, 0, len(files))
	items := make([]batchItem, len(files))
	slot := make([]int, 0, len(files))
	for i, fh := range files {
		items[i].OriginalName = fh.Filename
		job, err := h.save(c, fh, batchPrefix)
		if err != nil {
			logging.Error("Could not store upload", "name", fh.Filename, "error", err)
			items[i].Error = "Could not store upload"
			continue
		}
		jobs = append(jobs, job)
		slot = append(slot, i)
	}

	for k, r := range h.runner.RunBatch(c.UserContext(), jobs) {
		it := &items[slot[k]]
		if succ, ok := r.Result.Success(); ok {
			it.Success = true
			it.ConvertedName = filepath.Base(succ.OutputPath)
			it.DownloadURL = downloadURL(succ.OutputPath)
			it.Strategy = succ.Strategy
			continue
		}
		f, _ := r.Result.Failure()
		it.Error = f.Reason
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("Processed %d files", len(files)),
		"results": items,
	})
}
