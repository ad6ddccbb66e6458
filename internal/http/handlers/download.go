package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docconv/internal/domain"
	"docconv/internal/infra/logging"
)

// Download streams an output file as an attachment and schedules its purge.
func (h *Handler) Download(c *fiber.Ctx) error {
	name := c.Params("filename")
	path, err := h.store.ResolveOutput(name)
	if err != nil {
		if !errors.Is(err, domain.ErrArtifactNotFound) {
			logging.Warn("Rejected download name", "name", name, "error", err)
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "File not found"})
	}

	if err := c.Download(path, name); err != nil {
		logging.Error("Download failed", "name", name, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Download failed"})
	}

	h.store.SchedulePurge(path)
	return nil
}
