// Package handlers serves the conversion, download and health endpoints.
package handlers

import (
	"context"
	"mime"
	"mime/multipart"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"docconv/internal/artifacts"
	"docconv/internal/config"
	"docconv/internal/convert"
	"docconv/internal/domain"
	"docconv/internal/infra/chrome"
)

const (
	serviceName = "Libre PDF Converter"

	singlePrefix = "converted"
	batchPrefix  = "batch"
)

// Version is reported by the health endpoint.
var Version = "1.0.0"

var features = []string{
	"Format-preserving PDF conversion",
	"Multi-format support (DOCX, DOC, HTML, TXT, Excel, Images)",
	"High-fidelity rendering",
	"Batch processing",
	"Custom styling preservation",
}

// Runner converts jobs. *convert.Service implements it.
type Runner interface {
	Run(ctx context.Context, job *domain.ConversionJob) domain.ConversionResult
	RunBatch(ctx context.Context, jobs []*domain.ConversionJob) []convert.ItemResult
}

type Handler struct {
	cfg    config.Config
	store  *artifacts.Store
	runner Runner
	pool   *chrome.Pool
	now    func() time.Time
}

// New builds the handlers. pool may be nil when tabs are not pooled.
func New(cfg config.Config, store *artifacts.Store, runner Runner, pool *chrome.Pool) *Handler {
	return &Handler{cfg: cfg, store: store, runner: runner, pool: pool, now: time.Now}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"service":   serviceName,
		"version":   Version,
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
		"features":  features,
	})
}

// ChromeStats reports the browser pool. A missing pool reports enabled=false.
func (h *Handler) ChromeStats(c *fiber.Ctx) error {
	if h.pool == nil {
		return c.JSON(chrome.Stats{PoolSizeConf: h.cfg.Pipeline.ChromePoolSize})
	}
	return c.JSON(h.pool.Stats())
}

// checkUpload enforces the size limit and the MIME allow-list.
func (h *Handler) checkUpload(fh *multipart.FileHeader) error {
	if fh.Size > h.cfg.MaxFileBytes() {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, domain.ErrFileTooLarge.Error())
	}
	ct := fh.Header.Get(fiber.HeaderContentType)
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	if !slices.Contains(h.cfg.Upload.AllowedTypes, strings.ToLower(ct)) {
		return fiber.NewError(fiber.StatusUnsupportedMediaType, domain.ErrUnsupportedType.Error()+": "+ct)
	}
	return nil
}

// save stores an upload and returns its job.
func (h *Handler) save(c *fiber.Ctx, fh *multipart.FileHeader, prefix string) (*domain.ConversionJob, error) {
	path := h.store.UploadPath(fh.Filename)
	if err := c.SaveFile(fh, path); err != nil {
		_ = h.store.Remove(path)
		return nil, err
	}
	return convert.NewJob(h.store, fh.Filename, path, prefix), nil
}

func downloadURL(path string) string {
	return "/download/" + filepath.Base(path)
}
