package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docconv/internal/config"
	"docconv/internal/domain"
)

const (
	uploadsDirName = "uploads"
	tempDirName    = "temp"
	outputDirName  = "output"

	maxNameLen = 100
)

var (
	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	outputNameRE    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

// Store owns the upload, temp and output directories and every file in them.
type Store struct {
	UploadsDir string
	TempDir    string
	OutputDir  string

	purgeDelay    time.Duration
	sweepInterval time.Duration
	maxAge        time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func New(cfg config.StorageConfig) *Store {
	return &Store{
		UploadsDir:    cfg.Dir(uploadsDirName),
		TempDir:       cfg.Dir(tempDirName),
		OutputDir:     cfg.Dir(outputDirName),
		purgeDelay:    cfg.PurgeDelay,
		sweepInterval: cfg.SweepInterval,
		maxAge:        cfg.MaxAge,
		pending:       make(map[string]*time.Timer),
	}
}

// EnsureDirs creates the storage directories when absent.
func (s *Store) EnsureDirs() error {
	for _, dir := range []string{s.UploadsDir, s.TempDir, s.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// UploadPath returns a fresh path for an uploaded file, keeping a sanitized form of
// its original name after a random prefix.
func (s *Store) UploadPath(originalName string) string {
	return filepath.Join(s.UploadsDir, uuid.NewString()+"-"+sanitizeName(originalName))
}

// OutputName returns a fresh output file name: <prefix>-<uuid>.pdf.
func (s *Store) OutputName(prefix string) string {
	return prefix + "-" + uuid.NewString() + ".pdf"
}

// OutputPath joins an output file name with the output directory.
func (s *Store) OutputPath(name string) string {
	return filepath.Join(s.OutputDir, name)
}

// TempPath returns a fresh path in the temp directory ending in ext.
func (s *Store) TempPath(ext string) string {
	return filepath.Join(s.TempDir, "temp-"+uuid.NewString()+ext)
}

// Remove deletes path. A path that no longer exists is not an error.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.RemoveAll(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ResolveOutput maps a download name to its file in the output directory.
func (s *Store) ResolveOutput(name string) (string, error) {
	if name != filepath.Base(name) || !outputNameRE.MatchString(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidFilename, name)
	}
	p := s.OutputPath(name)
	st, err := os.Stat(p)
	if err != nil || !st.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, name)
	}
	return p, nil
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if len(name) > maxNameLen {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:maxNameLen-len(ext)] + ext
	}
	if name == "" || name == "_" {
		return "upload"
	}
	return name
}
