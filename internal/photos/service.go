// Package photos manages the fixed photos/ directory under the app data root:
// lifecycle of processed photo assets, orphan cleanup, size accounting, and
// path normalization. The filesystem itself is the source of truth; the
// service holds no in-memory state.
package photos

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/dagaz/internal/apperr"
)

// DirName is the managed subdirectory under the app data root.
const DirName = "photos"

// Metadata describes a photo file on disk.
type Metadata struct {
	Size             int64 `json:"size"`
	ModificationTime int64 `json:"modification_time"`
	Exists           bool  `json:"exists"`
}

// Service manages the photo directory rooted under dataRoot.
type Service struct {
	dir    string
	logger *slog.Logger
}

// NewService creates a photo service for dataRoot. The managed directory is
// not created until InitDir.
func NewService(dataRoot string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{dir: filepath.Join(dataRoot, DirName), logger: logger}
}

// Dir returns the managed photo directory path.
func (s *Service) Dir() string {
	return s.dir
}

// InitDir creates the managed directory if it does not exist.
func (s *Service) InitDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Error("init photos directory failed", slog.String("error", err.Error()))
		return apperr.PhotoIO("could not prepare the photo directory", err)
	}
	return nil
}

// Exists probes a photo path. Probe errors are treated as absence, never
// raised.
func (s *Service) Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Delete removes a photo file. Deleting an absent file is a no-op; a failing
// delete of an existing file is a loud domain error. This loudness is
// deliberately asymmetric with CleanupUnused, which is best-effort.
func (s *Service) Delete(path string) error {
	if !s.Exists(path) {
		return nil
	}
	if err := os.Remove(path); err != nil {
		s.logger.Error("delete photo failed", slog.String("path", path), slog.String("error", err.Error()))
		return apperr.PhotoIO("could not delete the photo", err)
	}
	return nil
}

// CleanupUnused deletes every file in the managed directory whose full path is
// not in usedPaths. A missing directory is a no-op; listing or deletion
// failures are logged and swallowed at this level only.
func (s *Service) CleanupUnused(usedPaths map[string]struct{}) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("photo cleanup listing failed", slog.String("error", err.Error()))
		}
		return
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		full := filepath.Join(s.dir, f.Name())
		if _, used := usedPaths[full]; used {
			continue
		}
		if err := os.Remove(full); err != nil {
			s.logger.Warn("photo cleanup delete failed", slog.String("path", full), slog.String("error", err.Error()))
			continue
		}
		s.logger.Info("cleaned up unused photo", slog.String("file", f.Name()))
	}
}

// DirSizeMB sums the file sizes in the managed directory and converts to
// megabytes. An absent directory reports 0.
func (s *Service) DirSizeMB() float64 {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	var total int64
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return float64(total) / (1024 * 1024)
}

// NormalizePath canonicalizes a photo reference: empty stays empty, a path
// already under the managed directory is unchanged, a bare filename is
// expanded to the full managed path, and anything else is treated as foreign
// and returned unchanged. The operation is idempotent.
func (s *Service) NormalizePath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, s.dir+string(os.PathSeparator)) {
		return path
	}
	if !strings.ContainsRune(path, os.PathSeparator) && !strings.ContainsRune(path, '/') {
		return filepath.Join(s.dir, path)
	}
	return path
}

// GetMetadata returns size/mtime/existence for a photo. An absent file yields
// {0, 0, false}; only a failing probe of an existing path yields an error.
func (s *Service) GetMetadata(path string) (*Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Metadata{Exists: false}, nil
		}
		s.logger.Error("photo metadata probe failed", slog.String("path", path), slog.String("error", err.Error()))
		return nil, apperr.PhotoIO("could not inspect the photo", err)
	}
	return &Metadata{
		Size:             info.Size(),
		ModificationTime: info.ModTime().Unix(),
		Exists:           true,
	}, nil
}

// SaveProcessed moves a processed asset into the managed directory under a
// content-addressed name, so re-saving an identical photo dedupes to the same
// file. The source file is removed on success.
func (s *Service) SaveProcessed(srcPath string) (string, error) {
	if err := s.InitDir(); err != nil {
		return "", err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", apperr.PhotoIO("could not read the processed photo", err)
	}
	defer src.Close()

	h := sha256.New()
	if _, err := io.Copy(h, src); err != nil {
		return "", apperr.PhotoIO("could not read the processed photo", err)
	}
	digest := hex.EncodeToString(h.Sum(nil))[:16]
	dst := filepath.Join(s.dir, fmt.Sprintf("photo_%s%s", digest, filepath.Ext(srcPath)))

	if s.Exists(dst) {
		_ = os.Remove(srcPath)
		return dst, nil
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", apperr.PhotoIO("could not save the photo", err)
	}
	if err := writeAtomic(dst, src); err != nil {
		s.logger.Error("save photo failed", slog.String("path", dst), slog.String("error", err.Error()))
		return "", apperr.PhotoIO("could not save the photo", err)
	}
	_ = os.Remove(srcPath)
	return dst, nil
}

// writeAtomic writes content via tmp file, fsync, rename.
func writeAtomic(dst string, content io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".dagaz-tmp-*")
	if err != nil {
		return fmt.Errorf("photos: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, content); err != nil {
		return fmt.Errorf("photos: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("photos: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("photos: close temp: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("photos: rename: %w", err)
	}
	success = true
	return nil
}
