// Package pack zips rendered bundles for marketplace submission.
package pack

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hoiltd/azmp/pkg/logging"
)

// Packager writes submission archives
type Packager struct {
	Logger *logging.Logger
}

// NewPackager creates a packager
func NewPackager(logger *logging.Logger) *Packager {
	return &Packager{Logger: logger}
}

// Package zips the contents of bundleDir into archivePath. Entries are
// written in sorted path order so repeated runs produce identical archives,
// and paths escaping the bundle directory are rejected.
func (p *Packager) Package(bundleDir, archivePath string) error {
	var files []string
	err := filepath.WalkDir(bundleDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk bundle directory: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("bundle directory %s is empty", bundleDir)
	}
	sort.Strings(files)

	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, path := range files {
		rel, err := filepath.Rel(bundleDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, "../") || filepath.IsAbs(rel) {
			return fmt.Errorf("refusing to archive path outside bundle: %s", path)
		}

		w, err := zw.Create(rel)
		if err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", rel, err)
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", rel, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	if p.Logger != nil {
		p.Logger.Info("bundle packaged", "archive", archivePath, "files", len(files))
	}
	return nil
}
