package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths resolves and owns the on-disk layout for pipeline artifacts.
type Paths struct {
	DataDir   string
	PDFDir    string
	OutputDir string
	CacheFile string
	LogsDir   string
}

// NewPaths builds a Paths from configuration, resolving relative entries
// against the working directory.
func NewPaths(cfg PathsConfig) (*Paths, error) {
	p := &Paths{
		DataDir:   cfg.DataDir,
		PDFDir:    cfg.PDFDir,
		OutputDir: cfg.OutputDir,
		CacheFile: cfg.CacheFile,
		LogsDir:   cfg.LogsDir,
	}

	for _, dir := range []*string{&p.DataDir, &p.PDFDir, &p.OutputDir, &p.CacheFile, &p.LogsDir} {
		if *dir == "" {
			continue
		}
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path %q: %w", *dir, err)
		}
		*dir = abs
	}

	return p, nil
}

// EnsureDirectories creates all required directories.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{p.DataDir, p.PDFDir, p.OutputDir, p.LogsDir, filepath.Dir(p.CacheFile)}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// MasterWorkbook returns the path of the consolidated master workbook.
func (p *Paths) MasterWorkbook() string {
	return filepath.Join(p.OutputDir, "Master_FADA_Data.xlsx")
}

// SessionWorkbook returns the result artifact path for a session.
func (p *Paths) SessionWorkbook(sessionID string) string {
	return filepath.Join(p.OutputDir, fmt.Sprintf("FADA_Data_%s.xlsx", sessionID))
}

// FileExists reports whether the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
