// Package local implements the Output Store and Cursor Store on the local
// filesystem as JSON files replaced atomically.
package local

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the filesystem stores.
type Config struct {
	// Dir is the directory holding both files.
	Dir string `mapstructure:"dir"`
	// RecordsFile is the name of the JSON array of field records.
	RecordsFile string `mapstructure:"records_file"`
	// StateFile is the name of the cursor file.
	StateFile string `mapstructure:"state_file"`
}

// Default file names.
const (
	DefaultRecordsFile = "documents.json"
	DefaultStateFile   = "state.json"
)

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.RecordsFile) == "" {
		c.RecordsFile = DefaultRecordsFile
	}
	if strings.TrimSpace(c.StateFile) == "" {
		c.StateFile = DefaultStateFile
	}
	return c
}

// ensureDir creates dir when missing and checks that it is a writable
// directory.
func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("storage directory is required")
	}
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return fmt.Errorf("failed to create storage directory: %w", mkErr)
		}
	case err != nil:
		return fmt.Errorf("failed to stat storage directory: %w", err)
	case !info.IsDir():
		return fmt.Errorf("storage path %q is not a directory", dir)
	}

	probe, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return fmt.Errorf("storage directory is not writable: %w", err)
	}
	name := probe.Name()
	if err := probe.Close(); err != nil {
		return fmt.Errorf("failed to close probe file: %w", err)
	}
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("failed to clean up probe file: %w", err)
	}
	return nil
}

// resolve joins name onto dir and rejects names escaping dir.
func resolve(dir, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("file name is required")
	}
	full := filepath.Clean(filepath.Join(dir, name))
	base := filepath.Clean(dir)
	if !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected in %q", name)
	}
	return full, nil
}

// writeAtomic replaces dest with data through a temporary file in the same
// directory, so readers see either the old or the new content.
func writeAtomic(ctx context.Context, dest string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	bw := bufio.NewWriter(tmp)
	if _, err := bw.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := bw.Flush(); err != nil {
		cleanup()
		return fmt.Errorf("flush temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", filepath.Base(dest), err)
	}
	// Best effort; some platforms cannot fsync a directory.
	_ = syncDir(dir)
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir) // #nosec G304 -- dir is the configured storage directory.
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return f.Sync()
}
