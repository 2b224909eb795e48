// =============================================================================
// Ticket Ledger Export - File Manager Utility
// =============================================================================
//
// This module provides file utilities for export delivery:
//   - Export file naming
//   - Directory management
//   - Atomic file writes
//
// WRITE STRATEGY:
//   Files are written to a uniquely named temporary file in the target
//   directory and renamed into place. A failed run never leaves a partial
//   export behind under the final name.
//
// =============================================================================

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pretix-unofficial/pretix-itk-export/internal/types"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager writes export files into one directory.
type FileManager struct {
	// OutputDir receives the export files.
	OutputDir string
}

// NewFileManager creates a FileManager for outputDir.
func NewFileManager(outputDir string) *FileManager {
	return &FileManager{OutputDir: outputDir}
}

// EnsureDirectories creates the output directory if it does not exist.
func (fm *FileManager) EnsureDirectories() error {
	if err := os.MkdirAll(fm.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fm.OutputDir, err)
	}
	return nil
}

// WriteFile atomically writes data to name inside the output directory.
//
// RETURNS:
//   - The path of the written file.
//   - An error if any step fails. The temporary file is removed on failure.
func (fm *FileManager) WriteFile(name string, data []byte) (string, error) {
	if err := fm.EnsureDirectories(); err != nil {
		return "", err
	}

	target := filepath.Join(fm.OutputDir, name)
	if err := WriteFileAtomic(target, data, 0o644); err != nil {
		return "", err
	}

	return target, nil
}

// WriteFileAtomic writes data to path through a temporary file in the same
// directory.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")

	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	cleanup := func(cause error) error {
		file.Close()
		os.Remove(tmp)
		return cause
	}

	if _, err := file.Write(data); err != nil {
		return cleanup(fmt.Errorf("failed to write %s: %w", path, err))
	}
	if err := file.Sync(); err != nil {
		return cleanup(fmt.Errorf("failed to sync %s: %w", path, err))
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move export into place: %w", err)
	}

	return nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// ExportFileName builds the name of an export file or attachment.
//
// PARAMETERS:
//   - prefix: The name prefix, e.g. "eventbillet".
//   - window: The export window.
//   - now: The run time, used when the window has no start.
//   - extension: The file extension without the dot.
//
// EXAMPLE:
//   eventbillet-20240301-20240401.csv  (start and end)
//   eventbillet-20240301.csv           (start only)
//   eventbillet-20240314T0930.csv      (no start)
func ExportFileName(prefix string, window types.Window, now time.Time, extension string) string {
	var name strings.Builder
	name.WriteString(prefix)
	name.WriteString("-")

	if window.Start == nil {
		name.WriteString(now.Format("20060102T1504"))
	} else {
		name.WriteString(window.Start.Format("20060102"))
		if window.End != nil {
			name.WriteString("-")
			name.WriteString(window.End.Format("20060102"))
		}
	}

	name.WriteString(".")
	name.WriteString(strings.TrimPrefix(extension, "."))

	return name.String()
}

// RunID returns a new identifier for an export run.
func RunID() string {
	return uuid.NewString()
}
