// Package archive resolves an import input path to the CSV files it holds.
// Alipay delivers exports either as a bare CSV or as a zip archive wrapping
// one; both forms are handled behind a single call.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ResolveCSVFiles returns the paths of all CSV files reachable from path.
// A .zip input is extracted into a temporary directory first; any other
// input is offered as-is. The returned cleanup func removes the temporary
// directory and must be called on every exit path, including after errors.
func ResolveCSVFiles(path string) ([]string, func(), error) {
	cleanup := func() {}

	if _, err := os.Stat(path); err != nil {
		return nil, cleanup, fmt.Errorf("ResolveCSVFiles: %w", err)
	}

	root := path
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		tempDir, err := os.MkdirTemp("", "bill-import-*")
		if err != nil {
			return nil, cleanup, fmt.Errorf("ResolveCSVFiles: create temp dir: %w", err)
		}
		cleanup = func() { os.RemoveAll(tempDir) }

		if err := extractZip(path, tempDir); err != nil {
			return nil, cleanup, fmt.Errorf("ResolveCSVFiles: %w", err)
		}
		root = tempDir
	}

	csvFiles, err := collectCSVFiles(root)
	if err != nil {
		return nil, cleanup, fmt.Errorf("ResolveCSVFiles: %w", err)
	}
	if len(csvFiles) == 0 {
		return nil, cleanup, fmt.Errorf("ResolveCSVFiles: no CSV files found in %s", path)
	}

	return csvFiles, cleanup, nil
}

// collectCSVFiles walks root and gathers every file with a .csv extension,
// case-insensitively. A bare .csv file path is returned as a single entry.
func collectCSVFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if strings.EqualFold(filepath.Ext(root), ".csv") {
			return []string{root}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".csv") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func extractZip(zipPath, destDir string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("open zip %s: %w", zipPath, err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if err := extractZipEntry(file, destDir); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(file *zip.File, destDir string) error {
	dest := filepath.Join(destDir, file.Name)

	// Reject entries escaping the destination directory (zip slip).
	if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("zip entry %q escapes extraction directory", file.Name)
	}

	if file.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", file.Name, err)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", file.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("extract %s: %w", file.Name, err)
	}
	return nil
}
