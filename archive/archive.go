// Package archive bundles a directory of image artifacts into a single
// zip file with deterministic contents.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ErrEmptySource is returned when the source directory holds no files.
var ErrEmptySource = errors.New("archive: source directory is empty")

// Create bundles every regular file directly under srcDir into a zip
// archive at dstPath. Entries are stored in sorted name order with
// zeroed timestamps, so archiving the same directory twice produces
// identical bytes. The archive is staged beside its destination and
// renamed into place on success.
func Create(srcDir, dstPath string) error {
	names, err := listFiles(srcDir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptySource, srcDir)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dstPath), ".archive-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := writeZip(tmp, srcDir, names); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dstPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func writeZip(w io.Writer, srcDir string, names []string) error {
	zw := zip.NewWriter(w)
	for _, name := range names {
		hdr := &zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		}
		entry, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		f, err := os.Open(filepath.Join(srcDir, name))
		if err != nil {
			return err
		}
		_, err = io.Copy(entry, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return zw.Close()
}

// List returns the sorted entry names of an archive.
func List(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names, nil
}

// listFiles returns the sorted names of regular files directly under
// dir, skipping staging temporaries left by in-flight writers.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
