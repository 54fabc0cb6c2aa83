package store

import (
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to path through a temporary file in the
// destination directory followed by a rename. A crash mid-write can
// never leave a partial file at the canonical path, so existence of
// the path always means a complete artifact.
//
// If another writer completed the same path first, the loser discards
// its temporary file and reports success; artifacts for one key are
// identical by construction.
func (l *Layout) WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, l.dirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".stage-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			_ = os.Remove(tmpPath)
			return nil
		}
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// StagedFile is an open temporary file that becomes visible at its
// final path only on Commit.
type StagedFile struct {
	file      *os.File
	tmpPath   string
	finalPath string
}

// StageFile opens a staged write targeting path, creating parent
// directories as needed.
func (l *Layout) StageFile(path string) (*StagedFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, l.dirPerm); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(dir, ".stage-*")
	if err != nil {
		return nil, err
	}
	return &StagedFile{
		file:      tmp,
		tmpPath:   tmp.Name(),
		finalPath: path,
	}, nil
}

func (s *StagedFile) Write(p []byte) (int, error) {
	return s.file.Write(p)
}

// Commit closes the staged file and renames it into place.
func (s *StagedFile) Commit() error {
	if err := s.file.Close(); err != nil {
		_ = os.Remove(s.tmpPath)
		return err
	}
	if err := os.Rename(s.tmpPath, s.finalPath); err != nil {
		if _, statErr := os.Stat(s.finalPath); statErr == nil {
			_ = os.Remove(s.tmpPath)
			return nil
		}
		_ = os.Remove(s.tmpPath)
		return err
	}
	return nil
}

// Discard abandons the staged write and removes the temporary file.
func (s *StagedFile) Discard() error {
	if s.file != nil {
		_ = s.file.Close()
	}
	return os.Remove(s.tmpPath)
}
