// Package store maps run ids and artifact keys onto a canonical
// filesystem layout and answers existence queries against it.
//
// Layout:
//
//	<root>/<runid>/<runid>.arr                                  dataset
//	<root>/<runid>/<runid>_[LxH]/<var>/<var>_<seg>_<runid>_[LxH].png
//	<root>/<runid>/<runid>_[LxH]/<runid>_<var>_[LxH].zip        archive
//
// Presence of an artifact at its canonical path is the sole source of
// truth for "already computed". The store never deletes or rewrites an
// existing artifact; its only mutation is idempotent directory
// creation and the staged writes in write.go.
package store

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ahurka/Arrhenius/config"
)

const (
	// DatasetExt is the file extension of dataset artifacts.
	DatasetExt = ".arr"

	// ArchiveExt is the file extension of archive artifacts.
	ArchiveExt = ".zip"

	// ImageExt is the file extension of image artifacts.
	ImageExt = ".png"

	defaultDirPerm = 0o700
)

// Layout resolves artifact locations under a single output root.
type Layout struct {
	root    string
	dirPerm os.FileMode
}

// Option configures a Layout.
type Option func(*Layout)

// WithDirPerm sets the permissions used for created directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(l *Layout) {
		l.dirPerm = mode
	}
}

// New creates a Layout rooted at dir, creating the root if absent.
func New(dir string, opts ...Option) (*Layout, error) {
	if dir == "" {
		return nil, errors.New("store: output root is empty")
	}
	l := &Layout{
		root:    dir,
		dirPerm: defaultDirPerm,
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := os.MkdirAll(dir, l.dirPerm); err != nil {
		return nil, err
	}
	return l, nil
}

// Root returns the output root directory.
func (l *Layout) Root() string { return l.root }

// RunDir returns the directory holding every artifact for runID.
// The directory is not required to exist.
func (l *Layout) RunDir(runID string) string {
	return filepath.Join(l.root, runID)
}

// DatasetPath returns the canonical location of runID's dataset file.
// The file is not required to exist; its presence is the cache-hit
// signal for the whole run.
func (l *Layout) DatasetPath(runID string) string {
	return filepath.Join(l.root, runID, DatasetFileName(runID))
}

// DatasetFileName returns the dataset file name for runID.
func DatasetFileName(runID string) string {
	return runID + DatasetExt
}

// RunIDFromDatasetPath recovers the run id encoded in a canonical
// dataset path.
func RunIDFromDatasetPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), DatasetExt)
}

// ScaleDir returns the per-(run id, color-scale) directory that holds
// image subdirectories and archives.
func (l *Layout) ScaleDir(runID string, scale config.Scale) string {
	return filepath.Join(l.root, runID, runID+"_"+scale.Suffix())
}

// ImageDir returns the directory holding one variable's images for a
// run id and color-scale. When create is true the directory is made if
// absent; creation is idempotent and never fails on an existing
// directory.
func (l *Layout) ImageDir(runID, variable string, scale config.Scale, create bool) (string, error) {
	dir := filepath.Join(l.ScaleDir(runID, scale), variable)
	if create {
		if err := os.MkdirAll(dir, l.dirPerm); err != nil {
			return "", err
		}
	}
	return dir, nil
}

// ImageFileName returns the file name of one rendered image. Segment 0
// denotes the cross-time average.
func ImageFileName(runID, variable string, segment int, scale config.Scale) string {
	base := variable + "_" + strconv.Itoa(segment)
	return base + "_" + runID + "_" + scale.Suffix() + ImageExt
}

// ArchivePath returns the canonical location of the archive bundling
// one variable's images for a run id and color-scale.
func (l *Layout) ArchivePath(runID, variable string, scale config.Scale) string {
	name := runID + "_" + variable + "_" + scale.Suffix() + ArchiveExt
	return filepath.Join(l.ScaleDir(runID, scale), name)
}

// Exists reports whether an artifact is present at path.
func (l *Layout) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
