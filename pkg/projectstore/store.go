// Package projectstore manages project directories under a single root:
// creation of the standard skeleton, listing newest first, contained deletion,
// and reads and writes of the scene document, metadata and assets index.
package projectstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/khudiiash/three-ediitor/pkg/projectdir"
)

// Project describes one project directory.
type Project struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Modified time.Time `json:"modified"`
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock overrides the time source used for metadata timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is a directory-backed project collection. All methods are safe for
// concurrent use to the extent the filesystem is.
type Store struct {
	root  string
	log   *slog.Logger
	now   func() time.Time
	write func(path string, data []byte) error
}

// stagingPrefix names the hidden sibling a project is assembled in before it
// is renamed into place. List never reports such directories.
const stagingPrefix = ".creating-"

// New opens the store rooted at root, creating the directory if missing. A
// root that exists but is not a directory is an error.
func New(root string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty projects root", ErrInvalidPath)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, ioErr("resolve root", root, err)
	}

	s := &Store{
		root:  filepath.Clean(abs),
		log:   slog.Default(),
		now:   time.Now,
		write: writeFileAtomic,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "projectstore")

	info, err := os.Stat(s.root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(s.root, 0o750); err != nil {
			return nil, ioErr("create root", s.root, err)
		}
		s.log.Info("created projects root", "path", s.root)
	case err != nil:
		return nil, ioErr("stat root", s.root, err)
	case !info.IsDir():
		return nil, ioErr("open root", s.root, errors.New("not a directory"))
	}

	return s, nil
}

// Root returns the absolute store root.
func (s *Store) Root() string { return s.root }

// Create builds a new project named name and returns its entry. The directory
// name is Slugify(name); the display name stored in metadata is name as given.
func (s *Store) Create(name string) (Project, error) {
	slug := Slugify(name)
	if slug == "" {
		return Project{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	d := projectdir.New(filepath.Join(s.root, slug))
	if err := s.clearSlot(d); err != nil {
		return Project{}, err
	}

	// The skeleton is assembled in a staging sibling, so a failure part way
	// never leaves a marked directory at the slug path.
	staging, err := os.MkdirTemp(s.root, stagingPrefix+"*")
	if err != nil {
		return Project{}, ioErr("create staging directory", s.root, err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	now := s.now()
	if err := s.writeSkeleton(projectdir.New(staging), name, now); err != nil {
		return Project{}, err
	}

	if err := os.Rename(staging, d.Root()); err != nil {
		return Project{}, ioErr("move project into place", d.Root(), err)
	}

	if err := verifySkeleton(d); err != nil {
		return Project{}, err
	}

	s.log.Info("project created", "name", name, "path", d.Root())

	return Project{Name: name, Path: d.Root(), Modified: time.Unix(now.Unix(), 0)}, nil
}

func (s *Store) writeSkeleton(d projectdir.Dir, name string, now time.Time) error {
	if err := os.Chmod(d.Root(), 0o750); err != nil {
		return ioErr("chmod project directory", d.Root(), err)
	}

	for _, dir := range []string{d.AssetsDir(), d.BuildDir()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return ioErr("create directory", dir, err)
		}
	}

	if err := s.write(d.TSConfigPath(), defaultTSConfig()); err != nil {
		return err
	}

	meta, err := json.MarshalIndent(NewMetadata(name, now), "", "  ")
	if err != nil {
		return ioErr("encode metadata", d.MetadataPath(), err)
	}
	if err := s.write(d.MetadataPath(), meta); err != nil {
		return err
	}

	return s.write(d.ScenePath(), DefaultScene())
}

// clearSlot makes the slug path available: an existing project is an error,
// a directory without markers is purged, and a plain file is removed.
func (s *Store) clearSlot(d projectdir.Dir) error {
	info, err := os.Lstat(d.Root())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return ioErr("stat", d.Root(), err)
	case info.IsDir():
		if d.HasMarker() {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, d.Name())
		}
		s.log.Warn("purging partial project directory", "path", d.Root())
		if err := os.RemoveAll(d.Root()); err != nil {
			return ioErr("purge partial project", d.Root(), err)
		}
	default:
		if err := os.Remove(d.Root()); err != nil {
			return ioErr("remove file at project path", d.Root(), err)
		}
	}

	return nil
}

func verifySkeleton(d projectdir.Dir) error {
	artifacts := []struct{ name, path string }{
		{"project directory", d.Root()},
		{"assets directory", d.AssetsDir()},
		{"build directory", d.BuildDir()},
		{"metadata file", d.MetadataPath()},
		{"scene document", d.ScenePath()},
		{"tsconfig", d.TSConfigPath()},
	}

	for _, a := range artifacts {
		if _, err := os.Stat(a.path); err != nil {
			return &MissingArtifactError{Artifact: a.name, Path: a.path}
		}
	}

	return nil
}

// List returns every immediate child directory of the root, including
// symlinks to directories, newest first.
func (s *Store) List() ([]Project, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, ioErr("read root", s.root, err)
	}

	projects := make([]Project, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), stagingPrefix) {
			continue
		}

		// Stat follows symlinks, so a linked project directory is listed.
		d := projectdir.New(filepath.Join(s.root, e.Name()))
		info, err := os.Stat(d.Root())
		if err != nil || !info.IsDir() {
			continue
		}

		l := readListing(d.MetadataPath(), e.Name(), info.ModTime())
		projects = append(projects, Project{Name: l.name, Path: d.Root(), Modified: l.modified})
	}

	slices.SortStableFunc(projects, func(a, b Project) int {
		return b.Modified.Compare(a.Modified)
	})

	return projects, nil
}

// Delete recursively removes the project at path. The path must exist and be
// lexically inside the root; the root itself cannot be deleted.
func (s *Store) Delete(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ioErr("resolve path", path, err)
	}

	if _, err := os.Lstat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return ioErr("stat", abs, err)
	}

	if !s.contains(abs) {
		return fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	if err := os.RemoveAll(abs); err != nil {
		return ioErr("delete project", abs, err)
	}

	if _, err := os.Lstat(abs); !errors.Is(err, fs.ErrNotExist) {
		return ioErr("verify delete", abs, errors.New("directory still exists"))
	}

	s.log.Info("project deleted", "path", abs)

	return nil
}

// contains reports whether abs is strictly below the root, judged on cleaned
// paths without resolving symlinks.
func (s *Store) contains(abs string) bool {
	rel, err := filepath.Rel(s.root, filepath.Clean(abs))
	if err != nil || rel == "." {
		return false
	}

	return within(s.root, abs)
}

// within reports whether target is base or lies below it, lexically.
func within(base, target string) bool {
	rel, err := filepath.Rel(base, filepath.Clean(target))
	if err != nil || rel == ".." || filepath.IsAbs(rel) {
		return false
	}

	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// project resolves a caller-supplied project path to a contained Dir.
func (s *Store) project(path string) (projectdir.Dir, error) {
	d := projectdir.New(path)
	if !s.contains(d.Root()) {
		return projectdir.Dir{}, fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	return d, nil
}
