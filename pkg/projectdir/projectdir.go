// Package projectdir encapsulates path knowledge for a single project
// directory. It provides a Dir value object with accessors for the metadata
// file, the scene document, and the assets and build directories.
package projectdir

import (
	"os"
	"path/filepath"
)

// File and directory names inside a project.
const (
	MetadataFile    = "project.json"
	SceneFile       = "scene.json"
	TSConfigFile    = "tsconfig.json"
	AssetsDirName   = "assets"
	AssetsIndexFile = "assets.json"
	BuildDirName    = "build"
)

// Dir is a value object that resolves paths within a project directory.
type Dir struct {
	root string
}

// New creates a Dir rooted at the given path. The path is converted to an
// absolute path. No I/O is performed.
func New(root string) Dir {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}

	return Dir{root: abs}
}

// Root returns the absolute path to the project directory.
func (d Dir) Root() string { return d.root }

// Name returns the directory's base name, which is the project slug.
func (d Dir) Name() string { return filepath.Base(d.root) }

// MetadataPath returns the path to project.json.
func (d Dir) MetadataPath() string { return filepath.Join(d.root, MetadataFile) }

// ScenePath returns the path to the scene document.
func (d Dir) ScenePath() string { return filepath.Join(d.root, SceneFile) }

// TSConfigPath returns the path to the project's tsconfig.json.
func (d Dir) TSConfigPath() string { return filepath.Join(d.root, TSConfigFile) }

// AssetsDir returns the path to the assets directory.
func (d Dir) AssetsDir() string { return filepath.Join(d.root, AssetsDirName) }

// AssetsIndexPath returns the path to the assets index inside assets/.
func (d Dir) AssetsIndexPath() string { return filepath.Join(d.root, AssetsDirName, AssetsIndexFile) }

// BuildDir returns the path to the compiled output directory.
func (d Dir) BuildDir() string { return filepath.Join(d.root, BuildDirName) }

// Markers returns the paths whose presence marks a directory as a project.
func (d Dir) Markers() []string {
	return []string{d.MetadataPath(), d.AssetsDir(), d.BuildDir()}
}

// HasMarker reports whether at least one project marker exists. A directory
// without any marker is a leftover from an interrupted creation.
func (d Dir) HasMarker() bool {
	for _, p := range d.Markers() {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}

	return false
}

// Exists reports whether the project root exists and is a directory.
func (d Dir) Exists() bool {
	info, err := os.Stat(d.root)

	return err == nil && info.IsDir()
}
