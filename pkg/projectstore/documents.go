package projectstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/khudiiash/three-ediitor/pkg/projectdir"
)

// emptyIndex is returned for a project without an assets index.
const emptyIndex = "{}"

// ReadScene returns the scene document of the project at path. A missing or
// blank document is ErrNotFound.
func (s *Store) ReadScene(path string) (string, error) {
	d, err := s.project(path)
	if err != nil {
		return "", err
	}

	data, err := readFile(d.ScenePath())
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("%w: scene document is empty: %s", ErrNotFound, d.ScenePath())
	}

	return string(data), nil
}

// WriteScene replaces the scene document and bumps the project's modified
// timestamp. The timestamp update is best effort: a missing or unreadable
// metadata file is logged and does not fail the write.
func (s *Store) WriteScene(path, content string) error {
	d, err := s.project(path)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(d.ScenePath(), []byte(content)); err != nil {
		return err
	}

	if err := s.touch(d.MetadataPath()); err != nil {
		s.log.Warn("cannot bump project modified time", "path", d.MetadataPath(), "error", err)
	}

	return nil
}

// touch rewrites the metadata's modified field, keeping every other field.
func (s *Store) touch(metaPath string) error {
	data, err := readFile(metaPath)
	if err != nil {
		return err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return ioErr("decode metadata", metaPath, err)
	}

	doc["modified"] = json.RawMessage(strconv.FormatInt(s.now().Unix(), 10))

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return ioErr("encode metadata", metaPath, err)
	}

	return writeFileAtomic(metaPath, out)
}

// ReadMetadata returns the raw project.json of the project at path.
func (s *Store) ReadMetadata(path string) (string, error) {
	d, err := s.project(path)
	if err != nil {
		return "", err
	}

	data, err := readFile(d.MetadataPath())
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// ReadAssetsIndex returns the project's assets index, or "{}" when the index
// is missing or blank.
func (s *Store) ReadAssetsIndex(path string) (string, error) {
	d, err := s.project(path)
	if err != nil {
		return "", err
	}

	data, err := readFile(d.AssetsIndexPath())
	if errors.Is(err, ErrNotFound) {
		return emptyIndex, nil
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(string(data)) == "" {
		return emptyIndex, nil
	}

	return string(data), nil
}

// WriteAssetsIndex replaces the assets index, creating assets/ if needed.
func (s *Store) WriteAssetsIndex(path, content string) error {
	d, err := s.project(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(d.AssetsDir(), 0o750); err != nil {
		return ioErr("create assets directory", d.AssetsDir(), err)
	}

	return writeFileAtomic(d.AssetsIndexPath(), []byte(content))
}

// ExportScene copies the project's scene document to destDir/scene.json,
// creating destDir if needed.
func (s *Store) ExportScene(path, destDir string) error {
	scene, err := s.ReadScene(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return ioErr("create export directory", destDir, err)
	}

	return writeFileAtomic(filepath.Join(destDir, projectdir.SceneFile), []byte(scene))
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is inside the projects root
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, ioErr("read", path, err)
	}

	return data, nil
}
