package projectstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// AssetFile is one file entry of an AssetListing.
type AssetFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// AssetListing is the immediate content of one directory under assets/.
type AssetListing struct {
	Files       []AssetFile `json:"files"`
	Directories []string    `json:"directories"`
}

// sourceExts are script sources the engine compiles itself; they are never
// copied into the build.
var sourceExts = map[string]bool{".ts": true, ".tsx": true}

// ListAssets lists dir, a slash-separated path relative to the project's
// assets/ directory. An empty dir or "/" lists assets/ itself. A missing
// target yields an empty listing; a dir escaping assets/ is ErrInvalidPath.
func (s *Store) ListAssets(path, dir string) (AssetListing, error) {
	d, err := s.project(path)
	if err != nil {
		return AssetListing{}, err
	}

	target := filepath.Join(d.AssetsDir(), filepath.FromSlash(strings.TrimPrefix(dir, "/")))
	if !within(d.AssetsDir(), target) {
		return AssetListing{}, fmt.Errorf("%w: %s", ErrInvalidPath, dir)
	}

	out := AssetListing{Files: []AssetFile{}, Directories: []string{}}

	entries, err := os.ReadDir(target)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return AssetListing{}, ioErr("read assets directory", target, err)
	}

	for _, e := range entries {
		info, err := os.Stat(filepath.Join(target, e.Name()))
		if err != nil {
			// Dangling link: list it as an empty file.
			out.Files = append(out.Files, AssetFile{Name: e.Name()})
			continue
		}

		if info.IsDir() {
			out.Directories = append(out.Directories, e.Name())
			continue
		}
		out.Files = append(out.Files, AssetFile{Name: e.Name(), Size: info.Size()})
	}

	return out, nil
}

// CopyAssetsToBuild mirrors assets/ into build/assets/, skipping TypeScript
// sources. Existing files in build/assets/ are overwritten; nothing is
// removed. A project without assets/ is left untouched.
func (s *Store) CopyAssetsToBuild(path string) error {
	d, err := s.project(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(d.AssetsDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return ioErr("stat assets directory", d.AssetsDir(), err)
	}
	if !info.IsDir() {
		return ioErr("read assets directory", d.AssetsDir(), errors.New("not a directory"))
	}

	dst := filepath.Join(d.BuildDir(), "assets")
	if err := copyTree(d.AssetsDir(), dst); err != nil {
		return err
	}

	s.log.Debug("copied assets to build", "path", d.Root())

	return nil
}

func copyTree(src, dst string) error {
	if err := os.MkdirAll(dst, 0o750); err != nil {
		return ioErr("create directory", dst, err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return ioErr("read directory", src, err)
	}

	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dst, e.Name())

		info, err := os.Stat(from)
		if err != nil {
			return ioErr("stat", from, err)
		}

		if info.IsDir() {
			if err := copyTree(from, to); err != nil {
				return err
			}
			continue
		}

		if sourceExts[filepath.Ext(e.Name())] {
			continue
		}

		if err := copyFile(from, to); err != nil {
			return err
		}
	}

	return nil
}

func copyFile(from, to string) error {
	in, err := os.Open(from) //nolint:gosec // from is inside the project's assets directory
	if err != nil {
		return ioErr("open", from, err)
	}
	defer in.Close()

	out, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640) //nolint:gosec // to is inside the project's build directory
	if err != nil {
		return ioErr("create", to, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return ioErr("copy", to, err)
	}

	if err := out.Close(); err != nil {
		return ioErr("close", to, err)
	}

	return nil
}
