package projectstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khudiiash/three-ediitor/pkg/projectdir"
)

func TestReadScene_Default(t *testing.T) {
	s := newStore(t)
	p, err := s.Create("scene")
	require.NoError(t, err)

	got, err := s.ReadScene(p.Path)
	require.NoError(t, err)
	assert.JSONEq(t, string(DefaultScene()), got)
}

func TestReadScene_MissingOrBlank(t *testing.T) {
	s := newStore(t)
	p, err := s.Create("scene")
	require.NoError(t, err)
	scenePath := projectdir.New(p.Path).ScenePath()

	require.NoError(t, os.WriteFile(scenePath, []byte("  \n"), 0o600))
	_, err = s.ReadScene(p.Path)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.Remove(scenePath))
	_, err = s.ReadScene(p.Path)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriteScene_BumpsModified(t *testing.T) {
	s := newStore(t)
	p, err := s.Create("scene")
	require.NoError(t, err)
	_, err = s.Create("other")
	require.NoError(t, err)

	before, err := s.List()
	require.NoError(t, err)
	require.Equal(t, "other", before[0].Name)

	require.NoError(t, s.WriteScene(p.Path, `{"entities":[]}`))

	got, err := s.ReadScene(p.Path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"entities":[]}`, got)

	after, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, "scene", after[0].Name, "the written project moves to the top")
	assert.True(t, after[0].Modified.After(p.Modified))
}

func TestWriteScene_PreservesMetadataFields(t *testing.T) {
	s := newStore(t)
	p, err := s.Create("scene")
	require.NoError(t, err)

	require.NoError(t, s.WriteScene(p.Path, "{}"))

	raw, err := s.ReadMetadata(p.Path)
	require.NoError(t, err)
	var meta Metadata
	require.NoError(t, json.Unmarshal([]byte(raw), &meta))
	assert.Equal(t, "scene", meta.Name)
	assert.Equal(t, Version, meta.Version)
	assert.Greater(t, meta.Modified, meta.Created)
	assert.True(t, meta.Settings.Renderer.Shadows)
}

func TestWriteScene_WithoutMetadataStillWrites(t *testing.T) {
	s := newStore(t)
	dir := filepath.Join(s.Root(), "bare")
	require.NoError(t, os.Mkdir(dir, 0o750))

	require.NoError(t, s.WriteScene(dir, "{}"))

	got, err := s.ReadScene(dir)
	require.NoError(t, err)
	assert.Equal(t, "{}", got)
}

func TestDocuments_OutsideRoot(t *testing.T) {
	s := newStore(t)
	outside := t.TempDir()

	_, err := s.ReadScene(outside)
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.ErrorIs(t, s.WriteScene(outside, "{}"), ErrInvalidPath)
	_, err = s.ReadMetadata(outside)
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = s.ReadAssetsIndex(outside)
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.ErrorIs(t, s.WriteAssetsIndex(outside, "{}"), ErrInvalidPath)

	assert.NoFileExists(t, filepath.Join(outside, projectdir.SceneFile))
}

func TestReadMetadata_Missing(t *testing.T) {
	s := newStore(t)
	dir := filepath.Join(s.Root(), "bare")
	require.NoError(t, os.Mkdir(dir, 0o750))

	_, err := s.ReadMetadata(dir)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssetsIndex(t *testing.T) {
	s := newStore(t)
	p, err := s.Create("scene")
	require.NoError(t, err)

	got, err := s.ReadAssetsIndex(p.Path)
	require.NoError(t, err)
	assert.Equal(t, "{}", got)

	require.NoError(t, s.WriteAssetsIndex(p.Path, `{"box.glb":{"type":"model"}}`))
	got, err = s.ReadAssetsIndex(p.Path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"box.glb":{"type":"model"}}`, got)

	require.NoError(t, s.WriteAssetsIndex(p.Path, "   "))
	got, err = s.ReadAssetsIndex(p.Path)
	require.NoError(t, err)
	assert.Equal(t, "{}", got)
}

func TestWriteAssetsIndex_CreatesAssetsDir(t *testing.T) {
	s := newStore(t)
	dir := filepath.Join(s.Root(), "bare")
	require.NoError(t, os.Mkdir(dir, 0o750))

	require.NoError(t, s.WriteAssetsIndex(dir, "{}"))
	assert.FileExists(t, projectdir.New(dir).AssetsIndexPath())
}

func TestExportScene(t *testing.T) {
	s := newStore(t)
	p, err := s.Create("scene")
	require.NoError(t, err)
	require.NoError(t, s.WriteScene(p.Path, `{"entities":[1]}`))

	dest := filepath.Join(t.TempDir(), "engine", "public")
	require.NoError(t, s.ExportScene(p.Path, dest))

	copied, err := os.ReadFile(filepath.Join(dest, projectdir.SceneFile))
	require.NoError(t, err)
	assert.Equal(t, `{"entities":[1]}`, string(copied))
}

func TestIOError_Wraps(t *testing.T) {
	err := ioErr("read", "/x", os.ErrPermission)

	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Contains(t, err.Error(), "read /x")

	missing := &MissingArtifactError{Artifact: "assets directory", Path: "/x/assets"}
	assert.ErrorIs(t, missing, ErrIO)
	assert.Contains(t, missing.Error(), "assets directory")
}
