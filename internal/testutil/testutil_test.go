package testutil

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.NotEmpty(t, root)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
	assert.True(t, DirExists(filepath.Join(root, "internal", "retrieval")))
}

func TestEnsureDir(t *testing.T) {
	tempDir := t.TempDir()
	testDir := filepath.Join(tempDir, "test", "nested", "dir")

	require.NoError(t, EnsureDir(testDir))
	assert.True(t, DirExists(testDir))
	assert.False(t, FileExists(filepath.Join(tempDir, "missing")))
}

func TestShapeImageIsCentered(t *testing.T) {
	img := ShapeImage(ShapeRectangle, SmallSize, color.Black, color.White)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(SmallSize.Width/2, SmallSize.Height/2))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(0, 0))
}

func TestTexturedImageDeterministic(t *testing.T) {
	a := TexturedImage(SmallSize, 7)
	b := TexturedImage(SmallSize, 7)
	c := TexturedImage(SmallSize, 8)
	assert.True(t, CompareImages(a, b, 0))
	assert.False(t, CompareImages(a, c, 0))
}

func TestBuildCorpus(t *testing.T) {
	root := t.TempDir()
	layout := BuildCorpus(t, root)

	require.Len(t, layout.General, 3)
	require.Len(t, layout.Logos, 4)
	for _, rel := range append(layout.General, layout.Logos...) {
		img, err := LoadImageFile(filepath.Join(root, rel))
		require.NoError(t, err)
		assert.Equal(t, MediumSize.Width, img.Bounds().Dx())
	}
}

func TestWriteImageCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "img.png")
	require.NoError(t, WriteImage(CreateTestImage(8, 8, color.White), path))
	assert.True(t, FileExists(path))
}
