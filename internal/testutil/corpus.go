package testutil

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// LogoPartition is the directory name tagging logo items in test corpora.
const LogoPartition = "flickr_logos_27_dataset"

// CorpusLayout lists the files written by BuildCorpus, relative to its root.
type CorpusLayout struct {
	Root    string
	General []string
	Logos   []string
}

// BuildCorpus writes a small deterministic corpus: textured scenes under
// general/ and filled glyphs under the logo partition directory.
func BuildCorpus(t *testing.T, root string) CorpusLayout {
	t.Helper()
	layout, err := WriteCorpus(root)
	require.NoError(t, err)
	return layout
}

// WriteCorpus is BuildCorpus without a testing.T, for BDD step code and
// cmd/generate-test-data.
func WriteCorpus(root string) (CorpusLayout, error) {
	layout := CorpusLayout{Root: root}
	scenes := []struct {
		name string
		seed int64
	}{
		{"airplane_01.png", 1},
		{"airplane_02.png", 2},
		{"camera_01.png", 3},
	}
	for _, s := range scenes {
		rel := filepath.Join("general", s.name)
		if err := WriteImage(TexturedImage(MediumSize, s.seed), filepath.Join(root, rel)); err != nil {
			return CorpusLayout{}, err
		}
		layout.General = append(layout.General, rel)
	}

	glyphs := []string{ShapeStar, ShapeTriangle, ShapeCross, ShapeRectangle}
	for _, g := range glyphs {
		rel := filepath.Join(LogoPartition, g+".png")
		if err := WriteImage(ShapeImage(g, MediumSize, color.Black, color.White), filepath.Join(root, rel)); err != nil {
			return CorpusLayout{}, err
		}
		layout.Logos = append(layout.Logos, rel)
	}
	return layout, nil
}
