package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sif/internal/testutil"
)

func TestPartitionFor(t *testing.T) {
	logos := []string{"flickr_logos_27_dataset"}
	tests := []struct {
		rel  string
		want Partition
	}{
		{"flickr_logos_27_dataset/a.png", PartitionLogo},
		{"sub/FLICKR_LOGOS_27_DATASET/images/a.png", PartitionLogo},
		{"general/flickr_logos_27_dataset.png", PartitionGeneral},
		{"flickr_logos_27_dataset_extra/a.png", PartitionGeneral},
		{"a.png", PartitionGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, PartitionFor(tt.rel, logos))
		})
	}
}

func TestLoadCorpus(t *testing.T) {
	root := t.TempDir()
	layout := testutil.BuildCorpus(t, root)
	require.NoError(t, os.WriteFile(filepath.Join(root, "general", "broken.png"), []byte("not a png"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignored"), 0o600))

	corpus, err := Load(context.Background(), Options{
		Root:        root,
		Recursive:   true,
		Fingerprint: true,
		Workers:     2,
	})
	require.NoError(t, err)

	assert.Equal(t, len(layout.General)+len(layout.Logos), corpus.Len())
	assert.Equal(t, 1, corpus.Skipped)
	counts := corpus.Counts()
	assert.Equal(t, len(layout.Logos), counts[PartitionLogo])
	assert.Equal(t, len(layout.General), counts[PartitionGeneral])

	for i := 1; i < corpus.Len(); i++ {
		assert.Less(t, corpus.Items[i-1].Path, corpus.Items[i].Path, "items are path ordered")
	}
	for _, it := range corpus.Items {
		require.NotNil(t, it.Gray)
		require.NotNil(t, it.Color)
		require.NotNil(t, it.Fingerprint)
		assert.Equal(t, testutil.MediumSize.Width, it.Size().X)
	}

	d, ok := corpus.Items[0].Distance(corpus.Items[0])
	require.True(t, ok)
	assert.Zero(t, d)
}

func TestLoadNonRecursive(t *testing.T) {
	root := t.TempDir()
	testutil.BuildCorpus(t, root)
	corpus, err := Load(context.Background(), Options{Root: root})
	require.NoError(t, err)
	assert.Zero(t, corpus.Len())
}

func TestLoadPatterns(t *testing.T) {
	root := t.TempDir()
	testutil.BuildCorpus(t, root)
	corpus, err := Load(context.Background(), Options{
		Root:            root,
		Recursive:       true,
		IncludePatterns: []string{"airplane_*"},
		ExcludePatterns: []string{"*_02.png"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, corpus.Len())
	assert.Equal(t, "airplane_01.png", filepath.Base(corpus.Items[0].Path))
	assert.Nil(t, corpus.Items[0].Fingerprint)
}

func TestLoadMissingRoot(t *testing.T) {
	_, err := Load(context.Background(), Options{Root: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
}

func TestLoadCancelled(t *testing.T) {
	root := t.TempDir()
	testutil.BuildCorpus(t, root)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, Options{Root: root, Recursive: true, Workers: 1})
	require.ErrorIs(t, err, context.Canceled)
}
