// Package dataset enumerates and decodes the image corpus searched by the
// retrieval engine, tagging each item with its partition at load time.
package dataset

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/corona10/goimagehash"

	"github.com/MeKo-Tech/sif/internal/utils"
)

// Partition tags a corpus item with the sub-corpus it belongs to.
type Partition string

const (
	// PartitionGeneral holds everything that is not a logo.
	PartitionGeneral Partition = "general"
	// PartitionLogo holds the logo benchmark images searched by the logo route.
	PartitionLogo Partition = "logo"
)

// DefaultLogoPartitions are the directory names that mark logo items.
var DefaultLogoPartitions = []string{"flickr_logos_27_dataset"}

// Item is one decoded corpus image. Items are immutable after Load.
type Item struct {
	Path        string
	Rel         string
	Gray        *image.Gray
	Color       image.Image
	Partition   Partition
	Fingerprint *goimagehash.ImageHash
}

// Size returns the image dimensions.
func (it Item) Size() image.Point {
	if it.Gray == nil {
		return image.Point{}
	}
	return it.Gray.Bounds().Size()
}

// Distance returns the perceptual-hash Hamming distance to other. ok is
// false when either item has no fingerprint.
func (it Item) Distance(other Item) (int, bool) {
	if it.Fingerprint == nil || other.Fingerprint == nil {
		return 0, false
	}
	d, err := it.Fingerprint.Distance(other.Fingerprint)
	if err != nil {
		return 0, false
	}
	return d, true
}

// Options configures corpus loading.
type Options struct {
	Root            string
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
	LogoPartitions  []string
	Fingerprint     bool
	Workers         int
	Logger          *slog.Logger
}

// Corpus is the loaded, path-ordered set of items.
type Corpus struct {
	Root    string
	Items   []Item
	Skipped int
}

// Counts returns the number of items per partition.
func (c *Corpus) Counts() map[Partition]int {
	out := map[Partition]int{PartitionGeneral: 0, PartitionLogo: 0}
	for _, it := range c.Items {
		out[it.Partition]++
	}
	return out
}

// Len returns the number of loaded items.
func (c *Corpus) Len() int { return len(c.Items) }

// PartitionFor tags a root-relative path: it is a logo item when any of its
// directory components equals one of logoPartitions under case folding.
func PartitionFor(rel string, logoPartitions []string) Partition {
	dir := filepath.Dir(filepath.ToSlash(rel))
	if dir == "." || dir == "/" {
		return PartitionGeneral
	}
	for _, comp := range strings.Split(filepath.ToSlash(dir), "/") {
		for _, name := range logoPartitions {
			if name != "" && utils.EqualFold(comp, name) {
				return PartitionLogo
			}
		}
	}
	return PartitionGeneral
}

// Load discovers and decodes every supported image under opts.Root.
// Unreadable files are skipped with a warning and counted in Skipped.
func Load(ctx context.Context, opts Options) (*Corpus, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.LogoPartitions == nil {
		opts.LogoPartitions = DefaultLogoPartitions
	}

	paths, err := Discover(opts.Root, opts.Recursive, opts.IncludePatterns, opts.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover dataset: %w", err)
	}
	logger.Info("loading dataset", "root", opts.Root, "files", len(paths))

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = max(1, min(workers, len(paths)))

	items := make([]*Item, len(paths))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				it, err := LoadItem(opts.Root, paths[i], opts)
				if err != nil {
					logger.Warn("skipping unreadable image", "path", paths[i], "error", err)
					continue
				}
				items[i] = &it
			}
		}()
	}

	var cancelled error
feed:
	for i := range paths {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	if cancelled != nil {
		return nil, fmt.Errorf("dataset loading cancelled: %w", cancelled)
	}

	corpus := &Corpus{Root: opts.Root, Items: make([]Item, 0, len(paths))}
	for _, it := range items {
		if it == nil {
			corpus.Skipped++
			continue
		}
		corpus.Items = append(corpus.Items, *it)
	}
	counts := corpus.Counts()
	logger.Info("dataset loaded",
		"items", corpus.Len(),
		"logo", counts[PartitionLogo],
		"general", counts[PartitionGeneral],
		"skipped", corpus.Skipped)
	return corpus, nil
}

// LoadItem decodes one image file into an Item.
func LoadItem(root, path string, opts Options) (Item, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return Item{}, err
	}
	if err := utils.ValidateImage(img); err != nil {
		return Item{}, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	it := Item{
		Path:      path,
		Rel:       rel,
		Gray:      utils.ToGray(img),
		Color:     utils.ToNRGBA(img),
		Partition: PartitionFor(rel, opts.LogoPartitions),
	}
	if opts.Fingerprint {
		if h, err := goimagehash.DifferenceHash(img); err == nil {
			it.Fingerprint = h
		}
	}
	return it, nil
}
