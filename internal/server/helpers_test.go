package server

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sif/internal/dataset"
	"github.com/MeKo-Tech/sif/internal/override"
	"github.com/MeKo-Tech/sif/internal/report"
	"github.com/MeKo-Tech/sif/internal/retrieval"
	"github.com/MeKo-Tech/sif/internal/testutil"
)

// fakeSearcher returns canned results and records what it was asked.
type fakeSearcher struct {
	mu        sync.Mutex
	calls     int
	lastQuery string
	lastForce retrieval.Route
	err       error
	wait      bool
}

func (f *fakeSearcher) SearchWithProgress(
	ctx context.Context,
	q retrieval.Query,
	items []dataset.Item,
	forced retrieval.Route,
	progress retrieval.ProgressCallback,
) (*retrieval.SearchResult, error) {
	f.mu.Lock()
	f.calls++
	f.lastQuery = q.Name
	f.lastForce = forced
	f.mu.Unlock()

	if f.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}

	if progress != nil {
		progress.OnStart(len(items))
		for i := range items {
			progress.OnProgress(i+1, len(items))
		}
		progress.OnComplete()
	}

	route := forced
	if route == retrieval.RouteAuto {
		route = retrieval.RouteObject
	}
	results := make([]retrieval.Result, len(items))
	for i, it := range items {
		results[i] = retrieval.Result{
			Path:  it.Path,
			Rel:   it.Rel,
			Route: route,
			Score: 1 / float64(i+2),
		}
	}
	return &retrieval.SearchResult{
		Query:      q.Name,
		Route:      route,
		Classified: retrieval.RouteObject,
		Forced:     forced != retrieval.RouteAuto,
		Results:    results,
		Outcomes:   map[retrieval.Outcome]int{retrieval.OutcomeAccepted: len(items)},
		Elapsed:    5 * time.Millisecond,
	}, nil
}

func testCorpus() *dataset.Corpus {
	return &dataset.Corpus{
		Root: "/corpus",
		Items: []dataset.Item{
			{Path: "/corpus/a.png", Rel: "a.png", Partition: dataset.PartitionGeneral},
			{Path: "/corpus/b.png", Rel: "b.png", Partition: dataset.PartitionGeneral},
			{Path: "/corpus/flickr_logos_27_dataset/c.png", Rel: "flickr_logos_27_dataset/c.png", Partition: dataset.PartitionLogo},
		},
		Skipped: 1,
	}
}

func newTestServer(engine searcher) *Server {
	return newServer(Config{
		CORSOrigin:     "*",
		MaxUploadMB:    1,
		TimeoutSec:     5,
		Report:         report.Options{TopK: 2},
		ScorePrecision: 3,
		Hints:          override.DefaultHints(),
		Logger:         slog.New(slog.DiscardHandler),
	}, engine, testCorpus())
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testImagePNG(t *testing.T) []byte {
	t.Helper()
	return encodePNG(t, testutil.CreateTestImage(32, 24, color.RGBA{200, 40, 40, 255}))
}

// createMultipartSearchRequest builds a POST /search request. A nil image
// omits the file part.
func createMultipartSearchRequest(t *testing.T, filename string, img []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if img != nil {
		part, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = io.Copy(part, bytes.NewReader(img))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/search", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
