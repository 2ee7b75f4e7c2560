package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MeKo-Tech/sif/internal/config"
	"github.com/MeKo-Tech/sif/internal/dataset"
	"github.com/MeKo-Tech/sif/internal/metrics"
	"github.com/MeKo-Tech/sif/internal/retrieval"
	"github.com/MeKo-Tech/sif/internal/server"
	"github.com/MeKo-Tech/sif/internal/vision"
)

// HTTPTestServerWrapper wraps httptest.Server for integration tests.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
	Registry   *prometheus.Registry
}

// Close shuts the test server down.
func (w *HTTPTestServerWrapper) Close() {
	w.Server.Close()
	_ = w.TestServer.Close()
}

// URL returns the base URL of the test server.
func (w *HTTPTestServerWrapper) URL() string {
	return w.Server.URL
}

// startServer loads the scenario corpus and serves it with the default
// configuration adjusted by configure.
func (testCtx *TestContext) startServer(configure func(*server.Config)) error {
	if testCtx.Corpus == nil {
		return errors.New("no corpus has been created")
	}
	if testCtx.HTTPTestServer != nil {
		testCtx.HTTPTestServer.Close()
	}

	cfg := config.DefaultConfig()
	cfg.Dataset.Root = testCtx.Corpus.Root
	logger := slog.New(slog.DiscardHandler)

	dsOpts := cfg.ToDatasetOptions()
	dsOpts.Logger = logger
	corpus, err := dataset.Load(context.Background(), dsOpts)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	engine := retrieval.NewEngine(cfg.ToRetrievalConfig(),
		retrieval.WithPrimitives(vision.NewDefault(cfg.ToVisionOptions())),
		retrieval.WithObserver(metrics.NewRecorder(registry)),
		retrieval.WithLogger(logger),
	)

	serverConfig := server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		CORSOrigin:     cfg.Server.CORSOrigin,
		MaxUploadMB:    int64(cfg.Server.MaxUploadMB),
		TimeoutSec:     cfg.Server.TimeoutSec,
		Report:         cfg.ToReportOptions(),
		ScorePrecision: cfg.Output.ScorePrecision,
		Hints:          cfg.ToHints(),
		Logger:         logger,
	}
	if configure != nil {
		configure(&serverConfig)
	}

	srv, err := server.NewServer(serverConfig, engine, corpus)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(mux),
		TestServer: srv,
		Registry:   registry,
	}
	return nil
}

// theSearchServerIsRunning starts a server over the scenario corpus.
func (testCtx *TestContext) theSearchServerIsRunning() error {
	return testCtx.startServer(nil)
}

// theSearchServerIsRunningWithRateLimit starts a rate limited server.
func (testCtx *TestContext) theSearchServerIsRunningWithRateLimit(perMinute int) error {
	return testCtx.startServer(func(c *server.Config) {
		c.RateLimit = server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute}
	})
}

func (testCtx *TestContext) requireServer() error {
	if testCtx.HTTPTestServer == nil {
		return errors.New("server is not running")
	}
	return nil
}

// iSendAGETRequestTo performs a GET request against the test server.
func (testCtx *TestContext) iSendAGETRequestTo(path string) error {
	if err := testCtx.requireServer(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, testCtx.HTTPTestServer.URL()+path, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

// iUploadTheQueryImageTo posts a query image from {tmp} as multipart data.
func (testCtx *TestContext) iUploadTheQueryImageTo(name, path string) error {
	return testCtx.upload(name, path, nil)
}

// iUploadTheQueryImageToWithFields posts a query image with extra form fields.
func (testCtx *TestContext) iUploadTheQueryImageToWithFields(name, path string, table *godog.Table) error {
	fields := map[string]string{}
	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			return errors.New("field table rows need a name and a value")
		}
		fields[row.Cells[0].Value] = row.Cells[1].Value
	}
	return testCtx.upload(name, path, fields)
}

func (testCtx *TestContext) upload(name, path string, fields map[string]string) error {
	if err := testCtx.requireServer(); err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(testCtx.TempDir, name)) //nolint:gosec // G304: scenario controlled path
	if err != nil {
		return fmt.Errorf("failed to read query image: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", name)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, testCtx.HTTPTestServer.URL()+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) do(req *http.Request) error {
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = map[string]string{}
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

// iSearchOverWebSocket streams a search and keeps every received frame.
func (testCtx *TestContext) iSearchOverWebSocket(name string) error {
	if err := testCtx.requireServer(); err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(testCtx.TempDir, name)) //nolint:gosec // G304: scenario controlled path
	if err != nil {
		return fmt.Errorf("failed to read query image: %w", err)
	}

	url := "ws" + strings.TrimPrefix(testCtx.HTTPTestServer.URL(), "http") + "/ws/search"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	payload, err := json.Marshal(server.WebSocketSearchRequest{Image: data, Filename: name})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}

	testCtx.LastWSFrames = nil
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	for {
		var frame map[string]interface{}
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("failed to read frame: %w", err)
		}
		testCtx.LastWSFrames = append(testCtx.LastWSFrames, frame)
		if status := fmt.Sprint(frame["status"]); status == "completed" || status == "error" {
			return nil
		}
	}
}

// theResponseStatusShouldBe checks the last HTTP status code.
func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("expected status %d, got %d\nBody: %s", status, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseShouldContain checks the last HTTP body.
func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseJSONFieldShouldBe compares a (dotted) field of the JSON body.
func (testCtx *TestContext) theResponseJSONFieldShouldBe(field, expected string) error {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &data); err != nil {
		return fmt.Errorf("response is not valid JSON: %w\nBody: %s", err, testCtx.LastHTTPResponse)
	}
	return fieldEquals(data, field, expected)
}

// theResponseHeaderShouldBeSet checks that a response header is present.
func (testCtx *TestContext) theResponseHeaderShouldBeSet(name string) error {
	if testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)] == "" {
		return fmt.Errorf("header %s is not set (headers: %v)", name, testCtx.LastHTTPHeaders)
	}
	return nil
}

// iShouldReceiveProgressUpdates checks the streamed processing frames.
func (testCtx *TestContext) iShouldReceiveProgressUpdates() error {
	progress := 0
	for _, f := range testCtx.LastWSFrames {
		if fmt.Sprint(f["status"]) == "processing" && f["total"] != nil {
			progress++
		}
	}
	if progress == 0 {
		return fmt.Errorf("no progress frames among %d frames", len(testCtx.LastWSFrames))
	}
	return nil
}

// theFinalFrameFieldShouldBe compares a field of the last WebSocket frame.
func (testCtx *TestContext) theFinalFrameFieldShouldBe(field, expected string) error {
	if len(testCtx.LastWSFrames) == 0 {
		return errors.New("no WebSocket frames received")
	}
	return fieldEquals(testCtx.LastWSFrames[len(testCtx.LastWSFrames)-1], field, expected)
}

// theEngineShouldHaveRecordedQueries reads the scenario's metric registry.
func (testCtx *TestContext) theEngineShouldHaveRecordedQueries(n int) error {
	if err := testCtx.requireServer(); err != nil {
		return err
	}
	families, err := testCtx.HTTPTestServer.Registry.Gather()
	if err != nil {
		return err
	}
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != "sif_queries_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	if int(total) != n {
		return fmt.Errorf("expected %d recorded queries, got %v", n, total)
	}
	return nil
}

// RegisterServerSteps registers HTTP and WebSocket steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the search server is running on the corpus$`, testCtx.theSearchServerIsRunning)
	sc.Step(`^the search server is running on the corpus with a limit of (\d+) requests? per minute$`,
		testCtx.theSearchServerIsRunningWithRateLimit)

	sc.Step(`^I send a GET request to "([^"]*)"$`, testCtx.iSendAGETRequestTo)
	sc.Step(`^I upload the query image "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTheQueryImageTo)
	sc.Step(`^I upload the query image "([^"]*)" to "([^"]*)" with fields:$`, testCtx.iUploadTheQueryImageToWithFields)
	sc.Step(`^I search over WebSocket with the query image "([^"]*)"$`, testCtx.iSearchOverWebSocket)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseJSONFieldShouldBe)
	sc.Step(`^the response header "([^"]*)" should be set$`, testCtx.theResponseHeaderShouldBeSet)
	sc.Step(`^I should receive progress updates$`, testCtx.iShouldReceiveProgressUpdates)
	sc.Step(`^the final frame field "([^"]*)" should be "([^"]*)"$`, testCtx.theFinalFrameFieldShouldBe)
	sc.Step(`^the engine should have recorded (\d+) quer(?:y|ies)$`, testCtx.theEngineShouldHaveRecordedQueries)
}
