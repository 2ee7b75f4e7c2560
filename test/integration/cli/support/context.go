package support

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/sif/internal/testutil"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastStderr    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	TempDir    string
	Corpus     *testutil.CorpusLayout
	ConfigFile string

	// Environment variables changed by the scenario, with their previous
	// values so Cleanup can restore them.
	savedEnv map[string]*string

	// Server state
	HTTPTestServer *HTTPTestServerWrapper

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    map[string]string

	// WebSocket state
	LastWSFrames []map[string]interface{}
}

// NewTestContext creates a scenario context with its own temporary
// directory and an isolated home directory for config discovery.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "sif-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	ctx := &TestContext{
		TempDir:  tempDir,
		savedEnv: map[string]*string{},
	}

	home := filepath.Join(tempDir, "home")
	if err := testutil.EnsureDir(home); err != nil {
		return nil, err
	}
	ctx.setEnv("HOME", home)
	ctx.setEnv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	return ctx, nil
}

// Cleanup stops servers, restores the environment and removes the
// scenario's temporary files.
func (testCtx *TestContext) Cleanup() error {
	var errs []error

	if testCtx.HTTPTestServer != nil {
		testCtx.HTTPTestServer.Close()
		testCtx.HTTPTestServer = nil
	}

	for name, prev := range testCtx.savedEnv {
		var err error
		if prev == nil {
			err = os.Unsetenv(name)
		} else {
			err = os.Setenv(name, *prev)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to restore %s: %w", name, err))
		}
	}
	testCtx.savedEnv = map[string]*string{}

	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// setEnv sets an environment variable for the rest of the scenario.
func (testCtx *TestContext) setEnv(name, value string) {
	if _, saved := testCtx.savedEnv[name]; !saved {
		if prev, ok := os.LookupEnv(name); ok {
			testCtx.savedEnv[name] = &prev
		} else {
			testCtx.savedEnv[name] = nil
		}
	}
	_ = os.Setenv(name, value)
}
