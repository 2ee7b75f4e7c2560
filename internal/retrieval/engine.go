package retrieval

import (
	"log/slog"
	"runtime"

	"github.com/MeKo-Tech/sif/internal/vision"
)

// Engine routes queries and scores corpus items. An Engine is safe for
// concurrent use once constructed.
type Engine struct {
	cfg      Config
	prims    vision.Primitives
	logger   *slog.Logger
	observer Observer
	workers  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithPrimitives replaces the default pure-Go vision primitives.
func WithPrimitives(p vision.Primitives) Option {
	return func(e *Engine) {
		if p != nil {
			e.prims = p
		}
	}
}

// WithLogger sets the logger used for per-candidate debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver attaches a lifecycle observer such as a metrics recorder.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithWorkers bounds the number of corpus items evaluated concurrently.
// Values below 1 select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// NewEngine builds an engine with the given thresholds.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		logger:   slog.New(slog.DiscardHandler),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.prims == nil {
		e.prims = vision.NewDefault(vision.DefaultOptions())
	}
	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}
	return e
}

// Config returns the engine thresholds.
func (e *Engine) Config() Config { return e.cfg }

// Primitives returns the vision backend in use.
func (e *Engine) Primitives() vision.Primitives { return e.prims }

// Workers returns the worker pool size.
func (e *Engine) Workers() int { return e.workers }
