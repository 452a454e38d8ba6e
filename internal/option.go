package internal

import (
	"io"

	"github.com/starford/scrivex/internal/progress"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	source   string
	output   string
	dryRun   bool
	reporter progress.Reporter
	jsonOut  bool
	out      io.Writer
	errOut   io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithSource sets the path of the .scriv package to import.
func WithSource(path string) Option {
	return func(a *application) {
		a.source = path
	}
}

// WithOutput sets the output directory. Empty means ./<ProjectName>.
func WithOutput(dir string) Option {
	return func(a *application) {
		a.output = dir
	}
}

// WithDryRun enumerates the output without writing anything.
func WithDryRun(dry bool) Option {
	return func(a *application) {
		a.dryRun = dry
	}
}

// WithReporter sets the progress reporter.
func WithReporter(r progress.Reporter, jsonOut bool) Option {
	return func(a *application) {
		a.reporter = r
		a.jsonOut = jsonOut
	}
}

// WithOutputStreams overrides stdout/stderr, for tests.
func WithOutputStreams(out, errOut io.Writer) Option {
	return func(a *application) {
		a.out = out
		a.errOut = errOut
	}
}
