package internal

import (
	"io"
	"os"

	"github.com/starford/fme/internal/transform"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	out     io.Writer
	logOut  io.Writer
	version string
	watchOp *transform.Operation
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithOutput sets where per-file report lines and listings are printed.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithLogOutput sets where structured logs are written.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}

// WithVersion sets the version reported by the servers.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithWatchOperation makes Serve re-apply op to notes as they change.
func WithWatchOperation(op transform.Operation) Option {
	return func(a *application) {
		a.watchOp = &op
	}
}

func newApplication(opts []Option) *application {
	a := &application{
		out:     os.Stdout,
		logOut:  os.Stderr,
		version: "dev",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}
