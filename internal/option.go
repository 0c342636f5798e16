package internal

import (
	"io"
	"os"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
}

func newApplication(opts []Option) *application {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects the JSON log stream. The MCP server never logs to
// stdout, whatever is set here.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		if w != nil {
			a.logOutput = w
		}
	}
}
