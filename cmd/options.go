package cmd

import "github.com/spiffcs/reponews/internal/diff"

// Options holds the shared command-line options for the reponews CLI.
type Options struct {
	ConfigPath string
	EnvFile    string
	Print      bool
	PrintBody  bool
	NoSave     bool
	Workers    int
	Verbosity  int
}

// Option is a functional option for configuring Options.
type Option func(*Options)

// NewOptions creates a new Options with defaults and applies any provided options.
func NewOptions(opts ...Option) *Options {
	o := &Options{
		Workers: diff.DefaultWorkers,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithConfigPath sets an explicit config file path.
func WithConfigPath(path string) Option {
	return func(o *Options) {
		o.ConfigPath = path
	}
}

// WithWorkers sets the number of concurrent fetch workers.
func WithWorkers(workers int) Option {
	return func(o *Options) {
		o.Workers = workers
	}
}

// WithVerbosity sets the verbosity level.
func WithVerbosity(v int) Option {
	return func(o *Options) {
		o.Verbosity = v
	}
}
