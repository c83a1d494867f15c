package coordinator

import "log/slog"

// Option configures a Coordinator.
type Option func(*config)

type config struct {
	Logger *slog.Logger
}

// WithLogger sets the logger shared by the coordinator and its crossfilter.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.Logger = l
		}
	}
}

func applyOptions(opts []Option) *config {
	cfg := &config{Logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
