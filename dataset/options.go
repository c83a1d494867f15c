package dataset

import "log/slog"

// Option configures a Dataset.
type Option func(*config)

type config struct {
	IDField string
	Logger  *slog.Logger
}

// WithIDField sets the field used to identify records (default "gid").
func WithIDField(field string) Option {
	return func(c *config) {
		if field != "" {
			c.IDField = field
		}
	}
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.Logger = l
		}
	}
}

func applyOptions(opts []Option) *config {
	cfg := &config{
		IDField: DefaultIDField,
		Logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
