package metrics

import "github.com/zalgonoise/cfg"

// Config gathers New's options.
type Config struct {
	serverPort int
}

// WithPort sets the /metrics HTTP exposition port.
func WithPort(port int) cfg.Option[Config] {
	if port < 0 {
		return cfg.NoOp[Config]{}
	}

	return cfg.Register(func(config Config) Config {
		config.serverPort = port

		return config
	})
}
