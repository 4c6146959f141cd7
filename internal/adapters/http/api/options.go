package api

type serverConfig struct {
	maxBodyBytes int64
}

// Option applies a configuration option to the Server.
type Option func(*serverConfig)

// WithMaxBodyBytes caps webhook request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}
