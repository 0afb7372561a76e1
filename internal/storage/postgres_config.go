package storage

import "time"

// PostgresConfig collects pool tuning knobs for the Postgres repository.
type PostgresConfig struct {
	DSN                 string
	MaxConnections      int32
	MinConnections      int32
	MaxConnLifetime     time.Duration
	MaxConnIdleTime     time.Duration
	HealthCheckInterval time.Duration
	ConnectTimeout      time.Duration
	ApplicationName     string
	Clock               func() time.Time
}

func newPostgresConfig(dsn string, opts ...Option) PostgresConfig {
	cfg := PostgresConfig{
		DSN:             dsn,
		MinConnections:  -1,
		ApplicationName: "cliptide",
	}
	for _, opt := range opts {
		opt.applyPostgres(&cfg)
	}
	return cfg
}
