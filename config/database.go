package config

import "time"

// DBConfig contains PostgreSQL database configuration. The orders table is
// owned by the collaborator web application; this service only adds its own
// model_artifacts and prediction_snapshots tables.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"turnaround"`
	Password string `env:"PASSWORD" envDefault:"turnaround"`
	Name     string `env:"NAME"     envDefault:"turnaround"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production

	// QueryTimeout bounds dataset loader and store queries so one slow I/O
	// path cannot hang a worker.
	QueryTimeout time.Duration `env:"QUERY_TIMEOUT" envDefault:"10s"`

	// RunMigrationsOnStart controls whether the application automatically
	// applies its own migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration. Redis carries the scheduled-run
// locks and the cross-worker current-model-version hint.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
}
