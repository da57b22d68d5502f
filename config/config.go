package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Database and Redis configuration
//   - http.go: HTTP server configuration
//   - pipeline.go: Training, prediction, snapshot, and model store configuration
type AppConfig struct {
	// IsDev controls development mode behavior (verbose logging, relaxed guards).
	IsDev bool `env:"DEV" envDefault:"false"`

	// SeedDev populates an empty local database with a synthetic order history
	// on startup. Only honored when IsDev is set.
	SeedDev bool `env:"DEV_SEED" envDefault:"false"`

	// SchedulerSecret gates the scheduled retrain and snapshot entry points.
	// The external cron collaborator supplies it in the X-Scheduler-Secret header.
	SchedulerSecret string `env:"SCHEDULER_SECRET,required"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Prediction pipeline configuration
	Training   TrainingConfig   `envPrefix:"TRAINING_"`
	Prediction PredictionConfig `envPrefix:"PREDICTION_"`
	Snapshot   SnapshotConfig   `envPrefix:"SNAPSHOT_"`
	Model      ModelConfig      `envPrefix:"MODEL_"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Training.Sanitize()
	c.Prediction.Sanitize()
	c.Snapshot.Sanitize()
	c.Model.Sanitize()
}
