package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/craftwell/turnaround/internal/data/pgxutil"
	"github.com/craftwell/turnaround/internal/domain/model"
)

// ErrVersionExists is returned when saving a model version that already exists.
var ErrVersionExists = errors.New("model version already exists")

// ModelStoreConfig holds configuration options for the model store.
type ModelStoreConfig struct {
	// Keep is how many most-recent artifacts survive per model name; each
	// successful save prunes older versions beyond this count.
	Keep         int
	QueryTimeout time.Duration
	Logger       *slog.Logger
}

// ModelStore persists serialized ensembles with their metadata. An artifact
// and its metadata occupy a single row, so the pair is written atomically and
// is immutable once stored: retraining supersedes, never edits.
type ModelStore struct {
	DB  *sql.DB
	cfg ModelStoreConfig
}

// NewModelStore creates a new ModelStore with the given database connection
// and configuration.
func NewModelStore(db *sql.DB, cfg ModelStoreConfig) *ModelStore {
	if cfg.Keep < 1 {
		cfg.Keep = 5
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ModelStore{DB: db, cfg: cfg}
}

const metadataColumns = `version, name, profile, feature_names, mae, training_rows, trained_at`

// Save writes the artifact and its metadata as one row inside one
// transaction, then prunes the store to the configured retention for that
// model name. On any failure nothing is written, so a failed scheduled run is
// always safely retryable.
func (s *ModelStore) Save(ctx context.Context, artifact []byte, meta *model.ModelMetadata) error {
	if meta.Version == "" {
		return ErrVersionRequired
	}
	if meta.Name == "" {
		return ErrNameRequired
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	featureNames, err := json.Marshal(meta.FeatureNames)
	if err != nil {
		return fmt.Errorf("marshal feature names: %w", err)
	}

	err = pgxutil.WithPgxTx(ctx, s.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			_, execErr := tx.Exec(ctx, `
				INSERT INTO model_artifacts
					(version, name, profile, feature_names, mae, training_rows, trained_at, artifact)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				meta.Version, meta.Name, meta.Profile, featureNames,
				meta.MAE, meta.TrainingRows, meta.TrainedAt, artifact,
			)
			if execErr != nil {
				return fmt.Errorf("insert model artifact: %w", execErr)
			}
			return s.pruneTx(ctx, tx, meta.Name)
		},
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrVersionExists, meta.Version)
		}
		return err
	}

	s.cfg.Logger.InfoContext(ctx, "model artifact saved",
		"version", meta.Version, "name", meta.Name, "mae", meta.MAE, "rows", meta.TrainingRows)
	return nil
}

// pruneTx deletes every artifact for name beyond the Keep most recent.
// Runs inside the save transaction so an accidental concurrent double-fire
// cannot leave the store over- or under-pruned.
func (s *ModelStore) pruneTx(ctx context.Context, tx pgx.Tx, name string) error {
	rows, err := tx.Query(ctx, `
		SELECT version FROM model_artifacts
		WHERE name = $1
		ORDER BY trained_at DESC, version DESC`, name)
	if err != nil {
		return fmt.Errorf("list versions for pruning: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if scanErr := rows.Scan(&v); scanErr != nil {
			return fmt.Errorf("scan version for pruning: %w", scanErr)
		}
		versions = append(versions, v)
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("iterate versions for pruning: %w", err)
	}

	stale := StaleVersions(versions, s.cfg.Keep)
	if len(stale) == 0 {
		return nil
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM model_artifacts
		WHERE name = $1 AND version = ANY($2)`, name, stale)
	if err != nil {
		return fmt.Errorf("prune model artifacts: %w", err)
	}
	if tag.RowsAffected() > 0 {
		s.cfg.Logger.InfoContext(ctx, "pruned old model artifacts",
			"name", name, "pruned", tag.RowsAffected(), "keep", s.cfg.Keep)
	}
	return nil
}

// StaleVersions returns the versions to delete so that exactly the keep most
// recent remain, given the stored versions ordered newest first. Pure and
// exported so the retention arithmetic is testable without a database; a
// non-positive keep prunes nothing rather than everything.
func StaleVersions(newestFirst []string, keep int) []string {
	if keep < 1 || len(newestFirst) <= keep {
		return nil
	}
	return append([]string(nil), newestFirst[keep:]...)
}

// LoadLatest returns the most recent artifact and metadata for a model name,
// or model.ErrNoModelAvailable when the store holds none. A connectivity
// failure is returned as-is: "the store is empty" and "the store is down" are
// different answers.
func (s *ModelStore) LoadLatest(ctx context.Context, name string) ([]byte, *model.ModelMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	row := s.DB.QueryRowContext(ctx, `
		SELECT `+metadataColumns+`, artifact
		FROM model_artifacts
		WHERE name = $1
		ORDER BY trained_at DESC, version DESC
		LIMIT 1`, name)

	artifact, meta, err := scanArtifactRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, model.ErrNoModelAvailable
		}
		return nil, nil, fmt.Errorf("load latest model %q: %w", name, err)
	}
	return artifact, meta, nil
}

// Load returns one specific version, or ErrArtifactNotFound.
func (s *ModelStore) Load(ctx context.Context, version string) ([]byte, *model.ModelMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	row := s.DB.QueryRowContext(ctx, `
		SELECT `+metadataColumns+`, artifact
		FROM model_artifacts
		WHERE version = $1`, version)

	artifact, meta, err := scanArtifactRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrArtifactNotFound
		}
		return nil, nil, fmt.Errorf("load model version %q: %w", version, err)
	}
	return artifact, meta, nil
}

// List returns metadata for every stored version of a model name, newest first.
func (s *ModelStore) List(ctx context.Context, name string) ([]model.ModelMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+metadataColumns+`
		FROM model_artifacts
		WHERE name = $1
		ORDER BY trained_at DESC, version DESC`, name)
	if err != nil {
		return nil, fmt.Errorf("list model artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ModelMetadata
	for rows.Next() {
		meta, scanErr := scanMetadata(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, *meta)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate model artifacts: %w", err)
	}
	return out, nil
}

// Delete removes one stored version. Returns ErrArtifactNotFound when absent.
func (s *ModelStore) Delete(ctx context.Context, version string) error {
	if version == "" {
		return ErrVersionRequired
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	res, err := s.DB.ExecContext(ctx, `DELETE FROM model_artifacts WHERE version = $1`, version)
	if err != nil {
		return fmt.Errorf("delete model version %q: %w", version, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete model version %q: %w", version, err)
	}
	if affected == 0 {
		return ErrArtifactNotFound
	}
	return nil
}

func scanArtifactRow(row rowScanner) ([]byte, *model.ModelMetadata, error) {
	var (
		meta         model.ModelMetadata
		featureNames []byte
		artifact     []byte
	)
	err := row.Scan(
		&meta.Version, &meta.Name, &meta.Profile, &featureNames,
		&meta.MAE, &meta.TrainingRows, &meta.TrainedAt, &artifact,
	)
	if err != nil {
		return nil, nil, err
	}
	if err = json.Unmarshal(featureNames, &meta.FeatureNames); err != nil {
		return nil, nil, fmt.Errorf("unmarshal feature names: %w", err)
	}
	return artifact, &meta, nil
}

func scanMetadata(row rowScanner) (*model.ModelMetadata, error) {
	var (
		meta         model.ModelMetadata
		featureNames []byte
	)
	err := row.Scan(
		&meta.Version, &meta.Name, &meta.Profile, &featureNames,
		&meta.MAE, &meta.TrainingRows, &meta.TrainedAt,
	)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(featureNames, &meta.FeatureNames); err != nil {
		return nil, fmt.Errorf("unmarshal feature names: %w", err)
	}
	return &meta, nil
}
