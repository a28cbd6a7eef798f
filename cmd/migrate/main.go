// migrate applies versioned SQL migrations to the finsight BigQuery
// dataset. Applied versions are tracked in a schema_migrations table so
// reruns are idempotent.
package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/finsight-app/finsight/internal/logger"
)

// migrationPattern matches files like 0001_create_transactions.sql.
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// migration is a single versioned SQL file.
type migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// appliedMigration is a row of the schema_migrations table.
type appliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

type migrator struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	appliedBy string
	log       zerolog.Logger
}

func main() {
	_ = godotenv.Load()

	var (
		projectID     = flag.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "GCP project ID (or set GOOGLE_CLOUD_PROJECT)")
		datasetID     = flag.String("dataset", envOr("BQ_DATASET", "finance"), "BigQuery dataset ID")
		appliedBy     = flag.String("applied-by", "migrate-cli", "Name recorded against applied migrations")
		migrationsDir = flag.String("migrations", "migrations/bigquery", "Path to migrations directory")
	)
	flag.Parse()

	log := logger.New("migrate")

	if *projectID == "" {
		log.Fatal().Msg("GCP project is required (set GOOGLE_CLOUD_PROJECT or -project)")
	}

	ctx := context.Background()

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	m := &migrator{
		client:    client,
		projectID: *projectID,
		datasetID: *datasetID,
		appliedBy: *appliedBy,
		log:       log,
	}

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	if err := m.run(ctx, *migrationsDir); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}

func (m *migrator) run(ctx context.Context, dir string) error {
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	migrations, err := m.readMigrations(dir)
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	m.log.Info().Int("count", len(migrations)).Msg("Found migration files")

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}
	m.log.Info().Int("count", len(applied)).Msg("Already applied migrations")

	appliedByVersion := make(map[int]appliedMigration, len(applied))
	for _, am := range applied {
		appliedByVersion[am.Version] = am
	}

	appliedCount := 0
	for _, mg := range migrations {
		if am, done := appliedByVersion[mg.Version]; done {
			if am.Checksum != "" && am.Checksum != mg.Checksum {
				return fmt.Errorf("migration %04d_%s was modified after being applied (checksum mismatch)", mg.Version, mg.Name)
			}
			m.log.Info().Str("migration", mg.Filename).Msg("Skipping (already applied)")
			continue
		}

		m.log.Info().Str("migration", mg.Filename).Msg("Applying")
		if err := m.execute(ctx, mg.SQL); err != nil {
			return fmt.Errorf("executing %04d_%s: %w", mg.Version, mg.Name, err)
		}
		if err := m.record(ctx, mg); err != nil {
			return fmt.Errorf("recording %04d_%s: %w", mg.Version, mg.Name, err)
		}
		appliedCount++
	}

	if appliedCount == 0 {
		m.log.Info().Msg("No new migrations to apply")
	} else {
		m.log.Info().Int("applied", appliedCount).Msg("Migrations applied")
	}
	return nil
}

func (m *migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.schema_migrations`"+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, m.projectID, m.datasetID)

	return m.execute(ctx, sql)
}

// readMigrations loads and sorts the migration files. {{PROJECT_ID}} and
// {{DATASET_ID}} placeholders are substituted; checksums are computed over
// the raw file so moving between projects does not look like a change.
func (m *migrator) readMigrations(dir string) ([]migration, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		// Allow running from within cmd/migrate.
		dir = filepath.Join("../..", dir)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, fmt.Errorf("migrations directory not found: %s", dir)
		}
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []migration
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		matches := migrationPattern.FindStringSubmatch(file.Name())
		if matches == nil {
			m.log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid name format")
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			m.log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid version")
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := string(content)
		sql = strings.ReplaceAll(sql, "{{PROJECT_ID}}", m.projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", m.datasetID)

		migrations = append(migrations, migration{
			Version:  version,
			Name:     matches[2],
			Filename: file.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func (m *migrator) appliedMigrations(ctx context.Context) ([]appliedMigration, error) {
	sql := fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM `+"`%s.%s.schema_migrations`"+`
		ORDER BY version ASC
	`, m.projectID, m.datasetID)

	it, err := m.client.Query(sql).Read(ctx)
	if err != nil {
		// First run against a fresh dataset.
		if strings.Contains(err.Error(), "Not found") {
			return nil, nil
		}
		return nil, err
	}

	var applied []appliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		am := appliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
		}
		if row.Checksum.Valid {
			am.Checksum = row.Checksum.StringVal
		}
		if row.AppliedBy.Valid {
			am.AppliedBy = row.AppliedBy.StringVal
		}
		applied = append(applied, am)
	}

	return applied, nil
}

func (m *migrator) record(ctx context.Context, mg migration) error {
	sql := fmt.Sprintf(`
		INSERT INTO `+"`%s.%s.schema_migrations`"+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, m.projectID, m.datasetID)

	q := m.client.Query(sql)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: mg.Version},
		{Name: "name", Value: mg.Name},
		{Name: "checksum", Value: mg.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	return status.Err()
}

func (m *migrator) execute(ctx context.Context, sql string) error {
	job, err := m.client.Query(sql).Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
