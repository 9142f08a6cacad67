package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"qbank-service/internal/config"
	pgbank "qbank-service/internal/infra/postgres"
	pgmigrations "qbank-service/internal/infra/postgres/migrations"
	"qbank-service/internal/storage"
)

// NewImportCmd pulls authored content from the Postgres question bank into
// the JSON document, keeping accounts and sessions intact.
func NewImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import objectives and questions from the Postgres question bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath)
		},
	}
}

func runImport(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	if err := RunMigrations(ctx, cfg.Postgres.URL); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	objectives, questions, err := pgbank.NewBankLoader(pool).LoadContent(ctx)
	if err != nil {
		return err
	}

	store := storage.New(cfg.Storage.Path)
	if err := store.ReplaceContent(objectives, questions); err != nil {
		return err
	}
	log.Printf("imported %d objectives and %d questions into %s", len(objectives), len(questions), store.Path())
	return nil
}

// RunMigrations applies the question bank schema.
func RunMigrations(ctx context.Context, dsn string) error {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		return err
	}
	log.Printf("migrations applied")
	return nil
}
