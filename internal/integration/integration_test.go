package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"qbank-service/internal/app"
	"qbank-service/internal/domain"
	pgbank "qbank-service/internal/infra/postgres"
	pgmigrations "qbank-service/internal/infra/postgres/migrations"
	redisinfra "qbank-service/internal/infra/redis"
	"qbank-service/internal/storage"
)

func TestImportAndGradeEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedBank(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	objectives, questions, err := pgbank.NewBankLoader(pool).LoadContent(ctx)
	if err != nil {
		t.Fatalf("load content: %v", err)
	}
	if len(objectives) != 1 || len(questions) != 2 {
		t.Fatalf("expected 1 objective and 2 questions, got %d/%d", len(objectives), len(questions))
	}

	store := storage.New(filepath.Join(t.TempDir(), "database.json"))
	if err := store.ReplaceContent(objectives, questions); err != nil {
		t.Fatalf("replace content: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	cache := redisinfra.NewSessionCache(redisClient, 5*time.Minute)
	service := app.NewService(store, cache)

	if _, err := service.Register(ctx, "alice", "longenough1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	login, err := service.Login(ctx, "alice", "longenough1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	username, err := service.Authenticate(ctx, login.Token)
	if err != nil || username != "alice" {
		t.Fatalf("authenticate via cache: %q err=%v", username, err)
	}

	report, err := service.GradeQuiz(ctx, login.Token, "obj1", map[string]string{"q1": "B", "q2": "B"})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if report.Score != 20 || report.Accuracy != 1.0 {
		t.Fatalf("unexpected report %+v", report)
	}

	entries, err := service.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].Username != "alice" || entries[0].TotalPoints != 20 {
		t.Fatalf("unexpected leaderboard %+v", entries)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "qbank", "POSTGRES_PASSWORD": "qbankpass", "POSTGRES_DB": "qbankdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://qbank:qbankpass@%s:%s/qbankdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedBank(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	objective := domain.Objective{ID: "obj1", Name: "Ventricular Septal Defects", Description: "VSD basics"}
	questions := []domain.Question{
		{
			ID:            "q1",
			ObjectiveID:   "obj1",
			Text:          "Which finding supports a moderate VSD?",
			Options:       map[string]string{"A": "Fixed split S2", "B": "Left-to-right shunt"},
			CorrectAnswer: "B",
			Explanation:   "Moderate VSDs shunt left to right.",
		},
		{
			ID:            "q2",
			ObjectiveID:   "obj1",
			Text:          "Which change indicates need for surgery?",
			Options:       map[string]string{"A": "Improved growth", "B": "Exertional dyspnea"},
			CorrectAnswer: "B",
			Explanation:   "Rising pressures signal need for closure.",
		},
	}

	insertRow(t, ctx, db, `INSERT INTO objectives (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, objective.ID, objective)
	for _, q := range questions {
		data, err := json.Marshal(q)
		if err != nil {
			t.Fatalf("marshal question: %v", err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO questions (id, objective_id, data) VALUES (?, ?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, q.ID, q.ObjectiveID, string(data)); err != nil {
			t.Fatalf("insert question: %v", err)
		}
	}
}

func insertRow(t *testing.T, ctx context.Context, db *bun.DB, query, id string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := db.ExecContext(ctx, query, id, string(data)); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
