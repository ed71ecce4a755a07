package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"campus-quiz-service/internal/app"
	"campus-quiz-service/internal/clock"
	"campus-quiz-service/internal/domain"
	pgstore "campus-quiz-service/internal/infra/postgres"
	pgmigrations "campus-quiz-service/internal/infra/postgres/migrations"
	infraredis "campus-quiz-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestAttemptLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := openBun(t, ctx, pgURL)
	defer db.Close()
	seedQuiz(t, ctx, db, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := pgstore.NewQuizLoader(pool)
	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	attemptRepo := pgstore.NewAttemptStore(db)

	now := clock.System()
	autosaver := app.NewAutosaver(attemptRepo, now)
	defer autosaver.Close()
	scorer := app.NewScorer(quizRepo, attemptRepo)
	service := app.NewAttemptService(quizRepo, attemptRepo, scorer, autosaver, now)
	ranker := app.NewRanker(attemptRepo, now)

	if _, err := service.Authenticate(ctx, "quiz-1", "alice", "nope"); err != domain.ErrWrongPassword {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	aliceAttempt, err := service.Authenticate(ctx, "quiz-1", "alice", "campus")
	if err != nil {
		t.Fatalf("alice authenticate: %v", err)
	}
	bobAttempt, err := service.Authenticate(ctx, "quiz-1", "bob", "campus")
	if err != nil {
		t.Fatalf("bob authenticate: %v", err)
	}

	if err := service.SetAnswer(ctx, aliceAttempt.ID, "q1", "q1-b"); err != nil {
		t.Fatalf("alice answer q1: %v", err)
	}
	if err := service.SetAnswer(ctx, aliceAttempt.ID, "q2", "q2-a"); err != nil {
		t.Fatalf("alice answer q2: %v", err)
	}
	if err := service.SetAnswer(ctx, bobAttempt.ID, "q1", "q1-b"); err != nil {
		t.Fatalf("bob answer q1: %v", err)
	}
	if err := service.SetAnswer(ctx, bobAttempt.ID, "q2", "q2-b"); err != nil {
		t.Fatalf("bob answer q2: %v", err)
	}

	aliceResult, err := service.Submit(ctx, aliceAttempt.ID, domain.SubmitManual)
	if err != nil {
		t.Fatalf("alice submit: %v", err)
	}
	if aliceResult.CorrectAnswers != 2 || aliceResult.ScorePercentage != 100.0 {
		t.Fatalf("expected alice 2/2 at 100.0, got %+v", aliceResult)
	}
	bobResult, err := service.Submit(ctx, bobAttempt.ID, domain.SubmitManual)
	if err != nil {
		t.Fatalf("bob submit: %v", err)
	}
	if bobResult.CorrectAnswers != 1 || bobResult.ScorePercentage != 50.0 {
		t.Fatalf("expected bob 1/2 at 50.0, got %+v", bobResult)
	}

	// A second submission must return the persisted result unchanged.
	again, err := service.Submit(ctx, aliceAttempt.ID, domain.SubmitManual)
	if err != nil {
		t.Fatalf("alice resubmit: %v", err)
	}
	if again.ScorePercentage != aliceResult.ScorePercentage || !again.SubmittedAt.Equal(aliceResult.SubmittedAt) {
		t.Fatalf("resubmit changed result: %+v vs %+v", again, aliceResult)
	}

	lb, err := ranker.Leaderboard(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].UserID != "alice" || lb.Entries[1].UserID != "bob" {
		t.Fatalf("expected alice leading bob, got %+v", lb.Entries)
	}
	if rank, err := ranker.Rank(ctx, "quiz-1", "bob"); err != nil || rank != 2 {
		t.Fatalf("expected bob at rank 2, got %d (%v)", rank, err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
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
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
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

func openBun(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedQuiz(t *testing.T, ctx context.Context, db *bun.DB, quiz domain.Quiz) {
	t.Helper()
	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:              "quiz-1",
		Title:           "Integration quiz",
		Mode:            domain.ModeUnlive,
		DurationSeconds: 1800,
		Password:        "campus",
		MaxAttempts:     1,
		Questions: []domain.Question{
			{
				ID: "q1", Ordinal: 1, Type: domain.QuestionMultipleChoice, Prompt: "What is 2 + 2?", Points: 1,
				Options: []domain.Option{
					{ID: "q1-a", Letter: "A", Text: "3"},
					{ID: "q1-b", Letter: "B", Text: "4", Correct: true},
					{ID: "q1-c", Letter: "C", Text: "5"},
				},
			},
			{
				ID: "q2", Ordinal: 2, Type: domain.QuestionTrueFalse, Prompt: "Water boils at 100C at sea level.", Points: 1,
				Options: []domain.Option{
					{ID: "q2-a", Letter: "A", Text: "True", Correct: true},
					{ID: "q2-b", Letter: "B", Text: "False"},
				},
			},
		},
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
