package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-quiz-service/internal/app"
	"campus-quiz-service/internal/clock"
	"campus-quiz-service/internal/config"
	"campus-quiz-service/internal/domain"
	"campus-quiz-service/internal/infra/memory"
	pgstore "campus-quiz-service/internal/infra/postgres"
	rediscache "campus-quiz-service/internal/infra/redis"
	transport "campus-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz attempt engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		// The redis section may override the quiz cache TTL for its keys.
		quizRepo = rediscache.NewQuizRepository(redisClient, loader, config.TTLDuration(cfg.Redis.TTL, quizTTL))
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var attemptRepo app.AttemptRepository = memory.NewAttemptStore()
	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()
		attemptRepo = pgstore.NewAttemptStore(db)
	}

	now := clock.System()
	autosaver := app.NewAutosaver(attemptRepo, now)
	scorer := app.NewScorer(quizRepo, attemptRepo)
	attempts := app.NewAttemptService(quizRepo, attemptRepo, scorer, autosaver, now)
	ranker := app.NewRanker(attemptRepo, now)

	handler := transport.NewHandler(attempts, ranker)
	wsHandler := transport.NewWSHandler(attempts)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz attempt engine on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	// Drain pending autosaves before the stores go away.
	autosaver.Close()
	return err
}

// sampleQuizzes seeds a demo catalog for running without Postgres.
func sampleQuizzes() map[string]domain.Quiz {
	start := clock.System()().Add(5 * time.Minute)
	return map[string]domain.Quiz{
		"demo-live": {
			ID:                 "demo-live",
			Title:              "Live demo quiz",
			Mode:               domain.ModeLive,
			StartTime:          start,
			DurationSeconds:    600,
			LoginWindowSeconds: 300,
			Password:           "letmein",
			MaxAttempts:        1,
			Questions:          demoQuestions(),
		},
		"demo-practice": {
			ID:              "demo-practice",
			Title:           "Practice quiz",
			Mode:            domain.ModeUnlive,
			DurationSeconds: 600,
			Password:        "practice",
			MaxAttempts:     3,
			Questions:       demoQuestions(),
		},
	}
}

func demoQuestions() []domain.Question {
	return []domain.Question{
		{
			ID: "q1", Ordinal: 1, Type: domain.QuestionMultipleChoice, Prompt: "What is 2 + 2?", Points: 2,
			Options: []domain.Option{
				{ID: "q1-a", Letter: "A", Text: "3"},
				{ID: "q1-b", Letter: "B", Text: "4", Correct: true},
				{ID: "q1-c", Letter: "C", Text: "5"},
				{ID: "q1-d", Letter: "D", Text: "6"},
			},
		},
		{
			ID: "q2", Ordinal: 2, Type: domain.QuestionTrueFalse, Prompt: "The sky is green.", Points: 1,
			Options: []domain.Option{
				{ID: "q2-a", Letter: "A", Text: "True"},
				{ID: "q2-b", Letter: "B", Text: "False", Correct: true},
			},
		},
		{
			ID: "q3", Ordinal: 3, Type: domain.QuestionShortAnswer, Prompt: "Describe your campus.", Points: 5,
		},
	}
}
