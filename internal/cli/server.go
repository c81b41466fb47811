package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lecture-quiz-service/internal/app"
	"lecture-quiz-service/internal/config"
	"lecture-quiz-service/internal/domain"
	"lecture-quiz-service/internal/infra/memory"
	pgloader "lecture-quiz-service/internal/infra/postgres"
	redisinfra "lecture-quiz-service/internal/infra/redis"
	transport "lecture-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
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
	sessionTTL := config.TTLDuration(cfg.Redis.TTL, 4*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.LectureLoader = memory.NewStaticLectureLoader(sampleLectures())
	if pool != nil {
		loader = pgloader.NewLectureLoader(pool)
	}

	lectureTTL := config.TTLDuration(cfg.Lecture.TTL, 10*time.Minute)
	var lectures app.LectureRepository
	if redisClient != nil {
		lectures = redisinfra.NewLectureRepository(redisClient, loader, lectureTTL)
	} else {
		lectures = memory.NewLectureRepository(loader, lectureTTL)
	}

	var store app.SessionStore
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, sessionTTL)
	} else {
		store = memory.NewSessionStore()
	}

	service := app.NewLiveSessionService(store, lectures)
	results := app.NewResultsAggregator(store)
	wsHandler := transport.NewWSHandler(service)
	apiHandler := transport.NewAPIHandler(service, results)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	apiHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting lecture quiz service on :%s", finalPort)
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
	return server.Shutdown(shutdownCtx)
}

// sampleLectures provides minimal lecture content; swap this loader with the
// Postgres-backed one in production.
func sampleLectures() map[string]domain.Lecture {
	return map[string]domain.Lecture{
		"lecture-1": {
			ID:    "lecture-1",
			Title: "European Geography",
			Questions: []domain.Question{
				{ID: "q1", Prompt: "What is the capital of France?", Answer: "Paris"},
				{ID: "q2", Prompt: "What is the capital of Italy?", Answer: "Rome"},
			},
		},
	}
}
