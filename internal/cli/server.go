package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"signquiz-service/internal/app"
	"signquiz-service/internal/auth"
	"signquiz-service/internal/config"
	"signquiz-service/internal/domain"
	"signquiz-service/internal/infra/memory"
	"signquiz-service/internal/infra/postgres"
	redisinfra "signquiz-service/internal/infra/redis"
	"signquiz-service/internal/logging"
	"signquiz-service/internal/metrics"
	transport "signquiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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
	logger := logging.New(os.Stderr, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
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
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	loader, err := questionLoader(cfg, pool)
	if err != nil {
		return err
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionLoader
	if redisClient != nil {
		questions = redisinfra.NewQuestionRepository(redisClient, loader, questionTTL)
	} else {
		questions = memory.NewQuestionRepository(loader, questionTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	var (
		ledger  app.CoinLedger
		counter app.ChallengeCounter
	)
	switch backend := cfg.LedgerBackend(); backend {
	case "postgres":
		db := openBun(cfg.Postgres.URL)
		defer db.Close()
		pgLedger := postgres.NewCoinLedger(db)
		ledger, counter = pgLedger, pgLedger
	case "redis":
		ledger = redisinfra.NewCoinLedger(redisClient)
		counter = redisinfra.NewChallengeCounter(redisClient)
	default:
		logger.Warn("coin balances are kept in memory and lost on restart")
		ledger = memory.NewCoinLedger()
		counter = memory.NewChallengeCounter()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	reconciler := app.NewReconciler(logger, m, app.ReconcilerOptions{
		QueueSize:       cfg.Reconciler.QueueSize,
		MaxRetries:      cfg.Reconciler.MaxRetries,
		InitialInterval: config.TTLDuration(cfg.Reconciler.InitialInterval, 500*time.Millisecond),
	})

	service := app.NewQuizService(store, app.NewDeck(questions, cfg.Questions.ShuffleAnswers), ledger,
		app.WithChallengeCounter(counter),
		app.WithReconciler(reconciler),
		app.WithMetrics(m),
		app.WithLogger(logger),
		app.WithTimeLimit(config.TTLDuration(cfg.Quiz.TimeLimit, 30*time.Second)),
	)

	router := transport.NewRouter(service, transport.RouterConfig{
		Authenticator: auth.NewAuthenticator(cfg.Auth.Secret),
		Gatherer:      reg,
		Logger:        logger,
		CORSOrigins:   cfg.Server.CORSOrigins,
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// websocket connections outlive any write timeout; the writer goroutine owns them
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting quiz service", "port", finalPort, "ledger", cfg.LedgerBackend())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return reconciler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// questionLoader prefers Postgres, then a bank file, then the built-in sample bank.
func questionLoader(cfg config.Config, pool *pgxpool.Pool) (app.QuestionLoader, error) {
	if pool != nil {
		return postgres.NewQuestionLoader(pool), nil
	}
	if cfg.Questions.BankFile != "" {
		bank, err := memory.ReadBankFile(cfg.Questions.BankFile)
		if err != nil {
			return nil, err
		}
		return memory.NewStaticQuestionLoader(bank), nil
	}
	return memory.NewStaticQuestionLoader(sampleBank()), nil
}

// sampleBank is enough to play every mode without any storage configured.
func sampleBank() memory.Bank {
	return memory.Bank{
		Questions: []domain.Question{
			{
				ID:         "hello",
				Prompt:     "What does this sign mean?",
				Media:      "signs/hello.mp4",
				Answers:    []domain.Answer{{Text: "Hello", IsCorrect: true}, {Text: "Goodbye"}, {Text: "Please"}},
				CoinReward: 50,
				Difficulty: "easy",
			},
			{
				ID:         "thank-you",
				Prompt:     "What does this sign mean?",
				Media:      "signs/thank-you.mp4",
				Answers:    []domain.Answer{{Text: "Sorry"}, {Text: "Thank you", IsCorrect: true}, {Text: "Yes"}},
				CoinReward: 50,
				Difficulty: "easy",
			},
			{
				ID:         "coffee",
				Prompt:     "What does this sign mean?",
				Media:      "signs/coffee.mp4",
				Answers:    []domain.Answer{{Text: "Tea"}, {Text: "Water"}, {Text: "Coffee", IsCorrect: true}},
				CoinReward: 75,
				Difficulty: "medium",
			},
		},
		Scenarios: map[string][]string{
			"cafe": {"hello", "coffee", "thank-you"},
		},
	}
}
