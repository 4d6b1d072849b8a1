package cli

import (
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"signquiz-service/internal/config"
	"signquiz-service/internal/infra/memory"
	"signquiz-service/internal/infra/postgres"
	redisinfra "signquiz-service/internal/infra/redis"
	"signquiz-service/internal/logging"
)

// NewSeedCmd loads a YAML question bank into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var bankFile string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a YAML question bank into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			logger := logging.New(cmd.ErrOrStderr(), cfg.Log.Level)

			path := bankFile
			if path == "" {
				path = cfg.Questions.BankFile
			}
			if path == "" {
				return fmt.Errorf("no question bank file given")
			}
			bank, err := memory.ReadBankFile(path)
			if err != nil {
				return err
			}

			db := openBun(cfg.Postgres.URL)
			defer db.Close()
			if err := migrateDB(ctx, db, logger); err != nil {
				return err
			}
			if err := postgres.SeedQuestions(ctx, db, bank.Questions, scenariosOf(bank)); err != nil {
				return err
			}
			logger.Info("question bank seeded", "questions", len(bank.Questions), "scenarios", len(bank.Scenarios))

			if cfg.Redis.Addr != "" {
				client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
				defer client.Close()
				if err := redisinfra.InvalidateQuestions(ctx, client); err != nil {
					logger.Warn("could not invalidate question cache", "error", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bankFile, "file", "", "question bank YAML (defaults to questions.bankFile)")
	return cmd
}

func scenariosOf(bank memory.Bank) []postgres.Scenario {
	names := make([]string, 0, len(bank.Scenarios))
	for name := range bank.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]postgres.Scenario, 0, len(names))
	for _, name := range names {
		out = append(out, postgres.Scenario{Name: name, QuestionIDs: bank.Scenarios[name]})
	}
	return out
}
