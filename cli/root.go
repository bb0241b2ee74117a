package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mailroom/mailroom/engine/audit"
	"github.com/mailroom/mailroom/engine/infra/sqlite"
	"github.com/mailroom/mailroom/engine/llm"
	"github.com/mailroom/mailroom/engine/triage"
	"github.com/mailroom/mailroom/pkg/config"
	"github.com/mailroom/mailroom/pkg/logger"
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mailroom",
		Short:         "Email triage workflow engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Best effort: a missing .env file is not an error.
			_ = godotenv.Load()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("log-level"); v != "" {
				cfg.Log.Level = v
			}
			if v, _ := cmd.Flags().GetBool("log-json"); v {
				cfg.Log.JSON = true
			}
			log := logger.New(&logger.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
			ctx := logger.ContextWithLogger(cmd.Context(), log)
			ctx = contextWithConfig(ctx, cfg)
			cmd.SetContext(ctx)
			return nil
		},
	}

	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-json", false, "emit logs as JSON")

	root.AddCommand(
		TriageCmd(),
		KBCmd(),
		MigrateCmd(),
	)
	return root
}

// Execute runs the root command and reports failures on stderr.
func Execute() {
	if err := RootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "mailroom:", err)
		os.Exit(1)
	}
}

type cfgKey struct{}

func contextWithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, cfgKey{}, cfg)
}

func configFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(cfgKey{}).(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

// openService builds the full stack behind one triage service: sqlite store,
// embedded migrations, audit sink and the optional oracle. The caller closes
// the returned database handle.
func openService(ctx context.Context, cfg *config.Config) (*triage.Service, *sql.DB, error) {
	db, err := sqlite.Open(ctx, &sqlite.Config{Path: cfg.Database.Path})
	if err != nil {
		return nil, nil, err
	}
	if err := sqlite.ApplyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	oracle, err := llm.NewCapabilityFromConfig(llm.Config{
		APIKey:     cfg.OpenAI.APIKey,
		ChatModel:  cfg.OpenAI.ChatModel,
		EmbedModel: cfg.OpenAI.EmbedModel,
	})
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	recorder := audit.MultiRecorder{sqlite.NewAuditRepo(db)}
	svc, err := triage.NewService(sqlite.NewBusinessRepo(db), sqlite.NewKnowledgeRepo(db), oracle, recorder)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	svc.SetRetrievalDepth(cfg.Retrieval.TopK)
	return svc, db, nil
}
