package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/repository/postgres"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operator tool for the TabCoins ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(undoCmd())
	rootCmd.AddCommand(featuresCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env общие ресурсы команд. Конфиг тот же, что у ledgerd.
type env struct {
	cfg    *infra.Config
	db     *postgres.DB
	logger *zap.Logger
}

func openEnv() (*env, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := infra.NewLogger(infra.LoggerConfig{Level: "warn", Format: "console"})
	if err != nil {
		return nil, err
	}
	db, err := postgres.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, db: db, logger: logger}, nil
}

func (e *env) Close() {
	e.db.Close()
	_ = e.logger.Sync()
}
