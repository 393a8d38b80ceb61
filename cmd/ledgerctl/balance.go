package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/engine"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/policy"
)

func parseKindAndID(kindArg, idArg string) (domain.SubjectKind, uuid.UUID, error) {
	kind := domain.SubjectKind(kindArg)
	if !kind.Valid() {
		return "", uuid.Nil, fmt.Errorf("unknown ledger %q", kindArg)
	}
	id, err := uuid.Parse(idArg)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid id %q: %w", idArg, err)
	}
	return kind, id, nil
}

func newEngine(e *env) *engine.Engine {
	return engine.New(e.db, policy.NewFeatureAuthorizer(nil, e.logger),
		engine.Config{Ledger: e.cfg.Ledger, Sponsorship: e.cfg.Sponsorship}, e.logger, nil)
}

func balanceCmd() *cobra.Command {
	var history int
	cmd := &cobra.Command{
		Use:   "balance <kind> <id>",
		Short: "Print the current balance of a recipient",
		Example: `  ledgerctl balance user_tabcoin 7f1c...
  ledgerctl balance content_tabcoin 7f1c... --history 20`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseKindAndID(args[0], args[1])
			if err != nil {
				return err
			}
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			ledger := newEngine(e)
			balance, err := ledger.Balance(cmd.Context(), kind, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d\n", kind, id, balance)

			if history > 0 {
				ops, err := ledger.History(cmd.Context(), kind, id, history)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(ops)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&history, "history", 0, "also print the last N operations")
	return cmd
}
