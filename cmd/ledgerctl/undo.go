package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/engine"
)

func undoCmd() *cobra.Command {
	var (
		reason   string
		operator string
	)
	cmd := &cobra.Command{
		Use:   "undo <kind> <operation-id>",
		Short: "Append a compensating operation that cancels an earlier one",
		Long: `Undo never deletes or edits the original row. It appends a new row with the
negated amount and records an undo:operation event naming the operator.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, opID, err := parseKindAndID(args[0], args[1])
			if err != nil {
				return err
			}
			operatorID, err := uuid.Parse(operator)
			if err != nil {
				return fmt.Errorf("--operator must be the operator's user id: %w", err)
			}
			if reason == "" {
				return fmt.Errorf("--reason is required")
			}

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			actor := domain.Actor{ID: operatorID, Features: map[string]bool{domain.FeatureUndoOperation: true}}
			res, err := newEngine(e).Undo(cmd.Context(), actor, domain.UserOrigin(operatorID, ""), engine.UndoInput{
				Kind:        kind,
				OperationID: opID,
				Reason:      reason,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "operation %s undone by %s (event %s)\n", opID, res.Operation.ID, res.Event.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the operation is undone (stored in the event)")
	cmd.Flags().StringVar(&operator, "operator", "", "user id of the operator")
	return cmd
}
