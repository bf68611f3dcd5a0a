package main

import (
	"errors"
	"fmt"

	"jizhang/internal/backend"
	"jizhang/internal/budget"
	"jizhang/internal/core"
	"jizhang/internal/services"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Show or change the monthly budget",
}

var budgetShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the monthly budget",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withBackend(cmd.Context(), func(res *backend.BackendResult) error {
			v, fallback, err := res.Service.Budget(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), core.FormatAmount(decimal.NewFromInt(int64(v))))
			if fallback {
				fmt.Fprintln(cmd.ErrOrStderr(), "budget cell unreadable, showing the default")
			}
			return nil
		})
	},
}

var budgetSetCmd = &cobra.Command{
	Use:     "set <amount>",
	Short:   "Overwrite the monthly budget",
	Example: "  jizhang budget set 15000",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, ok := budget.ParseValue(args[0])
		if !ok {
			return fmt.Errorf("%w: %w", services.ErrInvalidInput, budget.ErrInvalidBudget)
		}
		return withBackend(cmd.Context(), func(res *backend.BackendResult) error {
			d, err := res.Service.SetBudget(cmd.Context(), v)
			if errors.Is(err, services.ErrReloadFailed) {
				fmt.Fprintf(cmd.OutOrStdout(), "Monthly budget set to %s\n", core.FormatAmount(decimal.NewFromInt(int64(v))))
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				return nil
			}
			if err != nil {
				return err
			}
			printBudgetLine(cmd.OutOrStdout(), d)
			return nil
		})
	},
}

func init() {
	budgetCmd.AddCommand(budgetShowCmd, budgetSetCmd)
	rootCmd.AddCommand(budgetCmd)
}
