// =============================================================================
// Charge Reconciler - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which opens both sources and
// reports what a reconciliation would see without comparing them.
//
// COMMAND USAGE:
//   reconciler validate [--left PATH] [--right PATH] [--field NAME]
//
// OUTPUT:
//   Identifier column: stripe_charge_id
//   A table with one row per source (rows, identifiers, duplicates, ...)
//   One line per source that could not be used.
//
// The command exits non-zero when either source is unusable.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/charge-reconciler/internal/logging"
	"github.com/ginjaninja78/charge-reconciler/internal/reconcile"
	"github.com/ginjaninja78/charge-reconciler/internal/report"
)

// validateCmd represents the 'validate' command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check both sources without comparing them",
	Long: `Validate loads the configuration, opens both sources and reads every row,
checking that the identifier column exists and that each row is well formed.

Both sources are always inspected, so a single run reports every problem.`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd)
	},
}

// init registers the validate command with the root command.
func init() {
	rootCmd.AddCommand(validateCmd)
	addSourceFlags(validateCmd)
}

// runValidate inspects both sources and prints the findings.
func runValidate(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, cmd.ErrOrStderr())
	ctx := logging.WithContext(cmd.Context(), log)

	inspections := reconcile.Inspect(ctx, reconcile.NewRequest(cfg))
	if err := report.WriteInspections(cmd.OutOrStdout(), cfg.Field, inspections); err != nil {
		return err
	}

	failed := 0
	for _, in := range inspections {
		if in.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed validation", failed, len(inspections))
	}

	return nil
}
