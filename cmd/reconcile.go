// =============================================================================
// Charge Reconciler - Reconcile Command
// =============================================================================
//
// This file holds the work done by the root command: compare the two
// configured sources and print the identifiers missing from the left one.
//
// COMMAND USAGE:
//   reconciler [flags]
//
// FLAGS:
//   --left      : Left source (A), already accounted for
//   --right     : Right source (B), checked against the left
//   --field     : Identifier column shared by both sources
//   --format    : Report format (text, json, yaml, table)
//   --lenient   : Tolerate rows whose width does not match the header
//
// PROCESSING PIPELINE:
//   1. Load configuration (file, environment, flags)
//   2. Build the logger and attach it to the context
//   3. Extract identifiers from the left source, then the right source
//   4. Print the sorted missing identifiers
//
// Nothing is printed to standard output unless the whole run succeeds.
//
// =============================================================================

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/charge-reconciler/internal/logging"
	"github.com/ginjaninja78/charge-reconciler/internal/reconcile"
	"github.com/ginjaninja78/charge-reconciler/internal/report"
)

// runReconcile is the main function that orchestrates a reconciliation run.
func runReconcile(cmd *cobra.Command) error {
	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 2: LOGGING
	// =========================================================================
	// Diagnostics go to standard error so the report can be piped.

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, cmd.ErrOrStderr())
	ctx := logging.WithContext(cmd.Context(), log)

	log.Debug().
		Str("field", cfg.Field).
		Str("left", cfg.Left.Path).
		Str("right", cfg.Right.Path).
		Bool("lenient_rows", cfg.LenientRows).
		Msg("starting reconciliation")

	// =========================================================================
	// STEP 3: RECONCILE
	// =========================================================================

	result, err := reconcile.Reconcile(ctx, reconcile.NewRequest(cfg))
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 4: REPORT
	// =========================================================================

	return report.Write(cmd.OutOrStdout(), result, cfg.Output.Format)
}
