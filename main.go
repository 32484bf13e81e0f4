// =============================================================================
// Charge Reconciler - Main Entry Point
// =============================================================================
//
// USAGE:
//   reconciler              - List charges in the right source missing from the left
//   reconciler validate     - Check both sources without comparing them
//   reconciler version      - Display the application version
//
// ARCHITECTURE:
//   - cmd/                 : Cobra command definitions and configuration layering
//   - internal/config      : YAML configuration and defaults
//   - internal/tabular     : CSV, TSV, XLSX, GCS and BigQuery readers
//   - internal/filter      : CEL row predicates
//   - internal/reconcile   : Identifier extraction and the set difference
//   - internal/report      : Text, JSON, YAML and table output
//   - pkg/errors           : Typed errors shared by all packages
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/charge-reconciler/cmd"
)

func main() {
	cmd.Execute()
}
