// =============================================================================
// Charge Reconciler - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Run without a
// subcommand, the root command performs the reconciliation.
//
// COBRA CLI STRUCTURE:
//   rootCmd (reconciler)          reconcile the configured sources
//   ├── validateCmd (reconciler validate)
//   └── versionCmd (reconciler version)
//
// CONFIGURATION PRECEDENCE:
//   1. Command-line flags (--left, --right, --field, --format, --lenient)
//   2. RECONCILER_* environment variables, after loading .env files
//   3. The YAML configuration file (--config, default config.yaml)
//   4. Built-in defaults
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ginjaninja78/charge-reconciler/internal/config"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// envPrefix namespaces the environment overrides, e.g. RECONCILER_FIELD.
const envPrefix = "RECONCILER"

// v holds the flag and environment layer. The YAML file itself is read by
// config.Load.
var v = viper.New()

// cfgFile holds the path to the configuration file.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Charge Reconciler - Find charges missing from a ledger",
	Long: `Charge Reconciler compares two tabular exports of financial transactions and
lists the charge identifiers that appear in the right source but not in the
left one.

Sources can be local CSV, TSV or XLSX files, Google Cloud Storage objects
(gs://bucket/object) or BigQuery tables (bq://project/dataset/table).

Example Usage:
  reconciler                                   # Compare the configured sources
  reconciler --left ledger.xlsx --right stripe.csv
  reconciler --format json > missing.json      # Machine-readable report
  reconciler validate                          # Check both sources without comparing`,

	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runReconcile(cmd)
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. This is called by main.main(). On failure
// the error is printed to standard error and the process exits with 1.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	cobra.OnInitialize(initConfig)

	// ==========================================================================
	// PERSISTENT FLAGS
	// ==========================================================================

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		config.DefaultConfigFile,
		"Path to the configuration file (optional when the default is absent)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging on standard error",
	)

	// ==========================================================================
	// SOURCE FLAGS
	// ==========================================================================
	// Shared by the root command and validate.

	addSourceFlags(rootCmd)

	rootCmd.Flags().String("format", "", "Report format: text, json, yaml or table (default text)")
	mustBind("format", rootCmd.Flags().Lookup("format"))

	mustBind("config", rootCmd.PersistentFlags().Lookup("config"))
	mustBind("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig loads .env files and wires environment variables into viper.
func initConfig() {
	// .env.local overrides .env; neither overrides the real environment.
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// =============================================================================
// CONFIGURATION LOADING
// =============================================================================

// loadConfig reads the configuration file and applies environment and flag
// overrides. A missing file is only an error when it was asked for.
func loadConfig() (*config.Config, error) {
	path := v.GetString("config")

	cfg, err := config.Load(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !v.IsSet("config"):
		cfg = config.Default()
	default:
		return nil, err
	}

	if v.IsSet("field") {
		cfg.Field = v.GetString("field")
	}
	if v.IsSet("left") {
		cfg.Left.SetPath(v.GetString("left"))
	}
	if v.IsSet("right") {
		cfg.Right.SetPath(v.GetString("right"))
	}
	if v.IsSet("lenient") {
		cfg.LenientRows = v.GetBool("lenient")
	}
	if v.IsSet("format") {
		cfg.Output.Format = strings.ToLower(v.GetString("format"))
	}
	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.format") {
		cfg.Log.Format = v.GetString("log.format")
	}
	if v.GetBool("verbose") {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// addSourceFlags registers the flags that select the sources to compare.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("left", "", "Left source (A): identifiers already accounted for")
	cmd.Flags().String("right", "", "Right source (B): checked for identifiers missing from the left")
	cmd.Flags().String("field", "", "Identifier column shared by both sources (default stripe_charge_id)")
	cmd.Flags().Bool("lenient", false, "Tolerate rows whose width does not match the header")

	// Each command binds its own flags when it runs, so the viper keys follow
	// whichever command was invoked.
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		for _, name := range []string{"left", "right", "field", "lenient"} {
			mustBind(name, cmd.Flags().Lookup(name))
		}
	}
}

// mustBind binds a flag to a viper key.
func mustBind(key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind %s flag: %v", key, err))
	}
}
