package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"invoice-insights-service/pkg/logger"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "insights",
	Short: "Invoice data cleaning and analytics tool",
	Long: `Insights cleans raw invoice CSV exports and serves per-company payment
analytics over HTTP. The clean command repairs common data quality issues
(reference formats, date formats, day counts, overpayments, missing values)
and reports every change it makes. The serve command loads a cleaned CSV
and exposes company listings, invoice views, payment metrics, and an
AI-assisted insight endpoint.

Examples:
  insights clean --input invoices.csv --output invoices_clean.csv
  insights clean --input invoices.csv --output clean.csv --report issues.json
  insights serve --data invoices_clean.csv --addr :8000
  insights version`,
	Version: getVersionString(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	// Read environment variables that match
	viper.SetEnvPrefix("INSIGHTS")
	viper.AutomaticEnv()

	if viper.GetBool("verbose") {
		logger.SetGlobalLogger(mustLogger(logger.DebugConfig()))
	}
}

func mustLogger(config *logger.Config) logger.Logger {
	log, err := logger.NewLogger(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %s\n", err)
		os.Exit(1)
	}
	return log
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
