package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"invoice-insights-service/cmd/insights/config"
	"invoice-insights-service/internal/metrics"
	"invoice-insights-service/internal/server"
	"invoice-insights-service/pkg/logger"
)

// Flags for the serve command
var (
	dataFile string
	addr     string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve payment analytics for a cleaned invoice CSV",
	Long: `Serve loads a cleaned invoice CSV into memory and exposes it over HTTP:

  GET  /companies                     sorted company identifiers
  GET  /company/{name}/invoices       invoices in invoice date order
  GET  /company/{name}/metrics        payment statistics and bucket totals
  POST /client/{name}/insight?query=  AI-assisted answer about the company

The insight endpoint needs OPENAI_API_KEY in the environment (a .env file
in the working directory is read if present). Without a key, the other
endpoints work normally and insight requests report the missing key.

Examples:
  insights serve --data invoices_clean.csv
  insights serve --data invoices_clean.csv --addr :9000`,

	PreRunE: validateServeFlags,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&dataFile, "data", "d", "", "path to the cleaned invoice CSV file (required)")
	serveCmd.Flags().StringVarP(&addr, "addr", "a", ":8000", "listen address")

	serveCmd.MarkFlagRequired("data")

	viper.BindPFlag("data", serveCmd.Flags().Lookup("data"))
	viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
}

func validateServeFlags(cmd *cobra.Command, args []string) error {
	dataFile = viper.GetString("data")
	addr = viper.GetString("addr")

	if dataFile == "" {
		return fmt.Errorf("data is required")
	}

	return validateFileExists(dataFile, "invoice data file")
}

func runServe(cmd *cobra.Command, args []string) error {
	handler := NewCLIErrorHandler()
	log := logger.GetGlobalLogger().WithComponent("serve")

	// Optional .env for OPENAI_API_KEY and friends
	if err := godotenv.Load(); err == nil {
		log.Debug("Loaded environment from .env")
	}

	dataset, err := metrics.LoadDataset(dataFile, config.CreateParserConfig())
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	log.WithFields(logger.Fields{
		"invoices":  dataset.Len(),
		"companies": len(dataset.Companies()),
	}).Info("Dataset loaded")

	engine := metrics.NewEngine(dataset)

	var insight server.InsightGenerator
	insightConfig := config.CreateInsightConfig()
	if insightConfig.APIKey != "" {
		insight, err = server.NewChatGPTInsightGenerator(insightConfig, dataset)
		if err != nil {
			os.Exit(handler.HandleError(err))
		}
	} else {
		log.Warn("OPENAI_API_KEY not set, insight endpoint disabled")
	}

	srv, err := server.New(config.CreateServerConfig(addr), engine, insight)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	// Shut down cleanly on SIGINT/SIGTERM
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			os.Exit(handler.HandleError(err))
		}
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("Shutting down")
		if err := srv.Shutdown(context.Background()); err != nil {
			os.Exit(handler.HandleError(err))
		}
	}

	return nil
}
