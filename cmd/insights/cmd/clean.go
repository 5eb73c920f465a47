package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"invoice-insights-service/cmd/insights/config"
	"invoice-insights-service/internal/cleaner"
	"invoice-insights-service/internal/parsers"
)

// Flags for the clean command
var (
	inputFile    string
	outputFile   string
	reportFile   string
	reportFormat string
)

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Repair common data quality issues in an invoice CSV",
	Long: `Clean reads a raw invoice CSV export, applies a fixed sequence of repair
rules, and writes the repaired rows to a new file. Every row a rule changes
or flags is recorded in an issue report.

The rules run in order:
  1. invoice reference normalization (uppercase, 2021-001 style)
  2. date parsing across common formats
  3. days-to-pay recomputation from the invoice and paid dates
  4. clipping paid amounts that exceed the invoice amount
  5. filling missing numeric values with zero

Examples:
  # Clean a file and print the issue summary
  insights clean --input invoices.csv --output invoices_clean.csv

  # Also write the full issue report as JSON
  insights clean --input invoices.csv --output clean.csv \
    --report issues.json --report-format json`,

	PreRunE: validateCleanFlags,
	RunE:    runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringVarP(&inputFile, "input", "i", "", "path to the raw invoice CSV file (required)")
	cleanCmd.Flags().StringVarP(&outputFile, "output", "o", "", "path for the cleaned CSV file (required)")
	cleanCmd.Flags().StringVarP(&reportFile, "report", "r", "", "path for the issue report (default: summary on stderr)")
	cleanCmd.Flags().StringVar(&reportFormat, "report-format", "json", "issue report format: json, text")

	cleanCmd.MarkFlagRequired("input")
	cleanCmd.MarkFlagRequired("output")

	viper.BindPFlag("input", cleanCmd.Flags().Lookup("input"))
	viper.BindPFlag("output", cleanCmd.Flags().Lookup("output"))
	viper.BindPFlag("report", cleanCmd.Flags().Lookup("report"))
	viper.BindPFlag("report-format", cleanCmd.Flags().Lookup("report-format"))
}

func validateCleanFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	inputFile = viper.GetString("input")
	outputFile = viper.GetString("output")
	reportFile = viper.GetString("report")
	reportFormat = viper.GetString("report-format")

	if inputFile == "" {
		return fmt.Errorf("input is required")
	}
	if outputFile == "" {
		return fmt.Errorf("output is required")
	}

	if err := validateFileExists(inputFile, "invoice file"); err != nil {
		return err
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[reportFormat] {
		return fmt.Errorf("invalid report format '%s'. Valid formats: json, text", reportFormat)
	}

	// Validate output directories exist if specified
	for _, path := range []string{outputFile, reportFile} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runClean(cmd *cobra.Command, args []string) error {
	handler := NewCLIErrorHandler()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Cleaning invoice data...\n")
		fmt.Fprintf(os.Stderr, "Input file: %s\n", inputFile)
		fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		if reportFile != "" {
			fmt.Fprintf(os.Stderr, "Report file: %s (%s)\n", reportFile, reportFormat)
		}
	}

	parserConfig := config.CreateParserConfig()
	parser, err := parsers.NewInvoiceParser(parserConfig)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	table, stats, err := parser.ParseTable(inputFile)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	pipeline := cleaner.NewPipeline()
	cleaned, report := pipeline.Run(table)

	writer := parsers.NewTableWriter(parserConfig)
	if err := writer.WriteFile(cleaned, outputFile); err != nil {
		os.Exit(handler.HandleError(err))
	}

	if reportFile != "" {
		if err := writeReport(report, reportFile, reportFormat); err != nil {
			os.Exit(handler.HandleError(err))
		}
	}

	fmt.Fprintf(os.Stderr, "Cleaned %d rows (%d lines read).\n", cleaned.Len(), stats.TotalLines)
	fmt.Fprint(os.Stderr, report.Summary())

	return nil
}

func writeReport(report *cleaner.IssueReport, path, format string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	switch format {
	case "json":
		enc := json.NewEncoder(file)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "text":
		_, err := file.WriteString(report.Summary())
		return err
	}

	return fmt.Errorf("unknown report format: %s", format)
}
