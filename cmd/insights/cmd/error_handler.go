package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"invoice-insights-service/pkg/errors"
	"invoice-insights-service/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError handles errors and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if insightsErr, ok := errors.AsInsightsError(err); ok {
		return h.handleInsightsError(insightsErr)
	}

	return h.handleGenericError(err)
}

// handleInsightsError prints an InsightsError with its context and suggestion
func (h *CLIErrorHandler) handleInsightsError(err *errors.InsightsError) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleGenericError handles non-InsightsError types
func (h *CLIErrorHandler) handleGenericError(err error) int {
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(os.Stderr, "Error: File not found\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(os.Stderr, "Error: Permission denied\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if !h.verbose {
		fmt.Fprintf(os.Stderr, "\nRun with --verbose for more detail\n")
	}

	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have proper permissions to access the file`

	case errors.CategoryParse:
		return `Parse error help:
• Verify the CSV file format and structure
• Check that the expected invoice columns are present
• Ensure the file uses UTF-8 encoding
• Use 'insights clean --help' for the expected file format`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that all required fields have values
• Verify date formats use YYYY-MM-DD
• Ensure amounts are decimal numbers without currency symbols`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Check required environment variables (OPENAI_API_KEY for insights)
• Try running with default settings first`

	case errors.CategoryCleaning:
		return `Cleaning error help:
• Check data quality in the input file
• Run 'insights clean' with --report to see what was flagged
• Verify the input columns match the expected invoice layout`

	case errors.CategoryNetwork:
		return `Network error help:
• Check your internet connection
• Verify the OpenAI API is reachable from this machine
• Try again later if the service is temporarily unavailable`

	default:
		return `For more help:
• Use 'insights --help' for general help
• Use 'insights clean --help' or 'insights serve --help' for command help`
	}
}

// Error detection helpers

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}
