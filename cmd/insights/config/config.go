package config

import (
	"os"

	"github.com/spf13/viper"

	"invoice-insights-service/internal/parsers"
	"invoice-insights-service/internal/server"
	"invoice-insights-service/pkg/logger"
)

// CreateParserConfig creates the invoice parser configuration, with column
// names overridable from the config file
func CreateParserConfig() *parsers.InvoiceParserConfig {
	config := parsers.DefaultInvoiceParserConfig()

	if v := viper.GetString("columns.client_name"); v != "" {
		config.ClientColumn = v
	}
	if v := viper.GetString("columns.invoice_reference"); v != "" {
		config.ReferenceColumn = v
	}
	if v := viper.GetString("columns.date_invoiced"); v != "" {
		config.DateInvoicedColumn = v
	}
	if v := viper.GetString("columns.invoice_amount"); v != "" {
		config.InvoiceAmountColumn = v
	}
	if v := viper.GetString("columns.paid_amount"); v != "" {
		config.PaidAmountColumn = v
	}
	if v := viper.GetString("columns.date_paid"); v != "" {
		config.DatePaidColumn = v
	}
	if v := viper.GetString("columns.days_to_pay"); v != "" {
		config.DaysColumn = v
	}

	return config
}

// CreateLoggerConfig creates the logger configuration from flags and config
func CreateLoggerConfig(verbose bool) *logger.Config {
	config := logger.DefaultConfig()

	if verbose {
		config.Level = logger.DebugLevel
	}
	if v := viper.GetString("log.level"); v != "" && !verbose {
		config.Level = logger.Level(v)
	}
	if v := viper.GetString("log.format"); v != "" {
		config.Format = logger.Format(v)
	}
	if v := viper.GetString("log.file"); v != "" {
		config.File = v
	}

	return config
}

// CreateServerConfig creates the HTTP server configuration
func CreateServerConfig(addr string) *server.Config {
	config := server.DefaultConfig()

	if addr != "" {
		config.Addr = addr
	}
	if v := viper.GetDuration("server.read_timeout"); v > 0 {
		config.ReadTimeout = v
	}
	if v := viper.GetDuration("server.write_timeout"); v > 0 {
		config.WriteTimeout = v
	}
	if v := viper.GetDuration("server.shutdown_timeout"); v > 0 {
		config.ShutdownTimeout = v
	}

	return config
}

// CreateInsightConfig creates the insight generator configuration. The API
// key comes from OPENAI_API_KEY; an empty key disables the insight endpoint.
func CreateInsightConfig() *server.InsightConfig {
	config := server.DefaultInsightConfig()

	config.APIKey = os.Getenv("OPENAI_API_KEY")
	if v := viper.GetString("insight.model"); v != "" {
		config.Model = v
	}
	if v := viper.GetInt("insight.sample_size"); v > 0 {
		config.SampleSize = v
	}
	if v := viper.GetDuration("insight.timeout"); v > 0 {
		config.Timeout = v
	}

	return config
}
