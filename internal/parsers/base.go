// Package parsers loads invoice CSV exports into typed tables.
//
// The loader doubles as the field normalizer: header names are canonicalized
// (lowercase, underscores for spaces), string fields are trimmed, and numeric
// fields that fail to parse become missing-value markers instead of row
// errors. Downstream cleaning rules are expected to tolerate those markers.
package parsers

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"invoice-insights-service/pkg/errors"
	"invoice-insights-service/pkg/logger"
)

// ParseConfig holds low-level CSV reading options
type ParseConfig struct {
	HasHeader        bool
	Delimiter        rune
	Comment          rune
	TrimLeadingSpace bool
	SkipEmptyRows    bool
	ValidateEncoding bool
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		HasHeader:        true,
		Delimiter:        ',',
		Comment:          0,
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		ValidateEncoding: true,
	}
}

// BaseParser provides common CSV reading functionality
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a new BaseParser with the given configuration
func NewBaseParser(config *ParseConfig) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}

	return &BaseParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("base_parser"),
	}
}

// ParseContext holds state during a parsing operation
type ParseContext struct {
	LineNumber int
	RawHeaders []string       // header row exactly as read from the file
	FieldMap   map[string]int // canonical field name -> column index
	ctx        context.Context
}

// NewParseContext creates a new parsing context
func NewParseContext(ctx context.Context) *ParseContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ParseContext{
		RawHeaders: make([]string, 0),
		FieldMap:   make(map[string]int),
		ctx:        ctx,
	}
}

// IsCancelled checks if the parsing context has been cancelled
func (pc *ParseContext) IsCancelled() bool {
	select {
	case <-pc.ctx.Done():
		return true
	default:
		return false
	}
}

// FieldIndex returns the column index of a canonical field, or -1
func (pc *ParseContext) FieldIndex(field string) int {
	if index, exists := pc.FieldMap[field]; exists {
		return index
	}
	return -1
}

// OpenFile opens a CSV file and returns a configured csv.Reader
func (bp *BaseParser) OpenFile(filePath string) (*os.File, *csv.Reader, error) {
	bp.logger.WithField("file_path", filePath).Debug("Opening CSV file")

	file, err := os.Open(filePath)
	if err != nil {
		bp.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open CSV file")

		if os.IsNotExist(err) {
			return nil, nil, errors.FileError(errors.CodeFileNotFound, filePath, err)
		}
		if os.IsPermission(err) {
			return nil, nil, errors.FileError(errors.CodeFilePermission, filePath, err)
		}
		return nil, nil, errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}

	if bp.config.ValidateEncoding {
		if err := bp.validateEncoding(file, filePath); err != nil {
			file.Close()
			return nil, nil, err
		}
		if _, err := file.Seek(0, 0); err != nil {
			file.Close()
			return nil, nil, errors.FileError(errors.CodeFileCorrupted, filePath, err)
		}
	}

	reader := csv.NewReader(file)
	reader.Comma = bp.config.Delimiter
	reader.Comment = bp.config.Comment
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1

	return file, reader, nil
}

// validateEncoding checks that the first lines of the file are valid UTF-8
func (bp *BaseParser) validateEncoding(file *os.File, filePath string) error {
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() && lineNum < 100 {
		lineNum++
		if !utf8.Valid(scanner.Bytes()) {
			return errors.ParseError(
				errors.CodeEncodingError,
				filePath,
				lineNum,
				"encoding",
				"",
				fmt.Errorf("invalid UTF-8 encoding detected"),
			).WithSuggestion("Save the file in UTF-8 encoding and try again")
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}

	return nil
}

// ReadHeaders reads the header row, canonicalizes every name through the
// parser config, and validates that required fields are present. A missing
// required column is a schema error: the caller refuses to proceed.
func (bp *BaseParser) ReadHeaders(reader *csv.Reader, parseCtx *ParseContext, config *InvoiceParserConfig, filePath string) error {
	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return errors.ValidationError(
				errors.CodeMissingField,
				"file_content",
				"empty",
				nil,
			).WithSuggestion("Ensure the file contains header and data rows")
		}

		return errors.ParseError(
			errors.CodeInvalidFormat,
			filePath,
			1,
			"headers",
			"",
			err,
		).WithSuggestion("Check the file format and ensure it's a valid CSV")
	}

	parseCtx.LineNumber++
	parseCtx.RawHeaders = make([]string, len(headers))
	parseCtx.FieldMap = make(map[string]int)

	for i, header := range headers {
		parseCtx.RawHeaders[i] = strings.TrimSpace(header)
		field := config.ResolveField(CanonicalizeHeader(header))
		if _, exists := parseCtx.FieldMap[field]; !exists {
			parseCtx.FieldMap[field] = i
		}
	}

	bp.logger.WithFields(logger.Fields{
		"headers":   parseCtx.RawHeaders,
		"field_map": parseCtx.FieldMap,
	}).Debug("Read and canonicalized headers")

	var missing []string
	for _, field := range config.RequiredFields() {
		if parseCtx.FieldIndex(field) == -1 {
			missing = append(missing, field)
		}
	}

	if len(missing) > 0 {
		bp.logger.WithFields(logger.Fields{
			"missing_columns":   missing,
			"available_headers": parseCtx.RawHeaders,
		}).Error("Required columns are missing")

		return errors.ParseError(
			errors.CodeMissingColumn,
			filePath,
			parseCtx.LineNumber,
			strings.Join(missing, ", "),
			"",
			nil,
		).WithSuggestion(fmt.Sprintf("Ensure the CSV file contains these columns: %s", strings.Join(missing, ", ")))
	}

	return nil
}

// ReadRecord reads the next data record, skipping empty rows
func (bp *BaseParser) ReadRecord(reader *csv.Reader, parseCtx *ParseContext) ([]string, error) {
	for {
		if parseCtx.IsCancelled() {
			return nil, errors.InternalError(
				errors.CodeUnexpectedError,
				"csv_parsing",
				fmt.Errorf("parsing cancelled"),
			)
		}

		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				return nil, err
			}
			bp.logger.WithError(err).WithField("line_number", parseCtx.LineNumber+1).Warn("Failed to read CSV record")
			return nil, err
		}

		parseCtx.LineNumber++

		if bp.config.SkipEmptyRows && isEmptyRecord(record) {
			bp.logger.WithField("line_number", parseCtx.LineNumber).Debug("Skipping empty record")
			continue
		}

		return record, nil
	}
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// FieldValue returns the trimmed value of a canonical field in a record, or
// an empty string when the column is absent or the record is short.
func (pc *ParseContext) FieldValue(record []string, field string) string {
	index := pc.FieldIndex(field)
	if index == -1 || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

// ParseStats holds statistics about a parsing operation
type ParseStats struct {
	TotalLines  int
	RecordsRead int
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Read %d lines, %d records", ps.TotalLines, ps.RecordsRead)
}
