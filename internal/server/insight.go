package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"invoice-insights-service/internal/metrics"
	"invoice-insights-service/pkg/errors"
	"invoice-insights-service/pkg/logger"
)

// InsightGenerator answers free-form analysis questions about one company's
// invoice history
type InsightGenerator interface {
	Generate(ctx context.Context, companyID, query string) (string, error)
}

// ChatGPTInsightGenerator implements InsightGenerator against the OpenAI
// chat completion API. Each request carries a CSV sample of the company's
// invoices so the model can ground its answer in the actual rows.
type ChatGPTInsightGenerator struct {
	client     *openai.Client
	dataset    *metrics.Dataset
	model      string
	sampleSize int
	timeout    time.Duration
	logger     logger.Logger
}

// InsightConfig holds settings for the ChatGPT insight generator
type InsightConfig struct {
	APIKey     string
	Model      string
	SampleSize int
	Timeout    time.Duration
}

// DefaultInsightConfig returns insight settings with sensible defaults.
// The API key has no default and must come from the environment.
func DefaultInsightConfig() *InsightConfig {
	return &InsightConfig{
		Model:      openai.GPT4oMini,
		SampleSize: 200,
		Timeout:    30 * time.Second,
	}
}

// Validate checks the insight configuration
func (c *InsightConfig) Validate() error {
	if c.APIKey == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "insight.api_key", nil, nil).
			WithSuggestion("set the OPENAI_API_KEY environment variable")
	}
	if c.SampleSize <= 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "insight.sample_size", c.SampleSize, nil)
	}
	if c.Timeout <= 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "insight.timeout", c.Timeout, nil)
	}
	return nil
}

// NewChatGPTInsightGenerator creates an insight generator backed by the
// OpenAI API
func NewChatGPTInsightGenerator(config *InsightConfig, dataset *metrics.Dataset) (*ChatGPTInsightGenerator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &ChatGPTInsightGenerator{
		client:     openai.NewClient(config.APIKey),
		dataset:    dataset,
		model:      config.Model,
		sampleSize: config.SampleSize,
		timeout:    config.Timeout,
		logger:     logger.GetGlobalLogger().WithComponent("insight"),
	}, nil
}

// Generate asks the model the given question about one company's invoices.
// The company must exist in the dataset. The model's answer is returned
// trimmed of surrounding whitespace.
func (g *ChatGPTInsightGenerator) Generate(ctx context.Context, companyID, query string) (string, error) {
	sample, err := g.dataset.SampleCSV(companyID, g.sampleSize)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(`You are a financial analyst. Here is a sample of invoice data for %s:

%s

Question: %s

Answer the question using only the data shown above. Be concise and cite
concrete figures from the data where relevant.`, companyID, sample, query)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	g.logger.WithFields(logger.Fields{
		"company": companyID,
		"model":   g.model,
	}).Debug("Sending insight request")

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.2,
		MaxTokens:   1000,
	})
	if err != nil {
		code := errors.CodeConnectionFailed
		if ctx.Err() == context.DeadlineExceeded {
			code = errors.CodeTimeout
		}
		return "", errors.NetworkError(code, "openai chat completion", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.NetworkError(errors.CodeServiceUnavailable, "openai chat completion", nil)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
