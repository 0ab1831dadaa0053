package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ledger",
		Subsystem: "ai",
		Name:      "narrative_duration_seconds",
		Help:      "Duration of AI narrative requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "ai",
		Name:      "narrative_failures_total",
		Help:      "Number of AI narrative failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI summarizer.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAISummarizer implements Summarizer against the OpenAI chat completion API.
type OpenAISummarizer struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAISummarizer builds a new summarizer using the provided configuration.
func NewOpenAISummarizer(cfg OpenAIConfig) (*OpenAISummarizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	tracer := otel.Tracer("github.com/noah-isme/latemark-go-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAISummarizer{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Summarize sends the aggregated signals to OpenAI and parses the response.
func (s *OpenAISummarizer) Summarize(parent context.Context, input NarrativeInput) (NarrativeResult, error) {
	ctx, span := s.tracer.Start(parent, "openai.summarize", trace.WithAttributes(
		attribute.String("model", s.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: summarizerSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := s.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	aiDuration.WithLabelValues(s.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		aiFailures.WithLabelValues(s.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return NarrativeResult{}, fmt.Errorf("openai summarize: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		aiFailures.WithLabelValues(s.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return NarrativeResult{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := parseNarrativeResponse(content)
	if err != nil {
		aiFailures.WithLabelValues(s.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return NarrativeResult{}, err
	}

	result.Raw = map[string]interface{}{
		"usage": resp.Usage,
	}

	return result, nil
}

func summarizerSystemPrompt() string {
	return "You are an attendance advisor for a college. Respond with a JSON object containing narrative (two or three senten" +
		"ces for faculty), severity (low, medium, high), and an optional actions array of concrete suggestions. Be factual and concise."
}

func buildUserPrompt(input NarrativeInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Attendance snapshot\n")
	builder.WriteString(fmt.Sprintf("Class size: %d\n", input.ClassSize))
	builder.WriteString(fmt.Sprintf("Marked late today: %d\n", input.LateToday))
	builder.WriteString(fmt.Sprintf("Outstanding fines: %d\n", input.TotalFines))
	builder.WriteString(fmt.Sprintf("High risk students: %d\n", input.HighRiskCount))
	builder.WriteString(fmt.Sprintf("Medium risk students: %d\n", input.MediumRiskCount))
	if input.WorstDay != "" {
		builder.WriteString(fmt.Sprintf("Worst day of week: %s\n", input.WorstDay))
	}
	if len(input.TopStudents) > 0 {
		builder.WriteString("Most frequently late: ")
		builder.WriteString(strings.Join(input.TopStudents, ", "))
		builder.WriteString("\n")
	}
	if input.AdditionalNotes != "" {
		builder.WriteString("\nNotes:\n")
		builder.WriteString(input.AdditionalNotes)
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseNarrativeResponse(content string) (NarrativeResult, error) {
	type payload struct {
		Narrative string   `json:"narrative"`
		Severity  string   `json:"severity"`
		Actions   []string `json:"actions"`
	}

	var data payload
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return NarrativeResult{}, fmt.Errorf("parse narrative json: %w", err)
	}

	severity := strings.ToLower(strings.TrimSpace(data.Severity))
	switch severity {
	case "low", "medium", "high":
	default:
		severity = "low"
	}

	return NarrativeResult{
		Narrative: data.Narrative,
		Severity:  severity,
		Actions:   data.Actions,
	}, nil
}
