package ai

import (
	"context"
	"encoding/json"
	"errors"
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
	evaluationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sujet",
		Subsystem: "ai",
		Name:      "evaluation_duration_seconds",
		Help:      "Latency of automatic evaluation calls.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40},
	}, []string{"model"})

	evaluationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sujet",
		Subsystem: "ai",
		Name:      "evaluation_failures_total",
		Help:      "Automatic evaluations that returned no usable grade.",
	}, []string{"model", "stage"})

	evaluationTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sujet",
		Subsystem: "ai",
		Name:      "evaluation_tokens_total",
		Help:      "Tokens consumed by automatic evaluations.",
	}, []string{"model", "kind"})
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultMaxTokens   = 1024
	defaultTemperature = 0.2

	systemPrompt = "Vous corrigez des exercices d'étudiants en bases de données. " +
		"Notez sur 20 et répondez uniquement par un objet JSON de la forme " +
		`{"score": nombre, "errors": [texte], "correct_answer": texte, "suggestions": [texte]}.`
)

// OpenAIConfig configures the chat completion evaluator. BaseURL targets an
// OpenAI compatible endpoint.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	BaseURL     string
	Logger      zerolog.Logger
}

// OpenAIEvaluator grades submissions with a JSON mode chat completion.
type OpenAIEvaluator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	tracer      trace.Tracer
	logger      zerolog.Logger
}

// NewOpenAIEvaluator validates cfg and fills in defaults.
func NewOpenAIEvaluator(cfg OpenAIConfig) (*OpenAIEvaluator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("ai: openai api key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	evaluator := &OpenAIEvaluator{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		tracer:      otel.Tracer("github.com/noah-isme/sujet-portal-api/pkg/ai"),
		logger:      cfg.Logger.With().Str("component", "openai_evaluator").Logger(),
	}
	if evaluator.model == "" {
		evaluator.model = defaultModel
	}
	if evaluator.maxTokens <= 0 {
		evaluator.maxTokens = defaultMaxTokens
	}
	if evaluator.temperature <= 0 {
		evaluator.temperature = defaultTemperature
	}
	return evaluator, nil
}

// Evaluate asks the model for a grade and feedback on one answer.
func (e *OpenAIEvaluator) Evaluate(ctx context.Context, input EvaluationInput) (EvaluationResult, error) {
	ctx, span := e.tracer.Start(ctx, "ai.evaluate", trace.WithAttributes(
		attribute.String("ai.model", e.model),
		attribute.String("exercise.type", input.ExerciseType),
		attribute.Int("exercise.sql_statements", len(input.SQLStatements)),
	))
	defer span.End()

	started := time.Now()
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	evaluationSeconds.WithLabelValues(e.model).Observe(time.Since(started).Seconds())
	if err != nil {
		return EvaluationResult{}, e.fail(span, "request", fmt.Errorf("ai: chat completion: %w", err))
	}

	usage := TokenUsage{
		Prompt:     resp.Usage.PromptTokens,
		Completion: resp.Usage.CompletionTokens,
		Total:      resp.Usage.TotalTokens,
	}
	evaluationTokens.WithLabelValues(e.model, "prompt").Add(float64(usage.Prompt))
	evaluationTokens.WithLabelValues(e.model, "completion").Add(float64(usage.Completion))

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return EvaluationResult{}, e.fail(span, "empty", ErrEmptyCompletion)
	}

	result, err := parseEvaluationResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return EvaluationResult{}, e.fail(span, "parse", err)
	}
	result.Model = resp.Model
	result.Usage = usage

	e.logger.Debug().
		Float64("score", result.Score).
		Int("total_tokens", usage.Total).
		Dur("latency", time.Since(started)).
		Msg("evaluation completed")

	return result, nil
}

func (e *OpenAIEvaluator) fail(span trace.Span, stage string, err error) error {
	evaluationFailures.WithLabelValues(e.model, stage).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)
	return err
}

func buildUserPrompt(input EvaluationInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Exercice : %s\n", input.AssignmentTitle)
	if input.ExerciseType != "" {
		fmt.Fprintf(&b, "Type : %s\n", input.ExerciseType)
	}
	fmt.Fprintf(&b, "\n## Énoncé\n%s\n", input.Prompt)
	if input.Guidelines != "" {
		fmt.Fprintf(&b, "\n## Correction attendue\n%s\n", input.Guidelines)
	}
	fmt.Fprintf(&b, "\n## Réponse de l'étudiant\n%s\n", input.StudentAnswer)
	if len(input.SQLStatements) > 0 {
		b.WriteString("\n## Requêtes SQL détectées\n")
		for i, statement := range input.SQLStatements {
			fmt.Fprintf(&b, "%d. %s\n", i+1, statement)
		}
	}
	return b.String()
}

// parseEvaluationResponse tolerates prose around the JSON object.
func parseEvaluationResponse(content string) (EvaluationResult, error) {
	start, end := strings.Index(content, "{"), strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return EvaluationResult{}, fmt.Errorf("ai: no json object in completion")
	}

	var result EvaluationResult
	if err := json.Unmarshal([]byte(content[start:end+1]), &result); err != nil {
		return EvaluationResult{}, fmt.Errorf("ai: decode evaluation: %w", err)
	}
	result.Score = clampScore(result.Score)
	return result, nil
}

func clampScore(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > MaxScore:
		return MaxScore
	default:
		return score
	}
}
