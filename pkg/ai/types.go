package ai

import (
	"context"
	"errors"
)

// MaxScore is the top of the French grading scale.
const MaxScore = 20.0

// ErrEmptyCompletion is returned when the model answered without content.
var ErrEmptyCompletion = errors.New("ai: empty completion")

// EvaluationInput is what the model sees about one submission.
type EvaluationInput struct {
	AssignmentTitle string
	ExerciseType    string
	Prompt          string
	Guidelines      string
	StudentAnswer   string
	SQLStatements   []string
}

// TokenUsage reports what a single evaluation consumed.
type TokenUsage struct {
	Prompt     int `json:"prompt_tokens"`
	Completion int `json:"completion_tokens"`
	Total      int `json:"total_tokens"`
}

// EvaluationResult is the structured feedback; Score is already clamped to
// [0, MaxScore].
type EvaluationResult struct {
	Score         float64    `json:"score"`
	Errors        []string   `json:"errors"`
	CorrectAnswer string     `json:"correct_answer"`
	Suggestions   []string   `json:"suggestions"`
	Model         string     `json:"model,omitempty"`
	Usage         TokenUsage `json:"usage"`
}

// Evaluator grades a submission.
type Evaluator interface {
	Evaluate(ctx context.Context, input EvaluationInput) (EvaluationResult, error)
}
