package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/models"
	"github.com/noah-isme/sujet-portal-api/internal/repository"
	"github.com/noah-isme/sujet-portal-api/pkg/ai"
)

var sqlStatementPattern = regexp.MustCompile(`(?is)\b(SELECT|INSERT|UPDATE|DELETE)\b.*?;`)

// EvaluationService suggests grades for text submissions.
type EvaluationService interface {
	Evaluate(ctx context.Context, actor Actor, submissionID uint) (dto.EvaluationResponse, error)
}

type evaluationService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	evaluator   ai.Evaluator
	activity    ActivityRecorder
	logger      zerolog.Logger
}

// NewEvaluationService constructs the evaluation service. A nil evaluator
// disables the feature.
func NewEvaluationService(submissions repository.SubmissionRepository, assignments repository.AssignmentRepository, evaluator ai.Evaluator, activity ActivityRecorder, logger zerolog.Logger) EvaluationService {
	return &evaluationService{
		submissions: submissions,
		assignments: assignments,
		evaluator:   evaluator,
		activity:    activity,
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
	}
}

func (s *evaluationService) Evaluate(ctx context.Context, actor Actor, submissionID uint) (dto.EvaluationResponse, error) {
	if s.evaluator == nil {
		return dto.EvaluationResponse{}, ErrEvaluationDisabled
	}
	if !actor.IsStaff() {
		return dto.EvaluationResponse{}, ErrUnauthorized
	}
	if err := requireID("submission id", submissionID); err != nil {
		return dto.EvaluationResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, fmt.Errorf("%w: submission %d", ErrNotFound, submissionID)
		}
		return dto.EvaluationResponse{}, wrapRead("load submission", err)
	}

	if !strings.HasPrefix(submission.MimeType, "text/plain") || !utf8.Valid(submission.Payload) {
		return dto.EvaluationResponse{}, fmt.Errorf("%w: only text submissions can be evaluated", ErrUnsupportedFileType)
	}

	assignment, err := s.assignments.GetByID(ctx, submission.AssignmentID)
	if err != nil {
		return dto.EvaluationResponse{}, wrapRead("load assignment", err)
	}

	answer := string(submission.Payload)
	input := ai.EvaluationInput{
		AssignmentTitle: assignment.Title,
		ExerciseType:    assignment.Type,
		Prompt:          assignment.Description,
		StudentAnswer:   answer,
	}
	if isSQLExercise(assignment.Type, assignment.Description, submission.FileName) {
		input.SQLStatements = extractSQLStatements(answer)
	}

	result, err := s.evaluator.Evaluate(ctx, input)
	if err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("automatic evaluation failed")
		return dto.EvaluationResponse{}, &OperationError{Op: "evaluate submission", Kind: ErrAggregationFailure, Cause: err}
	}

	response := dto.EvaluationResponse{
		SubmissionID:   submissionID,
		SuggestedGrade: math.Round(result.Score*4) / 4,
		Errors:         result.Errors,
		CorrectAnswer:  result.CorrectAnswer,
		Suggestions:    result.Suggestions,
		SQLStatements:  input.SQLStatements,
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    models.ActionSubmissionEvaluated,
		EntityID:  &submission.ID,
		Metadata: map[string]interface{}{
			"suggested_grade": response.SuggestedGrade,
			"assignment_id":   submission.AssignmentID,
			"model":           result.Model,
			"total_tokens":    result.Usage.Total,
		},
	})

	return response, nil
}

func isSQLExercise(kind, prompt, fileName string) bool {
	if strings.EqualFold(filepath.Ext(fileName), ".sql") {
		return true
	}
	return strings.Contains(strings.ToUpper(kind), "SQL") || strings.Contains(strings.ToUpper(prompt), "SQL")
}

func extractSQLStatements(text string) []string {
	matches := sqlStatementPattern.FindAllString(text, -1)
	statements := make([]string, 0, len(matches))
	for _, match := range matches {
		statements = append(statements, strings.Join(strings.Fields(match), " "))
	}
	return statements
}
