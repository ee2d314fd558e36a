package service

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/models"
	"github.com/noah-isme/sujet-portal-api/internal/repository"
)

// AnalyticsService aggregates class-wide analytics for professors.
type AnalyticsService interface {
	ClassSummary(ctx context.Context) (dto.ClassAnalytics, error)
}

type analyticsService struct {
	users       repository.UserRepository
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	timeout     time.Duration
	logger      zerolog.Logger
}

// NewAnalyticsService constructs the analytics service.
func NewAnalyticsService(users repository.UserRepository, assignments repository.AssignmentRepository, submissions repository.SubmissionRepository, grades repository.GradeRepository, timeout time.Duration, logger zerolog.Logger) AnalyticsService {
	return &analyticsService{
		users:       users,
		assignments: assignments,
		submissions: submissions,
		grades:      grades,
		timeout:     timeout,
		logger:      logger.With().Str("component", "analytics_service").Logger(),
	}
}

func (s *analyticsService) ClassSummary(ctx context.Context) (dto.ClassAnalytics, error) {
	tracer := otel.Tracer("github.com/noah-isme/sujet-portal-api/internal/service/analytics")
	ctx, span := tracer.Start(ctx, "analytics.class_summary")
	defer span.End()

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var (
		summary     repository.GradeSummary
		studentIDs  []uint
		published   int64
		counts      []repository.AssignmentSubmissionCount
		assignments []models.Assignment
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		summary, err = s.grades.Summary(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		studentIDs, err = s.users.ListStudentIDs(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		published, err = s.assignments.CountPublished(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		counts, err = s.submissions.CountByAssignment(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		assignments, _, err = s.assignments.ListWithFilter(groupCtx, repository.AssignmentFilter{})
		return err
	})

	if err := group.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregation_failed")
		return dto.ClassAnalytics{}, aggregationError(ctx, "class analytics", err)
	}

	byAssignment := make(map[uint]int64, len(counts))
	var submissionTotal int64
	for _, count := range counts {
		byAssignment[count.AssignmentID] = count.Total
		submissionTotal += count.Total
	}

	totals := make([]dto.AssignmentSubmissionStat, 0, len(assignments))
	for _, assignment := range assignments {
		totals = append(totals, dto.AssignmentSubmissionStat{
			AssignmentID: assignment.ID,
			Title:        assignment.Title,
			Submissions:  byAssignment[assignment.ID],
		})
	}

	result := dto.ClassAnalytics{
		AverageGrade:     math.Round(summary.Average*100) / 100,
		GradeCount:       summary.Count,
		StudentCount:     len(studentIDs),
		PublishedCount:   published,
		SubmissionCount:  submissionTotal,
		AssignmentTotals: totals,
	}
	if summary.Count > 0 {
		result.SuccessRate = int(math.Round(float64(summary.Passing) * 100 / float64(summary.Count)))
	}

	span.SetAttributes(
		attribute.Int64("analytics.grade_count", summary.Count),
		attribute.Int("analytics.student_count", result.StudentCount),
	)
	return result, nil
}
