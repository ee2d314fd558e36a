package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/models"
	"github.com/noah-isme/sujet-portal-api/internal/repository"
)

// Lifecycle states of an assignment from one student's point of view.
const (
	LifecycleNotStarted = "not_started"
	LifecycleOpen       = "open"
	LifecycleCompleted  = "completed"
	LifecycleOverdue    = "overdue"
)

// Display statuses shown to students.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusOverdue    = "overdue"
)

// ResolveLifecycle returns the lifecycle state of assignment at now.
func ResolveLifecycle(assignment models.Assignment, submitted bool, now time.Time) string {
	switch {
	case submitted:
		return LifecycleCompleted
	case now.Before(assignment.OpenDate):
		return LifecycleNotStarted
	case now.Before(assignment.Deadline):
		return LifecycleOpen
	default:
		return LifecycleOverdue
	}
}

// DisplayStatus maps a lifecycle state to the status shown to students.
// Overdue work is shown as not started unless reportOverdue is set.
func DisplayStatus(lifecycle string, reportOverdue bool) string {
	switch lifecycle {
	case LifecycleCompleted:
		return StatusCompleted
	case LifecycleOpen:
		return StatusInProgress
	case LifecycleOverdue:
		if reportOverdue {
			return StatusOverdue
		}
		return StatusNotStarted
	default:
		return StatusNotStarted
	}
}

// ExerciseService resolves the assignments visible to a student.
type ExerciseService interface {
	ListExercises(ctx context.Context, studentID uint, limit int) ([]dto.ExerciseView, error)
	GetExercise(ctx context.Context, studentID, assignmentID uint) (dto.ExerciseDetail, error)
}

// ExerciseOptions tunes the resolver.
type ExerciseOptions struct {
	CacheTTL      time.Duration
	Timeout       time.Duration
	ReportOverdue bool
}

type exerciseService struct {
	assignments   repository.AssignmentRepository
	submissions   repository.SubmissionRepository
	grades        repository.GradeRepository
	cache         viewCache
	detailCache   viewCache
	timeout       time.Duration
	reportOverdue bool
	logger        zerolog.Logger
	now           func() time.Time
}

// NewExerciseService builds the exercise status resolver. cache may be nil.
func NewExerciseService(assignments repository.AssignmentRepository, submissions repository.SubmissionRepository, grades repository.GradeRepository, cache *redis.Client, opts ExerciseOptions, logger zerolog.Logger) ExerciseService {
	log := logger.With().Str("component", "exercise_service").Logger()
	return &exerciseService{
		assignments:   assignments,
		submissions:   submissions,
		grades:        grades,
		cache:         viewCache{client: cache, ttl: opts.CacheTTL, view: ViewExercises, logger: log},
		detailCache:   viewCache{client: cache, ttl: opts.CacheTTL, view: ViewAssignment, logger: log},
		timeout:       opts.Timeout,
		reportOverdue: opts.ReportOverdue,
		logger:        log,
		now:           time.Now,
	}
}

func (s *exerciseService) ListExercises(ctx context.Context, studentID uint, limit int) ([]dto.ExerciseView, error) {
	if err := requireID("student id", studentID); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrInvalidArgument)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	cacheKey := exercisesViewKey(studentID)
	var views []dto.ExerciseView
	if !s.cache.get(ctx, cacheKey, &views) {
		var (
			assignments []models.Assignment
			submissions []models.Submission
		)

		group, groupCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			var err error
			assignments, err = s.assignments.ListPublished(groupCtx)
			return err
		})
		group.Go(func() error {
			var err error
			submissions, err = s.submissions.ListByStudent(groupCtx, studentID)
			return err
		})
		if err := group.Wait(); err != nil {
			return nil, aggregationError(ctx, "list exercises", err)
		}

		now := s.now()
		submitted := make(map[uint]struct{}, len(submissions))
		for _, submission := range submissions {
			submitted[submission.AssignmentID] = struct{}{}
		}

		views = make([]dto.ExerciseView, 0, len(assignments))
		for _, assignment := range assignments {
			_, done := submitted[assignment.ID]
			views = append(views, s.buildView(assignment, done, now))
		}

		s.cache.set(ctx, cacheKey, views, s.cacheTTLFor(assignments, now))
	}

	if limit > 0 && len(views) > limit {
		views = views[:limit]
	}
	return views, nil
}

func (s *exerciseService) GetExercise(ctx context.Context, studentID, assignmentID uint) (dto.ExerciseDetail, error) {
	if err := requireID("student id", studentID); err != nil {
		return dto.ExerciseDetail{}, err
	}
	if err := requireID("assignment id", assignmentID); err != nil {
		return dto.ExerciseDetail{}, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	cacheKey := assignmentViewKey(assignmentID, studentID)
	var detail dto.ExerciseDetail
	if s.detailCache.get(ctx, cacheKey, &detail) {
		return detail, nil
	}

	var (
		assignment models.Assignment
		submission *models.Submission
		grades     []models.Grade
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		assignment, err = s.assignments.GetByID(groupCtx, assignmentID)
		return err
	})
	group.Go(func() error {
		found, err := s.submissions.FindByStudentAndAssignment(groupCtx, studentID, assignmentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		submission = &found
		return nil
	})
	group.Go(func() error {
		var err error
		grades, err = s.grades.ListByStudent(groupCtx, studentID)
		return err
	})

	if err := group.Wait(); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExerciseDetail{}, fmt.Errorf("%w: assignment %d", ErrNotFound, assignmentID)
		}
		return dto.ExerciseDetail{}, aggregationError(ctx, "get exercise", err)
	}
	if !assignment.IsPublished() {
		return dto.ExerciseDetail{}, fmt.Errorf("%w: assignment %d", ErrNotFound, assignmentID)
	}

	now := s.now()
	detail = dto.ExerciseDetail{Exercise: s.buildView(assignment, submission != nil, now)}
	if submission != nil {
		summary := dto.NewSubmissionSummary(*submission)
		detail.Submission = &summary
	}
	for _, grade := range grades {
		if grade.AssignmentID == assignmentID {
			value := grade.Value
			detail.Grade = &value
			break
		}
	}

	s.detailCache.set(ctx, cacheKey, detail, s.cacheTTLFor([]models.Assignment{assignment}, now))
	return detail, nil
}

func (s *exerciseService) buildView(assignment models.Assignment, submitted bool, now time.Time) dto.ExerciseView {
	lifecycle := ResolveLifecycle(assignment, submitted, now)

	title := assignment.Title
	if title == "" {
		title = fmt.Sprintf("Exercice #%d", assignment.ID)
	}

	return dto.ExerciseView{
		ID:          assignment.ID,
		Title:       title,
		Subtitle:    assignment.Subtitle,
		Description: assignment.Description,
		Type:        assignment.Type,
		OpenDate:    assignment.OpenDate,
		Deadline:    assignment.Deadline,
		HasFile:     assignment.FileName != "",
		Status:      DisplayStatus(lifecycle, s.reportOverdue),
		Lifecycle:   lifecycle,
	}
}

// cacheTTLFor caps the cache lifetime at the next open date or deadline so
// a cached status never outlives a lifecycle transition.
func (s *exerciseService) cacheTTLFor(assignments []models.Assignment, now time.Time) time.Duration {
	ttl := s.cache.ttl
	for _, assignment := range assignments {
		for _, boundary := range []time.Time{assignment.OpenDate, assignment.Deadline} {
			if until := boundary.Sub(now); until > 0 && (ttl <= 0 || until < ttl) {
				ttl = until
			}
		}
	}
	return ttl
}
