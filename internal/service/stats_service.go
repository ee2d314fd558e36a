package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/models"
	"github.com/noah-isme/sujet-portal-api/internal/observability"
	"github.com/noah-isme/sujet-portal-api/internal/repository"
)

// StatsService produces the statistics block of the student dashboard.
type StatsService interface {
	StudentStats(ctx context.Context, studentID uint) (dto.StudentStats, error)
}

// RankEntry is one position of the class ranking.
type RankEntry struct {
	StudentID uint    `json:"student_id"`
	Average   float64 `json:"average"`
}

// StatsOptions tunes caching and time limits.
type StatsOptions struct {
	DashboardTTL time.Duration
	RankingTTL   time.Duration
	Timeout      time.Duration
}

type statsService struct {
	users       repository.UserRepository
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	dashboard   viewCache
	ranking     viewCache
	timeout     time.Duration
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewStatsService builds the statistics aggregator. cache may be nil.
func NewStatsService(users repository.UserRepository, assignments repository.AssignmentRepository, submissions repository.SubmissionRepository, grades repository.GradeRepository, cache *redis.Client, opts StatsOptions, logger zerolog.Logger) StatsService {
	log := logger.With().Str("component", "stats_service").Logger()
	return &statsService{
		users:       users,
		assignments: assignments,
		submissions: submissions,
		grades:      grades,
		dashboard:   viewCache{client: cache, ttl: opts.DashboardTTL, view: ViewDashboard, logger: log},
		ranking:     viewCache{client: cache, ttl: opts.RankingTTL, view: ViewRanking, logger: log},
		timeout:     opts.Timeout,
		logger:      log,
		tracer:      otel.Tracer("github.com/noah-isme/sujet-portal-api/internal/service/stats"),
	}
}

func (s *statsService) StudentStats(ctx context.Context, studentID uint) (dto.StudentStats, error) {
	if err := requireID("student id", studentID); err != nil {
		return dto.StudentStats{}, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "stats.student", trace.WithAttributes(attribute.Int64("student.id", int64(studentID))))
	defer span.End()

	cacheKey := dashboardViewKey(studentID)
	var cached dto.StudentStats
	if s.dashboard.get(ctx, cacheKey, &cached) {
		return cached, nil
	}

	started := time.Now()
	var (
		completed int64
		published int64
		grades    []models.Grade
		ranking   []RankEntry
		fromCache bool
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		completed, err = s.submissions.CountByStudent(groupCtx, studentID)
		return err
	})
	group.Go(func() error {
		var err error
		published, err = s.assignments.CountPublished(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		grades, err = s.grades.ListByStudent(groupCtx, studentID)
		return err
	})
	group.Go(func() error {
		var err error
		ranking, fromCache, err = s.rankingSnapshot(groupCtx)
		return err
	})

	if err := group.Wait(); err != nil {
		span.RecordError(err)
		return dto.StudentStats{}, aggregationError(ctx, "student stats", err)
	}

	rank := rankOf(ranking, studentID)
	if rank == 0 && fromCache {
		// The snapshot predates this student.
		rebuilt, err := s.buildRanking(ctx)
		if err != nil {
			span.RecordError(err)
			return dto.StudentStats{}, aggregationError(ctx, "student stats", err)
		}
		ranking = rebuilt
		rank = rankOf(ranking, studentID)
	}
	if rank == 0 {
		return dto.StudentStats{}, fmt.Errorf("%w: student %d is not ranked", ErrNotFound, studentID)
	}

	values := make([]float64, 0, len(grades))
	for _, grade := range grades {
		values = append(values, grade.Value)
	}

	stats := dto.StudentStats{
		Completed:     completed,
		Pending:       published - completed,
		AverageGrade:  average(values),
		HasGrades:     len(values) > 0,
		Rank:          rank,
		TotalStudents: len(ranking),
		PassRate:      passRate(values),
	}

	observability.StatsDuration().Observe(time.Since(started).Seconds())
	s.dashboard.set(ctx, cacheKey, stats, 0)

	return stats, nil
}

// Ranking returns every student ordered by average grade descending, ties
// broken by ascending id. The sorted list is kept as a snapshot in the cache
// until a grade write invalidates it.
func (s *statsService) Ranking(ctx context.Context) ([]RankEntry, error) {
	snapshot, _, err := s.rankingSnapshot(ctx)
	return snapshot, err
}

func (s *statsService) rankingSnapshot(ctx context.Context) ([]RankEntry, bool, error) {
	var snapshot []RankEntry
	if s.ranking.get(ctx, rankingCacheKey, &snapshot) {
		return snapshot, true, nil
	}
	snapshot, err := s.buildRanking(ctx)
	return snapshot, false, err
}

// buildRanking recomputes the ranking from the database and replaces the
// cached snapshot.
func (s *statsService) buildRanking(ctx context.Context) ([]RankEntry, error) {
	ids, err := s.users.ListStudentIDs(ctx)
	if err != nil {
		return nil, err
	}
	population, err := s.grades.ListStudentsWithGrades(ctx, ids)
	if err != nil {
		return nil, err
	}

	snapshot := RankStudents(population)
	s.ranking.set(ctx, rankingCacheKey, snapshot, 0)
	return snapshot, nil
}

func rankOf(ranking []RankEntry, studentID uint) int {
	for idx, entry := range ranking {
		if entry.StudentID == studentID {
			return idx + 1
		}
	}
	return 0
}

// RankStudents computes the class ranking. Students without grades rank
// with a 0 average.
func RankStudents(population []repository.StudentGrades) []RankEntry {
	entries := make([]RankEntry, 0, len(population))
	for _, student := range population {
		entries = append(entries, RankEntry{StudentID: student.StudentID, Average: average(student.Values)})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Average != entries[j].Average {
			return entries[i].Average > entries[j].Average
		}
		return entries[i].StudentID < entries[j].StudentID
	})

	return entries
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, value := range values {
		total += value
	}
	return total / float64(len(values))
}

func passRate(values []float64) int {
	if len(values) == 0 {
		return 0
	}
	passing := 0
	for _, value := range values {
		if value >= models.PassingGrade {
			passing++
		}
	}
	return int(math.Round(float64(passing) * 100 / float64(len(values))))
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// aggregationError classifies a collaborator failure of a read-only
// aggregate. Only deadline expiry escapes the aggregation kind.
func aggregationError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &OperationError{Op: op, Kind: ErrTimeout, Cause: err}
	}
	return &OperationError{Op: op, Kind: ErrAggregationFailure, Cause: err}
}
