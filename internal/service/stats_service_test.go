package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/models"
	"github.com/noah-isme/sujet-portal-api/internal/repository"
)

func newStatsService(r testRepos, opts StatsOptions) StatsService {
	return NewStatsService(r.users, r.assignments, r.submissions, r.grades, nil, opts, testLogger())
}

func TestStudentStatsAggregates(t *testing.T) {
	r := newTestRepos(t)
	now := time.Now().UTC()

	alice := r.user(t, "alice@example.com", models.RoleStudent)
	bob := r.user(t, "bob@example.com", models.RoleStudent)
	carol := r.user(t, "carol@example.com", models.RoleStudent)
	r.user(t, "prof@example.com", models.RoleProfessor)

	a1 := r.assignment(t, "SQL", models.AssignmentStatusPublished, now.Add(-48*time.Hour), now.Add(48*time.Hour))
	a2 := r.assignment(t, "Jointures", models.AssignmentStatusPublished, now.Add(-48*time.Hour), now.Add(72*time.Hour))
	r.assignment(t, "Normalisation", models.AssignmentStatusPublished, now.Add(-48*time.Hour), now.Add(96*time.Hour))
	r.assignment(t, "Brouillon", models.AssignmentStatusDraft, now, now.Add(time.Hour))

	r.submission(t, alice.ID, a1.ID)
	r.submission(t, alice.ID, a2.ID)
	r.grade(t, alice.ID, a1.ID, 12)
	r.grade(t, alice.ID, a2.ID, 8)
	r.grade(t, bob.ID, a1.ID, 15)

	stats, err := newStatsService(r, StatsOptions{}).StudentStats(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Equal(t, dto.StudentStats{
		Completed:     2,
		Pending:       1,
		AverageGrade:  10,
		HasGrades:     true,
		Rank:          2,
		TotalStudents: 3,
		PassRate:      50,
	}, stats)

	carolStats, err := newStatsService(r, StatsOptions{}).StudentStats(context.Background(), carol.ID)
	require.NoError(t, err)
	require.Zero(t, carolStats.AverageGrade)
	require.Zero(t, carolStats.PassRate)
	require.False(t, carolStats.HasGrades)
	require.Equal(t, 3, carolStats.Rank)
	require.Equal(t, carolStats.Completed+carolStats.Pending, int64(3))
}

func TestStudentStatsRejectsInvalidAndUnknownStudents(t *testing.T) {
	r := newTestRepos(t)
	svc := newStatsService(r, StatsOptions{})
	prof := r.user(t, "prof@example.com", models.RoleProfessor)

	_, err := svc.StudentStats(context.Background(), 0)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.StudentStats(context.Background(), prof.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStudentStatsWrapsCollaboratorFailure(t *testing.T) {
	r := newTestRepos(t)
	alice := r.user(t, "alice@example.com", models.RoleStudent)
	require.NoError(t, r.db.Migrator().DropTable(&models.Grade{}))

	_, err := newStatsService(r, StatsOptions{}).StudentStats(context.Background(), alice.ID)
	require.ErrorIs(t, err, ErrAggregationFailure)

	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	require.NotNil(t, opErr.Cause)
}

func TestStudentStatsTimeout(t *testing.T) {
	r := newTestRepos(t)
	alice := r.user(t, "alice@example.com", models.RoleStudent)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := newStatsService(r, StatsOptions{}).StudentStats(ctx, alice.ID)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestStudentStatsCachesDashboardAndRanking(t *testing.T) {
	r := newTestRepos(t)
	mini, client := newTestRedis(t)
	now := time.Now().UTC()

	alice := r.user(t, "alice@example.com", models.RoleStudent)
	bob := r.user(t, "bob@example.com", models.RoleStudent)
	a1 := r.assignment(t, "SQL", models.AssignmentStatusPublished, now.Add(-time.Hour), now.Add(time.Hour))
	r.grade(t, bob.ID, a1.ID, 18)

	svc := NewStatsService(r.users, r.assignments, r.submissions, r.grades, client, StatsOptions{
		DashboardTTL: time.Minute,
		RankingTTL:   time.Minute,
	}, testLogger())
	ctx := context.Background()

	first, err := svc.StudentStats(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 2, first.Rank)
	require.True(t, mini.Exists(dashboardViewKey(alice.ID)))
	require.True(t, mini.Exists(rankingCacheKey))

	r.grade(t, alice.ID, a1.ID, 20)

	cached, err := svc.StudentStats(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, first, cached)

	views := NewViewEventService(client, nil, "", testLogger())
	require.NoError(t, views.InvalidateGrades(ctx, a1.ID, alice.ID))
	require.False(t, mini.Exists(dashboardViewKey(alice.ID)))
	require.False(t, mini.Exists(rankingCacheKey))

	fresh, err := svc.StudentStats(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 1, fresh.Rank)
	require.Equal(t, 20.0, fresh.AverageGrade)
}

func TestRankStudentsBreaksTiesByID(t *testing.T) {
	ranking := RankStudents([]repository.StudentGrades{
		{StudentID: 9, Values: []float64{14}},
		{StudentID: 3, Values: []float64{10, 18}},
		{StudentID: 5},
		{StudentID: 1, Values: []float64{16, 12}},
	})

	require.Equal(t, []RankEntry{
		{StudentID: 1, Average: 14},
		{StudentID: 3, Average: 14},
		{StudentID: 9, Average: 14},
		{StudentID: 5, Average: 0},
	}, ranking)
}

func TestPassRateRounds(t *testing.T) {
	require.Equal(t, 0, passRate(nil))
	require.Equal(t, 67, passRate([]float64{10, 12, 9.5}))
	require.Equal(t, 100, passRate([]float64{10}))
}

func TestStudentStatsRanksStudentRegisteredAfterSnapshot(t *testing.T) {
	r := newTestRepos(t)
	mini, client := newTestRedis(t)
	now := time.Now().UTC()
	ctx := context.Background()

	alice := r.user(t, "alice@example.com", models.RoleStudent)
	a1 := r.assignment(t, "SQL", models.AssignmentStatusPublished, now.Add(-time.Hour), now.Add(time.Hour))
	r.grade(t, alice.ID, a1.ID, 14)

	svc := NewStatsService(r.users, r.assignments, r.submissions, r.grades, client, StatsOptions{
		DashboardTTL: time.Minute,
		RankingTTL:   time.Minute,
	}, testLogger())

	first, err := svc.StudentStats(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 1, first.TotalStudents)
	require.True(t, mini.Exists(rankingCacheKey))

	views := NewViewEventService(client, nil, "", testLogger())
	auth := NewAuthService(r.users, views, testValidator(), testSecret, time.Hour, testLogger())
	newcomer, err := auth.Register(ctx, dto.RegisterRequest{
		Email:     "newcomer@example.com",
		Password:  "secret123",
		FirstName: "Nina",
		LastName:  "Petit",
	})
	require.NoError(t, err)
	require.False(t, mini.Exists(rankingCacheKey))
	require.False(t, mini.Exists(dashboardViewKey(alice.ID)))

	stats, err := svc.StudentStats(ctx, newcomer.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Rank)
	require.Equal(t, 2, stats.TotalStudents)

	refreshed, err := svc.StudentStats(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 1, refreshed.Rank)
	require.Equal(t, 2, refreshed.TotalStudents)
}

func TestStudentStatsRebuildsSnapshotMissingStudent(t *testing.T) {
	r := newTestRepos(t)
	mini, client := newTestRedis(t)
	now := time.Now().UTC()
	ctx := context.Background()

	alice := r.user(t, "alice@example.com", models.RoleStudent)
	a1 := r.assignment(t, "SQL", models.AssignmentStatusPublished, now.Add(-time.Hour), now.Add(time.Hour))
	r.grade(t, alice.ID, a1.ID, 14)

	svc := NewStatsService(r.users, r.assignments, r.submissions, r.grades, client, StatsOptions{
		DashboardTTL: time.Minute,
		RankingTTL:   time.Minute,
	}, testLogger())

	_, err := svc.StudentStats(ctx, alice.ID)
	require.NoError(t, err)
	require.True(t, mini.Exists(rankingCacheKey))

	late := r.user(t, "late@example.com", models.RoleStudent)

	stats, err := svc.StudentStats(ctx, late.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Rank)
	require.Equal(t, 2, stats.TotalStudents)

	ranking, err := svc.(*statsService).Ranking(ctx)
	require.NoError(t, err)
	require.Len(t, ranking, 2)

	prof := r.user(t, "prof@example.com", models.RoleProfessor)
	_, err = svc.StudentStats(ctx, prof.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
