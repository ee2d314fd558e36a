package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/models"
	"github.com/noah-isme/sujet-portal-api/internal/repository"
)

func TestStudentRosterServiceListAndSuspend(t *testing.T) {
	r := newTestRepos(t)
	activity := NewActivityService(r.activity, testLogger())
	svc := NewStudentRosterService(repository.NewStudentRosterRepository(r.db), testValidator(), activity, testLogger())
	auth := NewAuthService(r.users, nil, testValidator(), "roster-secret", 0, testLogger())
	ctx := context.Background()

	prof := r.user(t, "prof@example.com", models.RoleProfessor)
	staff := Actor{ID: prof.ID, Role: models.RoleProfessor}
	alice := r.user(t, "alice@example.com", models.RoleStudent)
	r.user(t, "bob@example.com", models.RoleStudent)

	page, err := svc.List(ctx, staff, dto.StudentListRequest{Page: 1, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, int64(2), page.Pagination.TotalItems)
	require.Equal(t, 2, page.Pagination.TotalPages)

	inactive := false
	updated, err := svc.Update(ctx, staff, alice.ID, dto.StudentUpdateRequest{Active: &inactive})
	require.NoError(t, err)
	require.False(t, updated.Active)

	_, err = auth.Login(ctx, dto.LoginRequest{Email: "alice@example.com", Password: "secret123"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	logs, err := activity.List(ctx, dto.ActivityListRequest{Action: "student.deactivated"})
	require.NoError(t, err)
	require.Len(t, logs.Items, 1)

	active := true
	updated, err = svc.Update(ctx, staff, alice.ID, dto.StudentUpdateRequest{Active: &active})
	require.NoError(t, err)
	require.True(t, updated.Active)

	_, err = auth.Login(ctx, dto.LoginRequest{Email: "alice@example.com", Password: "secret123"})
	require.NoError(t, err)
}

func TestStudentRosterServiceGuards(t *testing.T) {
	r := newTestRepos(t)
	svc := NewStudentRosterService(repository.NewStudentRosterRepository(r.db), testValidator(), nil, testLogger())
	ctx := context.Background()

	prof := r.user(t, "prof@example.com", models.RoleProfessor)
	alice := r.user(t, "alice@example.com", models.RoleStudent)
	staff := Actor{ID: prof.ID, Role: models.RoleAdmin}

	_, err := svc.List(ctx, Actor{ID: alice.ID, Role: models.RoleStudent}, dto.StudentListRequest{})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Get(ctx, staff, prof.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Update(ctx, staff, alice.ID, dto.StudentUpdateRequest{})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.List(ctx, staff, dto.StudentListRequest{PageSize: 500})
	require.ErrorIs(t, err, ErrInvalidArgument)

	found, err := svc.Get(ctx, staff, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", found.Email)
}
