package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/models"
)

const testSecret = "test-secret"

func TestAuthServiceRegisterAndLogin(t *testing.T) {
	r := newTestRepos(t)
	svc := NewAuthService(r.users, nil, testValidator(), testSecret, time.Hour, testLogger())
	ctx := context.Background()

	registered, err := svc.Register(ctx, dto.RegisterRequest{
		Email:         "  Alice@Example.com ",
		Password:      "motdepasse",
		FirstName:     "Alice",
		LastName:      "Martin",
		StudentNumber: "E2024-01",
	})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", registered.Email)
	require.Equal(t, models.RoleStudent, registered.Role)
	require.Equal(t, []string{models.RoleStudent}, registered.Roles)

	token, err := svc.Login(ctx, dto.LoginRequest{Email: "alice@example.com", Password: "motdepasse"})
	require.NoError(t, err)
	require.Equal(t, "Bearer", token.TokenType)
	require.Equal(t, registered.ID, token.User.ID)

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token.AccessToken, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	require.Equal(t, "student", claims["role"])
	require.Equal(t, "alice@example.com", claims["email"])

	subject, err := claims.GetSubject()
	require.NoError(t, err)
	id, err := ParseID(subject)
	require.NoError(t, err)
	require.Equal(t, registered.ID, id)

	me, err := svc.Me(ctx, registered.ID)
	require.NoError(t, err)
	require.Equal(t, "Alice", me.FirstName)
}

func TestAuthServiceRejectsBadCredentials(t *testing.T) {
	r := newTestRepos(t)
	svc := NewAuthService(r.users, nil, testValidator(), testSecret, time.Hour, testLogger())
	ctx := context.Background()

	r.user(t, "prof@example.com", models.RoleProfessor)
	inactive := models.User{Email: "old@example.com", Active: true}
	inactive.PasswordHash, _ = HashPassword("secret123")
	require.NoError(t, r.users.Create(ctx, &inactive, models.RoleStudent))
	require.NoError(t, r.db.Model(&models.User{}).Where("id = ?", inactive.ID).Update("active", false).Error)

	_, err := svc.Login(ctx, dto.LoginRequest{Email: "prof@example.com", Password: "wrongpass"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, dto.LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, dto.LoginRequest{Email: "old@example.com", Password: "secret123"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, dto.LoginRequest{Email: "not-an-email", Password: "secret123"})
	require.ErrorIs(t, err, ErrInvalidArgument)

	token, err := svc.Login(ctx, dto.LoginRequest{Email: "prof@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.Equal(t, models.RoleProfessor, token.User.Role)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	r := newTestRepos(t)
	views := &recordingInvalidator{}
	svc := NewAuthService(r.users, views, testValidator(), testSecret, time.Hour, testLogger())
	r.user(t, "alice@example.com", models.RoleStudent)

	_, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email:     "ALICE@example.com",
		Password:  "motdepasse",
		FirstName: "Alice",
		LastName:  "Bis",
	})
	require.ErrorIs(t, err, ErrEmailTaken)
	require.Zero(t, views.rankings)

	_, err = svc.Register(context.Background(), dto.RegisterRequest{
		Email:     "bruno@example.com",
		Password:  "motdepasse",
		FirstName: "Bruno",
		LastName:  "Leroy",
	})
	require.NoError(t, err)
	require.Equal(t, 1, views.rankings)
}
