package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/sujet-portal-api/internal/dto"
	"github.com/noah-isme/sujet-portal-api/internal/models"
	"github.com/noah-isme/sujet-portal-api/internal/repository"
)

// AuthService issues access tokens for portal accounts.
type AuthService interface {
	Login(ctx context.Context, payload dto.LoginRequest) (dto.TokenResponse, error)
	Register(ctx context.Context, payload dto.RegisterRequest) (dto.UserResponse, error)
	Me(ctx context.Context, userID uint) (dto.UserResponse, error)
}

type authService struct {
	users     repository.UserRepository
	views     ViewInvalidator
	validator *validator.Validate
	secret    []byte
	ttl       time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuthService constructs the authentication service. views may be nil when
// no view cache is in use.
func NewAuthService(users repository.UserRepository, views ViewInvalidator, validate *validator.Validate, secret string, ttl time.Duration, logger zerolog.Logger) AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &authService{
		users:     users,
		views:     views,
		validator: validate,
		secret:    []byte(secret),
		ttl:       ttl,
		logger:    logger.With().Str("component", "auth_service").Logger(),
		now:       time.Now,
	}
}

// HashPassword hashes a plain password with bcrypt.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *authService) Login(ctx context.Context, payload dto.LoginRequest) (dto.TokenResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TokenResponse{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	user, err := s.users.GetByEmail(ctx, payload.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TokenResponse{}, ErrInvalidCredentials
		}
		return dto.TokenResponse{}, wrapRead("load user", err)
	}

	if !user.Active {
		s.logger.Info().Uint("user_id", user.ID).Msg("login refused for inactive account")
		return dto.TokenResponse{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)); err != nil {
		return dto.TokenResponse{}, ErrInvalidCredentials
	}

	role := user.PrimaryRole()
	if role == "" {
		return dto.TokenResponse{}, fmt.Errorf("%w: account has no role", ErrUnauthorized)
	}

	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(user.ID), 10),
		"email": user.Email,
		"role":  role,
		"iat":   issuedAt.Unix(),
		"exp":   expiresAt.Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return dto.TokenResponse{}, fmt.Errorf("sign token: %w", err)
	}

	return dto.TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        newUserResponse(user),
	}, nil
}

func (s *authService) Register(ctx context.Context, payload dto.RegisterRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return dto.UserResponse{}, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.UserResponse{}, wrapRead("load user", err)
	}

	hashed, err := HashPassword(payload.Password)
	if err != nil {
		return dto.UserResponse{}, err
	}

	user := models.User{
		Email:         email,
		PasswordHash:  hashed,
		FirstName:     strings.TrimSpace(payload.FirstName),
		LastName:      strings.TrimSpace(payload.LastName),
		StudentNumber: strings.TrimSpace(payload.StudentNumber),
		Active:        true,
	}
	if err := s.users.Create(ctx, &user, models.RoleStudent); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, ErrEmailTaken
		}
		return dto.UserResponse{}, wrapWrite("create user", err)
	}

	created, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return dto.UserResponse{}, wrapRead("reload user", err)
	}

	if s.views != nil {
		if err := s.views.InvalidateRanking(ctx); err != nil {
			s.logger.Warn().Err(err).Uint("user_id", created.ID).Msg("failed to invalidate ranking after registration")
		}
	}

	s.logger.Info().Uint("user_id", created.ID).Msg("student account registered")
	return newUserResponse(created), nil
}

func (s *authService) Me(ctx context.Context, userID uint) (dto.UserResponse, error) {
	if err := requireID("user id", userID); err != nil {
		return dto.UserResponse{}, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return dto.UserResponse{}, wrapRead("load user", err)
	}
	return newUserResponse(user), nil
}

func newUserResponse(user models.User) dto.UserResponse {
	roles := make([]string, 0, len(user.Roles))
	for _, role := range user.Roles {
		roles = append(roles, role.Role.Name)
	}
	return dto.UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		StudentNumber: user.StudentNumber,
		Role:          user.PrimaryRole(),
		Roles:         roles,
	}
}
