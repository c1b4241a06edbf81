package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vanityline/vanityline/pkg/crypto"
	"github.com/vanityline/vanityline/pkg/logger"
	pkgmodels "github.com/vanityline/vanityline/pkg/models"
)

type TokenIssuer interface {
	GenerateToken(userID, email, role string) (string, error)
	ExpiresIn() time.Duration
}

type AuthService struct {
	users  AccountRepository
	admins AccountRepository
	tokens TokenIssuer
	logger logger.Logger
	now    func() time.Time
}

func NewAuthService(users, admins AccountRepository, tokens TokenIssuer, log logger.Logger) *AuthService {
	return &AuthService{
		users:  users,
		admins: admins,
		tokens: tokens,
		logger: log,
		now:    time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, req pkgmodels.RegisterRequest) (*pkgmodels.TokenResponse, error) {
	email := pkgmodels.NormalizeEmail(req.Email)

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, pkgmodels.ErrEmailTaken
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &pkgmodels.User{
		Email:        email,
		Password:     hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         pkgmodels.RoleUser,
		PhoneNumbers: []primitive.ObjectID{},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, pkgmodels.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.WithContext(ctx).Info("User registered", logger.F("user_id", user.ID.Hex()))
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, req pkgmodels.LoginRequest) (*pkgmodels.TokenResponse, error) {
	return s.login(ctx, s.users, req)
}

func (s *AuthService) AdminLogin(ctx context.Context, req pkgmodels.LoginRequest) (*pkgmodels.TokenResponse, error) {
	return s.login(ctx, s.admins, req)
}

func (s *AuthService) login(ctx context.Context, repo AccountRepository, req pkgmodels.LoginRequest) (*pkgmodels.TokenResponse, error) {
	user, err := repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if user == nil || !crypto.CheckPassword(req.Password, user.Password) {
		return nil, pkgmodels.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, pkgmodels.ErrAccountDisabled
	}

	if err := repo.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.WithContext(ctx).Warn("Failed to record last login", logger.F("user_id", user.ID.Hex()), logger.Err(err))
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *pkgmodels.User) (*pkgmodels.TokenResponse, error) {
	token, err := s.tokens.GenerateToken(user.ID.Hex(), user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &pkgmodels.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int(s.tokens.ExpiresIn().Seconds()),
		TokenType:   "Bearer",
		User:        user,
	}, nil
}

// Me loads the profile of the authenticated account from the collection matching its role.
func (s *AuthService) Me(ctx context.Context, requester Requester) (*pkgmodels.User, error) {
	repo := s.users
	if requester.Admin {
		repo = s.admins
	}
	user, err := repo.FindByID(ctx, requester.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if user == nil {
		return nil, pkgmodels.ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) ListUsers(ctx context.Context, page, limit int) ([]*pkgmodels.User, int64, error) {
	return s.users.List(ctx, page, limit)
}

// EnsureAdmin creates the bootstrap admin when the admins collection has none.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	existing, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check admin: %w", err)
	}
	if existing != nil {
		return nil
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}
	now := s.now()
	admin := &pkgmodels.User{
		Email:     pkgmodels.NormalizeEmail(email),
		Password:  hash,
		FirstName: "Admin",
		Role:      pkgmodels.RoleAdmin,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.admins.Create(ctx, admin); err != nil && !errors.Is(err, pkgmodels.ErrEmailTaken) {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	s.logger.Info("Bootstrap admin created", logger.F("email", admin.Email))
	return nil
}
