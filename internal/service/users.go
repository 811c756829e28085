// Package service holds the request-level operations: credential flow,
// projects and tasks. Each operation loads what it needs, runs the access
// checks and writes through the repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"teamboard/internal/auth"
	"teamboard/internal/models"
	"teamboard/internal/repository"
	"teamboard/pkg/crypto"
	"teamboard/pkg/logger"
)

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expiresAt"`
	User      models.UserSummary `json:"user"`
}

type Users struct {
	store  repository.UserStore
	issuer *auth.Issuer
	now    func() time.Time
}

func NewUsers(store repository.UserStore, issuer *auth.Issuer) *Users {
	return &Users{store: store, issuer: issuer, now: time.Now}
}

func (s *Users) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || email == "" || in.Password == "" {
		return nil, models.Invalid("Name, email and password are required")
	}

	// cek apakah email sudah terdaftar
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, models.ErrEmailTaken
	} else if !errors.Is(err, models.ErrUserNotFound) {
		return nil, err
	}

	// hash password dengan bcrypt
	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, crypto.ErrPasswordTooLong) {
			return nil, models.Invalid("Password is too long")
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u := &models.User{
		ID:           models.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	logger.AuditLogger.Info("User registered", zap.String("userID", u.ID))
	return s.session(u)
}

func (s *Users) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, models.Invalid("Email and password are required")
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			logger.SecurityLogger.Warn("Login for unknown email")
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}
	// bandingkan password dengan hash di database
	if !crypto.CheckPassword(u.PasswordHash, password) {
		logger.SecurityLogger.Warn("Invalid password", zap.String("userID", u.ID))
		return nil, models.ErrInvalidCredentials
	}
	logger.AuditLogger.Info("User logged in", zap.String("userID", u.ID))
	return s.session(u)
}

func (s *Users) session(u *models.User) (*AuthResult, error) {
	token, expiresAt, err := s.issuer.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: u.Summary()}, nil
}

func (s *Users) Me(ctx context.Context, userID string) (*models.UserSummary, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := u.Summary()
	return &summary, nil
}

func (s *Users) List(ctx context.Context) ([]models.UserSummary, error) {
	return s.store.ListUsers(ctx)
}
