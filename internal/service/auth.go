package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/iliyamo/cliora-storefront/internal/model"
	"github.com/iliyamo/cliora-storefront/internal/repository"
	"github.com/iliyamo/cliora-storefront/internal/utils"
)

// AuthService registers users, logs them in and exchanges refresh tokens for
// access tokens.
type AuthService struct {
	users      UserStore
	tokens     RefreshTokenStore
	issuer     *utils.TokenIssuer
	bcryptCost int
}

func NewAuthService(users UserStore, tokens RefreshTokenStore, issuer *utils.TokenIssuer, bcryptCost int) *AuthService {
	return &AuthService{users: users, tokens: tokens, issuer: issuer, bcryptCost: bcryptCost}
}

// Session is the result of a successful register or login.  Refresh.Raw
// goes into the HTTP-only cookie and never into a response body.
type Session struct {
	AccessToken string
	Refresh     utils.RefreshToken
	User        model.PublicUser
}

// Register creates a customer account and opens a session for it.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (Session, error) {
	name = strings.TrimSpace(name)
	email = repository.NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return Session{}, validation("Missing name, email, or password")
	}

	if _, err := s.users.UserByEmail(ctx, email); err == nil {
		return Session{}, conflict("Email already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return Session{}, internal("Registration failed", err)
	}

	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return Session{}, internal("Registration failed", err)
	}
	u, err := s.users.CreateUser(ctx, name, email, hash, model.RoleCustomer)
	if errors.Is(err, repository.ErrConflict) {
		return Session{}, conflict("Email already registered")
	}
	if err != nil {
		return Session{}, internal("Registration failed", err)
	}
	sess, err := s.open(ctx, u)
	if err != nil {
		return Session{}, internal("Registration failed", err)
	}
	return sess, nil
}

// Login verifies the password and opens a new session.  Earlier sessions
// stay valid.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, validation("Missing email or password")
	}
	u, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, unauthorized("Invalid credentials")
	}
	if err != nil {
		return Session{}, internal("Login failed", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, unauthorized("Invalid credentials")
	}
	sess, err := s.open(ctx, u)
	if err != nil {
		return Session{}, internal("Login failed", err)
	}
	return sess, nil
}

// Refresh returns a new access token for a live refresh token.  Role and
// email are re-read from storage so role changes apply without a new login.
// The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, raw string) (string, error) {
	if raw == "" {
		return "", unauthorized("Missing refresh token")
	}
	claimed, err := s.issuer.ParseRefresh(raw)
	if err != nil {
		return "", unauthorized("Invalid refresh")
	}
	owner, err := s.tokens.LiveRefresh(ctx, utils.HashRefreshRaw(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return "", unauthorized("Invalid refresh")
	}
	if err != nil {
		return "", internal("Invalid refresh", err)
	}
	if owner != claimed {
		return "", unauthorized("Invalid refresh")
	}
	u, err := s.users.UserByID(ctx, owner)
	if errors.Is(err, repository.ErrNotFound) {
		return "", unauthorized("User not found")
	}
	if err != nil {
		return "", internal("Invalid refresh", err)
	}
	access, err := s.issuer.NewAccessToken(u.ID, u.Role, u.Email)
	if err != nil {
		return "", internal("Invalid refresh", err)
	}
	return access.Token, nil
}

// Logout revokes the refresh token if one is given.  It always succeeds;
// storage failures are only logged.
func (s *AuthService) Logout(ctx context.Context, raw string) {
	if raw == "" {
		return
	}
	if err := s.tokens.RevokeRefresh(ctx, utils.HashRefreshRaw(raw)); err != nil {
		slog.ErrorContext(ctx, "logout: revoke refresh token", "err", err)
	}
}

// Me returns the caller's public profile, or nil if the account is gone.
func (s *AuthService) Me(ctx context.Context, userID uint64) (*model.PublicUser, error) {
	u, err := s.users.UserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, internal("Failed to load profile", err)
	}
	pu := u.Public()
	return &pu, nil
}

// open issues an access and a refresh token and persists the refresh
// token's hash.
func (s *AuthService) open(ctx context.Context, u model.User) (Session, error) {
	access, err := s.issuer.NewAccessToken(u.ID, u.Role, u.Email)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.issuer.NewRefreshToken(u.ID)
	if err != nil {
		return Session{}, err
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, err
	}
	return Session{AccessToken: access.Token, Refresh: refresh, User: u.Public()}, nil
}
