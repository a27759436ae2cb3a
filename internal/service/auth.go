// Package service holds the business rules: registration and login, joke
// validation, and the balance ledger. It never sees HTTP types and reaches
// storage only through the repository interfaces.
//
//	Handler (HTTP) → Service (rules) → Repository (storage)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/master-of-jokes/internal/apperror"
	"github.com/sakif/master-of-jokes/internal/auth"
	"github.com/sakif/master-of-jokes/internal/model"
	"github.com/sakif/master-of-jokes/internal/repository"
)

// AuthService handles registration, login and token checks.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → generate/validate JWTs
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a password account. The email must contain "@" and the
// nickname must not, which is what lets Login tell them apart.
func (s *AuthService) Register(ctx context.Context, email, nickname, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	nickname = strings.TrimSpace(nickname)

	switch {
	case email == "":
		return nil, apperror.ValidationFailed("email", "Email is required.")
	case nickname == "":
		return nil, apperror.ValidationFailed("nickname", "Nickname is required.")
	case password == "":
		return nil, apperror.ValidationFailed("password", "Password is required.")
	case !strings.Contains(email, "@"):
		return nil, apperror.ValidationFailed("email", "Email must contain @.")
	case strings.Contains(nickname, "@"):
		return nil, apperror.ValidationFailed("nickname", "Nickname must not contain @.")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "Password must be 72 bytes or fewer.")
	}

	user := &model.User{
		Email:        email,
		Nickname:     nickname,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("registering %s: %w", nickname, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("nickname", user.Nickname),
	)
	return user, nil
}

// Login checks a password against the account named by login, which is an
// email when it contains "@" and a nickname otherwise.
func (s *AuthService) Login(ctx context.Context, login, password string) (*AuthResult, error) {
	login = strings.TrimSpace(login)

	var (
		user *model.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.users.GetByEmail(ctx, login)
	} else {
		user, err = s.users.GetByNickname(ctx, login)
	}
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("Incorrect email or nickname.")
		}
		return nil, fmt.Errorf("looking up %q: %w", login, err)
	}

	// GitHub-only accounts have no password to match.
	if user.PasswordHash == "" {
		return nil, apperror.Unauthorized("Incorrect password.")
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, apperror.Unauthorized("Incorrect password.")
		}
		return nil, fmt.Errorf("verifying password for %s: %w", user.ID, err)
	}

	return s.issue(user)
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback: upsert the user
// keyed on GitHub ID, then issue a token. A first sign-in whose GitHub login
// is already someone's nickname fails with apperror.ErrConflict.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	githubID := ghUser.ID
	user := &model.User{
		GitHubID: &githubID,
		Nickname: ghUser.Login,
		Email:    ghUser.Email,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("nickname", user.Nickname),
	)
	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID loads the acting user for a request after RequireAuth has
// validated the token.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("valid authentication required")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// TokenTTL is how long issued tokens stay valid.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}
