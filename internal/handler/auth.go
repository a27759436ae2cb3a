package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/master-of-jokes/internal/apperror"
	"github.com/sakif/master-of-jokes/internal/auth"
	"github.com/sakif/master-of-jokes/internal/model"
	"github.com/sakif/master-of-jokes/internal/service"
)

const stateCookie = "oauth_state"

// OAuthProvider is the part of *auth.GitHubProvider the handler needs.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthHandler serves registration, login, logout, /api/me and the optional
// GitHub sign-in.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create a password account
//   - HandleLogin          → check credentials, set the JWT cookie
//   - HandleLogout         → clear the JWT cookie
//   - HandleMe             → the logged-in user's profile, balance and viewed set
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → exchange the code, upsert the user, set the cookie
type AuthHandler struct {
	auth   *service.AuthService
	github OAuthProvider // nil when GitHub sign-in is not configured
	logger *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, github OAuthProvider, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		github: github,
		logger: logger,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

// HandleRegister creates an account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"email": "ann@example.com", "nickname": "ann", "password": "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req.Email, req.Nickname, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Login    string `json:"login"` // email if it contains "@", nickname otherwise
	Password string `json:"password"`
}

// HandleLogin checks credentials and sets the JWT cookie.
//
// HTTP: POST /auth/login
// REQUEST BODY: {"login": "ann", "password": "..."}
//
// The token is also returned in the body for clients that send it as a
// Bearer header instead of a cookie.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, r, res.Token)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":  res.User,
		"token": res.Token,
	})
}

// HandleLogout clears the JWT cookie.
//
// HTTP: POST /auth/logout
//
// Tokens are stateless, so the old token stays valid until it expires;
// without the cookie the browser just stops sending it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the current user, including balance and viewed set.
//
// HTTP: GET /api/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.auth)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived HttpOnly cookie and into the
// authorization URL. HandleGitHubCallback only accepts a callback whose
// state matches the cookie.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Upsert the user and issue a JWT cookie
//  4. Redirect to the app home page
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// single-use
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for GitHub user profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	// --- Step 3: Upsert user and issue JWT ---
	res, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, r, res.Token)

	// --- Step 4: Redirect to the app ---
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// setTokenCookie stores the JWT in an HttpOnly cookie that lives as long as
// the token. Secure is set when the request itself came over TLS.
func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.auth.TokenTTL().Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// currentUser loads the user RequireAuth authenticated. The record is read
// fresh on every request and passed explicitly to the services.
func currentUser(r *http.Request, authService *service.AuthService) (*model.User, error) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return nil, apperror.Unauthorized("valid authentication required")
	}

	user, err := authService.GetUserByID(r.Context(), userID)
	if err != nil {
		// A valid token for a user that no longer exists is still a bad login.
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("valid authentication required")
		}
		return nil, err
	}
	return user, nil
}
