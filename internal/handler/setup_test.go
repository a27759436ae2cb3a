package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/master-of-jokes/internal/auth"
	"github.com/sakif/master-of-jokes/internal/handler"
	"github.com/sakif/master-of-jokes/internal/metrics"
	"github.com/sakif/master-of-jokes/internal/model"
	"github.com/sakif/master-of-jokes/internal/repository/sqlite"
	"github.com/sakif/master-of-jokes/internal/service"
)

// testEnv is the real service stack over an in-memory database.
type testEnv struct {
	db    *sqlite.DB
	auth  *service.AuthService
	jokes *service.JokeService
	ah    *handler.AuthHandler
	jh    *handler.JokeHandler

	tokens *auth.TokenService
}

func newTestEnv(t *testing.T, github handler.OAuthProvider) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Minute)
	require.NoError(t, err)

	ledger := service.NewLedger(db, db, metrics.New(), logger)
	authSvc := service.NewAuthService(db, tokens, auth.NewPasswordServiceWithCost(4), logger)
	jokeSvc := service.NewJokeService(db, ledger, logger)

	return &testEnv{
		db:    db,
		auth:  authSvc,
		jokes: jokeSvc,
		ah:    handler.NewAuthHandler(authSvc, github, logger),
		jh:    handler.NewJokeHandler(jokeSvc, authSvc, logger),

		tokens: tokens,
	}
}

func (e *testEnv) user(t *testing.T, nickname string) *model.User {
	t.Helper()
	u, err := e.auth.Register(context.Background(), nickname+"@example.com", nickname, "pw-"+nickname)
	require.NoError(t, err)
	return u
}

func (e *testEnv) joke(t *testing.T, author *model.User, title string) *model.Joke {
	t.Helper()
	j, err := e.jokes.Create(context.Background(), author, title, "body")
	require.NoError(t, err)
	return j
}

// request builds a request as RequireAuth and chi would hand it over:
// user ID in the context (unless as is nil) and the given URL params set.
func request(method, target string, body any, as *model.User, params map[string]string) *http.Request {
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	r := httptest.NewRequest(method, target, rdr)

	ctx := r.Context()
	if as != nil {
		ctx = auth.WithUserID(ctx, as.ID)
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return r.WithContext(ctx)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

func (e *testEnv) balance(t *testing.T, u *model.User) int {
	t.Helper()
	fresh, err := e.db.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	return fresh.JokeBalance
}
