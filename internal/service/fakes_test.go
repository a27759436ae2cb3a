package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sakif/master-of-jokes/internal/apperror"
	"github.com/sakif/master-of-jokes/internal/auth"
	"github.com/sakif/master-of-jokes/internal/metrics"
	"github.com/sakif/master-of-jokes/internal/model"
	"github.com/sakif/master-of-jokes/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore implements all three repository interfaces in memory, the same
// way sqlite.DB does, so one value can be handed to every service.
// Everything it returns is a copy.

type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	jokes    map[int64]*model.Joke
	nextUser int
	nextJoke int64

	// chargeErrs are returned, in order, by the next ChargeView calls.
	chargeErrs  []error
	chargeCalls int
}

var (
	_ repository.UserRepository   = (*fakeStore)(nil)
	_ repository.JokeRepository   = (*fakeStore)(nil)
	_ repository.LedgerRepository = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[string]*model.User),
		jokes: make(map[int64]*model.Joke),
	}
}

func copyUser(u *model.User) *model.User {
	c := *u
	c.ViewedJokes = model.NewJokeSet(u.ViewedJokes.IDs()...)
	return &c
}

// --- UserRepository ---

func (f *fakeStore) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Nickname == user.Nickname || (user.Email != "" && u.Email == user.Email) {
			return apperror.Conflict(fmt.Sprintf("User %s is already registered.", user.Nickname))
		}
	}

	f.nextUser++
	user.ID = "user-" + strconv.Itoa(f.nextUser)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	user.JokeBalance = 0
	user.ViewedJokes = model.NewJokeSet()
	f.users[user.ID] = copyUser(user)
	return nil
}

func (f *fakeStore) Upsert(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	for _, u := range f.users {
		if u.GitHubID != nil && *u.GitHubID == *user.GitHubID {
			u.Email = user.Email
			*user = *copyUser(u)
			f.mu.Unlock()
			return nil
		}
	}
	f.mu.Unlock()
	return f.Create(ctx, user)
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return copyUser(u), nil
}

func (f *fakeStore) find(match func(*model.User) bool, key string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (f *fakeStore) GetByNickname(_ context.Context, nickname string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Nickname == nickname }, nickname)
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Email != "" && u.Email == email }, email)
}

// --- JokeRepository ---

func (f *fakeStore) GetJokeByID(_ context.Context, id int64) (*model.Joke, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jokes[id]
	if !ok {
		return nil, apperror.NotFound("joke", strconv.FormatInt(id, 10))
	}
	c := *j
	return &c, nil
}

func (f *fakeStore) UpdateJoke(_ context.Context, joke *model.Joke) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jokes[joke.ID]
	if !ok {
		return apperror.NotFound("joke", strconv.FormatInt(joke.ID, 10))
	}
	j.Title, j.Body = joke.Title, joke.Body
	return nil
}

func (f *fakeStore) TitleTaken(_ context.Context, authorID, title string, excludeID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jokes {
		if j.AuthorID == authorID && j.Title == title && j.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) list(keep func(*model.Joke) bool, opts repository.ListOptions) []model.Joke {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []model.Joke{}
	for _, j := range f.jokes {
		if keep(j) {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].Created.Equal(out[b].Created) {
			return out[a].Created.After(out[b].Created)
		}
		return out[a].ID > out[b].ID
	})

	if opts.Offset >= len(out) {
		return []model.Joke{}
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out
}

func (f *fakeStore) ListByAuthor(_ context.Context, authorID string, excludeSelf bool, opts repository.ListOptions) ([]model.Joke, error) {
	return f.list(func(j *model.Joke) bool { return (j.AuthorID == authorID) != excludeSelf }, opts), nil
}

func (f *fakeStore) ListAccessible(_ context.Context, userID string, opts repository.ListOptions) ([]model.Joke, error) {
	f.mu.Lock()
	u := f.users[userID]
	var viewed model.JokeSet
	if u != nil {
		viewed = model.NewJokeSet(u.ViewedJokes.IDs()...)
	}
	f.mu.Unlock()

	return f.list(func(j *model.Joke) bool { return j.AuthorID == userID || viewed.Has(j.ID) }, opts), nil
}

// --- LedgerRepository ---

func (f *fakeStore) CreditAuthored(_ context.Context, joke *model.Joke) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	author, ok := f.users[joke.AuthorID]
	if !ok {
		return 0, apperror.NotFound("user", joke.AuthorID)
	}
	for _, j := range f.jokes {
		if j.AuthorID == joke.AuthorID && j.Title == joke.Title {
			return 0, apperror.ValidationFailed("title", "This title has already been used.")
		}
	}

	f.nextJoke++
	joke.ID = f.nextJoke
	joke.Created = time.Now()
	c := *joke
	f.jokes[joke.ID] = &c
	author.JokeBalance++
	return author.JokeBalance, nil
}

func (f *fakeStore) DebitDeleted(_ context.Context, jokeID int64, authorID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jokes[jokeID]
	if !ok || j.AuthorID != authorID {
		return 0, apperror.NotFound("joke", strconv.FormatInt(jokeID, 10))
	}
	delete(f.jokes, jokeID)
	author := f.users[authorID]
	author.JokeBalance--
	return author.JokeBalance, nil
}

func (f *fakeStore) ChargeView(_ context.Context, viewerID string, jokeID int64) (bool, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.chargeCalls++
	if len(f.chargeErrs) > 0 {
		err := f.chargeErrs[0]
		f.chargeErrs = f.chargeErrs[1:]
		if err != nil {
			return false, 0, err
		}
	}

	if _, ok := f.jokes[jokeID]; !ok {
		return false, 0, apperror.NotFound("joke", strconv.FormatInt(jokeID, 10))
	}
	u, ok := f.users[viewerID]
	if !ok {
		return false, 0, apperror.NotFound("user", viewerID)
	}
	if !u.ViewedJokes.Add(jokeID) {
		return false, u.JokeBalance, nil
	}
	u.JokeBalance--
	return true, u.JokeBalance, nil
}

func (f *fakeStore) AddRating(_ context.Context, jokeID int64, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jokes[jokeID]
	if !ok {
		return apperror.NotFound("joke", strconv.FormatInt(jokeID, 10))
	}
	j.Rating += value
	j.TimesRated++
	return nil
}

// =========================================================================
// TEST HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServices struct {
	store  *fakeStore
	ledger *Ledger
	jokes  *JokeService
	auth   *AuthService
	tokens *auth.TokenService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()

	store := newFakeStore()
	logger := discardLogger()
	ledger := NewLedger(store, store, metrics.New(), logger)

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	return &testServices{
		store:  store,
		ledger: ledger,
		jokes:  NewJokeService(store, ledger, logger),
		auth:   NewAuthService(store, ts, auth.NewPasswordServiceWithCost(4), logger),
		tokens: ts,
	}
}

// newUser registers nickname directly in the store and returns a fresh copy.
func (s *testServices) newUser(t *testing.T, nickname string) *model.User {
	t.Helper()
	u := &model.User{Nickname: nickname, Email: nickname + "@example.com"}
	if err := s.store.Create(context.Background(), u); err != nil {
		t.Fatalf("creating user %s: %v", nickname, err)
	}
	return u
}

// reload re-reads the stored user, which is what the next request would see.
func (s *testServices) reload(t *testing.T, u *model.User) *model.User {
	t.Helper()
	fresh, err := s.store.GetUserByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("reloading %s: %v", u.ID, err)
	}
	return fresh
}

func (s *testServices) post(t *testing.T, author *model.User, title string) *model.Joke {
	t.Helper()
	j, err := s.jokes.Create(context.Background(), author, title, "body of "+title)
	if err != nil {
		t.Fatalf("Create(%q): %v", title, err)
	}
	return j
}
