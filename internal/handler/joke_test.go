package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jokeJSON struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Body          string  `json:"body"`
	AuthorID      string  `json:"authorId"`
	Rating        int     `json:"rating"`
	TimesRated    int     `json:"timesRated"`
	AverageRating float64 `json:"averageRating"`
}

type viewJSON struct {
	Joke        jokeJSON `json:"joke"`
	Charged     bool     `json:"charged"`
	JokeBalance int      `json:"jokeBalance"`
}

type listJSON struct {
	Jokes []jokeJSON `json:"jokes"`
}

func id(n int64) map[string]string {
	return map[string]string{"id": strconv.FormatInt(n, 10)}
}

func TestHandleCreate(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.user(t, "a")

	t.Run("created", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.jh.HandleCreate(rr, request(http.MethodPost, "/api/jokes",
			map[string]string{"title": "Why did the chicken", "body": "other side"}, a, nil))

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		got := decode[jokeJSON](t, rr)
		assert.NotZero(t, got.ID)
		assert.Equal(t, "Why did the chicken", got.Title)
		assert.Equal(t, a.ID, got.AuthorID)
		assert.Equal(t, 1, env.balance(t, a))
	})

	t.Run("eleven word title", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.jh.HandleCreate(rr, request(http.MethodPost, "/api/jokes",
			map[string]string{"title": "a b c d e f g h i j k"}, a, nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "10 words or fewer")
		assert.Equal(t, 1, env.balance(t, a))
	})

	t.Run("anonymous", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.jh.HandleCreate(rr, request(http.MethodPost, "/api/jokes",
			map[string]string{"title": "x"}, nil, nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestHandleView_ChargesOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	a, b := env.user(t, "a"), env.user(t, "b")
	j := env.joke(t, a, "pay to read")

	rr := httptest.NewRecorder()
	env.jh.HandleView(rr, request(http.MethodGet, "/api/jokes/x", nil, b, id(j.ID)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decode[viewJSON](t, rr)
	assert.True(t, first.Charged)
	assert.Equal(t, -1, first.JokeBalance)
	assert.Equal(t, j.ID, first.Joke.ID)

	rr = httptest.NewRecorder()
	env.jh.HandleView(rr, request(http.MethodGet, "/api/jokes/x", nil, b, id(j.ID)))
	second := decode[viewJSON](t, rr)
	assert.False(t, second.Charged)
	assert.Equal(t, -1, second.JokeBalance)

	rr = httptest.NewRecorder()
	env.jh.HandleView(rr, request(http.MethodGet, "/api/jokes/x", nil, a, id(j.ID)))
	own := decode[viewJSON](t, rr)
	assert.False(t, own.Charged)
	assert.Equal(t, 1, own.JokeBalance)
}

func TestHandleView_Errors(t *testing.T) {
	env := newTestEnv(t, nil)
	b := env.user(t, "b")

	rr := httptest.NewRecorder()
	env.jh.HandleView(rr, request(http.MethodGet, "/", nil, b, id(404)))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	env.jh.HandleView(rr, request(http.MethodGet, "/", nil, b, map[string]string{"id": "abc"}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleUpdateAndDelete_AuthorOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	a, b := env.user(t, "a"), env.user(t, "b")
	j := env.joke(t, a, "original")

	rr := httptest.NewRecorder()
	env.jh.HandleUpdate(rr, request(http.MethodPut, "/", map[string]string{"title": "stolen"}, b, id(j.ID)))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	env.jh.HandleDelete(rr, request(http.MethodDelete, "/", nil, b, id(j.ID)))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	env.jh.HandleUpdate(rr, request(http.MethodPut, "/", map[string]string{"title": "edited", "body": "new"}, a, id(j.ID)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "edited", decode[jokeJSON](t, rr).Title)

	rr = httptest.NewRecorder()
	env.jh.HandleDelete(rr, request(http.MethodDelete, "/", nil, a, id(j.ID)))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Equal(t, 0, env.balance(t, a))
}

func TestHandleRate(t *testing.T) {
	env := newTestEnv(t, nil)
	a, b := env.user(t, "a"), env.user(t, "b")
	j := env.joke(t, a, "rate me")

	rr := httptest.NewRecorder()
	env.jh.HandleRate(rr, request(http.MethodPost, "/", map[string]int{"rating": 5}, b, id(j.ID)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decode[jokeJSON](t, rr)
	assert.Equal(t, 5, got.Rating)
	assert.Equal(t, 1, got.TimesRated)
	assert.Equal(t, 5.0, got.AverageRating)

	rr = httptest.NewRecorder()
	env.jh.HandleRate(rr, request(http.MethodPost, "/", map[string]int{"rating": 6}, b, id(j.ID)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Equal(t, 0, env.balance(t, b), "rating is not a view")
}

func TestHandleLists(t *testing.T) {
	env := newTestEnv(t, nil)
	a, b := env.user(t, "a"), env.user(t, "b")
	a1 := env.joke(t, a, "a1")
	b1 := env.joke(t, b, "b1")

	rr := httptest.NewRecorder()
	env.jh.HandleListOthers(rr, request(http.MethodGet, "/api/jokes", nil, b, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	others := decode[listJSON](t, rr)
	require.Len(t, others.Jokes, 1)
	assert.Equal(t, a1.ID, others.Jokes[0].ID)

	rr = httptest.NewRecorder()
	env.jh.HandleListMine(rr, request(http.MethodGet, "/api/jokes/mine", nil, b, nil))
	mine := decode[listJSON](t, rr)
	require.Len(t, mine.Jokes, 1)
	assert.Equal(t, b1.ID, mine.Jokes[0].ID)

	rr = httptest.NewRecorder()
	env.jh.HandleListMine(rr, request(http.MethodGet, "/api/jokes/mine?limit=x", nil, b, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleLists_EmptyIsArray(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.user(t, "a")

	rr := httptest.NewRecorder()
	env.jh.HandleListOthers(rr, request(http.MethodGet, "/api/jokes", nil, a, nil))

	assert.Contains(t, rr.Body.String(), `"jokes":[]`)
}
