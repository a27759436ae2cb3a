package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/master-of-jokes/internal/model"
	"github.com/sakif/master-of-jokes/internal/service"
)

// JokeHandler serves /api/jokes. Every route is behind RequireAuth; the
// acting user is loaded per request and handed to JokeService explicitly.
type JokeHandler struct {
	jokes  *service.JokeService
	auth   *service.AuthService
	logger *slog.Logger
}

func NewJokeHandler(jokes *service.JokeService, authService *service.AuthService, logger *slog.Logger) *JokeHandler {
	return &JokeHandler{
		jokes:  jokes,
		auth:   authService,
		logger: logger,
	}
}

type jokeRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type rateRequest struct {
	Rating int `json:"rating"`
}

type listResponse struct {
	Jokes  []model.Joke `json:"jokes"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// jokeResponse is a joke plus its derived average.
type jokeResponse struct {
	*model.Joke
	AverageRating float64 `json:"averageRating"`
}

func newJokeResponse(j *model.Joke) jokeResponse {
	return jokeResponse{Joke: j, AverageRating: j.AverageRating()}
}

// viewResponse is what a viewer gets back from GET /api/jokes/{id}:
// the joke, whether this view cost a point, and the balance afterwards.
type viewResponse struct {
	Joke        jokeResponse `json:"joke"`
	Charged     bool         `json:"charged"`
	JokeBalance int          `json:"jokeBalance"`
}

// HandleListOthers returns the jokes written by everyone else ("take a joke").
//
// HTTP: GET /api/jokes?limit=20&offset=0
func (h *JokeHandler) HandleListOthers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.jokes.ListOthers)
}

// HandleListMine returns the caller's own jokes plus those already paid for.
//
// HTTP: GET /api/jokes/mine?limit=20&offset=0
func (h *JokeHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.jokes.ListMine)
}

func (h *JokeHandler) list(
	w http.ResponseWriter,
	r *http.Request,
	fetch func(ctx context.Context, viewerID string, limit, offset int) ([]model.Joke, error),
) {
	user, err := currentUser(r, h.auth)
	if err != nil {
		writeError(w, err)
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	jokes, err := fetch(r.Context(), user.ID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if jokes == nil {
		jokes = []model.Joke{}
	}

	writeJSON(w, http.StatusOK, listResponse{Jokes: jokes, Limit: limit, Offset: offset})
}

// HandleCreate posts a joke and credits the author.
//
// HTTP: POST /api/jokes
// REQUEST BODY: {"title": "Why did the chicken", "body": "..."}
func (h *JokeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.auth)
	if err != nil {
		writeError(w, err)
		return
	}

	var req jokeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	joke, err := h.jokes.Create(r.Context(), user, req.Title, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newJokeResponse(joke))
}

// HandleView shows one joke. The first view of someone else's joke costs the
// viewer one point; later views and own jokes are free.
//
// HTTP: GET /api/jokes/{id}
func (h *JokeHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	id, err := parseJokeID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := currentUser(r, h.auth)
	if err != nil {
		writeError(w, err)
		return
	}

	joke, charged, err := h.jokes.View(r.Context(), user, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, viewResponse{
		Joke:        newJokeResponse(joke),
		Charged:     charged,
		JokeBalance: user.JokeBalance,
	})
}

// HandleUpdate edits title and body. Author only.
//
// HTTP: PUT /api/jokes/{id}
// REQUEST BODY: {"title": "...", "body": "..."}
func (h *JokeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseJokeID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := currentUser(r, h.auth)
	if err != nil {
		writeError(w, err)
		return
	}

	var req jokeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	joke, err := h.jokes.Update(r.Context(), user, id, req.Title, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newJokeResponse(joke))
}

// HandleDelete removes a joke and debits the author. Author only.
//
// HTTP: DELETE /api/jokes/{id} → 204 No Content
func (h *JokeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseJokeID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := currentUser(r, h.auth)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.jokes.Delete(r.Context(), user, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRate adds a 1..5 rating.
//
// HTTP: POST /api/jokes/{id}/rating
// REQUEST BODY: {"rating": 5}
func (h *JokeHandler) HandleRate(w http.ResponseWriter, r *http.Request) {
	id, err := parseJokeID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := currentUser(r, h.auth); err != nil {
		writeError(w, err)
		return
	}

	var req rateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	joke, err := h.jokes.Rate(r.Context(), id, req.Rating)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newJokeResponse(joke))
}
