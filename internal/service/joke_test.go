package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/master-of-jokes/internal/apperror"
)

func TestValidateTitle(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		wantErr bool
	}{
		{"one word", "Pun", false},
		{"exactly ten words", "one two three four five six seven eight nine ten", false},
		{"ten words odd spacing", "one  two\tthree four five six seven eight nine   ten", false},
		{"eleven words", "one two three four five six seven eight nine ten eleven", true},
		{"empty", "", true},
		{"whitespace only", "   \t ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTitle(tt.title)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJokeCreate_TrimsAndCredits(t *testing.T) {
	s := newTestServices(t)
	a := s.newUser(t, "a")

	joke, err := s.jokes.Create(context.Background(), a, "  Why did the chicken  ", "  because  ")
	require.NoError(t, err)

	assert.NotZero(t, joke.ID)
	assert.Equal(t, "Why did the chicken", joke.Title)
	assert.Equal(t, "because", joke.Body)
	assert.Equal(t, a.ID, joke.AuthorID)
	assert.Equal(t, 1, a.JokeBalance)
	assert.Equal(t, 0, s.reload(t, a).ViewedJokes.Len(), "authoring never marks a joke viewed")
}

func TestJokeCreate_RejectsElevenWordsWithoutMutation(t *testing.T) {
	s := newTestServices(t)
	a := s.newUser(t, "a")

	_, err := s.jokes.Create(context.Background(), a,
		"one two three four five six seven eight nine ten eleven", "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, 0, a.JokeBalance)
	assert.Equal(t, 0, s.reload(t, a).JokeBalance)
}

func TestJokeCreate_DuplicateTitlePerAuthor(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	a, b := s.newUser(t, "a"), s.newUser(t, "b")
	s.post(t, a, "same")

	_, err := s.jokes.Create(ctx, a, "same", "again")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "title", appErr.Field)
	assert.Equal(t, "This title has already been used.", appErr.Message)
	assert.Equal(t, 1, s.reload(t, a).JokeBalance)

	// another author may reuse it
	_, err = s.jokes.Create(ctx, b, "same", "")
	assert.NoError(t, err)
}

func TestJokeCreate_BodyTooLong(t *testing.T) {
	s := newTestServices(t)
	a := s.newUser(t, "a")

	_, err := s.jokes.Create(context.Background(), a, "long", strings.Repeat("ha", MaxBodyLength))
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestJokeUpdate(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	a, b := s.newUser(t, "a"), s.newUser(t, "b")
	joke := s.post(t, a, "draft")
	s.post(t, a, "taken")

	t.Run("owner edits", func(t *testing.T) {
		got, err := s.jokes.Update(ctx, a, joke.ID, "final", "new body")
		require.NoError(t, err)
		assert.Equal(t, "final", got.Title)
		assert.Equal(t, "new body", got.Body)
		assert.Equal(t, a.ID, got.AuthorID)
	})

	t.Run("keeping own title is fine", func(t *testing.T) {
		_, err := s.jokes.Update(ctx, a, joke.ID, "final", "body again")
		assert.NoError(t, err)
	})

	t.Run("title of another own joke", func(t *testing.T) {
		_, err := s.jokes.Update(ctx, a, joke.ID, "taken", "")
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("someone else", func(t *testing.T) {
		_, err := s.jokes.Update(ctx, b, joke.ID, "hijacked", "")
		assert.ErrorIs(t, err, apperror.ErrForbidden)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := s.jokes.Update(ctx, a, 999, "x", "")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	// balances untouched by edits
	assert.Equal(t, 2, s.reload(t, a).JokeBalance)
}

func TestJokeView_DoesNotModifyJoke(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	a, b := s.newUser(t, "a"), s.newUser(t, "b")
	joke := s.post(t, a, "read only")

	got, _, err := s.jokes.View(ctx, b, joke.ID)
	require.NoError(t, err)

	stored, err := s.store.GetJokeByID(ctx, joke.ID)
	require.NoError(t, err)
	assert.Equal(t, *stored, *got)
	assert.Equal(t, joke.Body, stored.Body)
}
