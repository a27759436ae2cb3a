package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/master-of-jokes/internal/apperror"
	"github.com/sakif/master-of-jokes/internal/model"
	"github.com/sakif/master-of-jokes/internal/repository"
)

const (
	MaxTitleWords = 10
	MaxBodyLength = 10000 // characters
)

// JokeService validates joke input and drives the Ledger.
//
// Handlers call JokeService only; balance changes happen inside the Ledger
// calls it makes, never here.
type JokeService struct {
	jokes  repository.JokeRepository
	ledger *Ledger
	logger *slog.Logger
}

func NewJokeService(jokes repository.JokeRepository, ledger *Ledger, logger *slog.Logger) *JokeService {
	return &JokeService{
		jokes:  jokes,
		ledger: ledger,
		logger: logger,
	}
}

// Create validates and posts a new joke by author, crediting author's balance.
func (s *JokeService) Create(ctx context.Context, author *model.User, title, body string) (*model.Joke, error) {
	title, body = strings.TrimSpace(title), strings.TrimSpace(body)

	if err := s.validate(ctx, author.ID, title, body, 0); err != nil {
		return nil, err
	}

	joke := &model.Joke{Title: title, Body: body}
	if err := s.ledger.RecordAuthored(ctx, author, joke); err != nil {
		return nil, err
	}
	return joke, nil
}

// View returns a joke to viewer, charging the first view of someone else's joke.
func (s *JokeService) View(ctx context.Context, viewer *model.User, id int64) (*model.Joke, bool, error) {
	return s.ledger.RecordView(ctx, viewer, id)
}

// Update replaces title and body. Only the author may edit; the author is
// never changed.
func (s *JokeService) Update(ctx context.Context, editor *model.User, id int64, title, body string) (*model.Joke, error) {
	joke, err := s.jokes.GetJokeByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if joke.AuthorID != editor.ID {
		return nil, apperror.Forbidden("You can only edit your own jokes.")
	}

	title, body = strings.TrimSpace(title), strings.TrimSpace(body)
	if err := s.validate(ctx, editor.ID, title, body, id); err != nil {
		return nil, err
	}

	joke.Title = title
	joke.Body = body
	if err := s.jokes.UpdateJoke(ctx, joke); err != nil {
		return nil, fmt.Errorf("updating joke %d: %w", id, err)
	}

	s.logger.Info("joke updated", slog.Int64("joke", id), slog.String("author", editor.ID))
	return joke, nil
}

// Delete removes author's joke and debits author's balance.
func (s *JokeService) Delete(ctx context.Context, author *model.User, id int64) error {
	return s.ledger.RecordDeleted(ctx, author, id)
}

// Rate adds a 1..5 score to the joke.
func (s *JokeService) Rate(ctx context.Context, id int64, value int) (*model.Joke, error) {
	return s.ledger.RecordRated(ctx, id, value)
}

func (s *JokeService) ListOthers(ctx context.Context, viewerID string, limit, offset int) ([]model.Joke, error) {
	return s.ledger.ListOthers(ctx, viewerID, limit, offset)
}

func (s *JokeService) ListMine(ctx context.Context, viewerID string, limit, offset int) ([]model.Joke, error) {
	return s.ledger.ListMine(ctx, viewerID, limit, offset)
}

// validate checks an already trimmed title and body. excludeID is the joke
// being edited, so it does not collide with its own title; 0 on create.
func (s *JokeService) validate(ctx context.Context, authorID, title, body string, excludeID int64) error {
	if err := ValidateTitle(title); err != nil {
		return err
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return apperror.ValidationFailed("body",
			fmt.Sprintf("Body must be %d characters or fewer.", MaxBodyLength))
	}

	taken, err := s.jokes.TitleTaken(ctx, authorID, title, excludeID)
	if err != nil {
		return fmt.Errorf("checking title: %w", err)
	}
	if taken {
		return apperror.ValidationFailed("title", "This title has already been used.")
	}
	return nil
}

// ValidateTitle enforces the title shape: non-empty and at most MaxTitleWords
// whitespace-separated words.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return apperror.ValidationFailed("title", "Title is required.")
	}
	if len(strings.Fields(title)) > MaxTitleWords {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("Title must be %d words or fewer.", MaxTitleWords))
	}
	return nil
}
