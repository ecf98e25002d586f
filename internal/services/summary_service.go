// Package services – SummaryService
//
// This file implements SummaryService, which turns a project's comment
// history into one persisted, LLM-derived Summary. Each GenerateSummary call
// performs one comment read, at most one completion request and at most one
// insert, in that order:
//
//  1. load the project's comments (store order is kept for the prompt);
//  2. fail with ErrNoFeedback when there are none;
//  3. build the prompt and call the LLM once, under Timeout;
//  4. map 429/402/other upstream failures to typed errors;
//  5. parse the reply, falling back to a best-effort summary when it does
//     not match the expected JSON shape;
//  6. insert exactly one Summary row.
//
// The service holds no per-project state. Concurrent calls for the same
// project each insert their own row.
//
// Observability: GenerateSummary is OpenTelemetry-instrumented and records
// its outcome in feedback_summaries_total.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/feedback-hub/internal/domain"
	"github.com/tbourn/feedback-hub/internal/llm"
	"github.com/tbourn/feedback-hub/internal/observability"
)

// SummaryRepo defines the repository contract required by SummaryService.
type SummaryRepo interface {
	// ListCommentsByProject returns every comment of the project in store order.
	ListCommentsByProject(ctx context.Context, db *gorm.DB, projectID string) ([]domain.Comment, error)

	// CreateSummary inserts one summary row and returns it.
	CreateSummary(ctx context.Context, db *gorm.DB, projectID, summary, priority string, combined []string) (*domain.Summary, error)

	// ListSummaries returns the project's summaries, newest first.
	ListSummaries(ctx context.Context, db *gorm.DB, projectID string) ([]domain.Summary, error)

	// GetSummary fetches one summary by ID.
	GetSummary(ctx context.Context, db *gorm.DB, id string) (*domain.Summary, error)
}

// SummaryService generates and lists feedback summaries.
type SummaryService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the summary/comment repository used by this service.
	Repo SummaryRepo
	// LLM performs the single completion request per generation.
	LLM llm.Completer
	// Timeout bounds the completion request; zero disables the bound.
	Timeout time.Duration
}

// NewSummaryService constructs a SummaryService.
func NewSummaryService(db *gorm.DB, r SummaryRepo, c llm.Completer, timeout time.Duration) *SummaryService {
	return &SummaryService{DB: db, Repo: r, LLM: c, Timeout: timeout}
}

// GenerateSummary summarizes every comment of projectID and persists the
// result. It returns ErrProjectIDRequired, ErrNoFeedback, ErrRateLimited,
// ErrPaymentRequired, an *UpstreamError, or an error wrapping ErrStorage.
// A reply that cannot be parsed is not an error: a fallback summary is
// stored instead.
func (s *SummaryService) GenerateSummary(ctx context.Context, projectID string) (*domain.Summary, error) {
	ctx, span := observability.Tracer("services/SummaryService").Start(ctx, "GenerateSummary",
		trace.WithAttributes(attribute.String("project.id", projectID)),
	)
	defer span.End()
	lg := zerolog.Ctx(ctx).With().Str("project_id", projectID).Logger()

	sum, outcome, err := s.generate(ctx, &lg, projectID)
	if outcome != "" {
		observability.RecordSummaryOutcome(outcome)
		span.SetAttributes(attribute.String("summary.outcome", outcome))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("summary.id", sum.ID))
	return sum, nil
}

func (s *SummaryService) generate(ctx context.Context, lg *zerolog.Logger, projectID string) (*domain.Summary, string, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, "", ErrProjectIDRequired
	}

	comments, err := s.Repo.ListCommentsByProject(ctx, s.DB, projectID)
	if err != nil {
		return nil, observability.OutcomeStorageError, fmt.Errorf("%w: load comments: %w", ErrStorage, err)
	}
	if len(comments) == 0 {
		return nil, observability.OutcomeNoFeedback, ErrNoFeedback
	}

	reply, err := s.complete(ctx, buildUserPrompt(comments))
	if err != nil {
		mapped := mapUpstreamError(err)
		lg.Warn().Err(err).Int("comments", len(comments)).Msg("summary generation failed upstream")
		return nil, upstreamOutcome(mapped), mapped
	}

	outcome := observability.OutcomeStructured
	parsed, perr := parseSummaryReply(reply)
	if perr != nil {
		lg.Warn().Err(perr).Int("reply_len", len(reply)).Msg("unparseable summary reply, using fallback")
		parsed = fallbackSummary(reply, comments)
		outcome = observability.OutcomeFallback
	}

	sum, err := s.Repo.CreateSummary(ctx, s.DB, projectID, parsed.Summary, parsed.Priority, parsed.CombinedComments)
	if err != nil {
		return nil, observability.OutcomeStorageError, fmt.Errorf("%w: insert summary: %w", ErrStorage, err)
	}
	lg.Info().Str("summary_id", sum.ID).Str("priority", sum.Priority).Str("outcome", outcome).Msg("summary generated")
	return sum, outcome, nil
}

// complete runs the single LLM request under s.Timeout.
func (s *SummaryService) complete(ctx context.Context, user string) (string, error) {
	if s.LLM == nil {
		return "", errors.New("no LLM client configured")
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	return s.LLM.Complete(ctx, summarySystemPrompt, user)
}

// List returns every summary of projectID, newest first.
func (s *SummaryService) List(ctx context.Context, projectID string) ([]domain.Summary, error) {
	out, err := s.Repo.ListSummaries(ctx, s.DB, projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: list summaries: %w", ErrStorage, err)
	}
	return out, nil
}

// Get returns one summary by ID, or repo's not-found error.
func (s *SummaryService) Get(ctx context.Context, id string) (*domain.Summary, error) {
	return s.Repo.GetSummary(ctx, s.DB, id)
}

// mapUpstreamError classifies a completion failure.
func mapUpstreamError(err error) error {
	var se *llm.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case 429:
			return ErrRateLimited
		case 402:
			return ErrPaymentRequired
		}
		return &UpstreamError{StatusCode: se.StatusCode, Err: err}
	}
	return &UpstreamError{Err: err}
}

func upstreamOutcome(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return observability.OutcomeRateLimited
	case errors.Is(err, ErrPaymentRequired):
		return observability.OutcomePaymentRequired
	default:
		return observability.OutcomeUpstreamError
	}
}
