package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const defaultVoteAttempts = 3

var errVoteContention = errors.New("vote contention: retries exhausted")

// VoteLedger records at most one vote per (voter, target). Concurrent casts
// for the same pair are serialized by the store's unique index: a losing
// writer re-reads and decides again.
type VoteLedger struct {
	votes       repository.VoteRepository
	scope       *AccessScope
	maxAttempts int
}

func NewVoteLedger(votes repository.VoteRepository, scope *AccessScope, maxAttempts int) *VoteLedger {
	if maxAttempts <= 0 {
		maxAttempts = defaultVoteAttempts
	}
	return &VoteLedger{votes: votes, scope: scope, maxAttempts: maxAttempts}
}

// Cast records voterID's vote on target. A repeated vote in the same
// direction is a conflict; an opposite vote flips the stored row.
func (l *VoteLedger) Cast(ctx context.Context, voterID uint, target models.VoteTarget, isUpvote bool) (vote *models.Vote, err error) {
	ctx, span := observability.StartSpan(ctx, "vote_ledger", "cast",
		attribute.String("vote.target", target.String()),
		attribute.Bool("vote.up", isUpvote),
	)
	defer func() { observability.EndSpan(span, err) }()

	if voterID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	ref, err := l.scope.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	if err := l.scope.RequireRead(ctx, voterID, ref); err != nil {
		return nil, err
	}
	if ref.AuthorID == voterID {
		return nil, models.NewUnauthorizedError(fmt.Sprintf("You cannot vote on your own %s", target.Kind))
	}

	kind := string(target.Kind)
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		if attempt > 1 {
			observability.VoteRetries.WithLabelValues(kind).Inc()
			middleware.Logger.DebugContext(ctx, "retrying vote after concurrent write",
				slog.String("target", target.String()),
				slog.Int("attempt", attempt),
			)
		}

		existing, err := l.votes.Find(ctx, voterID, target)
		if err != nil {
			return nil, err
		}

		if existing != nil {
			if existing.IsUpvote == isUpvote {
				observability.VotesTotal.WithLabelValues(kind, "conflict").Inc()
				return nil, models.NewConflictError(fmt.Sprintf("You have already %s this %s", directionPast(isUpvote), target.Kind))
			}
			flipped, err := l.votes.SetDirection(ctx, existing.ID, isUpvote, existing.IsUpvote)
			if err != nil {
				return nil, err
			}
			if flipped {
				existing.IsUpvote = isUpvote
				observability.VotesTotal.WithLabelValues(kind, "flip").Inc()
				return existing, nil
			}
			continue
		}

		vote := &models.Vote{
			VoterID:    voterID,
			TargetKind: target.Kind,
			TargetID:   target.ID,
			IsUpvote:   isUpvote,
		}
		err = l.votes.Insert(ctx, vote)
		if err == nil {
			observability.VotesTotal.WithLabelValues(kind, "insert").Inc()
			return vote, nil
		}
		if !errors.Is(err, repository.ErrVoteExists) {
			return nil, err
		}
	}

	middleware.Logger.WarnContext(ctx, "vote retries exhausted",
		slog.String("target", target.String()),
		slog.Int("attempts", l.maxAttempts),
	)
	return nil, models.NewInternalError(fmt.Errorf("%s: %w", target, errVoteContention))
}

// Retract deletes voterID's vote on target.
func (l *VoteLedger) Retract(ctx context.Context, voterID uint, target models.VoteTarget) (err error) {
	ctx, span := observability.StartSpan(ctx, "vote_ledger", "retract",
		attribute.String("vote.target", target.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	if voterID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	ref, err := l.scope.Resolve(ctx, target)
	if err != nil {
		return err
	}
	if err := l.scope.RequireRead(ctx, voterID, ref); err != nil {
		return err
	}

	deleted, err := l.votes.Delete(ctx, voterID, target)
	if err != nil {
		return err
	}
	if !deleted {
		return models.NewValidationError(fmt.Sprintf("You have not voted on this %s", target.Kind))
	}
	observability.VotesTotal.WithLabelValues(string(target.Kind), "retract").Inc()
	return nil
}

// Score returns upvotes minus downvotes for target.
func (l *VoteLedger) Score(ctx context.Context, target models.VoteTarget) (int, error) {
	return l.votes.Score(ctx, target)
}

// ViewerVote returns viewerID's vote direction on target, or nil when the
// viewer is anonymous or has not voted.
func (l *VoteLedger) ViewerVote(ctx context.Context, target models.VoteTarget, viewerID uint) (*bool, error) {
	if viewerID == 0 {
		return nil, nil
	}
	vote, err := l.votes.Find(ctx, viewerID, target)
	if err != nil || vote == nil {
		return nil, err
	}
	up := vote.IsUpvote
	return &up, nil
}

// Tally is a batch of scores and viewer votes for one target kind.
type Tally struct {
	scores map[uint]int
	viewer map[uint]bool
}

func (t Tally) Score(id uint) int {
	return t.scores[id]
}

func (t Tally) ViewerVote(id uint) *bool {
	up, ok := t.viewer[id]
	if !ok {
		return nil
	}
	return &up
}

// Tally loads scores and viewerID's votes for ids in two queries.
func (l *VoteLedger) Tally(ctx context.Context, kind models.TargetKind, ids []uint, viewerID uint) (Tally, error) {
	scores, err := l.votes.Scores(ctx, kind, ids)
	if err != nil {
		return Tally{}, err
	}
	viewer, err := l.votes.ViewerVotes(ctx, kind, ids, viewerID)
	if err != nil {
		return Tally{}, err
	}
	return Tally{scores: scores, viewer: viewer}, nil
}

// AnnotatePosts fills Score and ViewerVote on posts.
func (l *VoteLedger) AnnotatePosts(ctx context.Context, viewerID uint, posts ...*models.Post) error {
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	tally, err := l.Tally(ctx, models.TargetPost, ids, viewerID)
	if err != nil {
		return err
	}
	for _, p := range posts {
		p.Score = tally.Score(p.ID)
		p.ViewerVote = tally.ViewerVote(p.ID)
	}
	return nil
}

// AnnotateComments fills Score and ViewerVote on comments.
func (l *VoteLedger) AnnotateComments(ctx context.Context, viewerID uint, comments ...*models.Comment) error {
	ids := make([]uint, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}
	tally, err := l.Tally(ctx, models.TargetComment, ids, viewerID)
	if err != nil {
		return err
	}
	for _, c := range comments {
		c.Score = tally.Score(c.ID)
		c.ViewerVote = tally.ViewerVote(c.ID)
	}
	return nil
}

// AnnotateReplies fills Score and ViewerVote on replies.
func (l *VoteLedger) AnnotateReplies(ctx context.Context, viewerID uint, replies ...*models.Reply) error {
	ids := make([]uint, len(replies))
	for i, r := range replies {
		ids[i] = r.ID
	}
	tally, err := l.Tally(ctx, models.TargetReply, ids, viewerID)
	if err != nil {
		return err
	}
	for _, r := range replies {
		r.Score = tally.Score(r.ID)
		r.ViewerVote = tally.ViewerVote(r.ID)
	}
	return nil
}

func directionPast(isUpvote bool) string {
	if isUpvote {
		return "upvoted"
	}
	return "downvoted"
}
