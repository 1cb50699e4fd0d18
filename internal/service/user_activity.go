package service

import (
	"context"
	"fmt"
	"strings"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ActivityKind names one section of a user's activity.
type ActivityKind string

const (
	ActivityPosts    ActivityKind = "posts"
	ActivityComments ActivityKind = "comments"
	ActivityReplies  ActivityKind = "replies"
	ActivityVotes    ActivityKind = "votes"
)

var allActivityKinds = []ActivityKind{ActivityPosts, ActivityComments, ActivityReplies, ActivityVotes}

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 100
)

// ParseActivityKinds parses a comma-separated include list. An empty list
// selects every kind; duplicates collapse.
func ParseActivityKinds(raw string) ([]ActivityKind, error) {
	var kinds []ActivityKind
	for _, part := range strings.Split(raw, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			kinds = append(kinds, ActivityKind(part))
		}
	}
	return normalizeActivityKinds(kinds)
}

// normalizeActivityKinds defaults an empty selection to every kind and drops
// duplicates so each section is loaded once.
func normalizeActivityKinds(kinds []ActivityKind) ([]ActivityKind, error) {
	if len(kinds) == 0 {
		return allActivityKinds, nil
	}
	seen := make(map[ActivityKind]bool, len(kinds))
	out := make([]ActivityKind, 0, len(kinds))
	for _, kind := range kinds {
		switch kind {
		case ActivityPosts, ActivityComments, ActivityReplies, ActivityVotes:
		default:
			return nil, models.NewValidationError(fmt.Sprintf("unknown activity section %q", kind))
		}
		if !seen[kind] {
			seen[kind] = true
			out = append(out, kind)
		}
	}
	return out, nil
}

// ActivityOptions selects the sections and per-section size of an activity
// listing.
type ActivityOptions struct {
	Include []ActivityKind
	Limit   int
}

// UserActivity is a user's recent content and votes as one viewer sees them.
// Sections that were not requested are nil.
type UserActivity struct {
	User     *models.User      `json:"user"`
	Posts    []*models.Post    `json:"posts"`
	Comments []*models.Comment `json:"comments"`
	Replies  []*models.Reply   `json:"replies"`
	Votes    []models.Vote     `json:"votes"`
}

// ActivityService aggregates what a user has posted and voted on. Every
// section only holds items from communities the viewer may read.
type ActivityService struct {
	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	replies  repository.ReplyRepository
	votes    repository.VoteRepository
	ledger   *VoteLedger
}

func NewActivityService(
	users repository.UserRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	replies repository.ReplyRepository,
	votes repository.VoteRepository,
	ledger *VoteLedger,
) *ActivityService {
	return &ActivityService{
		users:    users,
		posts:    posts,
		comments: comments,
		replies:  replies,
		votes:    votes,
		ledger:   ledger,
	}
}

// Activity returns userID's newest items per requested section, scored and
// annotated with viewerID's own votes.
func (s *ActivityService) Activity(ctx context.Context, viewerID, userID uint, opts ActivityOptions) (activity *UserActivity, err error) {
	ctx, span := observability.StartSpan(ctx, "activity", "list",
		attribute.Int64("activity.user_id", int64(userID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "User", userID)
	}
	include, err := normalizeActivityKinds(opts.Include)
	if err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	activity = &UserActivity{User: user}
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range include {
		switch kind {
		case ActivityPosts:
			g.Go(func() error {
				posts, err := s.posts.Query(gctx, repository.PostQuery{
					AuthorID: userID,
					ViewerID: viewerID,
					Sort:     repository.SortNew,
					Limit:    limit,
				})
				if err != nil {
					return err
				}
				if posts == nil {
					posts = []*models.Post{}
				}
				activity.Posts = posts
				return s.ledger.AnnotatePosts(gctx, viewerID, posts...)
			})
		case ActivityComments:
			g.Go(func() error {
				comments, err := s.comments.ListByAuthor(gctx, userID, viewerID, limit)
				if err != nil {
					return err
				}
				if comments == nil {
					comments = []*models.Comment{}
				}
				activity.Comments = comments
				return s.ledger.AnnotateComments(gctx, viewerID, comments...)
			})
		case ActivityReplies:
			g.Go(func() error {
				replies, err := s.replies.ListByAuthor(gctx, userID, viewerID, limit)
				if err != nil {
					return err
				}
				if replies == nil {
					replies = []*models.Reply{}
				}
				activity.Replies = replies
				return s.ledger.AnnotateReplies(gctx, viewerID, replies...)
			})
		case ActivityVotes:
			g.Go(func() error {
				votes, err := s.votes.ListByVoter(gctx, userID, viewerID, limit)
				if err != nil {
					return err
				}
				if votes == nil {
					votes = []models.Vote{}
				}
				activity.Votes = votes
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return activity, nil
}
