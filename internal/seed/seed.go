package seed

import (
	"context"
	"fmt"
	"log/slog"

	"agora/internal/middleware"
	"agora/internal/models"

	"gorm.io/gorm"
)

// Options sizes a generated data set.
type Options struct {
	Users             int
	Communities       int
	PrivateEvery      int // every Nth community is private; 0 disables
	MembersPer        int
	PostsPerCommunity int
	CommentsPerPost   int
	RepliesPerComment int
	VotesPerItem      int
	UpvoteRatio       float64
	MaxDays           int
	RandSeed          int64
}

// Presets are named data set sizes for the seed command.
var Presets = map[string]Options{
	"minimal": {
		Users: 8, Communities: 3, PrivateEvery: 3, MembersPer: 4,
		PostsPerCommunity: 4, CommentsPerPost: 3, RepliesPerComment: 1,
		VotesPerItem: 3, UpvoteRatio: 0.7, MaxDays: 14,
	},
	"standard": {
		Users: 50, Communities: 12, PrivateEvery: 4, MembersPer: 15,
		PostsPerCommunity: 20, CommentsPerPost: 6, RepliesPerComment: 2,
		VotesPerItem: 8, UpvoteRatio: 0.7, MaxDays: 90,
	},
	"large": {
		Users: 400, Communities: 60, PrivateEvery: 5, MembersPer: 60,
		PostsPerCommunity: 80, CommentsPerPost: 12, RepliesPerComment: 3,
		VotesPerItem: 25, UpvoteRatio: 0.65, MaxDays: 365,
	},
}

// Result counts what a run created.
type Result struct {
	Users       int
	Communities int
	Posts       int
	Comments    int
	Replies     int
	Votes       int
}

// Seeder generates a connected data set: communities with members, posts
// from members, comment trees with replies and votes from readers.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	opts    Options
}

// NewSeeder creates a Seeder over db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, opts.RandSeed), opts: opts}
}

// ClearAll removes every content row, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	middleware.Logger.InfoContext(ctx, "clearing existing data")
	tx := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{
		&models.Vote{},
		&models.Reply{},
		&models.Comment{},
		&models.Post{},
		&models.CommunityMembership{},
		&models.Community{},
		&models.User{},
	} {
		if err := tx.Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	return nil
}

// Run generates the data set.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	f := s.factory

	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		u, err := f.CreateUser(ctx)
		if err != nil {
			return res, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	res.Users = len(users)
	if len(users) == 0 {
		return res, nil
	}

	for i := 0; i < s.opts.Communities; i++ {
		owner := users[i%len(users)]
		private := s.opts.PrivateEvery > 0 && (i+1)%s.opts.PrivateEvery == 0
		community, err := f.CreateCommunity(ctx, owner, private)
		if err != nil {
			return res, fmt.Errorf("create community: %w", err)
		}
		res.Communities++

		members := append([]*models.User{owner}, f.Pick(users, s.opts.MembersPer, owner.ID)...)
		for _, m := range members[1:] {
			if err := f.Join(ctx, community, m); err != nil {
				return res, fmt.Errorf("join community %d: %w", community.ID, err)
			}
		}

		// Private communities only see activity from members; public ones from anyone.
		readers := users
		if private {
			readers = members
		}
		if err := s.seedCommunity(ctx, community, members, readers, res); err != nil {
			return res, err
		}
	}

	middleware.Logger.InfoContext(ctx, "seed completed",
		slog.Int("users", res.Users),
		slog.Int("communities", res.Communities),
		slog.Int("posts", res.Posts),
		slog.Int("comments", res.Comments),
		slog.Int("replies", res.Replies),
		slog.Int("votes", res.Votes),
	)
	return res, nil
}

func (s *Seeder) seedCommunity(ctx context.Context, community *models.Community, members, readers []*models.User, res *Result) error {
	f := s.factory
	for p := 0; p < s.opts.PostsPerCommunity; p++ {
		author := members[p%len(members)]
		post, err := f.CreatePost(ctx, author, community, s.opts.MaxDays)
		if err != nil {
			return fmt.Errorf("create post: %w", err)
		}
		res.Posts++
		if err := s.vote(ctx, readers, models.PostTarget(post.ID), post.AuthorID, res); err != nil {
			return err
		}

		var thread []*models.Comment
		for c := 0; c < s.opts.CommentsPerPost; c++ {
			var parent *models.Comment
			// Roughly half the comments answer an earlier one.
			if len(thread) > 0 && c%2 == 1 {
				parent = thread[len(thread)-1]
			}
			commenter := readers[(p+c+1)%len(readers)]
			comment, err := f.CreateComment(ctx, commenter, post, parent)
			if err != nil {
				return fmt.Errorf("create comment: %w", err)
			}
			thread = append(thread, comment)
			res.Comments++
			if err := s.vote(ctx, readers, models.CommentTarget(comment.ID), comment.AuthorID, res); err != nil {
				return err
			}

			for r := 0; r < s.opts.RepliesPerComment; r++ {
				replier := readers[(p+c+r+2)%len(readers)]
				reply, err := f.CreateReply(ctx, replier, comment)
				if err != nil {
					return fmt.Errorf("create reply: %w", err)
				}
				res.Replies++
				if err := s.vote(ctx, readers, models.ReplyTarget(reply.ID), reply.AuthorID, res); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *Seeder) vote(ctx context.Context, readers []*models.User, target models.VoteTarget, authorID uint, res *Result) error {
	for _, voter := range s.factory.Pick(readers, s.opts.VotesPerItem, authorID) {
		if err := s.factory.CastVote(ctx, voter, target, s.factory.Upvote(s.opts.UpvoteRatio)); err != nil {
			return fmt.Errorf("vote on %s: %w", target, err)
		}
		res.Votes++
	}
	return nil
}
