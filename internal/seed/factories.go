// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agora/internal/models"
	"agora/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them through the repositories.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	faker *gofakeit.Faker
	now   func() time.Time

	users       repository.UserRepository
	communities repository.CommunityRepository
	posts       repository.PostRepository
	comments    repository.CommentRepository
	replies     repository.ReplyRepository
	votes       repository.VoteRepository
}

// NewFactory creates a Factory bound to db. A zero randSeed picks a random one.
func NewFactory(db *gorm.DB, randSeed int64) *Factory {
	return &Factory{
		faker:       gofakeit.New(randSeed),
		now:         time.Now,
		users:       repository.NewUserRepository(db),
		communities: repository.NewCommunityRepository(db),
		posts:       repository.NewPostRepository(db),
		comments:    repository.NewCommentRepository(db),
		replies:     repository.NewReplyRepository(db),
		votes:       repository.NewVoteRepository(db),
	}
}

// BuildUser returns an unsaved user with a unique-ish username.
func (f *Factory) BuildUser() *models.User {
	return &models.User{
		Username:    fmt.Sprintf("%s%d", strings.ToLower(f.faker.Username()), f.faker.Number(100, 99999)),
		DisplayName: f.faker.Name(),
	}
}

// CreateUser persists a generated user. Overrides run before saving.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser()
	for _, override := range overrides {
		override(user)
	}
	if err := f.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CommunityName returns a name that satisfies the community naming rules.
func (f *Factory) CommunityName() string {
	word := sanitizeName(strings.ToLower(f.faker.Noun()))
	if len(word) < 3 {
		word = "community"
	}
	return fmt.Sprintf("%s_%d", word, f.faker.Number(10, 99999))
}

// CreateCommunity persists a community owned by owner; the owner becomes a member.
func (f *Factory) CreateCommunity(ctx context.Context, owner *models.User, private bool, overrides ...func(*models.Community)) (*models.Community, error) {
	community := &models.Community{
		Name:        f.CommunityName(),
		Description: f.faker.Sentence(12),
		IsPrivate:   private,
		OwnerID:     owner.ID,
	}
	for _, override := range overrides {
		override(community)
	}
	if err := f.communities.Create(ctx, community); err != nil {
		return nil, err
	}
	return community, nil
}

// Join adds user to community as a plain member.
func (f *Factory) Join(ctx context.Context, community *models.Community, user *models.User) error {
	return f.communities.AddMember(ctx, community.ID, user.ID, models.MembershipRoleMember)
}

// BuildPost returns an unsaved post with CreatedAt spread over the last maxDays.
func (f *Factory) BuildPost(author *models.User, community *models.Community, maxDays int) *models.Post {
	created := f.pastTime(maxDays)
	return &models.Post{
		Title:       strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 9)), "."),
		Content:     f.faker.Paragraph(1, f.faker.Number(2, 5), 12, "\n\n"),
		AuthorID:    author.ID,
		CommunityID: community.ID,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

// CreatePost persists a generated post. Overrides run before saving.
func (f *Factory) CreatePost(ctx context.Context, author *models.User, community *models.Community, maxDays int, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, community, maxDays)
	for _, override := range overrides {
		override(post)
	}
	if err := f.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a comment on post, nested under parent when set.
// Its timestamp follows the post or parent it answers.
func (f *Factory) CreateComment(ctx context.Context, author *models.User, post *models.Post, parent *models.Comment) (*models.Comment, error) {
	after := post.CreatedAt
	if parent != nil {
		after = parent.CreatedAt
	}
	created := f.timeAfter(after)
	comment := &models.Comment{
		Content:   f.faker.Sentence(f.faker.Number(4, 20)),
		AuthorID:  author.ID,
		PostID:    post.ID,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if parent != nil {
		comment.ParentID = &parent.ID
	}
	if err := f.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateReply persists a flat reply to comment.
func (f *Factory) CreateReply(ctx context.Context, author *models.User, comment *models.Comment) (*models.Reply, error) {
	created := f.timeAfter(comment.CreatedAt)
	reply := &models.Reply{
		Content:   f.faker.Sentence(f.faker.Number(3, 12)),
		AuthorID:  author.ID,
		CommentID: comment.ID,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := f.replies.Create(ctx, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// CastVote records voter's vote on target directly in the store. Callers
// keep voters distinct per target and away from the target's author.
func (f *Factory) CastVote(ctx context.Context, voter *models.User, target models.VoteTarget, up bool) error {
	return f.votes.Insert(ctx, &models.Vote{
		VoterID:    voter.ID,
		TargetKind: target.Kind,
		TargetID:   target.ID,
		IsUpvote:   up,
	})
}

// Upvote reports a vote direction skewed positive by ratio.
func (f *Factory) Upvote(ratio float64) bool {
	return f.faker.Float64Range(0, 1) < ratio
}

// Pick returns n distinct users from pool, skipping exclude.
func (f *Factory) Pick(pool []*models.User, n int, exclude uint) []*models.User {
	candidates := make([]*models.User, 0, len(pool))
	for _, u := range pool {
		if u.ID != exclude {
			candidates = append(candidates, u)
		}
	}
	f.faker.ShuffleAnySlice(candidates)
	if n > len(candidates) {
		n = len(candidates)
	}
	return candidates[:n]
}

func (f *Factory) pastTime(maxDays int) time.Time {
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.faker.Number(0, maxDays*24*60)) * time.Minute
	return f.now().Add(-back).UTC()
}

func (f *Factory) timeAfter(t time.Time) time.Time {
	next := t.Add(time.Duration(f.faker.Number(1, 6*60)) * time.Minute)
	if now := f.now(); next.After(now) {
		return now.UTC()
	}
	return next.UTC()
}

func sanitizeName(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		}
	}
	out := sb.String()
	if len(out) > 40 {
		out = out[:40]
	}
	return out
}
