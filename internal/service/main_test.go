package service

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"agora/internal/database"
	"agora/internal/models"
	"agora/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

// testEnv wires every service over one in-memory database.
type testEnv struct {
	db *gorm.DB

	users       repository.UserRepository
	communities repository.CommunityRepository
	posts       repository.PostRepository
	comments    repository.CommentRepository
	replies     repository.ReplyRepository
	votes       repository.VoteRepository

	scope   *AccessScope
	ledger  *VoteLedger
	ranking *RankingEngine
	feed    *FeedComposer
	tree    *CommentTree

	communitySvc *CommunityService
	postSvc      *PostService
	commentSvc   *CommentService
	replySvc     *ReplyService
	userSvc      *UserService
	activitySvc  *ActivityService
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	e := &testEnv{
		db:          db,
		users:       repository.NewUserRepository(db),
		communities: repository.NewCommunityRepository(db),
		posts:       repository.NewPostRepository(db),
		comments:    repository.NewCommentRepository(db),
		replies:     repository.NewReplyRepository(db),
		votes:       repository.NewVoteRepository(db),
	}
	e.scope = NewAccessScope(e.communities, repository.NewContentResolver(db))
	e.ledger = NewVoteLedger(e.votes, e.scope, 0)
	e.ranking = NewRankingEngine(e.posts, e.communities, e.users, e.ledger, RankingConfig{})
	e.ranking.now = func() time.Time { return baseTime.Add(time.Hour) }
	e.feed = NewFeedComposer(e.ranking, e.communities, e.posts, e.ledger, FeedConfig{})
	e.tree = NewCommentTree(e.comments, e.replies, e.posts, e.scope, e.ledger, TreeConfig{})

	e.communitySvc = NewCommunityService(e.communities, e.users, e.scope)
	e.postSvc = NewPostService(e.posts, e.communities, e.users, e.scope, e.ledger, e.ranking)
	e.commentSvc = NewCommentService(e.comments, e.users, e.scope, e.ledger, e.tree)
	e.replySvc = NewReplyService(e.replies, e.users, e.scope, e.ledger, e.tree)
	e.userSvc = NewUserService(e.users)
	e.activitySvc = NewActivityService(e.users, e.posts, e.comments, e.replies, e.votes, e.ledger)
	return e
}

func (e *testEnv) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *testEnv) community(t *testing.T, owner *models.User, name string, private bool) *models.Community {
	t.Helper()
	c := &models.Community{Name: name, IsPrivate: private, OwnerID: owner.ID}
	require.NoError(t, e.communities.Create(context.Background(), c))
	return c
}

func (e *testEnv) join(t *testing.T, c *models.Community, u *models.User) {
	t.Helper()
	require.NoError(t, e.communities.AddMember(context.Background(), c.ID, u.ID, models.MembershipRoleMember))
}

// post inserts a post directly so tests control CreatedAt.
func (e *testEnv) post(t *testing.T, author *models.User, c *models.Community, title string, at time.Time) *models.Post {
	t.Helper()
	p := &models.Post{
		Title:       title,
		Content:     title + " body",
		AuthorID:    author.ID,
		CommunityID: c.ID,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	require.NoError(t, e.posts.Create(context.Background(), p))
	return p
}

func (e *testEnv) comment(t *testing.T, author *models.User, p *models.Post, parent *models.Comment, at time.Time) *models.Comment {
	t.Helper()
	c := &models.Comment{Content: "comment", AuthorID: author.ID, PostID: p.ID, CreatedAt: at, UpdatedAt: at}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	require.NoError(t, e.comments.Create(context.Background(), c))
	return c
}

func (e *testEnv) vote(t *testing.T, voter *models.User, target models.VoteTarget, up bool) {
	t.Helper()
	_, err := e.ledger.Cast(context.Background(), voter.ID, target, up)
	require.NoError(t, err)
}

func postIDs(posts []*models.Post) []uint {
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertErrorCode(t, err, models.CodeValidation)
}

// assertUnauthorizedError asserts that err is an AppError with code UNAUTHORIZED.
func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	assertErrorCode(t, err, models.CodeUnauthorized)
}

func assertNotFoundError(t *testing.T, err error) {
	t.Helper()
	assertErrorCode(t, err, models.CodeNotFound)
}

func assertConflictError(t *testing.T, err error) {
	t.Helper()
	assertErrorCode(t, err, models.CodeConflict)
}
