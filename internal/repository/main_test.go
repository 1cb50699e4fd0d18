package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"agora/internal/database"
	"agora/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

// newTestDB returns a private in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), user))
	return user
}

func createCommunity(t *testing.T, db *gorm.DB, owner *models.User, name string, private bool) *models.Community {
	t.Helper()
	community := &models.Community{Name: name, IsPrivate: private, OwnerID: owner.ID}
	require.NoError(t, NewCommunityRepository(db).Create(context.Background(), community))
	return community
}

func createPost(t *testing.T, db *gorm.DB, author *models.User, community *models.Community, title string, at time.Time) *models.Post {
	t.Helper()
	post := &models.Post{
		Title:       title,
		Content:     title + " body",
		AuthorID:    author.ID,
		CommunityID: community.ID,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	require.NoError(t, NewPostRepository(db).Create(context.Background(), post))
	return post
}

func createComment(t *testing.T, db *gorm.DB, author *models.User, post *models.Post, parent *models.Comment, at time.Time) *models.Comment {
	t.Helper()
	comment := &models.Comment{
		Content:   "comment",
		AuthorID:  author.ID,
		PostID:    post.ID,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if parent != nil {
		comment.ParentID = &parent.ID
	}
	require.NoError(t, NewCommentRepository(db).Create(context.Background(), comment))
	return comment
}

func createReply(t *testing.T, db *gorm.DB, author *models.User, comment *models.Comment, at time.Time) *models.Reply {
	t.Helper()
	reply := &models.Reply{
		Content:   "reply",
		AuthorID:  author.ID,
		CommentID: comment.ID,
		CreatedAt: at,
		UpdatedAt: at,
	}
	require.NoError(t, NewReplyRepository(db).Create(context.Background(), reply))
	return reply
}

func castVote(t *testing.T, db *gorm.DB, voter *models.User, target models.VoteTarget, up bool) {
	t.Helper()
	require.NoError(t, NewVoteRepository(db).Insert(context.Background(), &models.Vote{
		VoterID:    voter.ID,
		TargetKind: target.Kind,
		TargetID:   target.ID,
		IsUpvote:   up,
	}))
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}
