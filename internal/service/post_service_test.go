package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostService_Create_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEnv(t)
	author := e.user(t, "author")
	c := e.community(t, author, "golang", false)

	tests := []struct {
		name  string
		input CreatePostInput
	}{
		{"missing title", CreatePostInput{AuthorID: author.ID, CommunityID: c.ID, Content: "body"}},
		{"missing content", CreatePostInput{AuthorID: author.ID, CommunityID: c.ID, Title: "title"}},
		{"missing community", CreatePostInput{AuthorID: author.ID, Title: "title", Content: "body"}},
		{"title too long", CreatePostInput{AuthorID: author.ID, CommunityID: c.ID, Title: strings.Repeat("x", 301), Content: "body"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.postSvc.Create(ctx, tt.input)
			assertValidationError(t, err)
		})
	}

	_, err := e.postSvc.Create(ctx, CreatePostInput{CommunityID: c.ID, Title: "t", Content: "b"})
	assertUnauthorizedError(t, err)

	_, err = e.postSvc.Create(ctx, CreatePostInput{AuthorID: author.ID, CommunityID: 999, Title: "t", Content: "b"})
	assertNotFoundError(t, err)
}

func TestPostService_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEnv(t)
	author := e.user(t, "author")
	reader := e.user(t, "reader")
	c := e.community(t, author, "golang", false)

	post, err := e.postSvc.Create(ctx, CreatePostInput{AuthorID: author.ID, CommunityID: c.ID, Title: "Generics", Content: "Type params"})
	require.NoError(t, err)
	assert.Zero(t, post.Score)

	voted, err := e.postSvc.Vote(ctx, reader.ID, post.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, voted.Score)
	require.NotNil(t, voted.ViewerVote)
	assert.True(t, *voted.ViewerVote)

	unvoted, err := e.postSvc.Unvote(ctx, reader.ID, post.ID)
	require.NoError(t, err)
	assert.Zero(t, unvoted.Score)
	assert.Nil(t, unvoted.ViewerVote)

	title := "Generics in practice"
	updated, err := e.postSvc.Update(ctx, UpdatePostInput{UserID: author.ID, PostID: post.ID, Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, "Type params", updated.Content)

	_, err = e.postSvc.Update(ctx, UpdatePostInput{UserID: reader.ID, PostID: post.ID, Title: &title})
	assertUnauthorizedError(t, err)
	assertUnauthorizedError(t, e.postSvc.Delete(ctx, reader.ID, post.ID))

	require.NoError(t, e.postSvc.Delete(ctx, author.ID, post.ID))
	_, err = e.postSvc.Get(ctx, post.ID, author.ID)
	assertNotFoundError(t, err)
}

func TestPostService_PrivateCommunity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEnv(t)
	owner := e.user(t, "owner")
	member := e.user(t, "member")
	outsider := e.user(t, "outsider")
	secret := e.community(t, owner, "secret", true)
	e.join(t, secret, member)

	_, err := e.postSvc.Create(ctx, CreatePostInput{AuthorID: outsider.ID, CommunityID: secret.ID, Title: "t", Content: "b"})
	assertUnauthorizedError(t, err)

	post, err := e.postSvc.Create(ctx, CreatePostInput{AuthorID: member.ID, CommunityID: secret.ID, Title: "t", Content: "b"})
	require.NoError(t, err)

	_, err = e.postSvc.Get(ctx, post.ID, outsider.ID)
	assertUnauthorizedError(t, err)
	_, err = e.postSvc.Get(ctx, post.ID, 0)
	assertUnauthorizedError(t, err)
	got, err := e.postSvc.Get(ctx, post.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, member.ID, got.AuthorID)

	_, err = e.postSvc.Vote(ctx, outsider.ID, post.ID, true)
	assertUnauthorizedError(t, err)

	removed, err := e.communities.RemoveMember(ctx, secret.ID, member.ID)
	require.NoError(t, err)
	require.True(t, removed)
	assertUnauthorizedError(t, e.postSvc.Delete(ctx, member.ID, post.ID))
}

func TestPostService_Listings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEnv(t)
	author := e.user(t, "author")
	c := e.community(t, author, "golang", false)
	p := e.post(t, author, c, "only", baseTime)

	page, err := e.postSvc.ListByCommunity(ctx, 0, c.ID, DefaultFilterOptions())
	require.NoError(t, err)
	assert.Equal(t, []uint{p.ID}, postIDs(page.Items))

	page, err = e.postSvc.ListByAuthor(ctx, 0, author.ID, DefaultFilterOptions())
	require.NoError(t, err)
	assert.Equal(t, []uint{p.ID}, postIDs(page.Items))

	other := e.community(t, author, "rust", false)
	newer := e.post(t, author, other, "newer", baseTime.Add(time.Minute))
	page, err = e.postSvc.ListAll(ctx, 0, DefaultFilterOptions())
	require.NoError(t, err)
	assert.Equal(t, []uint{newer.ID, p.ID}, postIDs(page.Items))
}

func TestCreate_UnknownAuthorIsNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEnv(t)
	author := e.user(t, "author")
	c := e.community(t, author, "golang", false)
	post := e.post(t, author, c, "post", baseTime)
	comment := e.comment(t, author, post, nil, baseTime)
	const ghost = 4242

	_, err := e.postSvc.Create(ctx, CreatePostInput{AuthorID: ghost, CommunityID: c.ID, Title: "t", Content: "b"})
	assertNotFoundError(t, err)

	_, err = e.commentSvc.Create(ctx, CreateCommentInput{AuthorID: ghost, PostID: post.ID, Content: "c"})
	assertNotFoundError(t, err)

	_, err = e.replySvc.Create(ctx, CreateReplyInput{AuthorID: ghost, CommentID: comment.ID, Content: "r"})
	assertNotFoundError(t, err)

	var count int64
	require.NoError(t, e.db.Table("posts").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
