package repository

import (
	"context"
	"regexp"
	"testing"

	"agora/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCommunityRepository_CreateAddsOwnerMembership(t *testing.T) {
	db := newTestDB(t)
	repo := NewCommunityRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "owner")
	community := createCommunity(t, db, owner, "gophers", false)

	membership, err := repo.GetMembership(ctx, community.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipRoleOwner, membership.Role)

	got, err := repo.GetByID(ctx, community.ID)
	require.NoError(t, err)
	assert.Equal(t, "gophers", got.Name)

	err = repo.Create(ctx, &models.Community{Name: "gophers", OwnerID: owner.ID})
	assert.True(t, IsUniqueViolation(err))
}

func TestCommunityRepository_ListRespectsVisibility(t *testing.T) {
	db := newTestDB(t)
	repo := NewCommunityRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "owner")
	member := createUser(t, db, "member")
	stranger := createUser(t, db, "stranger")

	public := createCommunity(t, db, owner, "public", false)
	private := createCommunity(t, db, owner, "private", true)
	require.NoError(t, repo.AddMember(ctx, private.ID, member.ID, models.MembershipRoleMember))

	ids := func(cs []*models.Community) []uint {
		out := make([]uint, 0, len(cs))
		for _, c := range cs {
			out = append(out, c.ID)
		}
		return out
	}

	tests := []struct {
		name     string
		viewerID uint
		expected []uint
	}{
		{"anonymous sees public only", 0, []uint{public.ID}},
		{"stranger sees public only", stranger.ID, []uint{public.ID}},
		{"member sees private", member.ID, []uint{private.ID, public.ID}},
		{"owner sees private", owner.ID, []uint{private.ID, public.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.viewerID, 10, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ids(got))
		})
	}
}

func TestCommunityRepository_Membership(t *testing.T) {
	db := newTestDB(t)
	repo := NewCommunityRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "owner")
	user := createUser(t, db, "user")
	community := createCommunity(t, db, owner, "c", false)

	isMember, err := repo.IsMember(ctx, community.ID, user.ID)
	require.NoError(t, err)
	assert.False(t, isMember)

	require.NoError(t, repo.AddMember(ctx, community.ID, user.ID, models.MembershipRoleMember))
	assert.ErrorIs(t, repo.AddMember(ctx, community.ID, user.ID, models.MembershipRoleMember), ErrAlreadyMember)

	isMember, err = repo.IsMember(ctx, community.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, isMember)

	ids, err := repo.MemberCommunityIDs(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{community.ID}, ids)

	mine, err := repo.ListForMember(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, community.ID, mine[0].ID)

	removed, err := repo.RemoveMember(ctx, community.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.RemoveMember(ctx, community.ID, user.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	isMember, err = repo.IsMember(ctx, community.ID, 0)
	require.NoError(t, err)
	assert.False(t, isMember)
}

func TestCommunityRepository_DeleteCascades(t *testing.T) {
	db := newTestDB(t)
	repo := NewCommunityRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "owner")
	voter := createUser(t, db, "voter")
	doomed := createCommunity(t, db, owner, "doomed", false)
	kept := createCommunity(t, db, owner, "kept", false)

	post := createPost(t, db, owner, doomed, "gone", baseTime)
	comment := createComment(t, db, owner, post, nil, baseTime)
	reply := createReply(t, db, owner, comment, baseTime)
	castVote(t, db, voter, models.PostTarget(post.ID), true)
	castVote(t, db, voter, models.CommentTarget(comment.ID), true)
	castVote(t, db, voter, models.ReplyTarget(reply.ID), false)

	survivor := createPost(t, db, owner, kept, "stays", baseTime)
	castVote(t, db, voter, models.PostTarget(survivor.ID), true)

	require.NoError(t, repo.Delete(ctx, doomed.ID))

	_, err := repo.GetByID(ctx, doomed.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Equal(t, int64(1), countRows(t, db, &models.Post{}))
	assert.Equal(t, int64(0), countRows(t, db, &models.Comment{}))
	assert.Equal(t, int64(0), countRows(t, db, &models.Reply{}))
	assert.Equal(t, int64(1), countRows(t, db, &models.Vote{}))
	assert.Equal(t, int64(1), countRows(t, db, &models.CommunityMembership{}))

	assert.ErrorIs(t, repo.Delete(ctx, doomed.ID), gorm.ErrRecordNotFound)
}

func TestCommunityRepository_NewestPublic(t *testing.T) {
	db := newTestDB(t)
	repo := NewCommunityRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "owner")
	first := createCommunity(t, db, owner, "first", false)
	createCommunity(t, db, owner, "hidden", true)
	third := createCommunity(t, db, owner, "third", false)

	got, err := repo.NewestPublic(ctx, []uint{first.ID}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, third.ID, got[0].ID)

	got, err = repo.NewestPublic(ctx, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCommunityRepository_AddMemberSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommunityRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "community_memberships"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.AddMember(context.Background(), 3, 7, models.MembershipRoleMember)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
