package seed

import (
	"context"
	"testing"

	"agora/internal/database"
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

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

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestFactory_CommunityNamesAreValid(t *testing.T) {
	f := NewFactory(nil, 42)
	for i := 0; i < 200; i++ {
		name := f.CommunityName()
		assert.NoError(t, validation.ValidateCommunityName(name), name)
	}
}

func TestFactory_DeterministicWithSeed(t *testing.T) {
	a := NewFactory(nil, 7)
	b := NewFactory(nil, 7)
	for i := 0; i < 5; i++ {
		assert.Equal(t, a.BuildUser().Username, b.BuildUser().Username)
	}
}

func TestFactory_PickExcludesAndCaps(t *testing.T) {
	f := NewFactory(nil, 3)
	pool := []*models.User{{ID: 1}, {ID: 2}, {ID: 3}}

	picked := f.Pick(pool, 10, 2)
	require.Len(t, picked, 2)
	for _, u := range picked {
		assert.NotEqual(t, uint(2), u.ID)
	}
	assert.Len(t, f.Pick(pool, 1, 0), 1)
}

func TestSeeder_MinimalPreset(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	opts := Presets["minimal"]
	opts.RandSeed = 99

	res, err := NewSeeder(db, opts).Run(ctx)
	require.NoError(t, err)

	posts := opts.Communities * opts.PostsPerCommunity
	comments := posts * opts.CommentsPerPost
	replies := comments * opts.RepliesPerComment
	assert.Equal(t, &Result{
		Users:       opts.Users,
		Communities: opts.Communities,
		Posts:       posts,
		Comments:    comments,
		Replies:     replies,
		Votes:       (posts + comments + replies) * opts.VotesPerItem,
	}, res)

	assert.EqualValues(t, res.Users, count(t, db, &models.User{}))
	assert.EqualValues(t, res.Posts, count(t, db, &models.Post{}))
	assert.EqualValues(t, res.Votes, count(t, db, &models.Vote{}))

	t.Run("nobody votes on their own post", func(t *testing.T) {
		var selfVotes int64
		require.NoError(t, db.Model(&models.Vote{}).
			Joins("JOIN posts ON posts.id = votes.target_id").
			Where("votes.target_kind = ? AND posts.author_id = votes.voter_id", models.TargetPost).
			Count(&selfVotes).Error)
		assert.Zero(t, selfVotes)
	})

	t.Run("private activity comes from members", func(t *testing.T) {
		communities := repository.NewCommunityRepository(db)
		var private []models.Community
		require.NoError(t, db.Where("is_private = ?", true).Find(&private).Error)
		require.NotEmpty(t, private)

		for _, c := range private {
			var posts []models.Post
			require.NoError(t, db.Where("community_id = ?", c.ID).Find(&posts).Error)
			for _, p := range posts {
				member, err := communities.IsMember(ctx, c.ID, p.AuthorID)
				require.NoError(t, err)
				assert.True(t, member, "post %d author %d", p.ID, p.AuthorID)
			}
		}
	})

	t.Run("comment threads nest", func(t *testing.T) {
		var nested int64
		require.NoError(t, db.Model(&models.Comment{}).Where("parent_id IS NOT NULL").Count(&nested).Error)
		assert.Positive(t, nested)
	})
}

func TestSeeder_ClearAll(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewSeeder(db, Presets["minimal"])
	_, err := s.Run(ctx)
	require.NoError(t, err)

	require.NoError(t, s.ClearAll(ctx))
	for _, model := range []any{&models.Vote{}, &models.Reply{}, &models.Comment{}, &models.Post{}, &models.Community{}, &models.User{}} {
		assert.Zero(t, count(t, db, model), "%T", model)
	}
}

func TestSeeder_NoUsers(t *testing.T) {
	db := newTestDB(t)
	res, err := NewSeeder(db, Options{Communities: 3}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Result{}, res)
}
