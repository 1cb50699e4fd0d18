package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"agora/internal/models"
	"agora/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type voteRepoStub struct {
	findFn         func(context.Context, uint, models.VoteTarget) (*models.Vote, error)
	insertFn       func(context.Context, *models.Vote) error
	setDirectionFn func(context.Context, uint, bool, bool) (bool, error)
	deleteFn       func(context.Context, uint, models.VoteTarget) (bool, error)
}

func (s *voteRepoStub) Find(ctx context.Context, voterID uint, target models.VoteTarget) (*models.Vote, error) {
	return s.findFn(ctx, voterID, target)
}
func (s *voteRepoStub) Insert(ctx context.Context, vote *models.Vote) error {
	return s.insertFn(ctx, vote)
}
func (s *voteRepoStub) SetDirection(ctx context.Context, voteID uint, isUpvote, expectedPrev bool) (bool, error) {
	return s.setDirectionFn(ctx, voteID, isUpvote, expectedPrev)
}
func (s *voteRepoStub) Delete(ctx context.Context, voterID uint, target models.VoteTarget) (bool, error) {
	return s.deleteFn(ctx, voterID, target)
}
func (s *voteRepoStub) ListForTarget(context.Context, models.VoteTarget) ([]models.Vote, error) {
	return nil, nil
}
func (s *voteRepoStub) ListByVoter(context.Context, uint, uint, int) ([]models.Vote, error) {
	return nil, nil
}
func (s *voteRepoStub) Score(context.Context, models.VoteTarget) (int, error) { return 0, nil }
func (s *voteRepoStub) Scores(context.Context, models.TargetKind, []uint) (map[uint]int, error) {
	return map[uint]int{}, nil
}
func (s *voteRepoStub) ViewerVotes(context.Context, models.TargetKind, []uint, uint) (map[uint]bool, error) {
	return map[uint]bool{}, nil
}

func noopVoteRepo() *voteRepoStub {
	return &voteRepoStub{
		findFn:         func(context.Context, uint, models.VoteTarget) (*models.Vote, error) { return nil, nil },
		insertFn:       func(context.Context, *models.Vote) error { return nil },
		setDirectionFn: func(context.Context, uint, bool, bool) (bool, error) { return true, nil },
		deleteFn:       func(context.Context, uint, models.VoteTarget) (bool, error) { return true, nil },
	}
}

type resolverStub struct {
	resolveFn func(context.Context, models.VoteTarget) (*models.ContentRef, error)
}

func (s *resolverStub) Resolve(ctx context.Context, target models.VoteTarget) (*models.ContentRef, error) {
	return s.resolveFn(ctx, target)
}

// publicContent resolves every target to public content written by author.
func publicContent(author uint) *resolverStub {
	return &resolverStub{resolveFn: func(_ context.Context, target models.VoteTarget) (*models.ContentRef, error) {
		return &models.ContentRef{Target: target, AuthorID: author, CommunityID: 1, CommunityOwnerID: author}, nil
	}}
}

func TestVoteLedger_Cast(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := newTestEnv(t)
	author := e.user(t, "author")
	voter := e.user(t, "voter")
	c := e.community(t, author, "golang", false)
	post := e.post(t, author, c, "hello", baseTime)
	target := models.PostTarget(post.ID)

	vote, err := e.ledger.Cast(ctx, voter.ID, target, true)
	require.NoError(t, err)
	assert.True(t, vote.IsUpvote)
	score, err := e.ledger.Score(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, 1, score)

	_, err = e.ledger.Cast(ctx, voter.ID, target, true)
	assertConflictError(t, err)
	assert.Contains(t, err.Error(), "already upvoted")
	votes, err := e.votes.ListForTarget(ctx, target)
	require.NoError(t, err)
	require.Len(t, votes, 1, "a conflicting vote must leave the stored row alone")
	assert.True(t, votes[0].IsUpvote)

	flipped, err := e.ledger.Cast(ctx, voter.ID, target, false)
	require.NoError(t, err)
	assert.False(t, flipped.IsUpvote)
	assert.Equal(t, vote.ID, flipped.ID, "a flip updates the existing row")
	score, err = e.ledger.Score(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, -1, score)

	dir, err := e.ledger.ViewerVote(ctx, target, voter.ID)
	require.NoError(t, err)
	require.NotNil(t, dir)
	assert.False(t, *dir)

	dir, err = e.ledger.ViewerVote(ctx, target, 0)
	require.NoError(t, err)
	assert.Nil(t, dir)
}

func TestVoteLedger_CastRules(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := newTestEnv(t)
	author := e.user(t, "author")
	outsider := e.user(t, "outsider")
	member := e.user(t, "member")
	secret := e.community(t, author, "secret", true)
	e.join(t, secret, member)
	post := e.post(t, author, secret, "hidden", baseTime)

	t.Run("anonymous voter", func(t *testing.T) {
		_, err := e.ledger.Cast(ctx, 0, models.PostTarget(post.ID), true)
		assertUnauthorizedError(t, err)
	})

	t.Run("own content", func(t *testing.T) {
		_, err := e.ledger.Cast(ctx, author.ID, models.PostTarget(post.ID), true)
		assertUnauthorizedError(t, err)
		assert.Contains(t, err.Error(), "your own post")
	})

	t.Run("private community outsider", func(t *testing.T) {
		_, err := e.ledger.Cast(ctx, outsider.ID, models.PostTarget(post.ID), true)
		assertUnauthorizedError(t, err)
	})

	t.Run("private community member", func(t *testing.T) {
		_, err := e.ledger.Cast(ctx, member.ID, models.PostTarget(post.ID), false)
		require.NoError(t, err)
	})

	t.Run("missing target", func(t *testing.T) {
		_, err := e.ledger.Cast(ctx, member.ID, models.CommentTarget(999), true)
		assertNotFoundError(t, err)
	})

	t.Run("invalid target", func(t *testing.T) {
		_, err := e.ledger.Cast(ctx, member.ID, models.VoteTarget{Kind: "poll", ID: 1}, true)
		assertValidationError(t, err)
	})
}

func TestVoteLedger_Retract(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := newTestEnv(t)
	author := e.user(t, "author")
	voter := e.user(t, "voter")
	c := e.community(t, author, "golang", false)
	post := e.post(t, author, c, "hello", baseTime)
	comment := e.comment(t, author, post, nil, baseTime)
	target := models.CommentTarget(comment.ID)

	err := e.ledger.Retract(ctx, voter.ID, target)
	assertValidationError(t, err)

	e.vote(t, voter, target, false)
	require.NoError(t, e.ledger.Retract(ctx, voter.ID, target))

	score, err := e.ledger.Score(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, 0, score)

	err = e.ledger.Retract(ctx, voter.ID, target)
	assertValidationError(t, err)
}

func TestVoteLedger_ScoreMatchesVotes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := newTestEnv(t)
	author := e.user(t, "author")
	c := e.community(t, author, "golang", false)
	post := e.post(t, author, c, "hello", baseTime)
	target := models.PostTarget(post.ID)

	directions := []bool{true, true, false, true, false, false, true}
	for i, up := range directions {
		voter := e.user(t, "voter"+string(rune('a'+i)))
		e.vote(t, voter, target, up)
	}

	votes, err := e.votes.ListForTarget(ctx, target)
	require.NoError(t, err)
	want := 0
	for _, v := range votes {
		if v.IsUpvote {
			want++
		} else {
			want--
		}
	}
	got, err := e.ledger.Score(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, got)
}

func TestVoteLedger_ConcurrentCasts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := newTestEnv(t)
	author := e.user(t, "author")
	voter := e.user(t, "voter")
	c := e.community(t, author, "golang", false)
	post := e.post(t, author, c, "hello", baseTime)
	target := models.PostTarget(post.ID)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.ledger.Cast(ctx, voter.ID, target, true); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.True(t, models.IsKind(err, models.CodeConflict), "unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	votes, err := e.votes.ListForTarget(ctx, target)
	require.NoError(t, err)
	assert.Len(t, votes, 1)
}

func TestVoteLedger_RetriesLostInsert(t *testing.T) {
	t.Parallel()

	repo := noopVoteRepo()
	finds := 0
	repo.findFn = func(context.Context, uint, models.VoteTarget) (*models.Vote, error) {
		finds++
		if finds == 1 {
			return nil, nil
		}
		// The concurrent writer stored a downvote.
		return &models.Vote{ID: 7, IsUpvote: false}, nil
	}
	repo.insertFn = func(context.Context, *models.Vote) error { return repository.ErrVoteExists }

	ledger := NewVoteLedger(repo, NewAccessScope(nil, publicContent(1)), 3)
	vote, err := ledger.Cast(context.Background(), 2, models.PostTarget(10), true)
	require.NoError(t, err)
	assert.Equal(t, uint(7), vote.ID)
	assert.True(t, vote.IsUpvote)
	assert.Equal(t, 2, finds)
}

func TestVoteLedger_RetriesExhausted(t *testing.T) {
	t.Parallel()

	repo := noopVoteRepo()
	repo.findFn = func(context.Context, uint, models.VoteTarget) (*models.Vote, error) {
		return &models.Vote{ID: 7, IsUpvote: false}, nil
	}
	flips := 0
	repo.setDirectionFn = func(context.Context, uint, bool, bool) (bool, error) {
		flips++
		return false, nil
	}

	ledger := NewVoteLedger(repo, NewAccessScope(nil, publicContent(1)), 3)
	_, err := ledger.Cast(context.Background(), 2, models.PostTarget(10), true)
	assertErrorCode(t, err, models.CodeInternal)
	assert.True(t, errors.Is(err, errVoteContention))
	assert.Equal(t, 3, flips)
}

func TestVoteLedger_StoreErrorsPropagate(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	repo := noopVoteRepo()
	repo.insertFn = func(context.Context, *models.Vote) error { return boom }

	ledger := NewVoteLedger(repo, NewAccessScope(nil, publicContent(1)), 3)
	_, err := ledger.Cast(context.Background(), 2, models.ReplyTarget(10), false)
	assert.ErrorIs(t, err, boom)
}

func TestVoteLedger_Tally(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := newTestEnv(t)
	author := e.user(t, "author")
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	c := e.community(t, author, "golang", false)
	p1 := e.post(t, author, c, "one", baseTime)
	p2 := e.post(t, author, c, "two", baseTime)
	p3 := e.post(t, author, c, "three", baseTime)

	e.vote(t, alice, models.PostTarget(p1.ID), true)
	e.vote(t, bob, models.PostTarget(p1.ID), true)
	e.vote(t, alice, models.PostTarget(p2.ID), false)

	posts := []*models.Post{{ID: p1.ID}, {ID: p2.ID}, {ID: p3.ID}}
	require.NoError(t, e.ledger.AnnotatePosts(ctx, alice.ID, posts...))

	assert.Equal(t, 2, posts[0].Score)
	assert.Equal(t, -1, posts[1].Score)
	assert.Equal(t, 0, posts[2].Score)
	require.NotNil(t, posts[0].ViewerVote)
	assert.True(t, *posts[0].ViewerVote)
	require.NotNil(t, posts[1].ViewerVote)
	assert.False(t, *posts[1].ViewerVote)
	assert.Nil(t, posts[2].ViewerVote)

	require.NoError(t, e.ledger.AnnotatePosts(ctx, 0, posts...))
	assert.Nil(t, posts[0].ViewerVote)
	assert.Equal(t, 2, posts[0].Score)
}
