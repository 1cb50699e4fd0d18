package repository

import (
	"context"
	"errors"

	"agora/internal/models"

	"gorm.io/gorm"
)

// ErrVoteExists is returned by Insert when the voter already holds a vote on the target.
var ErrVoteExists = errors.New("vote already exists")

// VoteRepository is the persistence port of the vote ledger. Every method
// is a single statement; the unique (voter, target) index is the
// arbiter of concurrent writers.
type VoteRepository interface {
	Find(ctx context.Context, voterID uint, target models.VoteTarget) (*models.Vote, error)
	Insert(ctx context.Context, vote *models.Vote) error
	SetDirection(ctx context.Context, voteID uint, isUpvote, expectedPrev bool) (bool, error)
	Delete(ctx context.Context, voterID uint, target models.VoteTarget) (bool, error)
	ListForTarget(ctx context.Context, target models.VoteTarget) ([]models.Vote, error)
	ListByVoter(ctx context.Context, voterID, viewerID uint, limit int) ([]models.Vote, error)
	Score(ctx context.Context, target models.VoteTarget) (int, error)
	Scores(ctx context.Context, kind models.TargetKind, ids []uint) (map[uint]int, error)
	ViewerVotes(ctx context.Context, kind models.TargetKind, ids []uint, viewerID uint) (map[uint]bool, error)
}

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository creates a new VoteRepository
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

// Find returns the voter's vote on target, or nil when there is none.
func (r *voteRepository) Find(ctx context.Context, voterID uint, target models.VoteTarget) (*models.Vote, error) {
	var votes []models.Vote
	err := r.db.WithContext(ctx).
		Where("voter_id = ? AND target_kind = ? AND target_id = ?", voterID, target.Kind, target.ID).
		Limit(1).
		Find(&votes).Error
	if err != nil {
		return nil, err
	}
	if len(votes) == 0 {
		return nil, nil
	}
	return &votes[0], nil
}

// Insert stores a new vote; ErrVoteExists signals a concurrent or prior insert.
func (r *voteRepository) Insert(ctx context.Context, vote *models.Vote) error {
	err := r.db.WithContext(ctx).Create(vote).Error
	if IsUniqueViolation(err) {
		return ErrVoteExists
	}
	return err
}

// SetDirection flips a vote only if it still has expectedPrev, reporting
// whether a row changed.
func (r *voteRepository) SetDirection(ctx context.Context, voteID uint, isUpvote, expectedPrev bool) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Vote{}).
		Where("id = ? AND is_upvote = ?", voteID, expectedPrev).
		Update("is_upvote", isUpvote)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Delete removes the voter's vote on target, reporting whether one existed.
func (r *voteRepository) Delete(ctx context.Context, voterID uint, target models.VoteTarget) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("voter_id = ? AND target_kind = ? AND target_id = ?", voterID, target.Kind, target.ID).
		Delete(&models.Vote{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *voteRepository) ListForTarget(ctx context.Context, target models.VoteTarget) ([]models.Vote, error) {
	var votes []models.Vote
	err := r.db.WithContext(ctx).
		Where("target_kind = ? AND target_id = ?", target.Kind, target.ID).
		Order("id ASC").
		Find(&votes).Error
	return votes, err
}

// ListByVoter returns voterID's newest votes on content viewerID may read.
func (r *voteRepository) ListByVoter(ctx context.Context, voterID, viewerID uint, limit int) ([]models.Vote, error) {
	db := readDB(r.db).WithContext(ctx)
	postIDs := db.Model(&models.Post{}).
		Select("posts.id").
		Where("posts.community_id IN (?)", visibleCommunityIDs(db, viewerID))
	commentIDs := db.Model(&models.Comment{}).
		Select("comments.id").
		Joins("JOIN posts ON posts.id = comments.post_id").
		Where("posts.community_id IN (?)", visibleCommunityIDs(db, viewerID))
	replyIDs := db.Model(&models.Reply{}).
		Select("replies.id").
		Joins("JOIN comments ON comments.id = replies.comment_id").
		Joins("JOIN posts ON posts.id = comments.post_id").
		Where("posts.community_id IN (?)", visibleCommunityIDs(db, viewerID))

	var votes []models.Vote
	err := db.
		Where("voter_id = ?", voterID).
		Where("((target_kind = ? AND target_id IN (?)) OR (target_kind = ? AND target_id IN (?)) OR (target_kind = ? AND target_id IN (?)))",
			models.TargetPost, postIDs,
			models.TargetComment, commentIDs,
			models.TargetReply, replyIDs,
		).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&votes).Error
	return votes, err
}

func (r *voteRepository) Score(ctx context.Context, target models.VoteTarget) (int, error) {
	scores, err := r.Scores(ctx, target.Kind, []uint{target.ID})
	if err != nil {
		return 0, err
	}
	return scores[target.ID], nil
}

type targetScore struct {
	TargetID uint
	Score    int
}

// Scores returns upvotes minus downvotes per id; ids without votes are absent.
func (r *voteRepository) Scores(ctx context.Context, kind models.TargetKind, ids []uint) (map[uint]int, error) {
	out := make(map[uint]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []targetScore
	err := r.db.WithContext(ctx).
		Model(&models.Vote{}).
		Select("target_id, COALESCE(SUM(CASE WHEN is_upvote THEN 1 ELSE -1 END), 0) AS score").
		Where("target_kind = ? AND target_id IN ?", kind, ids).
		Group("target_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.TargetID] = row.Score
	}
	return out, nil
}

// ViewerVotes returns viewerID's vote direction per id; ids without a vote are absent.
func (r *voteRepository) ViewerVotes(ctx context.Context, kind models.TargetKind, ids []uint, viewerID uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(ids))
	if len(ids) == 0 || viewerID == 0 {
		return out, nil
	}
	var votes []models.Vote
	err := r.db.WithContext(ctx).
		Where("voter_id = ? AND target_kind = ? AND target_id IN ?", viewerID, kind, ids).
		Find(&votes).Error
	if err != nil {
		return nil, err
	}
	for _, v := range votes {
		out[v.TargetID] = v.IsUpvote
	}
	return out, nil
}
