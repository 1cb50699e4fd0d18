package repository

import (
	"context"
	"fmt"

	"agora/internal/models"

	"gorm.io/gorm"
)

// ContentResolver maps a vote target to its author and enclosing community.
type ContentResolver interface {
	Resolve(ctx context.Context, target models.VoteTarget) (*models.ContentRef, error)
}

type contentResolver struct {
	db *gorm.DB
}

// NewContentResolver creates a new ContentResolver
func NewContentResolver(db *gorm.DB) ContentResolver {
	return &contentResolver{db: db}
}

type contentRow struct {
	AuthorID         uint
	PostID           uint
	CommunityID      uint
	CommunityPrivate bool
	CommunityOwnerID uint
}

const contentColumns = "posts.id AS post_id, communities.id AS community_id, " +
	"communities.is_private AS community_private, communities.owner_id AS community_owner_id"

// Resolve walks reply -> comment -> post -> community in one query.
// gorm.ErrRecordNotFound is returned when the target does not exist.
func (r *contentResolver) Resolve(ctx context.Context, target models.VoteTarget) (*models.ContentRef, error) {
	q := r.db.WithContext(ctx)
	switch target.Kind {
	case models.TargetPost:
		q = q.Table("posts").
			Select("posts.author_id AS author_id, "+contentColumns).
			Joins("JOIN communities ON communities.id = posts.community_id").
			Where("posts.id = ?", target.ID)
	case models.TargetComment:
		q = q.Table("comments").
			Select("comments.author_id AS author_id, "+contentColumns).
			Joins("JOIN posts ON posts.id = comments.post_id").
			Joins("JOIN communities ON communities.id = posts.community_id").
			Where("comments.id = ?", target.ID)
	case models.TargetReply:
		q = q.Table("replies").
			Select("replies.author_id AS author_id, "+contentColumns).
			Joins("JOIN comments ON comments.id = replies.comment_id").
			Joins("JOIN posts ON posts.id = comments.post_id").
			Joins("JOIN communities ON communities.id = posts.community_id").
			Where("replies.id = ?", target.ID)
	default:
		return nil, fmt.Errorf("resolve %s: unknown target kind", target)
	}

	var rows []contentRow
	if err := q.Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	row := rows[0]
	return &models.ContentRef{
		Target:           target,
		AuthorID:         row.AuthorID,
		PostID:           row.PostID,
		CommunityID:      row.CommunityID,
		CommunityPrivate: row.CommunityPrivate,
		CommunityOwnerID: row.CommunityOwnerID,
	}, nil
}
