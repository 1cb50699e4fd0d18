package repository

import (
	"context"

	"agora/internal/models"

	"gorm.io/gorm"
)

// ReplyRepository defines interface for reply operations
type ReplyRepository interface {
	Create(ctx context.Context, reply *models.Reply) error
	GetByID(ctx context.Context, id uint) (*models.Reply, error)
	ListByComment(ctx context.Context, commentID uint) ([]*models.Reply, error)
	ListByAuthor(ctx context.Context, authorID, viewerID uint, limit int) ([]*models.Reply, error)
	Update(ctx context.Context, reply *models.Reply) error
	Delete(ctx context.Context, id uint) error
}

type replyRepository struct {
	db *gorm.DB
}

// NewReplyRepository creates a new ReplyRepository
func NewReplyRepository(db *gorm.DB) ReplyRepository {
	return &replyRepository{db: db}
}

func (r *replyRepository) Create(ctx context.Context, reply *models.Reply) error {
	return r.db.WithContext(ctx).Omit("Author").Create(reply).Error
}

func (r *replyRepository) GetByID(ctx context.Context, id uint) (*models.Reply, error) {
	var reply models.Reply
	if err := r.withDetails(r.db.WithContext(ctx)).First(&reply, id).Error; err != nil {
		return nil, err
	}
	return &reply, nil
}

// ListByComment returns a comment's replies in creation order.
func (r *replyRepository) ListByComment(ctx context.Context, commentID uint) ([]*models.Reply, error) {
	var replies []*models.Reply
	err := r.withDetails(readDB(r.db).WithContext(ctx)).
		Where("replies.comment_id = ?", commentID).
		Order("replies.created_at ASC, replies.id ASC").
		Find(&replies).Error
	return replies, err
}

// ListByAuthor returns authorID's newest replies under posts viewerID may read.
func (r *replyRepository) ListByAuthor(ctx context.Context, authorID, viewerID uint, limit int) ([]*models.Reply, error) {
	db := readDB(r.db).WithContext(ctx)
	var replies []*models.Reply
	err := r.withDetails(db).
		Joins("JOIN comments ON comments.id = replies.comment_id").
		Joins("JOIN posts ON posts.id = comments.post_id").
		Where("replies.author_id = ?", authorID).
		Where("posts.community_id IN (?)", visibleCommunityIDs(db, viewerID)).
		Order("replies.created_at DESC, replies.id DESC").
		Limit(limit).
		Find(&replies).Error
	return replies, err
}

func (r *replyRepository) withDetails(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Reply{}).
		Select("replies.*, " + scoreSelect(models.TargetReply, "replies")).
		Preload("Author")
}

func (r *replyRepository) Update(ctx context.Context, reply *models.Reply) error {
	return r.db.WithContext(ctx).Model(reply).Select("Content").Updates(reply).Error
}

// Delete removes the reply and its votes.
func (r *replyRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("target_kind = ? AND target_id = ?", models.TargetReply, id).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Reply{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
