package repository

import (
	"context"

	"agora/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	Roots(ctx context.Context, postID uint) ([]*models.Comment, error)
	Children(ctx context.Context, parentIDs []uint) ([]*models.Comment, error)
	ListByAuthor(ctx context.Context, authorID, viewerID uint, limit int) ([]*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, id uint) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Omit("Author").Create(comment).Error
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.withDetails(r.db.WithContext(ctx)).First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// Roots returns the top-level comments of a post in creation order.
func (r *commentRepository) Roots(ctx context.Context, postID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.withDetails(readDB(r.db).WithContext(ctx)).
		Where("comments.post_id = ? AND comments.parent_id IS NULL", postID).
		Order("comments.created_at ASC, comments.id ASC").
		Find(&comments).Error
	return comments, err
}

// Children returns the direct children of every parent in parentIDs in creation order.
func (r *commentRepository) Children(ctx context.Context, parentIDs []uint) ([]*models.Comment, error) {
	if len(parentIDs) == 0 {
		return []*models.Comment{}, nil
	}
	var comments []*models.Comment
	err := r.withDetails(readDB(r.db).WithContext(ctx)).
		Where("comments.parent_id IN ?", parentIDs).
		Order("comments.created_at ASC, comments.id ASC").
		Find(&comments).Error
	return comments, err
}

// ListByAuthor returns authorID's newest comments on posts viewerID may read.
func (r *commentRepository) ListByAuthor(ctx context.Context, authorID, viewerID uint, limit int) ([]*models.Comment, error) {
	db := readDB(r.db).WithContext(ctx)
	var comments []*models.Comment
	err := r.withDetails(db).
		Joins("JOIN posts ON posts.id = comments.post_id").
		Where("comments.author_id = ?", authorID).
		Where("posts.community_id IN (?)", visibleCommunityIDs(db, viewerID)).
		Order("comments.created_at DESC, comments.id DESC").
		Limit(limit).
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) withDetails(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Comment{}).
		Select("comments.*, " +
			scoreSelect(models.TargetComment, "comments") + ", " +
			"(SELECT COUNT(*) FROM replies WHERE replies.comment_id = comments.id) AS reply_count").
		Preload("Author")
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Model(comment).Select("Content").Updates(comment).Error
}

// Delete removes the comment, all of its descendants, their replies and votes.
func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Comment{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}

		subtree := []uint{id}
		frontier := []uint{id}
		for len(frontier) > 0 {
			var next []uint
			if err := tx.Model(&models.Comment{}).Where("parent_id IN ?", frontier).Pluck("id", &next).Error; err != nil {
				return err
			}
			subtree = append(subtree, next...)
			frontier = next
		}
		return deleteCommentsCascade(tx, subtree)
	})
}
