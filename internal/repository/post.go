package repository

import (
	"context"
	"time"

	"agora/internal/models"

	"gorm.io/gorm"
)

// PostSort selects the ordering of a post query.
type PostSort string

const (
	// SortNew orders newest first.
	SortNew PostSort = "new"
	// SortTop orders by score, then newest first.
	SortTop PostSort = "top"
)

// PostQuery describes a ranked, visibility-filtered post listing. At most one
// of CommunityIDs or AuthorID narrows the source; neither means every
// readable post.
type PostQuery struct {
	CommunityIDs []uint
	AuthorID     uint
	Since        *time.Time
	ExcludeIDs   []uint
	Sort         PostSort
	Offset       int
	Limit        int
	ViewerID     uint
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Query(ctx context.Context, q PostQuery) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Omit("Author", "Community").Create(post).Error
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.applyPostDetails(r.db.WithContext(ctx)).
		Preload("Author").
		First(&post, id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Query runs q against posts the viewer may read.
func (r *postRepository) Query(ctx context.Context, q PostQuery) ([]*models.Post, error) {
	db := readDB(r.db)
	base := r.applyPostDetails(db.WithContext(ctx)).
		Preload("Author").
		Where("posts.community_id IN (?)", visibleCommunityIDs(db.WithContext(ctx), q.ViewerID))

	if q.CommunityIDs != nil {
		if len(q.CommunityIDs) == 0 {
			return []*models.Post{}, nil
		}
		base = base.Where("posts.community_id IN ?", q.CommunityIDs)
	}
	if q.AuthorID != 0 {
		base = base.Where("posts.author_id = ?", q.AuthorID)
	}
	if q.Since != nil {
		base = base.Where("posts.created_at > ?", *q.Since)
	}
	if len(q.ExcludeIDs) > 0 {
		base = base.Where("posts.id NOT IN ?", q.ExcludeIDs)
	}

	var posts []*models.Post
	err := applySort(base, q.Sort).
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// applySort appends the ORDER BY clause. score is a SELECT alias from
// applyPostDetails, which both PostgreSQL and SQLite accept in ORDER BY.
func applySort(db *gorm.DB, sort PostSort) *gorm.DB {
	switch sort {
	case SortTop:
		return db.Order("score DESC, posts.created_at DESC, posts.id DESC")
	default:
		return db.Order("posts.created_at DESC, posts.id DESC")
	}
}

// applyPostDetails adds the score and comment count subqueries.
func (r *postRepository) applyPostDetails(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Post{}).Select("posts.*, " +
		scoreSelect(models.TargetPost, "posts") + ", " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count")
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Model(post).
		Select("Title", "Content").
		Updates(post).Error
}

// Delete removes the post with its comments, replies and every related vote.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		postIDs := tx.Model(&models.Post{}).Select("posts.id").Where("posts.id = ?", id)
		return deletePostsCascade(tx, postIDs)
	})
}
