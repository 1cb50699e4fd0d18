package repository

import (
	"context"
	"errors"

	"agora/internal/cache"
	"agora/internal/models"

	"gorm.io/gorm"
)

// ErrAlreadyMember is returned when a membership row already exists.
var ErrAlreadyMember = errors.New("already a member")

// CommunityRepository defines the interface for community and membership data operations
type CommunityRepository interface {
	Create(ctx context.Context, community *models.Community) error
	GetByID(ctx context.Context, id uint) (*models.Community, error)
	List(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Community, error)
	ListForMember(ctx context.Context, userID uint) ([]*models.Community, error)
	Update(ctx context.Context, community *models.Community) error
	Delete(ctx context.Context, id uint) error

	AddMember(ctx context.Context, communityID, userID uint, role models.MembershipRole) error
	RemoveMember(ctx context.Context, communityID, userID uint) (bool, error)
	GetMembership(ctx context.Context, communityID, userID uint) (*models.CommunityMembership, error)
	IsMember(ctx context.Context, communityID, userID uint) (bool, error)
	MemberCommunityIDs(ctx context.Context, userID uint) ([]uint, error)
	NewestPublic(ctx context.Context, excludeIDs []uint, limit int) ([]*models.Community, error)
}

type communityRepository struct {
	db *gorm.DB
}

// NewCommunityRepository creates a new community repository
func NewCommunityRepository(db *gorm.DB) CommunityRepository {
	return &communityRepository{db: db}
}

// Create inserts the community and its owner membership atomically.
func (r *communityRepository) Create(ctx context.Context, community *models.Community) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Owner").Create(community).Error; err != nil {
			return err
		}
		return tx.Create(&models.CommunityMembership{
			CommunityID: community.ID,
			UserID:      community.OwnerID,
			Role:        models.MembershipRoleOwner,
		}).Error
	})
	if err != nil {
		return err
	}
	cache.InvalidateMemberships(ctx, community.OwnerID)
	return nil
}

func (r *communityRepository) GetByID(ctx context.Context, id uint) (*models.Community, error) {
	var community models.Community
	err := cache.Aside(ctx, cache.CommunityKey(id), &community, cache.CommunityTTL, func() error {
		return r.db.WithContext(ctx).First(&community, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &community, nil
}

// List returns the communities viewerID can see, newest first.
func (r *communityRepository) List(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Community, error) {
	var communities []*models.Community
	db := readDB(r.db)
	err := db.WithContext(ctx).
		Where("id IN (?)", visibleCommunityIDs(db.WithContext(ctx), viewerID)).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&communities).Error
	return communities, err
}

func (r *communityRepository) ListForMember(ctx context.Context, userID uint) ([]*models.Community, error) {
	var communities []*models.Community
	err := r.db.WithContext(ctx).
		Joins("JOIN community_memberships ON community_memberships.community_id = communities.id").
		Where("community_memberships.user_id = ?", userID).
		Order("communities.created_at DESC, communities.id DESC").
		Find(&communities).Error
	return communities, err
}

func (r *communityRepository) Update(ctx context.Context, community *models.Community) error {
	err := r.db.WithContext(ctx).Model(community).
		Select("Name", "Description", "IsPrivate").
		Updates(community).Error
	if err != nil {
		return err
	}
	cache.InvalidateCommunity(ctx, community.ID)
	return nil
}

// Delete removes the community with its memberships, posts, comments,
// replies and every related vote.
func (r *communityRepository) Delete(ctx context.Context, id uint) error {
	var memberIDs []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.CommunityMembership{}).
			Where("community_id = ?", id).
			Pluck("user_id", &memberIDs).Error; err != nil {
			return err
		}

		postIDs := tx.Model(&models.Post{}).Select("posts.id").Where("posts.community_id = ?", id)
		if err := deletePostsCascade(tx, postIDs); err != nil {
			return err
		}
		if err := tx.Where("community_id = ?", id).Delete(&models.CommunityMembership{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Community{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	cache.InvalidateCommunity(ctx, id)
	cache.InvalidateMemberships(ctx, memberIDs...)
	return nil
}

func (r *communityRepository) AddMember(ctx context.Context, communityID, userID uint, role models.MembershipRole) error {
	err := r.db.WithContext(ctx).Create(&models.CommunityMembership{
		CommunityID: communityID,
		UserID:      userID,
		Role:        role,
	}).Error
	if IsUniqueViolation(err) {
		return ErrAlreadyMember
	}
	if err != nil {
		return err
	}
	cache.InvalidateMemberships(ctx, userID)
	return nil
}

// RemoveMember deletes the membership and reports whether one existed.
func (r *communityRepository) RemoveMember(ctx context.Context, communityID, userID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Delete(&models.CommunityMembership{})
	if result.Error != nil {
		return false, result.Error
	}
	cache.InvalidateMemberships(ctx, userID)
	return result.RowsAffected > 0, nil
}

func (r *communityRepository) GetMembership(ctx context.Context, communityID, userID uint) (*models.CommunityMembership, error) {
	var membership models.CommunityMembership
	err := r.db.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

func (r *communityRepository) IsMember(ctx context.Context, communityID, userID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CommunityMembership{}).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *communityRepository) MemberCommunityIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids := []uint{}
	err := cache.Aside(ctx, cache.MembershipKey(userID), &ids, cache.MembershipTTL, func() error {
		return r.db.WithContext(ctx).
			Model(&models.CommunityMembership{}).
			Where("user_id = ?", userID).
			Order("community_id ASC").
			Pluck("community_id", &ids).Error
	})
	return ids, err
}

// NewestPublic returns up to limit public communities, newest first,
// skipping excludeIDs.
func (r *communityRepository) NewestPublic(ctx context.Context, excludeIDs []uint, limit int) ([]*models.Community, error) {
	if limit <= 0 {
		return []*models.Community{}, nil
	}
	var communities []*models.Community
	q := readDB(r.db).WithContext(ctx).Where("is_private = ?", false)
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&communities).Error
	return communities, err
}
