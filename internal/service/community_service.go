package service

import (
	"context"
	"errors"
	"log/slog"

	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/validation"

	"gorm.io/gorm"
)

type CommunityService struct {
	communityRepo repository.CommunityRepository
	userRepo      repository.UserRepository
	scope         *AccessScope
}

type CreateCommunityInput struct {
	OwnerID     uint   `json:"-"`
	Name        string `json:"name" validate:"required,community_name"`
	Description string `json:"description" validate:"max=2000"`
	IsPrivate   bool   `json:"is_private"`
}

// UpdateCommunityInput changes only the fields that are set.
type UpdateCommunityInput struct {
	UserID      uint    `json:"-"`
	CommunityID uint    `json:"-"`
	Name        *string `json:"name" validate:"omitempty,community_name"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	IsPrivate   *bool   `json:"is_private"`
}

// MembershipStatus answers a membership check.
type MembershipStatus struct {
	CommunityID uint                  `json:"community_id"`
	IsMember    bool                  `json:"is_member"`
	Role        models.MembershipRole `json:"role,omitempty"`
}

func NewCommunityService(
	communityRepo repository.CommunityRepository,
	userRepo repository.UserRepository,
	scope *AccessScope,
) *CommunityService {
	return &CommunityService{
		communityRepo: communityRepo,
		userRepo:      userRepo,
		scope:         scope,
	}
}

func (s *CommunityService) Create(ctx context.Context, in CreateCommunityInput) (*models.Community, error) {
	if in.OwnerID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if err := requireUser(ctx, s.userRepo, in.OwnerID); err != nil {
		return nil, err
	}

	community := &models.Community{
		Name:        in.Name,
		Description: in.Description,
		IsPrivate:   in.IsPrivate,
		OwnerID:     in.OwnerID,
	}
	if err := s.communityRepo.Create(ctx, community); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, models.NewConflictError("Community name is already taken")
		}
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "community created",
		slog.Uint64("community_id", uint64(community.ID)),
		slog.Bool("private", community.IsPrivate),
	)
	return community, nil
}

// Get returns the community; private communities require membership.
func (s *CommunityService) Get(ctx context.Context, id, viewerID uint) (*models.Community, error) {
	community, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.scope.RequireReadCommunity(ctx, viewerID, community); err != nil {
		return nil, err
	}
	return community, nil
}

// List returns the communities viewerID can see, newest first.
func (s *CommunityService) List(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Community, error) {
	return s.communityRepo.List(ctx, viewerID, limit, offset)
}

// ListForMember returns the communities userID belongs to.
func (s *CommunityService) ListForMember(ctx context.Context, userID uint) ([]*models.Community, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	return s.communityRepo.ListForMember(ctx, userID)
}

func (s *CommunityService) Update(ctx context.Context, in UpdateCommunityInput) (*models.Community, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	community, err := s.requireOwner(ctx, in.CommunityID, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		community.Name = *in.Name
	}
	if in.Description != nil {
		community.Description = *in.Description
	}
	if in.IsPrivate != nil {
		community.IsPrivate = *in.IsPrivate
	}
	if err := s.communityRepo.Update(ctx, community); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, models.NewConflictError("Community name is already taken")
		}
		return nil, err
	}
	return community, nil
}

// Delete removes the community and everything posted in it. Owner only.
func (s *CommunityService) Delete(ctx context.Context, userID, communityID uint) error {
	if _, err := s.requireOwner(ctx, communityID, userID); err != nil {
		return err
	}
	if err := s.communityRepo.Delete(ctx, communityID); err != nil {
		return notFound(err, "Community", communityID)
	}
	middleware.Logger.InfoContext(ctx, "community deleted", slog.Uint64("community_id", uint64(communityID)))
	return nil
}

// Join adds userID to a public community.
func (s *CommunityService) Join(ctx context.Context, userID, communityID uint) error {
	if userID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	community, err := s.load(ctx, communityID)
	if err != nil {
		return err
	}
	if community.IsPrivate {
		return models.NewUnauthorizedError("This community is private; ask the owner to add you")
	}
	return s.addMember(ctx, communityID, userID)
}

// AddMember lets the owner add targetUserID, the only way into a private community.
func (s *CommunityService) AddMember(ctx context.Context, ownerID, communityID, targetUserID uint) error {
	if _, err := s.requireOwner(ctx, communityID, ownerID); err != nil {
		return err
	}
	if err := requireUser(ctx, s.userRepo, targetUserID); err != nil {
		return err
	}
	return s.addMember(ctx, communityID, targetUserID)
}

func (s *CommunityService) addMember(ctx context.Context, communityID, userID uint) error {
	err := s.communityRepo.AddMember(ctx, communityID, userID, models.MembershipRoleMember)
	if errors.Is(err, repository.ErrAlreadyMember) {
		return models.NewConflictError("Already a member of this community")
	}
	return err
}

// Leave removes userID from the community. The owner cannot leave.
func (s *CommunityService) Leave(ctx context.Context, userID, communityID uint) error {
	if userID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	community, err := s.load(ctx, communityID)
	if err != nil {
		return err
	}
	if community.OwnerID == userID {
		return models.NewUnauthorizedError("The owner cannot leave their own community")
	}
	removed, err := s.communityRepo.RemoveMember(ctx, communityID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return models.NewValidationError("You are not a member of this community")
	}
	return nil
}

// IsMember reports userID's membership in the community.
func (s *CommunityService) IsMember(ctx context.Context, userID, communityID uint) (*MembershipStatus, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if _, err := s.load(ctx, communityID); err != nil {
		return nil, err
	}
	status := &MembershipStatus{CommunityID: communityID}
	membership, err := s.communityRepo.GetMembership(ctx, communityID, userID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return status, nil
	case err != nil:
		return nil, err
	}
	status.IsMember = true
	status.Role = membership.Role
	return status, nil
}

func (s *CommunityService) load(ctx context.Context, id uint) (*models.Community, error) {
	community, err := s.communityRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Community", id)
	}
	return community, nil
}

func (s *CommunityService) requireOwner(ctx context.Context, communityID, userID uint) (*models.Community, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	community, err := s.load(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if community.OwnerID != userID {
		return nil, models.NewUnauthorizedError("You are not the owner of this community")
	}
	return community, nil
}
