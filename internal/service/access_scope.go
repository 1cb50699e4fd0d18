// Package service implements the content core: access checks, the vote
// ledger, ranking, feed composition, comment trees and the CRUD services
// built on top of them.
package service

import (
	"context"
	"errors"

	"agora/internal/models"
	"agora/internal/repository"

	"gorm.io/gorm"
)

// notFound turns a missing-row error into a NOT_FOUND AppError and passes
// every other error through.
func notFound(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return err
}

// requireUser fails with NOT_FOUND when userID has no local user row.
func requireUser(ctx context.Context, users repository.UserRepository, userID uint) error {
	exists, err := users.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return models.NewNotFoundError("User", userID)
	}
	return nil
}

func pluralKind(kind models.TargetKind) string {
	if kind == models.TargetReply {
		return "replies"
	}
	return string(kind) + "s"
}

// AccessScope decides who may read and mutate content. Content inherits the
// visibility of the community it was posted in.
type AccessScope struct {
	communities repository.CommunityRepository
	resolver    repository.ContentResolver
}

func NewAccessScope(communities repository.CommunityRepository, resolver repository.ContentResolver) *AccessScope {
	return &AccessScope{communities: communities, resolver: resolver}
}

// Resolve loads the ownership facts for target.
func (a *AccessScope) Resolve(ctx context.Context, target models.VoteTarget) (*models.ContentRef, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	ref, err := a.resolver.Resolve(ctx, target)
	if err != nil {
		return nil, notFound(err, string(target.Kind), target.ID)
	}
	return ref, nil
}

func (a *AccessScope) canReadCommunity(ctx context.Context, viewerID, communityID, ownerID uint, private bool) (bool, error) {
	if !private {
		return true, nil
	}
	if viewerID == 0 {
		return false, nil
	}
	if viewerID == ownerID {
		return true, nil
	}
	return a.communities.IsMember(ctx, communityID, viewerID)
}

// CanReadCommunity reports whether viewerID (0 for anonymous) may read community.
func (a *AccessScope) CanReadCommunity(ctx context.Context, viewerID uint, community *models.Community) (bool, error) {
	return a.canReadCommunity(ctx, viewerID, community.ID, community.OwnerID, community.IsPrivate)
}

// CanRead reports whether viewerID may read the content behind ref.
func (a *AccessScope) CanRead(ctx context.Context, viewerID uint, ref *models.ContentRef) (bool, error) {
	return a.canReadCommunity(ctx, viewerID, ref.CommunityID, ref.CommunityOwnerID, ref.CommunityPrivate)
}

// CanMutate requires authorship and current read access; leaving a private
// community revokes edit rights over one's own content there.
func (a *AccessScope) CanMutate(ctx context.Context, subjectID uint, ref *models.ContentRef) (bool, error) {
	if subjectID == 0 || subjectID != ref.AuthorID {
		return false, nil
	}
	return a.CanRead(ctx, subjectID, ref)
}

func (a *AccessScope) RequireReadCommunity(ctx context.Context, viewerID uint, community *models.Community) error {
	ok, err := a.CanReadCommunity(ctx, viewerID, community)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewUnauthorizedError("This community is private")
	}
	return nil
}

func (a *AccessScope) RequireRead(ctx context.Context, viewerID uint, ref *models.ContentRef) error {
	ok, err := a.CanRead(ctx, viewerID, ref)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewUnauthorizedError("This " + string(ref.Target.Kind) + " belongs to a private community")
	}
	return nil
}

func (a *AccessScope) RequireMutate(ctx context.Context, subjectID uint, ref *models.ContentRef) error {
	ok, err := a.CanMutate(ctx, subjectID, ref)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewUnauthorizedError("You can only modify your own " + pluralKind(ref.Target.Kind))
	}
	return nil
}

// RequireMembership fails unless subjectID is a member of communityID.
func (a *AccessScope) RequireMembership(ctx context.Context, subjectID, communityID uint) error {
	if subjectID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	ok, err := a.communities.IsMember(ctx, communityID, subjectID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewUnauthorizedError("You are not a member of this community")
	}
	return nil
}
