package service

import (
	"context"

	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/validation"
)

type PostService struct {
	postRepo      repository.PostRepository
	communityRepo repository.CommunityRepository
	userRepo      repository.UserRepository
	scope         *AccessScope
	ledger        *VoteLedger
	ranking       *RankingEngine
}

type CreatePostInput struct {
	AuthorID    uint   `json:"-"`
	CommunityID uint   `json:"community_id" validate:"required"`
	Title       string `json:"title" validate:"required,max=300"`
	Content     string `json:"content" validate:"required,max=50000"`
}

// UpdatePostInput changes only the fields that are set.
type UpdatePostInput struct {
	UserID  uint    `json:"-"`
	PostID  uint    `json:"-"`
	Title   *string `json:"title" validate:"omitempty,min=1,max=300"`
	Content *string `json:"content" validate:"omitempty,min=1,max=50000"`
}

func NewPostService(
	postRepo repository.PostRepository,
	communityRepo repository.CommunityRepository,
	userRepo repository.UserRepository,
	scope *AccessScope,
	ledger *VoteLedger,
	ranking *RankingEngine,
) *PostService {
	return &PostService{
		postRepo:      postRepo,
		communityRepo: communityRepo,
		userRepo:      userRepo,
		scope:         scope,
		ledger:        ledger,
		ranking:       ranking,
	}
}

// Create publishes a post. Private communities accept posts from members only.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.AuthorID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if err := requireUser(ctx, s.userRepo, in.AuthorID); err != nil {
		return nil, err
	}
	community, err := s.communityRepo.GetByID(ctx, in.CommunityID)
	if err != nil {
		return nil, notFound(err, "Community", in.CommunityID)
	}
	if community.IsPrivate {
		if err := s.scope.RequireMembership(ctx, in.AuthorID, community.ID); err != nil {
			return nil, err
		}
	}

	post := &models.Post{
		Title:       in.Title,
		Content:     in.Content,
		AuthorID:    in.AuthorID,
		CommunityID: in.CommunityID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.load(ctx, post.ID, in.AuthorID)
}

// Get returns the post if viewerID may read it.
func (s *PostService) Get(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	ref, err := s.scope.Resolve(ctx, models.PostTarget(id))
	if err != nil {
		return nil, err
	}
	if err := s.scope.RequireRead(ctx, viewerID, ref); err != nil {
		return nil, err
	}
	return s.load(ctx, id, viewerID)
}

func (s *PostService) ListByCommunity(ctx context.Context, viewerID, communityID uint, opts FilterOptions) (*Page[*models.Post], error) {
	return s.ranking.Rank(ctx, viewerID, ForCommunity(communityID), opts)
}

func (s *PostService) ListByAuthor(ctx context.Context, viewerID, authorID uint, opts FilterOptions) (*Page[*models.Post], error) {
	return s.ranking.Rank(ctx, viewerID, ForAuthor(authorID), opts)
}

// ListAll ranks posts across every community viewerID may read.
func (s *PostService) ListAll(ctx context.Context, viewerID uint, opts FilterOptions) (*Page[*models.Post], error) {
	return s.ranking.Rank(ctx, viewerID, ForAll(), opts)
}

func (s *PostService) Update(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if err := s.requireMutate(ctx, in.UserID, in.PostID); err != nil {
		return nil, err
	}
	post, err := s.load(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		post.Title = *in.Title
	}
	if in.Content != nil {
		post.Content = *in.Content
	}
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Delete removes the post with its comments, replies and votes.
func (s *PostService) Delete(ctx context.Context, userID, postID uint) error {
	if err := s.requireMutate(ctx, userID, postID); err != nil {
		return err
	}
	return notFound(s.postRepo.Delete(ctx, postID), "Post", postID)
}

// Vote casts userID's vote and returns the post with its new score.
func (s *PostService) Vote(ctx context.Context, userID, postID uint, isUpvote bool) (*models.Post, error) {
	if _, err := s.ledger.Cast(ctx, userID, models.PostTarget(postID), isUpvote); err != nil {
		return nil, err
	}
	return s.load(ctx, postID, userID)
}

// Unvote retracts userID's vote and returns the post with its new score.
func (s *PostService) Unvote(ctx context.Context, userID, postID uint) (*models.Post, error) {
	if err := s.ledger.Retract(ctx, userID, models.PostTarget(postID)); err != nil {
		return nil, err
	}
	return s.load(ctx, postID, userID)
}

func (s *PostService) requireMutate(ctx context.Context, userID, postID uint) error {
	if userID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	ref, err := s.scope.Resolve(ctx, models.PostTarget(postID))
	if err != nil {
		return err
	}
	return s.scope.RequireMutate(ctx, userID, ref)
}

func (s *PostService) load(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Post", id)
	}
	if err := s.ledger.AnnotatePosts(ctx, viewerID, post); err != nil {
		return nil, err
	}
	return post, nil
}
