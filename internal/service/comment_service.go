package service

import (
	"context"

	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/validation"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	userRepo    repository.UserRepository
	scope       *AccessScope
	ledger      *VoteLedger
	tree        *CommentTree
}

type CreateCommentInput struct {
	AuthorID uint   `json:"-"`
	PostID   uint   `json:"post_id" validate:"required"`
	ParentID *uint  `json:"parent_id"`
	Content  string `json:"content" validate:"required,max=10000"`
}

type UpdateCommentInput struct {
	UserID    uint    `json:"-"`
	CommentID uint    `json:"-"`
	Content   *string `json:"content" validate:"omitempty,min=1,max=10000"`
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
	scope *AccessScope,
	ledger *VoteLedger,
	tree *CommentTree,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		userRepo:    userRepo,
		scope:       scope,
		ledger:      ledger,
		tree:        tree,
	}
}

// Create adds a comment to a post the author can read, optionally under a
// parent comment on the same post.
func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if in.AuthorID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if err := requireUser(ctx, s.userRepo, in.AuthorID); err != nil {
		return nil, err
	}
	ref, err := s.scope.Resolve(ctx, models.PostTarget(in.PostID))
	if err != nil {
		return nil, err
	}
	if err := s.scope.RequireRead(ctx, in.AuthorID, ref); err != nil {
		return nil, err
	}
	if in.ParentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, notFound(err, "Comment", *in.ParentID)
		}
		if parent.PostID != in.PostID {
			return nil, models.NewValidationError("Parent comment belongs to a different post")
		}
	}

	comment := &models.Comment{
		Content:  in.Content,
		AuthorID: in.AuthorID,
		PostID:   in.PostID,
		ParentID: in.ParentID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	return s.load(ctx, comment.ID, in.AuthorID)
}

// ListByPost returns the post's comment tree.
func (s *CommentService) ListByPost(ctx context.Context, postID uint, depth *int, viewerID uint) ([]*CommentNode, error) {
	return s.tree.Tree(ctx, postID, depth, viewerID)
}

// Get returns the comment expanded up to depth levels.
func (s *CommentService) Get(ctx context.Context, commentID uint, depth *int, viewerID uint) (*CommentNode, error) {
	return s.tree.Subtree(ctx, commentID, depth, viewerID)
}

func (s *CommentService) Update(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if err := s.requireMutate(ctx, in.UserID, in.CommentID); err != nil {
		return nil, err
	}
	comment, err := s.load(ctx, in.CommentID, in.UserID)
	if err != nil {
		return nil, err
	}
	if in.Content != nil {
		comment.Content = *in.Content
		if err := s.commentRepo.Update(ctx, comment); err != nil {
			return nil, err
		}
	}
	return comment, nil
}

// Delete removes the comment, its descendants and their replies and votes.
func (s *CommentService) Delete(ctx context.Context, userID, commentID uint) error {
	if err := s.requireMutate(ctx, userID, commentID); err != nil {
		return err
	}
	return notFound(s.commentRepo.Delete(ctx, commentID), "Comment", commentID)
}

func (s *CommentService) Vote(ctx context.Context, userID, commentID uint, isUpvote bool) (*models.Comment, error) {
	if _, err := s.ledger.Cast(ctx, userID, models.CommentTarget(commentID), isUpvote); err != nil {
		return nil, err
	}
	return s.load(ctx, commentID, userID)
}

func (s *CommentService) Unvote(ctx context.Context, userID, commentID uint) (*models.Comment, error) {
	if err := s.ledger.Retract(ctx, userID, models.CommentTarget(commentID)); err != nil {
		return nil, err
	}
	return s.load(ctx, commentID, userID)
}

func (s *CommentService) requireMutate(ctx context.Context, userID, commentID uint) error {
	if userID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	ref, err := s.scope.Resolve(ctx, models.CommentTarget(commentID))
	if err != nil {
		return err
	}
	return s.scope.RequireMutate(ctx, userID, ref)
}

func (s *CommentService) load(ctx context.Context, id, viewerID uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Comment", id)
	}
	if err := s.ledger.AnnotateComments(ctx, viewerID, comment); err != nil {
		return nil, err
	}
	return comment, nil
}
