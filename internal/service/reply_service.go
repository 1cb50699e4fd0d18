package service

import (
	"context"

	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/validation"
)

type ReplyService struct {
	replyRepo repository.ReplyRepository
	userRepo  repository.UserRepository
	scope     *AccessScope
	ledger    *VoteLedger
	tree      *CommentTree
}

type CreateReplyInput struct {
	AuthorID  uint   `json:"-"`
	CommentID uint   `json:"comment_id" validate:"required"`
	Content   string `json:"content" validate:"required,max=10000"`
}

type UpdateReplyInput struct {
	UserID  uint    `json:"-"`
	ReplyID uint    `json:"-"`
	Content *string `json:"content" validate:"omitempty,min=1,max=10000"`
}

func NewReplyService(
	replyRepo repository.ReplyRepository,
	userRepo repository.UserRepository,
	scope *AccessScope,
	ledger *VoteLedger,
	tree *CommentTree,
) *ReplyService {
	return &ReplyService{
		replyRepo: replyRepo,
		userRepo:  userRepo,
		scope:     scope,
		ledger:    ledger,
		tree:      tree,
	}
}

// Create adds a reply to a comment the author can read.
func (s *ReplyService) Create(ctx context.Context, in CreateReplyInput) (*models.Reply, error) {
	if in.AuthorID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if err := requireUser(ctx, s.userRepo, in.AuthorID); err != nil {
		return nil, err
	}
	ref, err := s.scope.Resolve(ctx, models.CommentTarget(in.CommentID))
	if err != nil {
		return nil, err
	}
	if err := s.scope.RequireRead(ctx, in.AuthorID, ref); err != nil {
		return nil, err
	}

	reply := &models.Reply{
		Content:   in.Content,
		AuthorID:  in.AuthorID,
		CommentID: in.CommentID,
	}
	if err := s.replyRepo.Create(ctx, reply); err != nil {
		return nil, err
	}
	return s.load(ctx, reply.ID, in.AuthorID)
}

// List returns the comment with its replies.
func (s *ReplyService) List(ctx context.Context, commentID, viewerID uint) (*ReplyThread, error) {
	return s.tree.Thread(ctx, commentID, viewerID)
}

func (s *ReplyService) Get(ctx context.Context, replyID, viewerID uint) (*models.Reply, error) {
	ref, err := s.scope.Resolve(ctx, models.ReplyTarget(replyID))
	if err != nil {
		return nil, err
	}
	if err := s.scope.RequireRead(ctx, viewerID, ref); err != nil {
		return nil, err
	}
	return s.load(ctx, replyID, viewerID)
}

func (s *ReplyService) Update(ctx context.Context, in UpdateReplyInput) (*models.Reply, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if err := s.requireMutate(ctx, in.UserID, in.ReplyID); err != nil {
		return nil, err
	}
	reply, err := s.load(ctx, in.ReplyID, in.UserID)
	if err != nil {
		return nil, err
	}
	if in.Content != nil {
		reply.Content = *in.Content
		if err := s.replyRepo.Update(ctx, reply); err != nil {
			return nil, err
		}
	}
	return reply, nil
}

func (s *ReplyService) Delete(ctx context.Context, userID, replyID uint) error {
	if err := s.requireMutate(ctx, userID, replyID); err != nil {
		return err
	}
	return notFound(s.replyRepo.Delete(ctx, replyID), "Reply", replyID)
}

func (s *ReplyService) Vote(ctx context.Context, userID, replyID uint, isUpvote bool) (*models.Reply, error) {
	if _, err := s.ledger.Cast(ctx, userID, models.ReplyTarget(replyID), isUpvote); err != nil {
		return nil, err
	}
	return s.load(ctx, replyID, userID)
}

func (s *ReplyService) Unvote(ctx context.Context, userID, replyID uint) (*models.Reply, error) {
	if err := s.ledger.Retract(ctx, userID, models.ReplyTarget(replyID)); err != nil {
		return nil, err
	}
	return s.load(ctx, replyID, userID)
}

func (s *ReplyService) requireMutate(ctx context.Context, userID, replyID uint) error {
	if userID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	ref, err := s.scope.Resolve(ctx, models.ReplyTarget(replyID))
	if err != nil {
		return err
	}
	return s.scope.RequireMutate(ctx, userID, ref)
}

func (s *ReplyService) load(ctx context.Context, id, viewerID uint) (*models.Reply, error) {
	reply, err := s.replyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Reply", id)
	}
	if err := s.ledger.AnnotateReplies(ctx, viewerID, reply); err != nil {
		return nil, err
	}
	return reply, nil
}
