package server

import (
	"agora/internal/middleware"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateComment handles POST /api/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var in service.CreateCommentInput
	if err := parseBody(c, &in); err != nil {
		return respond(c, err)
	}
	in.AuthorID = middleware.UserID(c)

	comment, err := s.commentService.Create(c.UserContext(), in)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetComment handles GET /api/comments/:id?depth=
func (s *Server) GetComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	depth, err := parseDepth(c)
	if err != nil {
		return respond(c, err)
	}
	node, err := s.commentService.Get(c.UserContext(), id, depth, middleware.UserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(node)
}

// UpdateComment handles PATCH /api/comments/:id
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.UpdateCommentInput
	if err := parseBody(c, &in); err != nil {
		return respond(c, err)
	}
	in.UserID = middleware.UserID(c)
	in.CommentID = id

	comment, err := s.commentService.Update(c.UserContext(), in)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(comment)
}

// DeleteComment handles DELETE /api/comments/:id
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.commentService.Delete(c.UserContext(), middleware.UserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// VoteComment handles POST /api/comments/:id/vote
func (s *Server) VoteComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	up, err := parseVote(c)
	if err != nil {
		return respond(c, err)
	}
	comment, err := s.commentService.Vote(c.UserContext(), middleware.UserID(c), id, up)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(comment)
}

// UnvoteComment handles DELETE /api/comments/:id/vote
func (s *Server) UnvoteComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	comment, err := s.commentService.Unvote(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(comment)
}

// GetCommentReplies handles GET /api/comments/:id/replies
func (s *Server) GetCommentReplies(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	thread, err := s.replyService.List(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(thread)
}
