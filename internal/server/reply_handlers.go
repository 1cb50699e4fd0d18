package server

import (
	"agora/internal/middleware"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateReply handles POST /api/replies
func (s *Server) CreateReply(c *fiber.Ctx) error {
	var in service.CreateReplyInput
	if err := parseBody(c, &in); err != nil {
		return respond(c, err)
	}
	in.AuthorID = middleware.UserID(c)

	reply, err := s.replyService.Create(c.UserContext(), in)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reply)
}

// GetReply handles GET /api/replies/:id
func (s *Server) GetReply(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	reply, err := s.replyService.Get(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(reply)
}

// UpdateReply handles PATCH /api/replies/:id
func (s *Server) UpdateReply(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.UpdateReplyInput
	if err := parseBody(c, &in); err != nil {
		return respond(c, err)
	}
	in.UserID = middleware.UserID(c)
	in.ReplyID = id

	reply, err := s.replyService.Update(c.UserContext(), in)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(reply)
}

// DeleteReply handles DELETE /api/replies/:id
func (s *Server) DeleteReply(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.replyService.Delete(c.UserContext(), middleware.UserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// VoteReply handles POST /api/replies/:id/vote
func (s *Server) VoteReply(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	up, err := parseVote(c)
	if err != nil {
		return respond(c, err)
	}
	reply, err := s.replyService.Vote(c.UserContext(), middleware.UserID(c), id, up)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(reply)
}

// UnvoteReply handles DELETE /api/replies/:id/vote
func (s *Server) UnvoteReply(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	reply, err := s.replyService.Unvote(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(reply)
}
