package server

import (
	"agora/internal/middleware"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var in service.CreatePostInput
	if err := parseBody(c, &in); err != nil {
		return respond(c, err)
	}
	in.AuthorID = middleware.UserID(c)

	post, err := s.postService.Create(c.UserContext(), in)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.Get(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PATCH /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.UpdatePostInput
	if err := parseBody(c, &in); err != nil {
		return respond(c, err)
	}
	in.UserID = middleware.UserID(c)
	in.PostID = id

	post, err := s.postService.Update(c.UserContext(), in)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.Delete(c.UserContext(), middleware.UserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// VotePost handles POST /api/posts/:id/vote
func (s *Server) VotePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	up, err := parseVote(c)
	if err != nil {
		return respond(c, err)
	}
	post, err := s.postService.Vote(c.UserContext(), middleware.UserID(c), id, up)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}

// UnvotePost handles DELETE /api/posts/:id/vote
func (s *Server) UnvotePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.Unvote(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}

// GetPostComments handles GET /api/posts/:id/comments?depth=
func (s *Server) GetPostComments(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	depth, err := parseDepth(c)
	if err != nil {
		return respond(c, err)
	}
	nodes, err := s.commentService.ListByPost(c.UserContext(), id, depth, middleware.UserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(nodes)
}

// GetFeed handles GET /api/feed
func (s *Server) GetFeed(c *fiber.Ctx) error {
	opts, err := s.parseFilter(c)
	if err != nil {
		return respond(c, err)
	}
	page, err := s.feed.Feed(c.UserContext(), middleware.UserID(c), opts)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(page)
}

// GetAllPosts handles GET /api/posts/all
func (s *Server) GetAllPosts(c *fiber.Ctx) error {
	opts, err := s.parseFilter(c)
	if err != nil {
		return respond(c, err)
	}
	page, err := s.postService.ListAll(c.UserContext(), middleware.UserID(c), opts)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(page)
}
