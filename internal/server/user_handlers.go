package server

import (
	"agora/internal/middleware"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetUser handles GET /api/users/:id
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userService.GetUserByID(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(user)
}

// GetUserPosts handles GET /api/users/:id/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	opts, err := s.parseFilter(c)
	if err != nil {
		return respond(c, err)
	}
	page, err := s.postService.ListByAuthor(c.UserContext(), middleware.UserID(c), id, opts)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(page)
}

// GetMe handles GET /api/users/me
func (s *Server) GetMe(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(user)
}

// GetUserActivity handles GET /api/users/:id/activity?include=posts,comments,replies,votes
func (s *Server) GetUserActivity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	include, err := service.ParseActivityKinds(c.Query("include"))
	if err != nil {
		return respond(c, err)
	}
	page := parsePagination(c, 50)
	activity, err := s.activityService.Activity(c.UserContext(), middleware.UserID(c), id, service.ActivityOptions{
		Include: include,
		Limit:   page.Limit,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(activity)
}
