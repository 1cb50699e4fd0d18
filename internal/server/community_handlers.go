package server

import (
	"agora/internal/middleware"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListCommunities handles GET /api/communities
func (s *Server) ListCommunities(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	communities, err := s.communityService.List(c.UserContext(), middleware.UserID(c), page.Limit, page.Offset)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(communities)
}

// ListMyCommunities handles GET /api/communities/me
func (s *Server) ListMyCommunities(c *fiber.Ctx) error {
	communities, err := s.communityService.ListForMember(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(communities)
}

// CreateCommunity handles POST /api/communities
func (s *Server) CreateCommunity(c *fiber.Ctx) error {
	var in service.CreateCommunityInput
	if err := parseBody(c, &in); err != nil {
		return respond(c, err)
	}
	in.OwnerID = middleware.UserID(c)

	community, err := s.communityService.Create(c.UserContext(), in)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(community)
}

// GetCommunity handles GET /api/communities/:id
func (s *Server) GetCommunity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	community, err := s.communityService.Get(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(community)
}

// UpdateCommunity handles PATCH /api/communities/:id
func (s *Server) UpdateCommunity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.UpdateCommunityInput
	if err := parseBody(c, &in); err != nil {
		return respond(c, err)
	}
	in.UserID = middleware.UserID(c)
	in.CommunityID = id

	community, err := s.communityService.Update(c.UserContext(), in)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(community)
}

// DeleteCommunity handles DELETE /api/communities/:id
func (s *Server) DeleteCommunity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.communityService.Delete(c.UserContext(), middleware.UserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetCommunityPosts handles GET /api/communities/:id/posts
func (s *Server) GetCommunityPosts(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	opts, err := s.parseFilter(c)
	if err != nil {
		return respond(c, err)
	}
	page, err := s.postService.ListByCommunity(c.UserContext(), middleware.UserID(c), id, opts)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(page)
}

// JoinCommunity handles POST /api/communities/:id/join
func (s *Server) JoinCommunity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := middleware.UserID(c)
	if err := s.communityService.Join(c.UserContext(), userID, id); err != nil {
		return respond(c, err)
	}
	return s.membershipResponse(c, fiber.StatusOK, userID, id)
}

// LeaveCommunity handles POST /api/communities/:id/leave
func (s *Server) LeaveCommunity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := middleware.UserID(c)
	if err := s.communityService.Leave(c.UserContext(), userID, id); err != nil {
		return respond(c, err)
	}
	return s.membershipResponse(c, fiber.StatusOK, userID, id)
}

// AddCommunityMember handles POST /api/communities/:id/members/:userId
func (s *Server) AddCommunityMember(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	target, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	if err := s.communityService.AddMember(c.UserContext(), middleware.UserID(c), id, target); err != nil {
		return respond(c, err)
	}
	return s.membershipResponse(c, fiber.StatusCreated, target, id)
}

// GetMembership handles GET /api/communities/:id/membership
func (s *Server) GetMembership(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.membershipResponse(c, fiber.StatusOK, middleware.UserID(c), id)
}

func (s *Server) membershipResponse(c *fiber.Ctx, status int, userID, communityID uint) error {
	membership, err := s.communityService.IsMember(c.UserContext(), userID, communityID)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(status).JSON(membership)
}
