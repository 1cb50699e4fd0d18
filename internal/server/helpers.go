package server

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	maxPaginationLimit = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID", "commentId" -> "comment ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// parseFilter reads sortBy, timespan, skip and take.
func (s *Server) parseFilter(c *fiber.Ctx) (service.FilterOptions, error) {
	return s.ranking.ParseOptions(c.Query("sortBy"), c.Query("timespan"), c.Query("skip"), c.Query("take"))
}

// parseDepth reads the optional depth query parameter; absent means default.
func parseDepth(c *fiber.Ctx) (*int, error) {
	raw := strings.TrimSpace(c.Query("depth"))
	if raw == "" {
		return nil, nil
	}
	depth, err := strconv.Atoi(raw)
	if err != nil {
		return nil, models.NewValidationError("depth must be an integer")
	}
	return &depth, nil
}

// parseBody decodes the JSON request body into dst.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return nil
}

// respond writes err as an API error response with its mapped status.
func respond(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.HTTPStatus(err), err)
}

type voteRequest struct {
	IsUpvote *bool `json:"isUpvote"`
}

// parseVote reads the vote direction; the field is required.
func parseVote(c *fiber.Ctx) (bool, error) {
	var req voteRequest
	if err := parseBody(c, &req); err != nil {
		return false, err
	}
	if req.IsUpvote == nil {
		return false, models.NewValidationError("isUpvote is required")
	}
	return *req.IsUpvote, nil
}
