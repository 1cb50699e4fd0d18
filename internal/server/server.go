// Package server exposes the content core over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"agora/internal/auth"
	"agora/internal/bootstrap"
	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	verifier       middleware.TokenVerifier
	featureFlags   *featureflags.Manager

	userRepo      repository.UserRepository
	communityRepo repository.CommunityRepository
	postRepo      repository.PostRepository
	commentRepo   repository.CommentRepository
	replyRepo     repository.ReplyRepository
	voteRepo      repository.VoteRepository

	scope   *service.AccessScope
	ledger  *service.VoteLedger
	ranking *service.RankingEngine
	feed    *service.FeedComposer
	tree    *service.CommentTree

	userService      *service.UserService
	communityService *service.CommunityService
	postService      *service.PostService
	commentService   *service.CommentService
	replyService     *service.ReplyService
	activityService  *service.ActivityService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires config and database")
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("agora-api"),
		verifier:       auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),

		userRepo:      repository.NewUserRepository(db),
		communityRepo: repository.NewCommunityRepository(db),
		postRepo:      repository.NewPostRepository(db),
		commentRepo:   repository.NewCommentRepository(db),
		replyRepo:     repository.NewReplyRepository(db),
		voteRepo:      repository.NewVoteRepository(db),
	}

	for _, entry := range s.featureFlags.Rejected() {
		middleware.Logger.Warn("ignoring malformed feature flag", slog.String("entry", entry))
	}

	s.scope = service.NewAccessScope(s.communityRepo, repository.NewContentResolver(db))
	s.ledger = service.NewVoteLedger(s.voteRepo, s.scope, cfg.VoteMaxAttempts)
	s.ranking = service.NewRankingEngine(s.postRepo, s.communityRepo, s.userRepo, s.ledger, service.RankingConfig{
		DefaultTake: cfg.RankingDefaultTake,
		MaxTake:     cfg.RankingMaxTake,
	})
	s.feed = service.NewFeedComposer(s.ranking, s.communityRepo, s.postRepo, s.ledger, service.FeedConfig{
		MinimumSize: cfg.FeedMinimumSize,
		Concurrency: cfg.FeedDiscoveryConcurrency,
		Discovery:   s.discoveryEnabled,
	})
	s.tree = service.NewCommentTree(s.commentRepo, s.replyRepo, s.postRepo, s.scope, s.ledger, service.TreeConfig{
		DefaultDepth: cfg.CommentDefaultDepth,
		MaxDepth:     cfg.CommentMaxDepth,
	})

	s.userService = service.NewUserService(s.userRepo)
	s.communityService = service.NewCommunityService(s.communityRepo, s.userRepo, s.scope)
	s.postService = service.NewPostService(s.postRepo, s.communityRepo, s.userRepo, s.scope, s.ledger, s.ranking)
	s.commentService = service.NewCommentService(s.commentRepo, s.userRepo, s.scope, s.ledger, s.tree)
	s.replyService = service.NewReplyService(s.replyRepo, s.userRepo, s.scope, s.ledger, s.tree)
	s.activityService = service.NewActivityService(s.userRepo, s.postRepo, s.commentRepo, s.replyRepo, s.voteRepo, s.ledger)

	return s, nil
}

func (s *Server) discoveryEnabled(userID uint) bool {
	return s.featureFlags.Enabled(featureflags.FeedDiscovery, userID)
}

// Authenticate resolves the caller for a route per mode.
func (s *Server) Authenticate(mode middleware.AuthMode) fiber.Handler {
	return middleware.Authenticate(s.verifier, mode, cache.IsTokenRevoked)
}

// limiterStore returns the rate-limit store, or a nil interface without Redis.
func (s *Server) limiterStore() redis.UniversalClient {
	if s.redis == nil {
		return nil
	}
	return s.redis
}

// NewApp builds the Fiber app with the API error handler, middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Agora API",
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, models.HTTPStatus(err), err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so throttled responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	optional := s.Authenticate(middleware.AuthOptional)
	required := s.Authenticate(middleware.AuthRequired)
	limit := func(n int, window time.Duration, name string) fiber.Handler {
		return middleware.RateLimit(s.limiterStore(), n, window, name)
	}

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{Title: "Agora API Metrics"}))
	api.Get("/feature-flags", optional, s.GetFeatureFlags)

	communities := api.Group("/communities")
	communities.Get("/", optional, s.ListCommunities)
	communities.Post("/", required, limit(5, 10*time.Minute, "create_community"), s.CreateCommunity)
	// Specific routes before generic /:id
	communities.Get("/me", required, s.ListMyCommunities)
	communities.Get("/:id/posts", optional, s.GetCommunityPosts)
	communities.Get("/:id/membership", required, s.GetMembership)
	communities.Post("/:id/join", required, s.JoinCommunity)
	communities.Post("/:id/leave", required, s.LeaveCommunity)
	communities.Post("/:id/members/:userId", required, s.AddCommunityMember)
	communities.Get("/:id", optional, s.GetCommunity)
	communities.Patch("/:id", required, s.UpdateCommunity)
	communities.Delete("/:id", required, s.DeleteCommunity)

	users := api.Group("/users")
	users.Get("/me", required, s.GetMe)
	users.Get("/:id/posts", optional, s.GetUserPosts)
	users.Get("/:id/activity", required, s.GetUserActivity)
	users.Get("/:id", optional, s.GetUser)

	api.Get("/feed", required, s.GetFeed)

	posts := api.Group("/posts")
	posts.Post("/", required, limit(10, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/all", optional, s.GetAllPosts)
	posts.Get("/:id/comments", optional, s.GetPostComments)
	posts.Post("/:id/vote", required, limit(60, time.Minute, "vote"), s.VotePost)
	posts.Delete("/:id/vote", required, s.UnvotePost)
	posts.Get("/:id", optional, s.GetPost)
	posts.Patch("/:id", required, s.UpdatePost)
	posts.Delete("/:id", required, s.DeletePost)

	comments := api.Group("/comments")
	comments.Post("/", required, limit(20, time.Minute, "create_comment"), s.CreateComment)
	comments.Get("/:id/replies", optional, s.GetCommentReplies)
	comments.Post("/:id/vote", required, limit(60, time.Minute, "vote"), s.VoteComment)
	comments.Delete("/:id/vote", required, s.UnvoteComment)
	comments.Get("/:id", optional, s.GetComment)
	comments.Patch("/:id", required, s.UpdateComment)
	comments.Delete("/:id", required, s.DeleteComment)

	replies := api.Group("/replies")
	replies.Post("/", required, limit(20, time.Minute, "create_reply"), s.CreateReply)
	replies.Post("/:id/vote", required, limit(60, time.Minute, "vote"), s.VoteReply)
	replies.Delete("/:id/vote", required, s.UnvoteReply)
	replies.Get("/:id", optional, s.GetReply)
	replies.Patch("/:id", required, s.UpdateReply)
	replies.Delete("/:id", required, s.DeleteReply)
}

// LivenessCheck handles liveness check requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness check requests. Redis is optional: the
// cache and rate limiter degrade without it.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus == "unhealthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	s.app = s.NewApp()
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
