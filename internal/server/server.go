package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/z00rd/sporter/internal/activity"
	"github.com/z00rd/sporter/internal/analytics"
	"github.com/z00rd/sporter/internal/auth"
	"github.com/z00rd/sporter/internal/config"
	"github.com/z00rd/sporter/internal/exclusion"
)

type Server struct {
	App   *fiber.App
	Cfg   config.Config
	DB    *pgxpool.Pool
	Redis *redis.Client
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.MaxUploadBytes),
	})
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:   app,
		Cfg:   cfg,
		DB:    db,
		Redis: redisClient,
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	analyticsSvc := analytics.NewService(s.DB, s.Redis)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB))

	activities := s.App.Group("/activities")
	activity.RegisterRoutes(activities, activity.NewService(s.DB, s.Cfg), jwtMiddleware)
	exclusion.RegisterRoutes(activities, exclusion.NewService(s.DB, analyticsSvc), jwtMiddleware)
	analytics.RegisterRoutes(activities, analyticsSvc)
}
