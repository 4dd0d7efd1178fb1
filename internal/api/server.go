package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/udxhq/udx-backend/internal/auth"
	"github.com/udxhq/udx-backend/internal/config"
	"github.com/udxhq/udx-backend/internal/metrics"
	"github.com/udxhq/udx-backend/internal/store"
	"github.com/udxhq/udx-backend/internal/ws"
)

type Server struct {
	log   *zap.SugaredLogger
	ws    *ws.Server
	users *store.UserRepository
	orgs  *store.OrgRepository
	mongo *mongo.Client
}

type Deps struct {
	Config   *config.Config
	Logger   *zap.SugaredLogger
	WS       *ws.Server
	Verifier auth.Verifier

	// optional, nil when the backing service is not configured
	Users       *store.UserRepository
	Orgs        *store.OrgRepository
	Mongo       *mongo.Client
	RateLimiter *RateLimiter
}

// New builds the fiber app: request logging, CORS, the app-secret gate, the
// rate limiter, the websocket upgrade, the polling fallback and the CRUD
// routes.
func New(d Deps) *fiber.App {
	s := &Server{
		log:   d.Logger,
		ws:    d.WS,
		users: d.Users,
		orgs:  d.Orgs,
		mongo: d.Mongo,
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: !d.Config.Development()})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",
		AllowHeaders: "Content-Type,Authorization,Cookie,X-UDX-Secret,X-UDX-Requested-ID",
	}))
	app.Use(AppSecret(d.Config.App.UDXSecret))
	if d.RateLimiter != nil {
		app.Use(d.RateLimiter.Middleware())
	}

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	app.Static("/s/public", "./storage/public")

	api := app.Group("/api")
	api.Get("/health", s.health)
	api.Get("/database-health", s.databaseHealth)

	// websocket upgrade
	api.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws", websocket.New(s.ws.HandleWS()))

	// polling fallback
	realtime := api.Group("/realtime")
	realtime.Post("/connect", s.realtimeConnect)
	realtime.Get("/:session/events", s.realtimePoll)
	realtime.Post("/:session/emit", s.realtimeEmit)
	realtime.Delete("/:session", s.realtimeDisconnect)

	// authenticated resources
	authed := api.Group("", JWTAuth(d.Verifier))
	authed.Get("/stats", s.stats)

	authed.Post("/users", s.createUser)
	authed.Get("/users/:id", s.getUser)
	authed.Put("/users/:id", s.updateUser)
	authed.Delete("/users/:id", s.deleteUser)

	authed.Post("/orgs", s.createOrg)
	authed.Get("/orgs/:id", s.getOrg)
	authed.Put("/orgs/:id", s.updateOrg)
	authed.Delete("/orgs/:id", s.deleteOrg)
	authed.Get("/orgs/:id/members", s.listOrgMembers)
	authed.Get("/orgs/:id/online-users", s.onlineUsers)

	return app
}
