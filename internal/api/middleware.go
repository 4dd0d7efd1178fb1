package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/udxhq/udx-backend/internal/auth"
)

// AppSecret gates the desktop-client surface. API and auth routes pass
// through untouched; everything else must present the shared secret in
// X-UDX-Secret or gets a 403.
func AppSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/auth/") {
			return c.Next()
		}
		if c.Get("X-UDX-Secret") == secret {
			return c.Next()
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"error":   "access-denied",
			"message": "Invalid Electron secret",
		})
	}
}

// RateLimiter is a fixed-window limiter backed by redis INCR/EXPIRE.
type RateLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	log    *zap.SugaredLogger
}

func NewRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration, log *zap.SugaredLogger) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix, limit: limit, window: window, log: log}
}

func (r *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()
		key := fmt.Sprintf("%s:ratelimit:%s", r.prefix, c.IP())
		count, err := r.client.Incr(ctx, key).Result()
		if err != nil {
			// limiter outage must not take the API down
			r.log.Warnw("rate limiter unavailable", "error", err)
			return c.Next()
		}
		if count == 1 {
			r.client.Expire(ctx, key, r.window)
		}
		if count > int64(r.limit) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "Too many requests from this IP, please try again later.",
			})
		}
		return c.Next()
	}
}

const identityLocal = "identity"

// JWTAuth verifies the bearer token and stores the Identity in locals for
// the handlers behind it.
func JWTAuth(verifier auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.ParseBearerToken(c.Get("Authorization"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "missing authorization"})
		}
		identity, err := verifier.Verify(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "invalid token"})
		}
		c.Locals(identityLocal, identity)
		return c.Next()
	}
}

func identityFrom(c *fiber.Ctx) (auth.Identity, bool) {
	id, ok := c.Locals(identityLocal).(auth.Identity)
	return id, ok
}
