package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/udxhq/udx-backend/internal/apperr"
	"github.com/udxhq/udx-backend/internal/auth"
	"github.com/udxhq/udx-backend/internal/store"
	"github.com/udxhq/udx-backend/internal/ws"
)

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "status": "healthy", "message": "server-is-healthy"})
}

func (s *Server) databaseHealth(c *fiber.Ctx) error {
	if s.mongo == nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"success": false, "status": "error", "message": "database-is-unhealthy"})
	}
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()
	if err := s.mongo.Ping(ctx, readpref.Primary()); err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"success": false, "status": "error", "message": "database-is-unhealthy"})
	}
	return c.JSON(fiber.Map{"success": true, "status": "healthy", "message": "database-is-healthy"})
}

func (s *Server) stats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "data": s.ws.Stats()})
}

func (s *Server) onlineUsers(c *fiber.Ctx) error {
	orgID := c.Params("id")
	return c.JSON(fiber.Map{"success": true, "data": ws.OnlineUsersPayload{Users: s.ws.OnlineUsers(orgID)}})
}

// Polling fallback endpoints. These share the hub with the websocket path.

type connectRequest struct {
	Token string `json:"token"`
}

func (s *Server) realtimeConnect(c *fiber.Ctx) error {
	var req connectRequest
	_ = c.BodyParser(&req)
	token := req.Token
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		if t, err := auth.ParseBearerToken(c.Get("Authorization")); err == nil {
			token = t
		}
	}
	sessionID, userID, err := s.ws.ConnectPoll(token)
	if err != nil {
		// one generic rejection regardless of cause
		return c.Status(fiber.StatusUnauthorized).
			JSON(fiber.Map{"success": false, "message": "Authentication failed"})
	}
	return c.JSON(fiber.Map{"success": true, "session_id": sessionID, "user_id": userID})
}

func (s *Server) realtimePoll(c *fiber.Ctx) error {
	events, err := s.ws.PollEvents(c.Context(), c.Params("session"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "unknown session"})
	}
	return c.JSON(fiber.Map{"success": true, "events": events})
}

func (s *Server) realtimeEmit(c *fiber.Ctx) error {
	var env ws.Envelope
	if err := c.BodyParser(&env); err != nil || env.Event == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid event"})
	}
	if err := s.ws.EmitPoll(c.Params("session"), env); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "unknown session"})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true})
}

func (s *Server) realtimeDisconnect(c *fiber.Ctx) error {
	if err := s.ws.DisconnectPoll(c.Params("session")); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "unknown session"})
	}
	return c.JSON(fiber.Map{"success": true})
}

// CRUD handlers. Thin by design; the realtime subsystem is the interesting
// part of this service.

func (s *Server) createUser(c *fiber.Ctx) error {
	if s.users == nil {
		return dbUnavailable(c)
	}
	var u store.User
	if err := c.BodyParser(&u); err != nil || u.DiscordID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid user payload"})
	}
	created, err := s.users.Create(c.Context(), &u)
	if err != nil {
		return s.internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": created})
}

func (s *Server) getUser(c *fiber.Ctx) error {
	if s.users == nil {
		return dbUnavailable(c)
	}
	u, err := s.users.GetByID(c.Context(), c.Params("id"))
	if errors.Is(err, apperr.ErrNotFound) {
		return notFound(c)
	}
	if err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": u})
}

func (s *Server) updateUser(c *fiber.Ctx) error {
	if s.users == nil {
		return dbUnavailable(c)
	}
	var u store.User
	if err := c.BodyParser(&u); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid user payload"})
	}
	err := s.users.UpdateProfile(c.Context(), c.Params("id"), &u)
	if errors.Is(err, apperr.ErrNotFound) {
		return notFound(c)
	}
	if err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) deleteUser(c *fiber.Ctx) error {
	if s.users == nil {
		return dbUnavailable(c)
	}
	err := s.users.Delete(c.Context(), c.Params("id"))
	if errors.Is(err, apperr.ErrNotFound) {
		return notFound(c)
	}
	if err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) listOrgMembers(c *fiber.Ctx) error {
	if s.users == nil {
		return dbUnavailable(c)
	}
	members, err := s.users.ListByOrg(c.Context(), c.Params("id"), int64(c.QueryInt("limit")))
	if err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": members})
}

func (s *Server) createOrg(c *fiber.Ctx) error {
	if s.orgs == nil {
		return dbUnavailable(c)
	}
	var o store.Organization
	if err := c.BodyParser(&o); err != nil || o.Name == "" || o.Slug == "" || o.OwnerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid organization payload"})
	}
	created, err := s.orgs.Create(c.Context(), &o)
	if err != nil {
		return s.internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": created})
}

func (s *Server) getOrg(c *fiber.Ctx) error {
	if s.orgs == nil {
		return dbUnavailable(c)
	}
	o, err := s.orgs.GetByID(c.Context(), c.Params("id"))
	if errors.Is(err, apperr.ErrNotFound) {
		return notFound(c)
	}
	if err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": o})
}

func (s *Server) updateOrg(c *fiber.Ctx) error {
	if s.orgs == nil {
		return dbUnavailable(c)
	}
	var o store.Organization
	if err := c.BodyParser(&o); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid organization payload"})
	}
	err := s.orgs.UpdateProfile(c.Context(), c.Params("id"), &o)
	if errors.Is(err, apperr.ErrNotFound) {
		return notFound(c)
	}
	if err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) deleteOrg(c *fiber.Ctx) error {
	if s.orgs == nil {
		return dbUnavailable(c)
	}
	err := s.orgs.Delete(c.Context(), c.Params("id"))
	if errors.Is(err, apperr.ErrNotFound) {
		return notFound(c)
	}
	if err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func dbUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).
		JSON(fiber.Map{"success": false, "message": "database not configured"})
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "not found"})
}

func (s *Server) internalError(c *fiber.Ctx, err error) error {
	s.log.Errorw("request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "internal error"})
}
