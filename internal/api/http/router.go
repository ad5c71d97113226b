package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/meetup-service/internal/api/http/handlers"
	"github.com/spec-kit/meetup-service/internal/auth"
)

// RouteConfig groups handlers used to register HTTP routes.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Users    *handlers.UsersHandler
	Requests *handlers.RequestsHandler
	Matches  *handlers.MatchesHandler
	Messages *handlers.MessagesHandler
	Auth     *auth.AuthMiddleware
}

// RegisterRoutes wires all HTTP endpoints.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/register", cfg.Users.Register)
	app.Post("/auth/login", cfg.Users.Login)

	authed := app.Group("", cfg.Auth.Handle)

	authed.Get("/profile", cfg.Users.Profile)

	authed.Post("/requests", cfg.Requests.Submit)
	authed.Get("/requests/pending", cfg.Requests.GetPending)
	authed.Delete("/requests/:id", cfg.Requests.Cancel)

	authed.Get("/matches", cfg.Matches.List)
	authed.Get("/matches/:id/messages", cfg.Messages.List)
	authed.Post("/matches/:id/messages", cfg.Messages.Send)
}
