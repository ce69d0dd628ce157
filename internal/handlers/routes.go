package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/Windi-Fikriyansyah/healthmate_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/models"
)

type Routes struct {
	JWTSecret     string
	Auth          *AuthHandler
	Google        *GoogleOAuthHandler
	Dashboard     *DashboardHandler
	Analyze       *AnalyzeHandler
	Notifications *NotificationHandler
}

func (r *Routes) Mount(app *fiber.App) {
	session := func(next ...fiber.Handler) []fiber.Handler {
		return append([]fiber.Handler{
			middleware.JWTFromCookie(r.JWTSecret),
			middleware.AttachJWTLocals(),
		}, next...)
	}

	app.Get("/", r.Dashboard.Page)
	app.Get("/login", r.Dashboard.Page)
	app.Get("/signup", r.Dashboard.Page)

	app.Post("/signup", r.Auth.Signup)
	app.Post("/login", r.Auth.Login)
	app.Post("/logout", r.Auth.Logout)

	app.Get("/auth/google/start", r.Google.GoogleStart)
	app.Get("/auth/google/callback", r.Google.GoogleCallback)

	app.Get("/dashboard", r.Dashboard.Dashboard)
	app.Get("/doctor_dashboard",
		session(middleware.RequireRoles(string(models.RoleDoctor)), r.Dashboard.DoctorDashboard)...,
	)

	api := app.Group("/api")
	api.Post("/analyze-prescription", middleware.OptionalJWT(r.JWTSecret), r.Analyze.AnalyzePrescription)
	api.Get("/me", session(r.Dashboard.Me)...)
	api.Get("/analyses", session(r.Dashboard.ListAnalyses)...)

	app.Get("/ws/notifications",
		session(r.Notifications.RequireUpgrade, websocket.New(r.Notifications.Stream))...,
	)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"analyzer": r.Analyze.Analyzer.Available(),
		})
	})
}
