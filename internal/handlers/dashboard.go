package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/healthmate_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/models"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/services/accounts"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/store"
)

type DashboardHandler struct {
	Accounts *accounts.Service
	Analyses *store.AnalysisStore
}

// Dashboard returns the view model the dashboard page renders. A missing or
// non-numeric uid is treated as absent and shows Anonymous.
func (h *DashboardHandler) Dashboard(c *fiber.Ctx) error {
	return c.JSON(h.view(c))
}

func (h *DashboardHandler) DoctorDashboard(c *fiber.Ctx) error {
	return c.JSON(h.view(c))
}

// Page is the view model for the landing, login and signup pages. They carry
// no account, only the error a failed redirect put in the query string.
func (h *DashboardHandler) Page(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"user_name": accounts.Anonymous,
		"uid":       nil,
		"error":     queryError(c),
	})
}

func queryError(c *fiber.Ctx) any {
	if e := c.Query("error"); e != "" {
		return e
	}
	return nil
}

func (h *DashboardHandler) view(c *fiber.Ctx) fiber.Map {
	var uid any
	name := accounts.Anonymous
	if n := c.QueryInt("uid", 0); n > 0 {
		uid = n
		name = h.Accounts.ResolveDisplayName(c.UserContext(), n)
	}

	return fiber.Map{
		"user_name": name,
		"uid":       uid,
		"error":     queryError(c),
	}
}

func (h *DashboardHandler) Me(c *fiber.Ctx) error {
	u, err := h.Accounts.Account(c.UserContext(), middleware.SessionUID(c))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Account not found.",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"uid":   u.UID,
			"name":  u.Name,
			"email": u.Email,
			"phone": u.Phone,
			"role":  u.Role,
		},
	})
}

func (h *DashboardHandler) ListAnalyses(c *fiber.Ctx) error {
	items, err := h.Analyses.ListByUID(c.UserContext(), middleware.SessionUID(c), c.QueryInt("limit", 20))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error.",
		})
	}
	if items == nil {
		items = []models.PrescriptionAnalysis{}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    items,
	})
}
