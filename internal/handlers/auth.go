package handlers

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/healthmate_be/internal/models"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/realtime"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/services/accounts"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/utils"
)

type AuthHandler struct {
	Accounts  *accounts.Service
	Notifier  *realtime.Notifier
	JWTSecret string
	Expires   int
	Log       logrus.FieldLogger
}

type SignupReq struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Role            string `json:"role"`
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req SignupReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body.",
		})
	}

	res, err := h.Accounts.Register(c.UserContext(), accounts.RegisterInput{
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            req.Role,
	})
	if err != nil {
		status, msg := signupError(err)
		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"message": msg,
		})
	}

	if err := h.setSession(c, res.Account); err != nil {
		h.Log.WithError(err).Error("sign session token")
	}

	h.Notifier.AccountRegistered(c.UserContext(), res.Account.UID, res.Account.Name, string(res.Account.Role))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":      true,
		"message":      "Success",
		"redirect_url": res.RedirectURL,
	})
}

func signupError(err error) (int, string) {
	switch {
	case errors.Is(err, accounts.ErrValidation):
		return fiber.StatusBadRequest, accounts.Message(err)
	case errors.Is(err, accounts.ErrConflict):
		return fiber.StatusConflict, accounts.Message(err)
	default:
		return fiber.StatusInternalServerError, "Internal server error during registration."
	}
}

// Login is a classic form post: every outcome is a 303 redirect, failures
// back to the login page with the message in the query string.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	res, err := h.Accounts.Login(c.UserContext(), c.FormValue("email"), c.FormValue("password"), c.FormValue("role"))
	if err != nil {
		return c.Redirect("/login?error="+url.QueryEscape(accounts.Message(err)), fiber.StatusSeeOther)
	}

	if err := h.setSession(c, res.Account); err != nil {
		h.Log.WithError(err).Error("sign session token")
		return c.Redirect("/login?error="+url.QueryEscape(accounts.Message(accounts.ErrInternal)), fiber.StatusSeeOther)
	}

	return c.Redirect(res.RedirectURL, fiber.StatusSeeOther)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     utils.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
	})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out.",
	})
}

func (h *AuthHandler) setSession(c *fiber.Ctx, u *models.User) error {
	return setSessionCookie(c, h.JWTSecret, h.Expires, u)
}

func setSessionCookie(c *fiber.Ctx, secret string, expiresMin int, u *models.User) error {
	token, err := utils.SignJWT(secret, u.UID, string(u.Role), expiresMin)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     utils.SessionCookie,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
		MaxAge:   expiresMin * 60,
	})
	return nil
}
