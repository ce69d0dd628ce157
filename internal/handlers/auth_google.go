package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Windi-Fikriyansyah/healthmate_be/internal/services/accounts"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/store"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleOAuthHandler signs existing accounts in with Google. It never creates
// accounts: a role has to be chosen at signup.
type GoogleOAuthHandler struct {
	Accounts        *accounts.Service
	JWTSecret       string
	Expires         int
	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
	Log             logrus.FieldLogger

	// FetchEmail resolves the authorization code to a verified email.
	// Defaults to the Google token exchange plus userinfo lookup.
	FetchEmail func(ctx context.Context, code string) (string, error)
}

func (h *GoogleOAuthHandler) Enabled() bool {
	return h.GoogleClientID != ""
}

func (h *GoogleOAuthHandler) oauthCfg() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.GoogleClientID,
		ClientSecret: h.GoogleSecret,
		RedirectURL:  h.GoogleRedirect,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func randomState(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (h *GoogleOAuthHandler) GoogleStart(c *fiber.Ctx) error {
	if !h.Enabled() {
		return fiber.ErrNotFound
	}

	st := randomState(32)
	c.Cookie(&fiber.Cookie{
		Name:     "oauth_state",
		Value:    st,
		Path:     "/",
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
		MaxAge:   10 * 60,
	})

	return c.Redirect(h.oauthCfg().AuthCodeURL(st), http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func (h *GoogleOAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	if !h.Enabled() {
		return fiber.ErrNotFound
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing code/state")
	}

	stCookie := c.Cookies("oauth_state")
	if stCookie == "" || stCookie != state {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid state")
	}
	c.Cookie(&fiber.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1, HTTPOnly: true, Secure: false, SameSite: "Lax"})

	fetch := h.FetchEmail
	if fetch == nil {
		fetch = h.fetchGoogleEmail
	}
	email, err := fetch(c.UserContext(), code)
	if err != nil {
		h.Log.WithError(err).Warn("google sign-in failed")
		return c.Status(fiber.StatusBadRequest).SendString("Failed to verify Google account")
	}

	u, err := h.Accounts.AccountByEmail(c.UserContext(), email)
	if errors.Is(err, store.ErrNotFound) {
		return c.Redirect(h.FrontendBaseURL+"/signup?error="+url.QueryEscape("No account for this Google email. Please sign up first."), fiber.StatusSeeOther)
	}
	if err != nil {
		h.Log.WithError(err).Error("google sign-in lookup")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error.")
	}

	if err := setSessionCookie(c, h.JWTSecret, h.Expires, u); err != nil {
		h.Log.WithError(err).Error("sign session token")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error.")
	}

	return c.Redirect(h.FrontendBaseURL+u.DashboardPath(), fiber.StatusSeeOther)
}

func (h *GoogleOAuthHandler) fetchGoogleEmail(ctx context.Context, code string) (string, error) {
	cfg := h.oauthCfg()
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return "", err
	}

	resp, err := cfg.Client(ctx, tok).Get(googleUserInfoURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var gu googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return "", err
	}

	email := strings.TrimSpace(gu.Email)
	if email == "" || !gu.VerifiedEmail {
		return "", errors.New("google account has no verified email")
	}
	return email, nil
}
