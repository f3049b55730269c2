package rest

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"

	"github.com/mrshanahan/notes-service/internal/cache"
	"github.com/mrshanahan/notes-service/pkg/auth"
)

const nonceTTL = 5 * time.Minute

// LoginHandlers run the authorization-code flow against the OIDC provider
// and hand the resulting access token to the browser as a cookie.
type LoginHandlers struct {
	config   *oauth2.Config
	verifier auth.Verifier
	nonces   cache.Cache
	logger   *slog.Logger
	// origins are the scheme://host pairs an absolute came_from may point at.
	origins map[string]bool
}

// NewLoginHandlers builds the login flow. redirectOrigins is a comma
// separated list in the same form as the CORS origins; came_from must be a
// path on this server or a URL on one of these origins.
func NewLoginHandlers(config *oauth2.Config, verifier auth.Verifier, nonces cache.Cache, redirectOrigins string, logger *slog.Logger) *LoginHandlers {
	origins := map[string]bool{}
	for _, o := range strings.Split(redirectOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[strings.ToLower(strings.TrimSuffix(o, "/"))] = true
		}
	}
	return &LoginHandlers{
		config:   config,
		verifier: verifier,
		nonces:   nonces,
		logger:   logger.With("component", "LoginHandlers"),
		origins:  origins,
	}
}

func (h *LoginHandlers) Login(c *fiber.Ctx) error {
	cameFromParam := c.Query("came_from")
	var cameFrom string
	if cameFromParam != "" {
		cameFromBytes, err := base64.URLEncoding.DecodeString(cameFromParam)
		if err == nil {
			cameFrom = string(cameFromBytes)
		}
		if !h.allowedRedirect(cameFrom) {
			h.logger.Warn("ignoring came_from outside the allowed origins", "came_from", cameFrom)
			cameFrom = ""
		}
	}

	nonce, err := h.createNonce(c)
	if err != nil {
		return err
	}
	state := &auth.State{CameFrom: cameFrom}
	stateParam, err := state.Encode(nonce)
	if err != nil {
		return err
	}

	return c.Redirect(h.config.AuthCodeURL(stateParam), fiber.StatusSeeOther)
}

func (h *LoginHandlers) Logout(c *fiber.Ctx) error {
	c.ClearCookie(auth.AccessTokenCookieName)
	return c.SendString("Logout successful")
}

func (h *LoginHandlers) Callback(c *fiber.Ctx) error {
	state, nonce, err := auth.ParseState(c.Query("state"))
	if err != nil {
		c.Status(fiber.StatusUnauthorized)
		return c.SendString(fmt.Sprintf("state is invalid: %s", err))
	}
	if !h.consumeNonce(c, nonce) {
		c.Status(fiber.StatusUnauthorized)
		return c.SendString("state is invalid: nonce not found")
	}

	token, err := h.config.Exchange(c.UserContext(), c.Query("code"))
	if err != nil {
		h.logger.Warn("code-token exchange failed", "err", err)
		c.Status(fiber.StatusUnauthorized)
		return c.SendString("Code-Token Exchange Failed")
	}
	if _, err := h.verifier.Verify(c.UserContext(), token.AccessToken); err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     auth.AccessTokenCookieName,
		Value:    token.AccessToken,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	if state.CameFrom != "" && h.allowedRedirect(state.CameFrom) {
		return c.Redirect(state.CameFrom, fiber.StatusSeeOther)
	}
	return c.SendString("Login successful")
}

// allowedRedirect reports whether target is a local path or a URL on one of
// the configured origins.
func (h *LoginHandlers) allowedRedirect(target string) bool {
	if target == "" || strings.ContainsAny(target, "\\\r\n") {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if u.Scheme == "" && u.Host == "" {
		return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return h.origins[strings.ToLower(u.Scheme+"://"+u.Host)]
}

func (h *LoginHandlers) createNonce(c *fiber.Ctx) (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	nonce := base64.RawURLEncoding.EncodeToString(randomBytes)
	if err := h.nonces.Set(c.UserContext(), nonceKey(nonce), []byte{1}, nonceTTL); err != nil {
		return "", fmt.Errorf("could not store login nonce: %w", err)
	}
	return nonce, nil
}

func (h *LoginHandlers) consumeNonce(c *fiber.Ctx, nonce string) bool {
	key := nonceKey(nonce)
	_, ok, err := h.nonces.Get(c.UserContext(), key)
	if err != nil {
		h.logger.Warn("nonce lookup failed", "err", err)
		return false
	}
	if !ok {
		return false
	}
	if err := h.nonces.Delete(c.UserContext(), key); err != nil {
		h.logger.Warn("nonce delete failed", "err", err)
	}
	return true
}

func nonceKey(nonce string) string {
	return "nonce:" + nonce
}
