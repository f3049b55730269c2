package middleware

import (
	"log/slog"
	"regexp"

	"github.com/gofiber/fiber/v2"

	"github.com/mrshanahan/notes-service/pkg/auth"
	"github.com/mrshanahan/notes-service/pkg/notes"
)

// RequestIDLocalName is where fiber's requestid middleware stores the id.
const RequestIDLocalName = "requestid"

var bearerTokenPattern *regexp.Regexp = regexp.MustCompile(`^Bearer\s+(.*)$`)

// CorrelateRequest copies the request id assigned by the requestid
// middleware into the request's user context.
func CorrelateRequest() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id, ok := c.Locals(RequestIDLocalName).(string); ok && id != "" {
			c.SetUserContext(notes.WithRequestID(c.UserContext(), id))
		}
		return c.Next()
	}
}

// ValidateAccessToken authenticates the request with a bearer token from the
// Authorization header, or from cookieName when the header is absent. The
// verified identity is attached to the user context.
func ValidateAccessToken(verifier auth.Verifier, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqHeaders := c.GetReqHeaders()
		var tokenStr string
		authHeaderValue, ok := reqHeaders[fiber.HeaderAuthorization]
		if !ok || len(authHeaderValue) == 0 {
			// If no Authorization header, try cookie auth
			tokenStr = c.Cookies(cookieName)
		} else {
			match := bearerTokenPattern.FindStringSubmatch(authHeaderValue[0])
			if match == nil {
				return &notes.AuthenticationError{Reason: "malformed Authorization header"}
			}
			tokenStr = match[1]
		}
		if tokenStr == "" {
			return &notes.AuthenticationError{Reason: "missing token"}
		}

		who, err := verifier.Verify(c.UserContext(), tokenStr)
		if err != nil {
			slog.Debug("rejected access token",
				"request_id", notes.RequestID(c.UserContext()),
				"err", err)
			return err
		}
		c.SetUserContext(notes.WithIdentity(c.UserContext(), who))
		return c.Next()
	}
}

// Identity returns the identity attached by ValidateAccessToken.
func Identity(c *fiber.Ctx) notes.Identity {
	who, _ := notes.IdentityFrom(c.UserContext())
	return who
}
