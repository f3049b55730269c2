// Package rest exposes the notes service over HTTP with fiber.
package rest

import (
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/mrshanahan/notes-service/internal/middleware"
	"github.com/mrshanahan/notes-service/pkg/auth"
)

type Options struct {
	Service  NoteService
	Verifier auth.Verifier
	Logger   *slog.Logger

	// Login enables the /auth routes. It may be nil.
	Login *LoginHandlers

	CORSOrigins string
	// AccessLog receives one line per request; nil disables access logging.
	AccessLog io.Writer
}

func NewApp(opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler(opts.Logger.With("component", "HTTP")),
		DisableStartupMessage: true,
	})
	app.Use(requestid.New(), recover.New())
	if opts.AccessLog != nil {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
			Output: opts.AccessLog,
		}))
	}
	if opts.CORSOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowCredentials: true,
		}))
	}
	app.Use(middleware.CorrelateRequest())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	h := NewNoteHandlers(opts.Service)
	app.Route("/notes", func(notes fiber.Router) {
		notes.Use(middleware.ValidateAccessToken(opts.Verifier, auth.AccessTokenCookieName))
		notes.Get("/", h.ListNotes)
		notes.Post("/", h.CreateNote)
		notes.Route("/:noteID", func(note fiber.Router) {
			note.Get("/", h.GetNote)
			note.Put("/", h.UpdateNote)
			note.Post("/", h.UpdateNote)
			note.Delete("/", h.DeleteNote)
		})
	})

	if opts.Login != nil {
		app.Route("/auth", func(auth fiber.Router) {
			auth.Get("/login", opts.Login.Login)
			auth.Get("/logout", opts.Login.Logout)
			auth.Get("/callback", opts.Login.Callback)
		})
	} else {
		opts.Logger.Debug("skipping registration of authentication-related endpoints")
	}

	return app
}
