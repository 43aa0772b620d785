package handlers

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	applog "tfsrentals/internal/log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

type Options struct {
	// MediaDir is served under /media when files are stored locally.
	MediaDir string
	// Limits per client IP. Zero picks the defaults.
	RequestsPerMinute int
	LoginAttempts     int
	ConciergePerMin   int
	// RequestTimeout bounds the store and integration calls of one request.
	RequestTimeout time.Duration
	Quiet          bool
}

// RequestTimeout gives every request a context deadline. Handlers pass
// c.UserContext() down, so database, Redis, storage and model calls stop
// when it expires.
func RequestTimeout(d time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), d)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// NewApp builds the API: middleware, every route and the JSON 404.
func NewApp(d *Deps, opts Options) *fiber.App {
	if opts.RequestsPerMinute == 0 {
		opts.RequestsPerMinute = 120
	}
	if opts.LoginAttempts == 0 {
		opts.LoginAttempts = 5
	}
	if opts.ConciergePerMin == 0 {
		opts.ConciergePerMin = 15
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler,
		BodyLimit:    10 << 20, // quote documents
		ReadTimeout:  30 * time.Second,
	})

	app.Use(requestid.New())
	app.Use(RequestTimeout(opts.RequestTimeout))
	if !opts.Quiet {
		app.Use(logger.New())
	}
	app.Use(helmet.New())
	app.Use(AttachUser(d.Auth))
	app.Use(limiter.New(limiter.Config{
		Max:        opts.RequestsPerMinute,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return strings.HasPrefix(p, "/media/") || p == "/healthz" || strings.HasPrefix(p, "/api/v1/cron/")
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.global.hit", nil)
			return jsonError(c, fiber.StatusTooManyRequests, "rate limit exceeded, retry soon")
		},
	}))

	if opts.MediaDir != "" {
		app.Get("/media/*", media(opts.MediaDir))
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := d.Health(ctx); err != nil {
			applog.Error(c, "health.fail", err, nil)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"ok": false})
		}
		return c.JSON(fiber.Map{"ok": true})
	})

	Mount(app.Group("/api/v1"), d, opts)

	app.Use(func(c *fiber.Ctx) error {
		return jsonError(c, fiber.StatusNotFound, "Page not found")
	})
	return app
}

// Mount registers the API routes on r.
func Mount(r fiber.Router, d *Deps, opts Options) {
	user := RequireUser(d.Auth)

	r.Get("/categories", d.CatalogHandler.Categories)
	r.Get("/products", d.CatalogHandler.Products)
	r.Get("/products/:slug", d.CatalogHandler.Product)
	r.Get("/kits/:productId", d.KitHandler.Get)

	cart := r.Group("/cart", user)
	cart.Get("/", d.CartHandler.View)
	cart.Post("/items", d.CartHandler.AddItem)
	cart.Post("/bundles", d.CartHandler.AddBundle)
	cart.Delete("/groups/:groupId", d.CartHandler.RemoveGroup)
	cart.Delete("/items/:id", d.CartHandler.RemoveItem)
	cart.Post("/quote", d.QuoteHandler.FromCart)

	r.Post("/quotes", d.QuoteHandler.Create)
	r.Get("/quotes/:id", d.QuoteHandler.Get)
	r.Post("/quotes/:id/sign", d.QuoteHandler.Sign)
	r.Post("/quotes/:id/reject", d.QuoteHandler.Reject)
	r.Get("/me/quotes", user, d.QuoteHandler.Mine)

	r.Post("/auth/login", limiter.New(limiter.Config{
		Max:        opts.LoginAttempts,
		Expiration: 10 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|login"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return jsonError(c, fiber.StatusTooManyRequests, "Too many attempts. Please try again later.")
		},
	}), d.AuthHandler.Login)
	r.Post("/auth/logout", d.AuthHandler.Logout)
	r.Get("/auth/me", d.AuthHandler.Me)

	r.Post("/concierge", limiter.New(limiter.Config{
		Max:        opts.ConciergePerMin,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|concierge"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.concierge.hit", nil)
			return jsonError(c, fiber.StatusTooManyRequests, "Too many messages. Please wait a minute.")
		},
	}), d.ConciergeHandler.Chat)

	r.Get("/cron/process-email-queue", d.CronHandler.ProcessEmails)

	admin := r.Group("/admin", RequireAdmin(d.Auth))
	admin.Get("/quotes", d.AdminHandler.ListQuotes)
	admin.Get("/quotes/:id", d.AdminHandler.GetQuote)
	admin.Post("/quotes/:id/status", d.AdminHandler.UpdateStatus)
	admin.Post("/quotes/:id/price", d.AdminHandler.SetPrice)
	admin.Post("/quotes/:id/upload", d.AdminHandler.Upload)
	admin.Get("/emails/stats", d.AdminHandler.EmailStats)
	admin.Get("/users", d.AdminHandler.ListUsers)
	admin.Post("/users/:id/delete", d.AdminHandler.DeleteUser)
}

// media serves local files and blocks traversal, raw or encoded.
func media(dir string) fiber.Handler {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return func(c *fiber.Ctx) error {
		path := c.Params("*")
		rawLower := strings.ToLower(path)
		if strings.Contains(rawLower, "..") || strings.Contains(rawLower, "%2e") || strings.Contains(rawLower, "\x00") {
			applog.Security(c, "media.traversal.block", map[string]any{"path": path})
			return c.SendStatus(fiber.StatusNotFound)
		}
		clean := filepath.Clean(path)
		if clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
			applog.Security(c, "media.traversal.block", map[string]any{"path": path})
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.SendFile(filepath.Join(dir, clean), true)
	}
}
