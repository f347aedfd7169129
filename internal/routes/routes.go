package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/paygw/internal/handlers"
	"github.com/example/paygw/internal/middleware"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Payment           *handlers.PaymentHandler
	Admin             *handlers.AdminHandler
	JWTSecret         string
	AdminUser         string
	AdminPasswordHash string
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, d Deps) {
	app.Get("/healthz", handlers.Healthz)

	// The provider calls this unauthenticated; the anti-phishing key is checked instead.
	app.Get("/webhook", d.Payment.Webhook)

	auth := middleware.AuthMiddleware(d.JWTSecret)
	app.Get("/pay", auth, d.Payment.Pay)
	app.Get("/return", auth, d.Payment.Return)
	app.Get("/cancel", auth, d.Payment.Cancel)

	admin := app.Group("/admin", middleware.AdminBasicAuth(d.AdminUser, d.AdminPasswordHash))
	admin.Get("/settings", d.Admin.GetSettings)
	admin.Put("/settings", d.Admin.UpdateSettings)
	admin.Get("/gateways/:accountId", d.Admin.GetGateway)
	admin.Put("/gateways/:accountId", d.Admin.UpdateGateway)
	admin.Get("/transactions", d.Admin.ListTransactions)
}
