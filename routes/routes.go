package routes

import (
	adminctl "timenest/controllers/admin"
	"timenest/controllers/bookings"
	"timenest/controllers/catalog"
	"timenest/controllers/credits"
	"timenest/controllers/users"
	"timenest/middlewares"

	"github.com/gofiber/fiber/v2"
)

func Setup(app *fiber.App) {
	app.Post("/users/register", users.Register)

	serviceroutes := app.Group("/services")
	serviceroutes.Post("/", middlewares.UserAuthMiddleware, catalog.Register)
	serviceroutes.Get("/:id", catalog.Get)

	bookingroutes := app.Group("/bookings", middlewares.UserAuthMiddleware)
	bookingroutes.Post("/", bookings.Create)
	bookingroutes.Get("/", bookings.List)
	bookingroutes.Get("/:id", bookings.Get)
	bookingroutes.Post("/:id/status", bookings.UpdateStatus)

	creditroutes := app.Group("/credits", middlewares.UserAuthMiddleware)
	creditroutes.Get("/balance", credits.Balance)
	creditroutes.Get("/transactions", credits.History)

	adminroutes := app.Group("/admin", middlewares.AdminAuth())
	adminroutes.Post("/credits/adjust", adminctl.Adjust)
}
