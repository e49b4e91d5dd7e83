package handlers

import (
	"topminton/middleware"
	"topminton/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPlayerRoutes(app *fiber.App, playerService *services.PlayerService) {
	app.Get("/players/search", playerService.SearchPlayers)

	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/players/me", playerService.GetMyProfile)
	secured.Put("/players/me", playerService.UpdateMyProfile)
	secured.Get("/players/:id", playerService.GetPlayer)
}
