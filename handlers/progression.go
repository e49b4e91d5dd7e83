package handlers

import (
	"topminton/middleware"
	"topminton/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProgressionRoutes(app *fiber.App, pointsService *services.PointsService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// TB Points
	secured.Get("/progression", pointsService.GetProgress)
	secured.Get("/progression/ledger", pointsService.GetLedger)
	secured.Post("/progression/check-in", pointsService.CheckIn)
	secured.Post("/progression/spend", pointsService.SpendPoints)

	// Quests and achievements
	secured.Get("/quests", pointsService.ListQuests)
	secured.Post("/quests/:id/claim", pointsService.ClaimQuest)
	secured.Get("/achievements", pointsService.ListAchievements)
}
