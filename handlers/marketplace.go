package handlers

import (
	"topminton/middleware"
	"topminton/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMarketplaceRoutes(app *fiber.App, marketplaceService *services.MarketplaceService) {
	// 🔓 Public browsing
	app.Get("/marketplace/categories", marketplaceService.ListCategories)
	app.Get("/marketplace/listings", marketplaceService.BrowseListings)
	app.Get("/marketplace/listings/:id", marketplaceService.GetListing)

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Post("/marketplace/listings", marketplaceService.CreateListing)
	secured.Get("/marketplace/mine", marketplaceService.MyListings)
	secured.Put("/marketplace/listings/:id", marketplaceService.UpdateListing)
	secured.Post("/marketplace/listings/:id/publish", marketplaceService.PublishListing)
	secured.Post("/marketplace/listings/:id/sold", marketplaceService.MarkSold)
	secured.Post("/marketplace/listings/:id/archive", marketplaceService.ArchiveListing)
}
