package handlers

import (
	"topminton/middleware"
	"topminton/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPartyRoutes(app *fiber.App, partyService *services.PartyService, pairingService *services.PairingService) {
	// 🔓 Public routes (published parties only)
	app.Get("/parties/published", partyService.GetPublishedParties)

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Party CRUD
	secured.Post("/parties", partyService.CreateParty)
	secured.Get("/parties/:id", partyService.GetParty)
	secured.Put("/parties/:id", partyService.UpdateParty)
	secured.Post("/parties/:id/cancel", partyService.CancelParty)
	secured.Post("/parties/:id/photos", partyService.UploadPartyPhoto)

	// Publish scheduling
	secured.Post("/parties/:id/publish/now", partyService.PublishNow)
	secured.Post("/parties/:id/publish/schedule", partyService.SchedulePublish)
	secured.Post("/parties/:id/publish/cancel", partyService.CancelScheduledPublish)

	// Roster
	secured.Post("/parties/:id/join", partyService.JoinParty)
	secured.Post("/parties/:id/leave", partyService.LeaveParty)
	secured.Get("/parties/:id/members", partyService.GetMembers)
	secured.Delete("/parties/:id/members/:user_id", partyService.RemoveMember)

	// Pairing rounds and scoring
	secured.Post("/parties/:id/rooms", pairingService.GenerateRound)
	secured.Get("/parties/:id/rooms", pairingService.ListRooms)
	secured.Get("/parties/:id/standings", pairingService.Standings)
	secured.Patch("/pairings/:id/score", pairingService.AdjustScore)
	secured.Post("/pairings/:id/finish", pairingService.FinishMatch)
}
