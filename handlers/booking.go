package handlers

import (
	"topminton/middleware"
	"topminton/services"

	"github.com/gofiber/fiber/v2"
)

func SetupBookingRoutes(app *fiber.App, bookingService *services.BookingService) {
	// 🔓 Public routes
	app.Get("/courts", bookingService.ListCourts)
	app.Get("/courts/:id/availability", bookingService.CourtAvailability)

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Post("/bookings", bookingService.CreateBooking)
	secured.Get("/bookings/mine", bookingService.MyBookings)
	secured.Post("/bookings/:id/confirm", bookingService.ConfirmBooking)
	secured.Post("/bookings/:id/cancel", bookingService.CancelBooking)

	// 🔒 Admin-only routes
	admin := secured.Group("/admin", middleware.RequireRole("admin"))
	admin.Post("/courts", bookingService.CreateCourt)
}
