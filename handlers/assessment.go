package handlers

import (
	"topminton/middleware"
	"topminton/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAssessmentRoutes(app *fiber.App, assessmentService *services.AssessmentService) {
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/assessment/questions", assessmentService.GetQuestions)
	secured.Post("/assessment/attempts", assessmentService.SubmitAttempt)
	secured.Get("/assessment/attempts/mine", assessmentService.MyAttempts)

	admin := secured.Group("/admin", middleware.RequireRole("admin"))
	admin.Post("/assessment/questions", assessmentService.CreateQuestion)
	admin.Delete("/assessment/questions/:id", assessmentService.DeactivateQuestion)
}
