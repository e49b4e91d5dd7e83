package handlers

import (
	"topminton/middleware"
	"topminton/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChatRoutes(app *fiber.App, chatService *services.ChatService, notifService *services.NotificationService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Conversations and messages
	secured.Post("/conversations/direct", chatService.StartDirectConversation)
	secured.Get("/conversations", chatService.MyConversations)
	secured.Post("/conversations/:id/messages", chatService.SendMessage)
	secured.Get("/conversations/:id/messages", chatService.GetMessages)
	secured.Post("/conversations/:id/read", chatService.MarkRead)

	// Notifications
	secured.Get("/notifications", notifService.ListNotifications)
	secured.Post("/notifications/:id/read", notifService.MarkRead)
	secured.Post("/notifications/read-all", notifService.MarkAllRead)

	// SSE streams: EventSource can't set headers, so these use the
	// query-token variant of the user-context middleware.
	app.Get("/conversations/:id/stream", middleware.SSEUserContextMiddleware(), chatService.StreamMessagesSSE)
	app.Get("/notifications/stream", middleware.SSEUserContextMiddleware(), notifService.StreamNotificationsSSE)
}
