package handlers

import (
	"battle-arena-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMatchmakingRoutes(app *fiber.App, matchmakingService *services.MatchmakingService) {
	app.Post("/matchmaking/join", matchmakingService.JoinQueue)
	app.Delete("/matchmaking/leave", matchmakingService.LeaveQueue)
	app.Get("/matchmaking/status", matchmakingService.QueueStatus)
}
