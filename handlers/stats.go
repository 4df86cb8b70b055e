package handlers

import (
	"battle-arena-system/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func SetupStatsRoutes(app *fiber.App, statsService *services.StatsService, hub *services.LiveHub) {
	app.Get("/stats/leaderboard", statsService.GetLeaderboard)
	app.Get("/stats/player/:userId", statsService.GetPlayerStats)
	app.Post("/stats/refresh", statsService.RefreshLeaderboard)
	app.Get("/stats/websocket/clients", statsService.WebSocketClients)

	// Live leaderboard updates over WebSocket
	app.Use("/stats/live", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/stats/live", websocket.New(hub.HandleConnection))
}
