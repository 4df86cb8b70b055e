package handlers

import (
	"battle-arena-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupBattleRoutes(app *fiber.App, battleService *services.BattleService) {
	app.Post("/battle/simulate", battleService.SimulateBattleEndpoint)
	// history before :id so "history" isn't swallowed by the param route
	app.Get("/battle/history/:userId", battleService.GetBattleHistory)
	app.Get("/battle/:id", battleService.GetBattle)
}
