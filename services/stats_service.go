package services

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"battle-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const leaderboardSize = 10

// StatsService serves leaderboard and player stat queries and pushes
// leaderboard refreshes through the live hub.
type StatsService struct {
	DB  *gorm.DB
	Hub *LiveHub
}

func NewStatsService(db *gorm.DB, hub *LiveHub) *StatsService {
	return &StatsService{DB: db, Hub: hub}
}

// LeaderboardEntry is one leaderboard row, both for GET responses and for
// live broadcasts.
type LeaderboardEntry struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	Attack   int     `json:"attack"`
	Defense  int     `json:"defense"`
	HP       int     `json:"hp"`
	WinRate  float64 `json:"win_rate"`
}

// topPlayers returns the leaderboard: wins descending, win rate as
// tie-break.
func (s *StatsService) topPlayers() ([]LeaderboardEntry, error) {
	var players []models.Player
	if err := s.DB.Find(&players).Error; err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}
	return rankLeaderboard(players), nil
}

func rankLeaderboard(players []models.Player) []LeaderboardEntry {
	sort.Slice(players, func(i, j int) bool {
		if players[i].Wins != players[j].Wins {
			return players[i].Wins > players[j].Wins
		}
		return players[i].WinRate() > players[j].WinRate()
	})

	if len(players) > leaderboardSize {
		players = players[:leaderboardSize]
	}

	entries := make([]LeaderboardEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, LeaderboardEntry{
			ID:       p.ID,
			Username: p.Username,
			Wins:     p.Wins,
			Losses:   p.Losses,
			Attack:   p.Attack,
			Defense:  p.Defense,
			HP:       p.HP,
			WinRate:  p.WinRate(),
		})
	}
	return entries
}

// RefreshAndBroadcast pushes the current leaderboard to every live
// subscriber. Invoked after any persisted change that should be visible
// immediately.
func (s *StatsService) RefreshAndBroadcast() error {
	entries, err := s.topPlayers()
	if err != nil {
		return err
	}
	s.Hub.Broadcast("leaderboard_update", entries)
	return nil
}

// GetLeaderboard handles GET /stats/leaderboard.
func (s *StatsService) GetLeaderboard(c *fiber.Ctx) error {
	entries, err := s.topPlayers()
	if err != nil {
		log.Printf("❌ [STATS] Leaderboard query failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	return c.JSON(fiber.Map{
		"leaderboard": entries,
		"lastUpdated": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetPlayerStats handles GET /stats/player/:userId, the player card with
// rank and recent battles.
func (s *StatsService) GetPlayerStats(c *fiber.Ctx) error {
	userID := c.Params("userId")

	var player models.Player
	if err := s.DB.First(&player, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "Player not found"})
		}
		log.Printf("❌ [STATS] DB error fetching player %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	var rank int64
	if err := s.DB.Model(&models.Player{}).Where("wins > ?", player.Wins).Count(&rank).Error; err != nil {
		log.Printf("❌ [STATS] Rank query failed for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	var battles []models.Battle
	err := s.DB.Preload("Player1").Preload("Player2").Preload("Winner").
		Where("player1_id = ? OR player2_id = ?", userID, userID).
		Order("created_at DESC").Limit(10).
		Find(&battles).Error
	if err != nil {
		log.Printf("❌ [STATS] Recent battles query failed for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	recent := make([]fiber.Map, 0, len(battles))
	for _, b := range battles {
		recent = append(recent, fiber.Map{
			"id":           b.ID,
			"created_at":   b.CreatedAt,
			"player1_name": b.Player1.Username,
			"player2_name": b.Player2.Username,
			"winner_name":  b.Winner.Username,
			"won":          b.WinnerID == userID,
		})
	}

	return c.JSON(fiber.Map{
		"player": fiber.Map{
			"id":           player.ID,
			"username":     player.Username,
			"attack":       player.Attack,
			"defense":      player.Defense,
			"hp":           player.HP,
			"wins":         player.Wins,
			"losses":       player.Losses,
			"win_rate":     player.WinRate(),
			"rank":         rank + 1,
			"totalBattles": player.TotalBattles(),
			"created_at":   player.CreatedAt,
		},
		"recentBattles": recent,
	})
}

// RefreshLeaderboard handles POST /stats/refresh.
func (s *StatsService) RefreshLeaderboard(c *fiber.Ctx) error {
	if err := s.RefreshAndBroadcast(); err != nil {
		log.Printf("❌ [STATS] Refresh broadcast failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to refresh leaderboard"})
	}

	return c.JSON(fiber.Map{
		"message":          "Leaderboard refresh broadcasted",
		"connectedClients": s.Hub.ConnectedClients(),
	})
}

// WebSocketClients handles GET /stats/websocket/clients.
func (s *StatsService) WebSocketClients(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"connectedClients": s.Hub.ConnectedClients()})
}
