package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"battle-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// BattleService resolves battles between stored players and persists the
// outcome. The battle row and both tally updates are applied in one
// transaction, so either all of it lands or none of it does.
type BattleService struct {
	DB *gorm.DB

	// rng guards a single shared source; *rand.Rand is not goroutine-safe
	// and both the dispatcher and the HTTP handler resolve battles.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewBattleService creates a BattleService. rng may be nil, in which case a
// time-seeded source is used; tests pass a fixed-seed source.
func NewBattleService(db *gorm.DB, rng *rand.Rand) *BattleService {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &BattleService{DB: db, rng: rng}
}

// FinalHP reports both sides' remaining health after a battle.
type FinalHP struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
}

// BattleOutcome is the wire shape returned after a resolved battle.
type BattleOutcome struct {
	BattleID  string    `json:"battleId"`
	Winner    string    `json:"winner"`
	Loser     string    `json:"loser"`
	Turns     int       `json:"turns"`
	FinalHP   FinalHP   `json:"finalHp"`
	BattleLog string    `json:"battleLog"`
	CreatedAt time.Time `json:"createdAt"`
}

// ResolveAndRecord loads both players, simulates the battle and persists the
// result atomically. Player rows are read as snapshots; the resolver never
// touches them.
func (s *BattleService) ResolveAndRecord(ctx context.Context, player1ID, player2ID string) (*BattleOutcome, error) {
	var players []models.Player
	if err := s.DB.WithContext(ctx).Where("id IN ?", []string{player1ID, player2ID}).Find(&players).Error; err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}
	if len(players) != 2 {
		return nil, gorm.ErrRecordNotFound
	}

	var player1, player2 models.Player
	for _, p := range players {
		switch p.ID {
		case player1ID:
			player1 = p
		case player2ID:
			player2 = p
		}
	}

	s.rngMu.Lock()
	result := SimulateBattle(combatantFromPlayer(player1), combatantFromPlayer(player2), s.rng)
	s.rngMu.Unlock()

	battle := models.Battle{
		Player1ID:      player1.ID,
		Player2ID:      player2.ID,
		WinnerID:       result.Winner.ID,
		BattleLog:      result.BattleLog,
		Turns:          result.Turns,
		Player1FinalHP: result.Player1HP,
		Player2FinalHP: result.Player2HP,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&battle).Error; err != nil {
			return fmt.Errorf("failed to create battle record: %w", err)
		}
		if err := tx.Model(&models.Player{}).Where("id = ?", result.Winner.ID).
			Update("wins", gorm.Expr("wins + 1")).Error; err != nil {
			return fmt.Errorf("failed to update winner tally: %w", err)
		}
		if err := tx.Model(&models.Player{}).Where("id = ?", result.Loser.ID).
			Update("losses", gorm.Expr("losses + 1")).Error; err != nil {
			return fmt.Errorf("failed to update loser tally: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("⚔️  [BATTLE] %s defeats %s in %d turn(s) (battle %s)",
		result.Winner.Username, result.Loser.Username, result.Turns, battle.ID)

	return &BattleOutcome{
		BattleID:  battle.ID,
		Winner:    result.Winner.Username,
		Loser:     result.Loser.Username,
		Turns:     result.Turns,
		FinalHP:   FinalHP{Player1: result.Player1HP, Player2: result.Player2HP},
		BattleLog: result.BattleLog,
		CreatedAt: battle.CreatedAt,
	}, nil
}

func combatantFromPlayer(p models.Player) Combatant {
	return Combatant{
		ID:       p.ID,
		Username: p.Username,
		Attack:   p.Attack,
		Defense:  p.Defense,
		HP:       p.HP,
	}
}

// SimulateBattleEndpoint handles POST /battle/simulate.
func (s *BattleService) SimulateBattleEndpoint(c *fiber.Ctx) error {
	var req struct {
		Player1ID string `json:"player1Id"`
		Player2ID string `json:"player2Id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	if req.Player1ID == "" || req.Player2ID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "player1Id and player2Id are required"})
	}
	if req.Player1ID == req.Player2ID {
		return c.Status(400).JSON(fiber.Map{"error": "Players must be different"})
	}

	outcome, err := s.ResolveAndRecord(c.Context(), req.Player1ID, req.Player2ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "One or both players not found"})
		}
		log.Printf("❌ [BATTLE] Simulate failed for %s vs %s: %v", req.Player1ID, req.Player2ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to resolve battle"})
	}

	return c.Status(201).JSON(outcome)
}

// GetBattle handles GET /battle/:id.
func (s *BattleService) GetBattle(c *fiber.Ctx) error {
	id := c.Params("id")

	var battle models.Battle
	err := s.DB.Preload("Player1").Preload("Player2").Preload("Winner").
		First(&battle, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "Battle not found"})
		}
		log.Printf("❌ [BATTLE] DB error fetching battle %s: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	return c.JSON(fiber.Map{"battle": fiber.Map{
		"id":           battle.ID,
		"battle_log":   battle.BattleLog,
		"turns":        battle.Turns,
		"created_at":   battle.CreatedAt,
		"player1_name": battle.Player1.Username,
		"player2_name": battle.Player2.Username,
		"winner_name":  battle.Winner.Username,
	}})
}

// GetBattleHistory handles GET /battle/history/:userId, the player's last
// 20 battles, newest first.
func (s *BattleService) GetBattleHistory(c *fiber.Ctx) error {
	userID := c.Params("userId")

	var battles []models.Battle
	err := s.DB.Preload("Player1").Preload("Player2").Preload("Winner").
		Where("player1_id = ? OR player2_id = ?", userID, userID).
		Order("created_at DESC").Limit(20).
		Find(&battles).Error
	if err != nil {
		log.Printf("❌ [BATTLE] DB error fetching history for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	history := make([]fiber.Map, 0, len(battles))
	for _, b := range battles {
		history = append(history, fiber.Map{
			"id":           b.ID,
			"created_at":   b.CreatedAt,
			"player1_name": b.Player1.Username,
			"player2_name": b.Player2.Username,
			"winner_name":  b.Winner.Username,
		})
	}

	return c.JSON(fiber.Map{"battles": history})
}
