package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"battle-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	defaultMatchTimeout = 30 * time.Second
	defaultRearmDelay   = 1 * time.Second
)

// QueueEntry is one waiting player. A player id appears at most once in the
// queue at any time.
type QueueEntry struct {
	PlayerID string    `json:"playerId"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}

// MatchRunner resolves one paired match end to end (battle + persistence +
// leaderboard refresh). The dispatcher treats any error as an aborted cycle.
type MatchRunner interface {
	RunMatch(ctx context.Context, player1, player2 QueueEntry) error
}

// AdmissionPublisher mirrors queue admissions onto a durable channel for
// audit/replay. It is never on the pairing critical path.
type AdmissionPublisher interface {
	Publish(entry QueueEntry) error
}

// MatchmakingService owns the in-memory FIFO queue and the pairing
// dispatcher. All queue mutation happens under one mutex so admission,
// withdrawal and pairing-consumption never interleave; everything slow
// (bridge publish, battle resolution) runs outside the lock.
type MatchmakingService struct {
	DB     *gorm.DB
	runner MatchRunner
	bridge AdmissionPublisher // optional

	matchTimeout time.Duration
	rearmDelay   time.Duration

	mu      sync.Mutex
	queue   []QueueEntry
	pairing bool
}

func NewMatchmakingService(db *gorm.DB, runner MatchRunner, bridge AdmissionPublisher) *MatchmakingService {
	return &MatchmakingService{
		DB:           db,
		runner:       runner,
		bridge:       bridge,
		matchTimeout: defaultMatchTimeout,
		rearmDelay:   defaultRearmDelay,
	}
}

// Admit adds a player to the queue. A player already present is a no-op
// reported via admitted=false; the existing entry keeps its position. On
// success the admission is mirrored to the bridge and pairing is evaluated
// before returning.
func (s *MatchmakingService) Admit(playerID, username string) (queuePosition, playersInQueue int, admitted bool) {
	entry := QueueEntry{
		PlayerID: playerID,
		Username: username,
		JoinedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	for _, queued := range s.queue {
		if queued.PlayerID == playerID {
			playersInQueue = len(s.queue)
			s.mu.Unlock()
			return 0, playersInQueue, false
		}
	}
	s.queue = append(s.queue, entry)
	queuePosition = len(s.queue)
	playersInQueue = len(s.queue)
	s.mu.Unlock()

	log.Printf("🎟️ [QUEUE] Player %s (ID: %s) added to queue (position %d)", username, playerID, queuePosition)

	if s.bridge != nil {
		if err := s.bridge.Publish(entry); err != nil {
			log.Printf("⚠️ [QUEUE] Failed to mirror admission for %s to bridge: %v", playerID, err)
		}
	}

	s.EvaluatePairing()
	return queuePosition, playersInQueue, true
}

// Withdraw removes a player from the queue. An absent player id is a normal
// negative result, not an error. A player already consumed by an in-flight
// pairing cycle reports not-found here.
func (s *MatchmakingService) Withdraw(playerID string) (playersInQueue int, found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, queued := range s.queue {
		if queued.PlayerID == playerID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			log.Printf("🚪 [QUEUE] Player %s removed from queue", playerID)
			return len(s.queue), true
		}
	}
	return len(s.queue), false
}

// Snapshot returns the queued players in admission order.
func (s *MatchmakingService) Snapshot() []QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]QueueEntry, len(s.queue))
	copy(snapshot, s.queue)
	return snapshot
}

// PlayersInQueue returns the current queue length.
func (s *MatchmakingService) PlayersInQueue() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// EvaluatePairing starts a pairing cycle when the queue holds at least two
// players and no cycle is in flight. The two oldest entries are dequeued
// under the lock and resolved in a goroutine so admission latency never
// includes battle completion.
func (s *MatchmakingService) EvaluatePairing() {
	s.mu.Lock()
	if s.pairing || len(s.queue) < 2 {
		s.mu.Unlock()
		return
	}
	s.pairing = true
	player1 := s.queue[0]
	player2 := s.queue[1]
	s.queue = s.queue[2:]
	s.mu.Unlock()

	// Admission guarantees uniqueness; two identical ids here means queue
	// state is corrupt and nothing downstream can be trusted.
	if player1.PlayerID == player2.PlayerID {
		log.Panicf("[QUEUE] invariant violation: player %s dequeued twice in one pairing", player1.PlayerID)
	}

	go s.runPairingCycle(player1, player2)
}

// runPairingCycle resolves one dequeued pair. On failure the two players are
// NOT re-queued; their match attempt is lost (documented limitation). The
// dispatcher always returns to idle, and re-arms via a scheduled
// re-evaluation rather than recursing, so cycle depth stays flat however
// fast players join.
func (s *MatchmakingService) runPairingCycle(player1, player2 QueueEntry) {
	log.Printf("🎮 [QUEUE] MATCH FOUND: %s vs %s", player1.Username, player2.Username)

	ctx, cancel := context.WithTimeout(context.Background(), s.matchTimeout)
	defer cancel()

	if err := s.runner.RunMatch(ctx, player1, player2); err != nil {
		log.Printf("❌ [QUEUE] Pairing cycle failed for %s vs %s: %v", player1.Username, player2.Username, err)
	}

	s.mu.Lock()
	s.pairing = false
	remaining := len(s.queue)
	s.mu.Unlock()

	if remaining >= 2 {
		time.AfterFunc(s.rearmDelay, s.EvaluatePairing)
	}
}

// JoinQueue handles POST /matchmaking/join.
func (s *MatchmakingService) JoinQueue(c *fiber.Ctx) error {
	var req struct {
		PlayerID string `json:"playerId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.PlayerID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "playerId is required"})
	}

	var player models.Player
	if err := s.DB.First(&player, "id = ?", req.PlayerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "Player not found"})
		}
		log.Printf("❌ [QUEUE] DB error looking up player %s: %v", req.PlayerID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	queuePosition, playersInQueue, admitted := s.Admit(player.ID, player.Username)
	if !admitted {
		return c.Status(409).JSON(fiber.Map{"error": "Player already in queue"})
	}

	return c.JSON(fiber.Map{
		"message":        "Successfully joined matchmaking queue",
		"queuePosition":  queuePosition,
		"playersInQueue": playersInQueue,
	})
}

// LeaveQueue handles DELETE /matchmaking/leave.
func (s *MatchmakingService) LeaveQueue(c *fiber.Ctx) error {
	var req struct {
		PlayerID string `json:"playerId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.PlayerID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "playerId is required"})
	}

	playersInQueue, found := s.Withdraw(req.PlayerID)
	if !found {
		return c.Status(404).JSON(fiber.Map{"error": "Player not in queue"})
	}

	return c.JSON(fiber.Map{
		"message":        "Successfully left matchmaking queue",
		"playersInQueue": playersInQueue,
	})
}

// QueueStatus handles GET /matchmaking/status.
func (s *MatchmakingService) QueueStatus(c *fiber.Ctx) error {
	snapshot := s.Snapshot()
	return c.JSON(fiber.Map{
		"playersInQueue": len(snapshot),
		"players":        snapshot,
	})
}
