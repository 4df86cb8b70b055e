package services

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSource always yields the same value, so rand.Intn(6) is 0 and every
// damage roll gets the minimum +1 bonus. Useful for forcing symmetric
// battles.
type fixedSource struct{}

func (fixedSource) Int63() int64    { return 0 }
func (fixedSource) Seed(seed int64) {}

func seededRng(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func TestCalculateDamageFloor(t *testing.T) {
	rng := seededRng(1)

	weakling := Combatant{ID: "a", Username: "weakling", Attack: -50, Defense: 0, HP: 100}
	fortress := Combatant{ID: "b", Username: "fortress", Attack: 0, Defense: 1000, HP: 100}

	for i := 0; i < 200; i++ {
		damage := calculateDamage(weakling, fortress, rng)
		require.GreaterOrEqual(t, damage, 1, "every attack must deal at least 1 damage")
	}
}

func TestCalculateDamageUsesFloorDivision(t *testing.T) {
	// attack 10 vs defense 5: 10 - 5/2 = 10 - 2 = 8 base, +1..6 bonus
	attacker := Combatant{Attack: 10}
	defender := Combatant{Defense: 5}

	rng := rand.New(fixedSource{}) // bonus is always 1
	assert.Equal(t, 9, calculateDamage(attacker, defender, rng))
}

func TestSimulateBattleTurnBounds(t *testing.T) {
	cases := []struct {
		name   string
		p1, p2 Combatant
	}{
		{"quick kill", Combatant{ID: "1", Username: "bruiser", Attack: 500, HP: 100}, Combatant{ID: "2", Username: "victim", Attack: 1, HP: 10}},
		{"stalemate", Combatant{ID: "1", Username: "tank1", Attack: 1, Defense: 100, HP: 10000}, Combatant{ID: "2", Username: "tank2", Attack: 1, Defense: 100, HP: 10000}},
		{"typical", Combatant{ID: "1", Username: "hero", Attack: 15, Defense: 8, HP: 100}, Combatant{ID: "2", Username: "rival", Attack: 12, Defense: 6, HP: 100}},
		{"already defeated", Combatant{ID: "1", Username: "ghost1", Attack: 10, HP: 0}, Combatant{ID: "2", Username: "ghost2", Attack: 10, HP: -5}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for seed := int64(0); seed < 25; seed++ {
				result := SimulateBattle(tc.p1, tc.p2, seededRng(seed))
				require.GreaterOrEqual(t, result.Turns, 1)
				require.LessOrEqual(t, result.Turns, MaxBattleTurns)
			}
		})
	}
}

func TestSimulateBattleWinnerLoserPartition(t *testing.T) {
	p1 := Combatant{ID: "p1", Username: "hero", Attack: 15, Defense: 8, HP: 100}
	p2 := Combatant{ID: "p2", Username: "rival", Attack: 12, Defense: 6, HP: 100}

	for seed := int64(0); seed < 50; seed++ {
		result := SimulateBattle(p1, p2, seededRng(seed))

		require.NotEqual(t, result.Winner.ID, result.Loser.ID)
		ids := map[string]bool{result.Winner.ID: true, result.Loser.ID: true}
		require.True(t, ids["p1"] && ids["p2"], "winner and loser must be exactly the two inputs")
	}
}

func TestSimulateBattleDeterminism(t *testing.T) {
	p1 := Combatant{ID: "p1", Username: "hero", Attack: 15, Defense: 8, HP: 100}
	p2 := Combatant{ID: "p2", Username: "rival", Attack: 12, Defense: 6, HP: 100}

	first := SimulateBattle(p1, p2, seededRng(42))
	second := SimulateBattle(p1, p2, seededRng(42))

	// Identical draws must mean an identical outcome, log text included.
	assert.Equal(t, first, second)
}

func TestSimulateBattleTieBreakGoesToCombatant1(t *testing.T) {
	p1 := Combatant{ID: "p1", Username: "twin1", Attack: 10, Defense: 10, HP: 1000}
	p2 := Combatant{ID: "p2", Username: "twin2", Attack: 10, Defense: 10, HP: 1000}

	// Constant bonus and mirrored stats: both lose the same HP every turn,
	// so after the turn cap the score is exactly level.
	result := SimulateBattle(p1, p2, rand.New(fixedSource{}))

	assert.Equal(t, MaxBattleTurns, result.Turns)
	assert.Equal(t, result.Player1HP, result.Player2HP)
	assert.Equal(t, "p1", result.Winner.ID)
	assert.Equal(t, "p2", result.Loser.ID)
}

func TestSimulateBattleAlreadyDefeatedInputs(t *testing.T) {
	p1 := Combatant{ID: "p1", Username: "ghost1", Attack: 10, Defense: 5, HP: 0}
	p2 := Combatant{ID: "p2", Username: "ghost2", Attack: 10, Defense: 5, HP: 0}

	result := SimulateBattle(p1, p2, seededRng(7))

	assert.Equal(t, 1, result.Turns)
	assert.Equal(t, "p1", result.Winner.ID, "exact tie goes to combatant 1")
}

func TestSimulateBattleKillingBlowShortCircuits(t *testing.T) {
	p1 := Combatant{ID: "p1", Username: "executioner", Attack: 100, Defense: 0, HP: 100}
	p2 := Combatant{ID: "p2", Username: "wisp", Attack: 5, Defense: 0, HP: 1}

	result := SimulateBattle(p1, p2, seededRng(3))

	assert.Equal(t, 1, result.Turns)
	assert.Equal(t, "p1", result.Winner.ID)
	assert.Equal(t, 0, result.Player2HP)
	assert.Equal(t, 100, result.Player1HP, "the defeated side never gets to act")
	assert.NotContains(t, result.BattleLog, "wisp attacks")
}

func TestSimulateBattleLogStructure(t *testing.T) {
	p1 := Combatant{ID: "p1", Username: "hero", Attack: 15, Defense: 8, HP: 100}
	p2 := Combatant{ID: "p2", Username: "rival", Attack: 12, Defense: 6, HP: 100}

	result := SimulateBattle(p1, p2, seededRng(9))
	lines := strings.Split(result.BattleLog, "\n")

	require.GreaterOrEqual(t, len(lines), 6)
	assert.Equal(t, "⚔️  Battle starts: hero vs rival", lines[0])
	assert.Equal(t, "hero - HP: 100 | ATK: 15 | DEF: 8", lines[1])
	assert.Equal(t, "rival - HP: 100 | ATK: 12 | DEF: 6", lines[2])
	assert.Equal(t, battleLogSeparator, lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "Turn 1: hero attacks rival for "))
	assert.Equal(t, battleLogSeparator, lines[len(lines)-2])
	assert.Equal(t, fmt.Sprintf("🏆 %s wins the battle!", result.Winner.Username), lines[len(lines)-1])
}
