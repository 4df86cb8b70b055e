package services

import (
	"fmt"
	"math/rand"
	"strings"
)

// MaxBattleTurns caps every battle; near-equal stats could otherwise
// grind forever.
const MaxBattleTurns = 10

const battleLogSeparator = "─────────────────────────────────"

// Combatant is an immutable snapshot of a player's battle-relevant attributes.
// SimulateBattle never mutates the caller's copy.
type Combatant struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Attack   int    `json:"attack"`
	Defense  int    `json:"defense"`
	HP       int    `json:"hp"`
}

// BattleResult is the outcome of one simulated battle.
type BattleResult struct {
	Winner     Combatant
	Loser      Combatant
	BattleLog  string
	Turns      int
	Player1HP  int
	Player2HP  int
}

// calculateDamage computes one attack: base damage is attack minus half the
// defender's defense (integer division), plus a 1–6 bonus roll. The result is
// floored at 1 so every attack lands for something, even with zero or
// negative attack.
func calculateDamage(attacker, defender Combatant, rng *rand.Rand) int {
	baseDamage := attacker.Attack - defender.Defense/2
	randomBonus := rng.Intn(6) + 1
	if damage := baseDamage + randomBonus; damage > 1 {
		return damage
	}
	return 1
}

// SimulateBattle resolves a battle between two combatants. Combatant 1 always
// attacks first each turn; a killing blow ends the turn early. The battle
// stops when either side reaches 0 HP or after MaxBattleTurns. Strictly
// higher remaining HP wins; an exact tie goes to combatant 1.
//
// rng is the only source of randomness; pass a seeded *rand.Rand to make the
// outcome (including the log text) reproducible.
func SimulateBattle(player1, player2 Combatant, rng *rand.Rand) BattleResult {
	hp1 := player1.HP
	hp2 := player2.HP

	log := []string{
		fmt.Sprintf("⚔️  Battle starts: %s vs %s", player1.Username, player2.Username),
		fmt.Sprintf("%s - HP: %d | ATK: %d | DEF: %d", player1.Username, hp1, player1.Attack, player1.Defense),
		fmt.Sprintf("%s - HP: %d | ATK: %d | DEF: %d", player2.Username, hp2, player2.Attack, player2.Defense),
		battleLogSeparator,
	}

	turns := 1
	for turn := 1; turn <= MaxBattleTurns && hp1 > 0 && hp2 > 0; turn++ {
		turns = turn

		damage := calculateDamage(player1, player2, rng)
		hp2 -= damage
		if hp2 < 0 {
			hp2 = 0
		}
		log = append(log, fmt.Sprintf("Turn %d: %s attacks %s for %d damage! (%s HP: %d)",
			turn, player1.Username, player2.Username, damage, player2.Username, hp2))

		if hp2 <= 0 {
			break
		}

		damage = calculateDamage(player2, player1, rng)
		hp1 -= damage
		if hp1 < 0 {
			hp1 = 0
		}
		log = append(log, fmt.Sprintf("Turn %d: %s attacks %s for %d damage! (%s HP: %d)",
			turn, player2.Username, player1.Username, damage, player1.Username, hp1))
	}

	winner, loser := player1, player2
	if hp2 > hp1 {
		winner, loser = player2, player1
	}

	log = append(log, battleLogSeparator)
	log = append(log, fmt.Sprintf("🏆 %s wins the battle!", winner.Username))

	return BattleResult{
		Winner:    winner,
		Loser:     loser,
		BattleLog: strings.Join(log, "\n"),
		Turns:     turns,
		Player1HP: hp1,
		Player2HP: hp2,
	}
}
