package services

import (
	"testing"

	"battle-arena-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankLeaderboardOrdering(t *testing.T) {
	players := []models.Player{
		{ID: "a", Username: "alice", Wins: 3, Losses: 7},
		{ID: "b", Username: "bob", Wins: 10, Losses: 0},
		{ID: "c", Username: "carol", Wins: 10, Losses: 5},
		{ID: "d", Username: "dave", Wins: 0, Losses: 0},
	}

	entries := rankLeaderboard(players)
	require.Len(t, entries, 4)

	// Wins descending; at equal wins the better win rate ranks higher.
	assert.Equal(t, "bob", entries[0].Username)
	assert.Equal(t, "carol", entries[1].Username)
	assert.Equal(t, "alice", entries[2].Username)
	assert.Equal(t, "dave", entries[3].Username)

	assert.Equal(t, 100.0, entries[0].WinRate)
	assert.Equal(t, 66.7, entries[1].WinRate)
	assert.Equal(t, 0.0, entries[3].WinRate)
}

func TestRankLeaderboardCapsAtTen(t *testing.T) {
	players := make([]models.Player, 15)
	for i := range players {
		players[i] = models.Player{ID: string(rune('a' + i)), Wins: i}
	}

	entries := rankLeaderboard(players)
	require.Len(t, entries, leaderboardSize)
	assert.Equal(t, 14, entries[0].Wins)
	assert.Equal(t, 5, entries[len(entries)-1].Wins)
}
