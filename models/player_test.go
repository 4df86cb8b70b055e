package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWinRate(t *testing.T) {
	cases := []struct {
		name   string
		wins   int
		losses int
		want   float64
	}{
		{"no battles", 0, 0, 0},
		{"all wins", 5, 0, 100},
		{"all losses", 0, 5, 0},
		{"one third rounds to one decimal", 1, 2, 33.3},
		{"two thirds rounds to one decimal", 2, 1, 66.7},
		{"half", 3, 3, 50},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Player{Wins: tc.wins, Losses: tc.losses}
			assert.Equal(t, tc.want, p.WinRate())
			assert.Equal(t, tc.wins+tc.losses, p.TotalBattles())
		})
	}
}
