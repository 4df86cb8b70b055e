package models

import (
	"math"
	"time"
)

// Player is a local snapshot of an account's battle-relevant data.
// Accounts are owned by the external user service; this row is populated by
// the player sync worker and by local win/loss tally updates after battles.
type Player struct {
	ID             string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string    `gorm:"uniqueIndex;not null" json:"external_user_id"`
	Username       string    `gorm:"index;not null" json:"username"`

	// Combat stats
	Attack  int `json:"attack" gorm:"default:10"`
	Defense int `json:"defense" gorm:"default:5"`
	HP      int `json:"hp" gorm:"column:hp;default:100"`

	// Tallies are owned locally and only updated inside a battle transaction
	Wins   int `json:"wins" gorm:"default:0"`
	Losses int `json:"losses" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// WinRate returns the win percentage rounded to one decimal, 0 for no battles.
func (p *Player) WinRate() float64 {
	total := p.Wins + p.Losses
	if total == 0 {
		return 0
	}
	return math.Round(float64(p.Wins)/float64(total)*1000) / 10
}

// TotalBattles is Wins + Losses.
func (p *Player) TotalBattles() int {
	return p.Wins + p.Losses
}

// RemotePlayer matches the JSON shape the user service exposes for profile sync.
type RemotePlayer struct {
	ExternalID string    `json:"external_id"`
	Username   string    `json:"username"`
	Attack     int       `json:"attack"`
	Defense    int       `json:"defense"`
	HP         int       `json:"hp"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
