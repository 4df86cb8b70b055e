package models

import "time"

// Battle records one resolved match between two players.
// Rows are immutable once created; the winner/loser tallies on the two
// Player rows are updated in the same transaction that creates the Battle.
type Battle struct {
	ID        string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Player1ID string `gorm:"index;not null" json:"player1_id"`
	Player2ID string `gorm:"index;not null" json:"player2_id"`
	WinnerID  string `gorm:"index;not null" json:"winner_id"`

	BattleLog      string `json:"battle_log" gorm:"type:text"`
	Turns          int    `json:"turns"`
	Player1FinalHP int    `json:"player1_final_hp"`
	Player2FinalHP int    `json:"player2_final_hp"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`

	// Relationships
	Player1 Player `json:"player1,omitempty" gorm:"foreignKey:Player1ID"`
	Player2 Player `json:"player2,omitempty" gorm:"foreignKey:Player2ID"`
	Winner  Player `json:"winner,omitempty" gorm:"foreignKey:WinnerID"`
}
