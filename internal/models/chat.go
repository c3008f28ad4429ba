package models

import (
	"time"

	"gorm.io/gorm"
)

// ChatMessage 表示一條聊天訊息
type ChatMessage struct {
	gorm.Model
	RoomCode  string    `json:"roomCode" gorm:"index;type:varchar(12)"`
	Sender    string    `json:"sender"`
	Role      string    `json:"role" gorm:"type:varchar(20)"` // presenter / participant
	Message   string    `json:"message" gorm:"type:varchar(500)"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
}
