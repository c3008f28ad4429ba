package models

import (
	"gorm.io/gorm"
)

// Room 表示一個投票教室
// RoomCode 是人類可讀的六位大寫代碼，建立後不可變更
type Room struct {
	gorm.Model
	RoomCode string     `json:"roomCode" gorm:"uniqueIndex;type:varchar(12)"`
	Name     string     `json:"name" gorm:"default:'Untitled Room'"`
	Status   RoomStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
}

// RoomStatus 定義房間狀態的類型
type RoomStatus string

const (
	RoomStatusActive RoomStatus = "active"
	RoomStatusClosed RoomStatus = "closed"
)
