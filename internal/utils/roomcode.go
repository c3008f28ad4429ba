package utils

import (
	"math/rand"
	"strings"
)

// 房間代碼只使用不易混淆的字元（排除 I、O、0、1）
const (
	roomCodeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeLength  = 6
)

// GenerateRoomCode 產生一組隨機房間代碼
// 唯一性由呼叫端對資料庫查核後重試保證
func GenerateRoomCode() string {
	var sb strings.Builder
	sb.Grow(roomCodeLength)
	for i := 0; i < roomCodeLength; i++ {
		sb.WriteByte(roomCodeCharset[rand.Intn(len(roomCodeCharset))])
	}
	return sb.String()
}

// NormalizeRoomCode 將房間代碼正規化為標準大寫形式
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
