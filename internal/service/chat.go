package service

import (
	"fmt"
	"time"

	"poll_web/internal/models"
	"poll_web/internal/repository"
	"poll_web/internal/utils"
)

const (
	chatBacklogLimit = 50  // state-sync 攜帶的聊天訊息筆數
	chatMaxLength    = 500 // 單一訊息的長度上限（字元數）
)

// ChatService 處理聊天訊息的保存與回放
type ChatService struct {
	chatRepo repository.ChatRepository
}

func NewChatService(chatRepo repository.ChatRepository) *ChatService {
	return &ChatService{chatRepo: chatRepo}
}

// SaveMessage 保存一條聊天訊息，超長的內容會被截斷
// 以字元數計算長度，避免把多位元組字元從中切斷
func (s *ChatService) SaveMessage(roomCode, sender, role, message string) (*models.ChatMessage, error) {
	if runes := []rune(message); len(runes) > chatMaxLength {
		message = string(runes[:chatMaxLength])
	}

	chat := &models.ChatMessage{
		RoomCode:  utils.NormalizeRoomCode(roomCode),
		Sender:    sender,
		Role:      role,
		Message:   message,
		Timestamp: time.Now(),
	}
	if err := s.chatRepo.Create(chat); err != nil {
		return nil, fmt.Errorf("failed to save chat message: %w", err)
	}
	return chat, nil
}

// RecentMessages 回傳房間最近的聊天紀錄，由舊到新排序
func (s *ChatService) RecentMessages(roomCode string) ([]models.ChatMessage, error) {
	messages, err := s.chatRepo.FindRecentByRoom(utils.NormalizeRoomCode(roomCode), chatBacklogLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat messages: %w", err)
	}
	return messages, nil
}
