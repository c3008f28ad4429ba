package repository

import (
	"poll_web/internal/models"
	"poll_web/internal/storage"
)

type ChatRepository interface {
	Create(message *models.ChatMessage) error
	FindRecentByRoom(roomCode string, limit int) ([]models.ChatMessage, error)
}

type chatRepository struct {
	db *storage.PostgresDB
}

func NewChatRepository(db *storage.PostgresDB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Create(message *models.ChatMessage) error {
	return r.db.Create(message).Error
}

// FindRecentByRoom 查詢指定房間最近的訊息，由舊到新排序
func (r *chatRepository) FindRecentByRoom(roomCode string, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.Where("room_code = ?", roomCode).
		Order("timestamp DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// 反轉為時間正序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
