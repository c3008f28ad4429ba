package repository

import (
	"poll_web/internal/models"
	"poll_web/internal/storage"
)

type RoomRepository interface {
	Create(room *models.Room) error
	FindByCode(roomCode string) (*models.Room, error)
	ExistsByCode(roomCode string) (bool, error)
	UpdateStatus(roomCode string, status models.RoomStatus) error
}

type roomRepository struct {
	db *storage.PostgresDB
}

func NewRoomRepository(db *storage.PostgresDB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) Create(room *models.Room) error {
	return r.db.Create(room).Error
}

func (r *roomRepository) FindByCode(roomCode string) (*models.Room, error) {
	var room models.Room
	err := r.db.Where("room_code = ?", roomCode).First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) ExistsByCode(roomCode string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Room{}).Where("room_code = ?", roomCode).Count(&count).Error
	return count > 0, err
}

func (r *roomRepository) UpdateStatus(roomCode string, status models.RoomStatus) error {
	return r.db.Model(&models.Room{}).Where("room_code = ?", roomCode).
		Update("status", status).Error
}
