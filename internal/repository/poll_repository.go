package repository

import (
	"time"

	"poll_web/internal/models"
	"poll_web/internal/storage"

	"gorm.io/gorm"
)

type PollRepository interface {
	Create(poll *models.Poll) error
	FindByID(id uint) (*models.Poll, error)
	FindAllActive() ([]models.Poll, error)
	FindCompletedByRoom(roomCode string, limit int) ([]models.Poll, error)
	AddVoteIfAbsent(vote *models.Vote) (bool, error)
	UpdateResults(pollID uint, results []models.PollResult) error
	MarkCompleted(pollID uint, endTime time.Time) error
}

type pollRepository struct {
	db *storage.PostgresDB
}

func NewPollRepository(db *storage.PostgresDB) PollRepository {
	return &pollRepository{db: db}
}

func (r *pollRepository) Create(poll *models.Poll) error {
	return r.db.Create(poll).Error
}

// FindByID 查詢單一題目，並帶出按投票時間排序的選票
func (r *pollRepository) FindByID(id uint) (*models.Poll, error) {
	var poll models.Poll
	err := r.db.Preload("Votes", func(db *gorm.DB) *gorm.DB {
		return db.Order("votes.voted_at ASC")
	}).First(&poll, id).Error
	if err != nil {
		return nil, err
	}
	return &poll, nil
}

// FindAllActive 查詢所有仍標記為 active 的題目，供啟動時恢復狀態使用
func (r *pollRepository) FindAllActive() ([]models.Poll, error) {
	var polls []models.Poll
	err := r.db.Preload("Votes", func(db *gorm.DB) *gorm.DB {
		return db.Order("votes.voted_at ASC")
	}).Where("status = ?", models.PollStatusActive).Find(&polls).Error
	return polls, err
}

func (r *pollRepository) FindCompletedByRoom(roomCode string, limit int) ([]models.Poll, error) {
	var polls []models.Poll
	err := r.db.Preload("Votes", func(db *gorm.DB) *gorm.DB {
		return db.Order("votes.voted_at ASC")
	}).Where("room_code = ? AND status = ?", roomCode, models.PollStatusCompleted).
		Order("created_at DESC").Limit(limit).Find(&polls).Error
	return polls, err
}

// AddVoteIfAbsent 以單一條件式寫入插入選票：只有在題目仍為 active
// 且該參與者尚未投票時才會寫入。這條語句是併發正確性的唯一仲裁者，
// 同一參與者的兩筆同時送出的投票最多只會有一筆被接受。
// 回傳值表示選票是否真的被寫入。
func (r *pollRepository) AddVoteIfAbsent(vote *models.Vote) (bool, error) {
	result := r.db.Exec(`
		INSERT INTO votes (created_at, updated_at, poll_id, participant_id, participant_name, choice, voted_at, is_correct, score)
		SELECT NOW(), NOW(), p.id, ?, ?, ?, ?, ?, ?
		FROM polls p
		WHERE p.id = ? AND p.status = ? AND p.deleted_at IS NULL
		ON CONFLICT (poll_id, participant_id) DO NOTHING`,
		vote.ParticipantID, vote.ParticipantName, vote.Choice, vote.VotedAt,
		vote.IsCorrect, vote.Score, vote.PollID, models.PollStatusActive)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *pollRepository) UpdateResults(pollID uint, results []models.PollResult) error {
	return r.db.Model(&models.Poll{}).Where("id = ?", pollID).
		Update("results", results).Error
}

func (r *pollRepository) MarkCompleted(pollID uint, endTime time.Time) error {
	return r.db.Model(&models.Poll{}).Where("id = ?", pollID).
		Updates(map[string]interface{}{
			"status":   models.PollStatusCompleted,
			"end_time": endTime,
		}).Error
}
