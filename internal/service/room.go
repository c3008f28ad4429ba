package service

import (
	"errors"
	"fmt"
	"math"

	"poll_web/internal/models"
	"poll_web/internal/repository"
	"poll_web/internal/utils"

	"gorm.io/gorm"
)

// 產生房間代碼時允許的最大重試次數
const maxRoomCodeAttempts = 20

// ReportDetail 表示報表中單一題目的作答明細
type ReportDetail struct {
	Question string `json:"question"`
	Choice   string `json:"choice"`
	Correct  bool   `json:"correct"`
}

// ParticipantReport 表示單一參與者跨所有已完成題目的成績彙整
type ParticipantReport struct {
	ParticipantID  string         `json:"participantId"`
	Name           string         `json:"name"`
	TotalAnswered  int            `json:"totalAnswered"`
	CorrectAnswers int            `json:"correctAnswers"`
	Score          int            `json:"score"`
	Accuracy       int            `json:"accuracy"` // 答對率（整數百分比）
	Details        []ReportDetail `json:"details"`
}

// RoomService 處理房間的建立、查詢、關閉與成績報表
type RoomService struct {
	roomRepo repository.RoomRepository
	pollRepo repository.PollRepository
}

func NewRoomService(roomRepo repository.RoomRepository, pollRepo repository.PollRepository) *RoomService {
	return &RoomService{
		roomRepo: roomRepo,
		pollRepo: pollRepo,
	}
}

// CreateRoom 建立一個新房間並產生唯一的房間代碼
func (s *RoomService) CreateRoom(name string) (*models.Room, error) {
	if name == "" {
		name = "Untitled Room"
	}

	var roomCode string
	for attempts := 0; ; attempts++ {
		if attempts >= maxRoomCodeAttempts {
			return nil, ErrRoomCodeExhausted
		}
		roomCode = utils.GenerateRoomCode()
		exists, err := s.roomRepo.ExistsByCode(roomCode)
		if err != nil {
			return nil, fmt.Errorf("failed to check room code: %w", err)
		}
		if !exists {
			break
		}
	}

	room := &models.Room{
		RoomCode: roomCode,
		Name:     name,
		Status:   models.RoomStatusActive,
	}
	if err := s.roomRepo.Create(room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return room, nil
}

// GetRoom 以房間代碼查詢房間
func (s *RoomService) GetRoom(roomCode string) (*models.Room, error) {
	room, err := s.roomRepo.FindByCode(utils.NormalizeRoomCode(roomCode))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to load room: %w", err)
	}
	return room, nil
}

// CloseRoom 關閉房間，之後參與者無法再加入
func (s *RoomService) CloseRoom(roomCode string) error {
	if _, err := s.GetRoom(roomCode); err != nil {
		return err
	}
	return s.roomRepo.UpdateStatus(utils.NormalizeRoomCode(roomCode), models.RoomStatusClosed)
}

// GetParticipantReport 彙整房間內所有已完成題目的個人成績
func (s *RoomService) GetParticipantReport(roomCode string) ([]ParticipantReport, error) {
	polls, err := s.pollRepo.FindCompletedByRoom(utils.NormalizeRoomCode(roomCode), pollHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load polls: %w", err)
	}

	reportMap := make(map[string]*ParticipantReport)
	order := []string{}

	for _, poll := range polls {
		for _, vote := range poll.Votes {
			entry, exists := reportMap[vote.ParticipantID]
			if !exists {
				entry = &ParticipantReport{
					ParticipantID: vote.ParticipantID,
					Name:          vote.ParticipantName,
					Details:       []ReportDetail{},
				}
				reportMap[vote.ParticipantID] = entry
				order = append(order, vote.ParticipantID)
			}

			entry.TotalAnswered++
			correct := vote.IsCorrect != nil && *vote.IsCorrect
			if correct {
				entry.CorrectAnswers++
				entry.Score += vote.Score
			}
			entry.Details = append(entry.Details, ReportDetail{
				Question: poll.Question,
				Choice:   vote.Choice,
				Correct:  correct,
			})
		}
	}

	report := make([]ParticipantReport, 0, len(order))
	for _, participantID := range order {
		entry := reportMap[participantID]
		if entry.TotalAnswered > 0 {
			entry.Accuracy = int(math.Round(float64(entry.CorrectAnswers) / float64(entry.TotalAnswered) * 100))
		}
		report = append(report, *entry)
	}
	return report, nil
}
