package service

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"poll_web/internal/models"
	"poll_web/internal/repository"
	"poll_web/internal/utils"

	"gorm.io/gorm"
)

// 每個房間保留的歷史題目數量上限
const pollHistoryLimit = 30

// PollEnded 表示一次投票結束的通知
// CorrectAnswer 與結束轉換在同一臨界區內快照，避免讀到被取代後的題目
type PollEnded struct {
	RoomCode      string
	Results       []models.PollResult
	CorrectAnswer string
}

// VoteOutcome 是投票提交的結果
// 提交被拒絕時 Results 仍攜帶最後已知的統計，供呼叫端回報目前狀態
type VoteOutcome struct {
	Results   []models.PollResult
	IsCorrect *bool // nil 表示該題沒有標準答案
}

// PollService 管理每個房間的投票生命週期與到期排程
// 房間狀態的轉換（建立、結束、計時器重置）都在同一把鎖內完成；
// 投票寫入不在鎖內，由儲存層的條件式寫入擔任唯一仲裁者
type PollService struct {
	pollRepo repository.PollRepository

	mu          sync.Mutex
	activePolls map[string]*models.Poll // roomCode -> 進行中的題目
	timers      map[string]*time.Timer  // roomCode -> 到期計時器，每房間至多一個

	events chan PollEnded
}

func NewPollService(pollRepo repository.PollRepository) *PollService {
	return &PollService{
		pollRepo:    pollRepo,
		activePolls: make(map[string]*models.Poll),
		timers:      make(map[string]*time.Timer),
		events:      make(chan PollEnded, 16),
	}
}

// Events 回傳投票結束事件的通道，由即時推播層消費
// 生命週期管理本身不依賴任何傳輸層
func (s *PollService) Events() <-chan PollEnded {
	return s.events
}

// Initialize 在程序啟動時從資料庫恢復進行中的投票
// 剩餘時間為正的重新武裝計時器；已在停機期間過期的立即走結束路徑，
// 發出與計時器到期完全相同的結束通知。單一房間的失敗不會中斷其他房間的恢復。
func (s *PollService) Initialize() error {
	polls, err := s.pollRepo.FindAllActive()
	if err != nil {
		return fmt.Errorf("failed to restore poll state: %w", err)
	}

	if len(polls) == 0 {
		log.Printf("no active polls found in database")
		return nil
	}

	for i := range polls {
		poll := polls[i]
		roomCode := poll.RoomCode

		s.mu.Lock()
		s.activePolls[roomCode] = &poll
		s.mu.Unlock()

		remaining := s.GetRemainingTime(roomCode)
		if remaining > 0 {
			log.Printf("restored poll in room %s, %ds remaining", roomCode, remaining)
			s.mu.Lock()
			s.armTimerLocked(roomCode, poll.ID, remaining)
			s.mu.Unlock()
			continue
		}

		log.Printf("poll in room %s expired during downtime, ending", roomCode)
		results, err := s.EndPoll(roomCode)
		if err != nil {
			log.Printf("failed to end expired poll in room %s: %v", roomCode, err)
			continue
		}
		s.events <- PollEnded{RoomCode: roomCode, Results: results, CorrectAnswer: poll.CorrectAnswer}
	}
	return nil
}

// CreatePoll 在指定房間啟動一道新題目
// 同一房間已有進行中的投票時回傳 ErrPollActive
func (s *PollService) CreatePoll(roomCode, question string, qType models.QuestionType,
	options []string, timer int, correctAnswer string, isAnonymous bool) (*models.Poll, error) {

	roomCode = utils.NormalizeRoomCode(roomCode)

	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if timer < models.MinPollTimer || timer > models.MaxPollTimer {
		return nil, ErrInvalidTimer
	}
	if qType == "" {
		qType = models.QuestionTypeMCQ
	}

	// 開放式問答沒有選項
	pollOptions := options
	if qType == models.QuestionTypeOpenEnded {
		pollOptions = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.activePolls[roomCode]; exists {
		return nil, ErrPollActive
	}

	poll := &models.Poll{
		Question:      strings.TrimSpace(question),
		Type:          qType,
		Options:       pollOptions,
		CorrectAnswer: correctAnswer,
		IsAnonymous:   isAnonymous,
		Timer:         timer,
		RoomCode:      roomCode,
		StartTime:     time.Now(),
		Status:        models.PollStatusActive,
		Votes:         []models.Vote{},
		Results:       initialResults(qType, pollOptions),
	}

	if err := s.pollRepo.Create(poll); err != nil {
		return nil, fmt.Errorf("failed to create poll: %w", err)
	}

	s.activePolls[roomCode] = poll
	s.armTimerLocked(roomCode, poll.ID, timer)

	return poll, nil
}

// ReplayPoll 以既有題目的設定重新出題，不保留原本的選票
// 走與 CreatePoll 相同的路徑，因此同樣受「一房一題」的限制
func (s *PollService) ReplayPoll(roomCode string, pollID uint) (*models.Poll, error) {
	source, err := s.pollRepo.FindByID(pollID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to load poll %d: %w", pollID, err)
	}

	return s.CreatePoll(roomCode, source.Question, source.Type, source.Options,
		source.Timer, source.CorrectAnswer, source.IsAnonymous)
}

// GetActivePoll 回傳房間目前進行中的題目，沒有則回傳 nil
func (s *PollService) GetActivePoll(roomCode string) *models.Poll {
	roomCode = utils.NormalizeRoomCode(roomCode)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePolls[roomCode]
}

// GetRemainingTime 回傳進行中題目的剩餘秒數
// 每次由開始時間即時推算，不依賴任何儲存的絕對期限
func (s *PollService) GetRemainingTime(roomCode string) int {
	roomCode = utils.NormalizeRoomCode(roomCode)

	s.mu.Lock()
	poll, exists := s.activePolls[roomCode]
	if !exists {
		s.mu.Unlock()
		return 0
	}
	timer := poll.Timer
	startTime := poll.StartTime
	s.mu.Unlock()

	elapsed := int(time.Since(startTime).Seconds())
	if remaining := timer - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}

// SubmitVote 提交一筆投票
// 接受與否由儲存層的條件式寫入決定：題目仍為 active 且該參與者尚未投票
// 才會寫入成功。快取一律以寫入後重新讀回的結果刷新。
func (s *PollService) SubmitVote(roomCode string, pollID uint,
	participantID, participantName, choice string) (*VoteOutcome, error) {

	roomCode = utils.NormalizeRoomCode(roomCode)

	s.mu.Lock()
	active, exists := s.activePolls[roomCode]
	if !exists || active.ID != pollID {
		s.mu.Unlock()
		return &VoteOutcome{Results: []models.PollResult{}}, ErrPollMismatch
	}
	qType := active.Type
	options := active.Options
	correctAnswer := active.CorrectAnswer
	isAnonymous := active.IsAnonymous
	lastResults := active.Results
	s.mu.Unlock()

	if qType == models.QuestionTypeOpenEnded {
		if strings.TrimSpace(choice) == "" {
			return &VoteOutcome{Results: lastResults}, ErrInvalidOption
		}
	} else if !containsOption(options, choice) {
		return &VoteOutcome{Results: lastResults}, ErrInvalidOption
	}

	// 題目有標準答案時以完全比對判定正確與否；沒有標準答案時保持未定義
	var isCorrect *bool
	score := 0
	if correctAnswer != "" {
		correct := choice == correctAnswer
		isCorrect = &correct
		if correct {
			score = 1
		}
	}

	voterName := participantName
	if isAnonymous {
		voterName = "Anonymous"
	}

	vote := &models.Vote{
		PollID:          pollID,
		ParticipantID:   participantID,
		ParticipantName: voterName,
		Choice:          choice,
		VotedAt:         time.Now(),
		IsCorrect:       isCorrect,
		Score:           score,
	}

	inserted, err := s.pollRepo.AddVoteIfAbsent(vote)
	if err != nil {
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}
	if !inserted {
		// 重複投票，或題目在讀取與寫入之間已經結束
		return &VoteOutcome{Results: lastResults}, ErrAlreadyVoted
	}

	// 以寫入後的確認結果刷新快取，而不是呼叫端寫入前的假設
	updated, err := s.pollRepo.FindByID(pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload poll %d: %w", pollID, err)
	}

	results := computeResults(updated)
	if err := s.pollRepo.UpdateResults(pollID, results); err != nil {
		return nil, fmt.Errorf("failed to persist results: %w", err)
	}
	updated.Results = results

	s.mu.Lock()
	if current, exists := s.activePolls[roomCode]; exists && current.ID == pollID {
		s.activePolls[roomCode] = updated
	}
	s.mu.Unlock()

	return &VoteOutcome{Results: results, IsCorrect: isCorrect}, nil
}

// EndPoll 結束房間目前的投票並回傳最終統計
// 冪等操作：沒有進行中的投票時為 no-op，回傳空統計
func (s *PollService) EndPoll(roomCode string) ([]models.PollResult, error) {
	roomCode = utils.NormalizeRoomCode(roomCode)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endPollLocked(roomCode)
}

// endPollLocked 執行實際的結束轉換，呼叫端必須持有 s.mu
func (s *PollService) endPollLocked(roomCode string) ([]models.PollResult, error) {
	poll, exists := s.activePolls[roomCode]
	if !exists {
		return []models.PollResult{}, nil
	}

	// 計時器的取消與結束轉換同步完成，避免殘留的到期觸發
	if timer, ok := s.timers[roomCode]; ok {
		timer.Stop()
		delete(s.timers, roomCode)
	}

	finalResults := poll.Results

	if err := s.pollRepo.MarkCompleted(poll.ID, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to complete poll %d: %w", poll.ID, err)
	}

	delete(s.activePolls, roomCode)
	return finalResults, nil
}

// GetPoll 以編號查詢單一題目（含選票），供匯出與報表使用
func (s *PollService) GetPoll(pollID uint) (*models.Poll, error) {
	poll, err := s.pollRepo.FindByID(pollID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to load poll %d: %w", pollID, err)
	}
	return poll, nil
}

// GetPollHistory 回傳房間最近完成的題目
func (s *PollService) GetPollHistory(roomCode string) ([]models.Poll, error) {
	roomCode = utils.NormalizeRoomCode(roomCode)
	return s.pollRepo.FindCompletedByRoom(roomCode, pollHistoryLimit)
}

// VoteOf 回傳指定參與者在目前題目中的選擇，用於重新連線時還原作答狀態
func (s *PollService) VoteOf(roomCode, participantID string) (string, bool) {
	roomCode = utils.NormalizeRoomCode(roomCode)

	s.mu.Lock()
	defer s.mu.Unlock()

	poll, exists := s.activePolls[roomCode]
	if !exists {
		return "", false
	}
	for _, v := range poll.Votes {
		if v.ParticipantID == participantID {
			return v.Choice, true
		}
	}
	return "", false
}

// armTimerLocked 武裝房間的到期計時器，呼叫端必須持有 s.mu
// 重複武裝會取消並取代既有的計時器，而不是額外疊加
func (s *PollService) armTimerLocked(roomCode string, pollID uint, duration int) {
	if timer, ok := s.timers[roomCode]; ok {
		timer.Stop()
	}
	s.timers[roomCode] = time.AfterFunc(time.Duration(duration)*time.Second, func() {
		s.handleExpiry(roomCode, pollID)
	})
}

// handleExpiry 處理計時器到期
// 只有當目前進行中的題目仍是武裝時的那一題才會執行結束，
// 防止過期的觸發誤殺已被取代的新題目
func (s *PollService) handleExpiry(roomCode string, pollID uint) {
	s.mu.Lock()
	poll, exists := s.activePolls[roomCode]
	if !exists || poll.ID != pollID {
		s.mu.Unlock()
		return
	}
	correctAnswer := poll.CorrectAnswer

	results, err := s.endPollLocked(roomCode)
	s.mu.Unlock()

	if err != nil {
		log.Printf("failed to end expired poll in room %s: %v", roomCode, err)
		return
	}

	s.events <- PollEnded{RoomCode: roomCode, Results: results, CorrectAnswer: correctAnswer}
}
