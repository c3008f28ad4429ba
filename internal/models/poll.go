package models

import (
	"time"

	"gorm.io/gorm"
)

// QuestionType 定義題目的類型
type QuestionType string

const (
	QuestionTypeMCQ       QuestionType = "mcq"       // 單選題
	QuestionTypeTrueFalse QuestionType = "truefalse" // 是非題
	QuestionTypeRating    QuestionType = "rating"    // 評分題
	QuestionTypeOpenEnded QuestionType = "openended" // 開放式問答
)

// PollStatus 定義投票狀態的類型
type PollStatus string

const (
	PollStatusActive    PollStatus = "active"
	PollStatusCompleted PollStatus = "completed"
)

// 投票時長的上下限（秒）
const (
	MinPollTimer = 5
	MaxPollTimer = 300
)

// Poll 表示一道投票題目
// 每個房間同一時刻最多只有一個 active 的 Poll，這是生命週期管理的核心不變量
// Poll 建立後只會因投票寫入與結束轉換而變動，永不刪除，作為歷史紀錄保留
type Poll struct {
	gorm.Model
	Question      string       `json:"question"`
	Type          QuestionType `json:"type" gorm:"type:varchar(20);default:'mcq'"`
	Options       []string     `json:"options" gorm:"serializer:json"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	IsAnonymous   bool         `json:"isAnonymous"`
	Timer         int          `json:"timer"` // 投票時長（秒）
	RoomCode      string       `json:"roomCode" gorm:"index;type:varchar(12)"`
	StartTime     time.Time    `json:"startTime"`
	EndTime       *time.Time   `json:"endTime,omitempty"`
	Status        PollStatus   `json:"status" gorm:"type:varchar(20);default:'active'"`
	Votes         []Vote       `json:"votes" gorm:"foreignKey:PollID"`
	Results       []PollResult `json:"results" gorm:"serializer:json"`
}

// Vote 表示一位參與者對一道題目的單次作答
// (PollID, ParticipantID) 的唯一索引是「一人一票」的儲存層保證
type Vote struct {
	gorm.Model
	PollID          uint      `json:"pollId" gorm:"uniqueIndex:idx_poll_participant"`
	ParticipantID   string    `json:"participantId" gorm:"uniqueIndex:idx_poll_participant;type:varchar(64)"`
	ParticipantName string    `json:"participantName"`
	Choice          string    `json:"choice"`
	VotedAt         time.Time `json:"votedAt"`
	IsCorrect       *bool     `json:"isCorrect,omitempty"` // nil 表示該題沒有標準答案
	Score           int       `json:"score"`
}

// PollResult 表示單一選項的統計結果
// 開放式問答只有一個合成的 responses 桶，TextResponses 收集原始文字
type PollResult struct {
	Option        string   `json:"option"`
	Count         int      `json:"count"`
	Percentage    int      `json:"percentage"`
	TextResponses []string `json:"textResponses,omitempty"`
}

// QueuedPoll 表示排入佇列、尚未啟動的題目規格
// 只存在於房間的記憶體佇列中，出隊後才會成為真正的 Poll
type QueuedPoll struct {
	Question      string       `json:"question"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options"`
	Timer         int          `json:"timer"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	IsAnonymous   bool         `json:"isAnonymous"`
}
