package service

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"poll_web/internal/models"
	"poll_web/internal/utils"
)

// Participant 表示一位連線中的參與者
// 只存在於連線期間，重新連線時由 participant-join 重建
type Participant struct {
	ConnID             string    `json:"connId"`
	ParticipantID      string    `json:"participantId"`
	Name               string    `json:"name"`
	VotedInCurrentPoll bool      `json:"votedInCurrentPoll"`
	JoinedAt           time.Time `json:"-"`
}

// LeaderboardEntry 表示單一參與者的累計成績
// 僅存在於記憶體，程序重啟後歸零
type LeaderboardEntry struct {
	ParticipantID  string `json:"participantId"`
	Name           string `json:"name"`
	Score          int    `json:"score"`
	TotalAnswered  int    `json:"totalAnswered"`
	CorrectAnswers int    `json:"correctAnswers"`
}

// RoomSession 保存單一房間的暫態狀態：
// 主持人連線、參與者名冊、排行榜與待播題目佇列
// 所有欄位都由同一把鎖保護，廣播消費端不得直接改動
type RoomSession struct {
	mu              sync.Mutex
	presenterConnID string
	participants    map[string]*Participant      // connID -> participant
	leaderboard     map[string]*LeaderboardEntry // participantID -> entry
	queue           []models.QueuedPoll
	emptySince      time.Time // 房間變為無人連線的時刻，零值表示目前有人
}

func newRoomSession() *RoomSession {
	return &RoomSession{
		participants: make(map[string]*Participant),
		leaderboard:  make(map[string]*LeaderboardEntry),
		queue:        []models.QueuedPoll{},
		emptySince:   time.Now(),
	}
}

// SetPresenter 登記主持人連線
// 第一個登記的連線取得主持人身分；之後的登記直接取代，不做衝突偵測
func (rs *RoomSession) SetPresenter(connID string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.presenterConnID = connID
	rs.emptySince = time.Time{}
}

// IsPresenter 檢查連線是否為房間目前登記的主持人
func (rs *RoomSession) IsPresenter(connID string) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return connID != "" && rs.presenterConnID == connID
}

// ClearPresenter 在主持人斷線時清除登記；非目前主持人的連線不受影響
func (rs *RoomSession) ClearPresenter(connID string) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.presenterConnID != connID {
		return false
	}
	rs.presenterConnID = ""
	rs.markEmptyLocked()
	return true
}

// AddParticipant 將參與者加入名冊
// 顯示名稱在房間內不分大小寫唯一；同一連線重複加入視為更新
func (rs *RoomSession) AddParticipant(p *Participant) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	lower := strings.ToLower(p.Name)
	for connID, existing := range rs.participants {
		if connID != p.ConnID && strings.ToLower(existing.Name) == lower {
			return ErrNameTaken
		}
	}

	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now()
	}
	rs.participants[p.ConnID] = p
	rs.emptySince = time.Time{}
	return nil
}

// RemoveParticipant 將參與者移出名冊，回傳被移除的參與者
func (rs *RoomSession) RemoveParticipant(connID string) (*Participant, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	p, exists := rs.participants[connID]
	if !exists {
		return nil, false
	}
	delete(rs.participants, connID)
	rs.markEmptyLocked()
	return p, true
}

// ParticipantByConn 查詢連線對應的參與者
func (rs *RoomSession) ParticipantByConn(connID string) (*Participant, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	p, exists := rs.participants[connID]
	return p, exists
}

// Participants 回傳按加入順序排序的名冊快照
func (rs *RoomSession) Participants() []Participant {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	list := make([]Participant, 0, len(rs.participants))
	for _, p := range rs.participants {
		list = append(list, *p)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].JoinedAt.Before(list[j].JoinedAt)
	})
	return list
}

// ParticipantCount 回傳目前連線中的參與者數量
func (rs *RoomSession) ParticipantCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.participants)
}

// MarkVoted 設定參與者在目前題目中已作答
func (rs *RoomSession) MarkVoted(connID string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if p, exists := rs.participants[connID]; exists {
		p.VotedInCurrentPoll = true
	}
}

// ResetVotedFlags 在新題目開始或題目結束時重置所有作答標記
func (rs *RoomSession) ResetVotedFlags() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, p := range rs.participants {
		p.VotedInCurrentPoll = false
	}
}

// AllVoted 檢查是否所有連線中的參與者都已作答
// 名冊為空時回傳 true
func (rs *RoomSession) AllVoted() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, p := range rs.participants {
		if !p.VotedInCurrentPoll {
			return false
		}
	}
	return true
}

// ApplyScore 依投票的對錯更新排行榜
// 只有題目設有標準答案時才會被呼叫：作答數一律遞增，
// 分數與答對數只在答對時遞增
func (rs *RoomSession) ApplyScore(participantID, name string, correct bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	entry, exists := rs.leaderboard[participantID]
	if !exists {
		entry = &LeaderboardEntry{ParticipantID: participantID, Name: name}
		rs.leaderboard[participantID] = entry
	}
	entry.TotalAnswered++
	if correct {
		entry.CorrectAnswers++
		entry.Score++
	}
}

// Leaderboard 回傳排行榜快照
// 按分數由高到低排序，同分以參與者代碼排序使結果可重現
func (rs *RoomSession) Leaderboard() []LeaderboardEntry {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	list := make([]LeaderboardEntry, 0, len(rs.leaderboard))
	for _, entry := range rs.leaderboard {
		list = append(list, *entry)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		return list[i].ParticipantID < list[j].ParticipantID
	})
	return list
}

// Enqueue 將題目規格加入佇列尾端
func (rs *RoomSession) Enqueue(spec models.QueuedPoll) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.queue = append(rs.queue, spec)
}

// RemoveQueued 移除佇列中指定位置的題目；超出範圍時為 no-op
func (rs *RoomSession) RemoveQueued(index int) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if index < 0 || index >= len(rs.queue) {
		return false
	}
	rs.queue = append(rs.queue[:index], rs.queue[index+1:]...)
	return true
}

// DequeueHead 取出佇列頭端的題目規格
func (rs *RoomSession) DequeueHead() (models.QueuedPoll, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.queue) == 0 {
		return models.QueuedPoll{}, false
	}
	head := rs.queue[0]
	rs.queue = rs.queue[1:]
	return head, true
}

// Queue 回傳佇列快照
func (rs *RoomSession) Queue() []models.QueuedPoll {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	snapshot := make([]models.QueuedPoll, len(rs.queue))
	copy(snapshot, rs.queue)
	return snapshot
}

// markEmptyLocked 在房間變為無人連線時記下時刻，呼叫端必須持有 rs.mu
func (rs *RoomSession) markEmptyLocked() {
	if rs.presenterConnID == "" && len(rs.participants) == 0 && rs.emptySince.IsZero() {
		rs.emptySince = time.Now()
	}
}

// idleSince 回傳房間無人連線的起始時刻；目前有人時回傳零值
func (rs *RoomSession) idleSince() time.Time {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.presenterConnID != "" || len(rs.participants) > 0 {
		return time.Time{}
	}
	return rs.emptySince
}

// SessionRegistry 管理所有房間的暫態 session
// session 在首次加入時惰性建立，並由背景清理器回收閒置過久的房間，
// 不再依賴程序重啟來釋放記憶體
type SessionRegistry struct {
	mu         sync.RWMutex
	sessions   map[string]*RoomSession
	connToRoom map[string]string // connID -> roomCode

	cancelReaper context.CancelFunc
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions:   make(map[string]*RoomSession),
		connToRoom: make(map[string]string),
	}
}

// GetOrCreate 取得房間的 session，不存在時惰性建立
func (r *SessionRegistry) GetOrCreate(roomCode string) *RoomSession {
	roomCode = utils.NormalizeRoomCode(roomCode)

	r.mu.Lock()
	defer r.mu.Unlock()
	if session, exists := r.sessions[roomCode]; exists {
		return session
	}
	session := newRoomSession()
	r.sessions[roomCode] = session
	return session
}

// Get 取得房間的 session，不存在時回傳 nil
func (r *SessionRegistry) Get(roomCode string) *RoomSession {
	roomCode = utils.NormalizeRoomCode(roomCode)

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[roomCode]
}

// BindConn 記錄連線屬於哪個房間
func (r *SessionRegistry) BindConn(connID, roomCode string) {
	roomCode = utils.NormalizeRoomCode(roomCode)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.connToRoom[connID] = roomCode
}

// UnbindConn 移除連線與房間的對應，回傳原本綁定的房間代碼
func (r *SessionRegistry) UnbindConn(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomCode, exists := r.connToRoom[connID]
	if exists {
		delete(r.connToRoom, connID)
	}
	return roomCode, exists
}

// StartReaper 啟動背景清理器，定期回收無人連線超過 idleTTL 的房間 session
func (r *SessionRegistry) StartReaper(interval, idleTTL time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancelReaper = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.reap(idleTTL)
			}
		}
	}()
}

// StopReaper 停止背景清理器
func (r *SessionRegistry) StopReaper() {
	if r.cancelReaper != nil {
		r.cancelReaper()
		r.cancelReaper = nil
	}
}

// reap 回收閒置過久的房間 session
func (r *SessionRegistry) reap(idleTTL time.Duration) {
	cutoff := time.Now().Add(-idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	for roomCode, session := range r.sessions {
		since := session.idleSince()
		if !since.IsZero() && since.Before(cutoff) {
			delete(r.sessions, roomCode)
			log.Printf("reaped idle session for room %s", roomCode)
		}
	}
}
