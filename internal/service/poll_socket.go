package service

import (
	"encoding/json"
	"log"
	"strings"

	"poll_web/internal/models"
	"poll_web/internal/utils"
)

// 入站訊息名稱
const (
	EventPresenterJoin   = "presenter-join"
	EventParticipantJoin = "participant-join"
	EventPollCreate      = "poll-create"
	EventPollVote        = "poll-vote"
	EventPollQueueAdd    = "poll-queue-add"
	EventPollQueueRemove = "poll-queue-remove"
	EventPollReplay      = "poll-replay"
	EventParticipantKick = "participant-kick"
	EventChatSend        = "chat-send"
)

// 出站通知名稱
const (
	EventStateSync         = "state-sync"
	EventPollStarted       = "poll-started"
	EventPollResultsUpdate = "poll-results-update"
	EventPollEnded         = "poll-ended"
	EventRosterUpdate      = "roster-update"
	EventLeaderboardUpdate = "leaderboard-update"
	EventQueueUpdate       = "queue-update"
	EventCanCreateUpdate   = "can-create-update"
	EventVoteAck           = "vote-ack"
	EventRejected          = "rejected"
	EventKicked            = "kicked"
	EventChatMessage       = "chat-message"
)

type h map[string]interface{}

// PollSocketService 將入站動作分派到各服務，並把結果推播給相關的連線
// 這裡是唯一同時接觸生命週期管理與傳輸層的地方
type PollSocketService struct {
	polls    *PollService
	rooms    *RoomService
	chat     *ChatService
	sessions *SessionRegistry
	hub      *WebSocketManager
}

func NewPollSocketService(polls *PollService, rooms *RoomService, chat *ChatService,
	sessions *SessionRegistry, hub *WebSocketManager) *PollSocketService {

	s := &PollSocketService{
		polls:    polls,
		rooms:    rooms,
		chat:     chat,
		sessions: sessions,
		hub:      hub,
	}
	hub.SetHandler(s)

	// 消費生命週期層的結束事件；必須在 PollService.Initialize 之前啟動
	go s.consumeEndedEvents()
	return s
}

// HandleMessage 分派入站訊息
func (s *PollSocketService) HandleMessage(client *Client, msg *InboundMessage) {
	switch msg.Event {
	case EventPresenterJoin:
		s.handlePresenterJoin(client, msg.Data)
	case EventParticipantJoin:
		s.handleParticipantJoin(client, msg.Data)
	case EventPollCreate:
		s.handlePollCreate(client, msg.Data)
	case EventPollVote:
		s.handlePollVote(client, msg.Data)
	case EventPollQueueAdd:
		s.handleQueueAdd(client, msg.Data)
	case EventPollQueueRemove:
		s.handleQueueRemove(client, msg.Data)
	case EventPollReplay:
		s.handleReplay(client, msg.Data)
	case EventParticipantKick:
		s.handleKick(client, msg.Data)
	case EventChatSend:
		s.handleChat(client, msg.Data)
	default:
		log.Printf("unknown event %q from %s", msg.Event, client.ID)
	}
}

// HandleDisconnect 處理連線斷開：更新名冊並重新廣播相關視圖
func (s *PollSocketService) HandleDisconnect(client *Client) {
	roomCode, exists := s.sessions.UnbindConn(client.ID)
	if !exists {
		return
	}

	session := s.sessions.Get(roomCode)
	if session == nil {
		return
	}

	if participant, removed := session.RemoveParticipant(client.ID); removed {
		log.Printf("participant %q disconnected from room %s", participant.Name, roomCode)
		s.broadcastRoster(roomCode, session)
		s.broadcastCanCreate(roomCode)
		return
	}

	if session.ClearPresenter(client.ID) {
		log.Printf("presenter disconnected from room %s", roomCode)
	}
}

func (s *PollSocketService) handlePresenterJoin(client *Client, data json.RawMessage) {
	var payload struct {
		RoomCode string `json:"room"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		s.reject(client, err)
		return
	}

	roomCode := utils.NormalizeRoomCode(payload.RoomCode)
	room, err := s.rooms.GetRoom(roomCode)
	if err != nil {
		s.reject(client, err)
		return
	}

	session := s.sessions.GetOrCreate(roomCode)
	session.SetPresenter(client.ID)
	s.sessions.BindConn(client.ID, roomCode)
	s.hub.JoinRoom(client, roomCode, true)

	history, err := s.polls.GetPollHistory(roomCode)
	if err != nil {
		log.Printf("failed to load poll history for room %s: %v", roomCode, err)
		history = []models.Poll{}
	}
	backlog, err := s.chat.RecentMessages(roomCode)
	if err != nil {
		log.Printf("failed to load chat backlog for room %s: %v", roomCode, err)
		backlog = []models.ChatMessage{}
	}

	s.hub.SendToClient(client, EventStateSync, h{
		"role":          "presenter",
		"roomCode":      roomCode,
		"roomName":      room.Name,
		"activePoll":    s.activePollView(roomCode, true),
		"remainingTime": s.polls.GetRemainingTime(roomCode),
		"roster":        session.Participants(),
		"pollHistory":   history,
		"chatMessages":  backlog,
		"leaderboard":   session.Leaderboard(),
		"canCreatePoll": s.canCreateNewPoll(roomCode),
		"pollQueue":     session.Queue(),
	})

	log.Printf("presenter joined room %s", roomCode)
}

func (s *PollSocketService) handleParticipantJoin(client *Client, data json.RawMessage) {
	var payload struct {
		RoomCode      string `json:"room"`
		Name          string `json:"name"`
		ParticipantID string `json:"participantId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		s.reject(client, err)
		return
	}

	roomCode := utils.NormalizeRoomCode(payload.RoomCode)
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		s.reject(client, ErrEmptyName)
		return
	}

	room, err := s.rooms.GetRoom(roomCode)
	if err != nil || room.Status == models.RoomStatusClosed {
		s.reject(client, ErrRoomClosed)
		return
	}

	session := s.sessions.GetOrCreate(roomCode)

	// 重新連線時由進行中題目的選票還原作答狀態
	votedOption, hasVoted := s.polls.VoteOf(roomCode, payload.ParticipantID)

	participant := &Participant{
		ConnID:             client.ID,
		ParticipantID:      payload.ParticipantID,
		Name:               name,
		VotedInCurrentPoll: hasVoted,
	}
	if err := session.AddParticipant(participant); err != nil {
		s.reject(client, err)
		return
	}

	s.sessions.BindConn(client.ID, roomCode)
	s.hub.JoinRoom(client, roomCode, false)

	backlog, err := s.chat.RecentMessages(roomCode)
	if err != nil {
		log.Printf("failed to load chat backlog for room %s: %v", roomCode, err)
		backlog = []models.ChatMessage{}
	}

	sync := h{
		"role":          "participant",
		"roomCode":      roomCode,
		"roomName":      room.Name,
		"activePoll":    s.activePollView(roomCode, false),
		"remainingTime": s.polls.GetRemainingTime(roomCode),
		"hasVoted":      hasVoted,
		"chatMessages":  backlog,
		"leaderboard":   session.Leaderboard(),
	}
	if hasVoted {
		sync["votedOption"] = votedOption
	}
	s.hub.SendToClient(client, EventStateSync, sync)

	s.broadcastRoster(roomCode, session)
	s.broadcastCanCreate(roomCode)

	log.Printf("participant %q joined room %s", name, roomCode)
}

type pollSpecPayload struct {
	RoomCode      string   `json:"room"`
	Question      string   `json:"question"`
	Type          string   `json:"type"`
	Options       []string `json:"options"`
	Duration      int      `json:"duration"`
	CorrectAnswer string   `json:"correctAnswer"`
	Anonymous     bool     `json:"anonymous"`
}

func (s *PollSocketService) handlePollCreate(client *Client, data json.RawMessage) {
	var payload pollSpecPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.reject(client, err)
		return
	}

	roomCode := utils.NormalizeRoomCode(payload.RoomCode)
	session := s.sessions.Get(roomCode)
	if session == nil || !session.IsPresenter(client.ID) {
		s.reject(client, ErrUnauthorized)
		return
	}
	if !s.canCreateNewPoll(roomCode) {
		s.reject(client, ErrPollActive)
		return
	}

	poll, err := s.polls.CreatePoll(roomCode, payload.Question,
		models.QuestionType(payload.Type), payload.Options, payload.Duration,
		payload.CorrectAnswer, payload.Anonymous)
	if err != nil {
		s.reject(client, err)
		return
	}

	s.announcePollStarted(roomCode, session, poll)
	log.Printf("poll created in room %s: %q", roomCode, poll.Question)
}

func (s *PollSocketService) handleReplay(client *Client, data json.RawMessage) {
	var payload struct {
		RoomCode string `json:"room"`
		PollID   uint   `json:"pollId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		s.reject(client, err)
		return
	}

	roomCode := utils.NormalizeRoomCode(payload.RoomCode)
	session := s.sessions.Get(roomCode)
	if session == nil || !session.IsPresenter(client.ID) {
		s.reject(client, ErrUnauthorized)
		return
	}
	if !s.canCreateNewPoll(roomCode) {
		s.reject(client, ErrPollActive)
		return
	}

	poll, err := s.polls.ReplayPoll(roomCode, payload.PollID)
	if err != nil {
		s.reject(client, err)
		return
	}

	s.announcePollStarted(roomCode, session, poll)
	log.Printf("replaying poll in room %s: %q", roomCode, poll.Question)
}

func (s *PollSocketService) handlePollVote(client *Client, data json.RawMessage) {
	var payload struct {
		RoomCode      string `json:"room"`
		PollID        uint   `json:"pollId"`
		Choice        string `json:"choice"`
		ParticipantID string `json:"participantId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		s.reject(client, err)
		return
	}

	roomCode := utils.NormalizeRoomCode(payload.RoomCode)
	session := s.sessions.Get(roomCode)
	if session == nil {
		s.reject(client, ErrRoomNotFound)
		return
	}
	participant, exists := session.ParticipantByConn(client.ID)
	if !exists || participant.ParticipantID != payload.ParticipantID {
		s.reject(client, ErrUnauthorized)
		return
	}

	outcome, err := s.polls.SubmitVote(roomCode, payload.PollID,
		payload.ParticipantID, participant.Name, payload.Choice)
	if err != nil {
		s.reject(client, err)
		return
	}

	session.MarkVoted(client.ID)

	// 只有題目設有標準答案時才更新排行榜
	if outcome.IsCorrect != nil {
		session.ApplyScore(payload.ParticipantID, participant.Name, *outcome.IsCorrect)
		s.broadcastLeaderboard(roomCode, session)
	}

	ack := h{"choice": payload.Choice}
	if outcome.IsCorrect != nil {
		ack["correct"] = *outcome.IsCorrect
	}
	s.hub.SendToClient(client, EventVoteAck, ack)
	s.hub.BroadcastToRoom(roomCode, EventPollResultsUpdate, h{"results": outcome.Results})
	s.broadcastRoster(roomCode, session)
	s.broadcastCanCreate(roomCode)

	log.Printf("vote in room %s: %q -> %q", roomCode, participant.Name, payload.Choice)
}

func (s *PollSocketService) handleQueueAdd(client *Client, data json.RawMessage) {
	var payload pollSpecPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.reject(client, err)
		return
	}

	roomCode := utils.NormalizeRoomCode(payload.RoomCode)
	session := s.sessions.Get(roomCode)
	if session == nil || !session.IsPresenter(client.ID) {
		s.reject(client, ErrUnauthorized)
		return
	}

	session.Enqueue(models.QueuedPoll{
		Question:      payload.Question,
		Type:          models.QuestionType(payload.Type),
		Options:       payload.Options,
		Timer:         payload.Duration,
		CorrectAnswer: payload.CorrectAnswer,
		IsAnonymous:   payload.Anonymous,
	})
	s.broadcastQueue(roomCode, session)

	log.Printf("poll queued in room %s: %q", roomCode, payload.Question)
}

func (s *PollSocketService) handleQueueRemove(client *Client, data json.RawMessage) {
	var payload struct {
		RoomCode string `json:"room"`
		Index    int    `json:"index"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		s.reject(client, err)
		return
	}

	roomCode := utils.NormalizeRoomCode(payload.RoomCode)
	session := s.sessions.Get(roomCode)
	if session == nil || !session.IsPresenter(client.ID) {
		s.reject(client, ErrUnauthorized)
		return
	}

	if session.RemoveQueued(payload.Index) {
		s.broadcastQueue(roomCode, session)
	}
}

func (s *PollSocketService) handleKick(client *Client, data json.RawMessage) {
	var payload struct {
		RoomCode           string `json:"room"`
		TargetConnectionID string `json:"targetConnectionId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		s.reject(client, err)
		return
	}

	roomCode := utils.NormalizeRoomCode(payload.RoomCode)
	session := s.sessions.Get(roomCode)
	if session == nil || !session.IsPresenter(client.ID) {
		s.reject(client, ErrUnauthorized)
		return
	}

	if participant, removed := session.RemoveParticipant(payload.TargetConnectionID); removed {
		s.hub.SendToConnID(payload.TargetConnectionID, EventKicked, h{"message": "您已被移出此房間"})
		s.hub.Disconnect(payload.TargetConnectionID)
		log.Printf("kicked %q from room %s", participant.Name, roomCode)
	}

	s.broadcastRoster(roomCode, session)
	s.broadcastCanCreate(roomCode)
}

func (s *PollSocketService) handleChat(client *Client, data json.RawMessage) {
	var payload struct {
		RoomCode string `json:"room"`
		Text     string `json:"text"`
		Sender   string `json:"sender"`
		Role     string `json:"role"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		s.reject(client, err)
		return
	}

	text := strings.TrimSpace(payload.Text)
	if payload.RoomCode == "" || text == "" {
		return
	}

	roomCode := utils.NormalizeRoomCode(payload.RoomCode)
	message, err := s.chat.SaveMessage(roomCode, payload.Sender, payload.Role, text)
	if err != nil {
		s.reject(client, err)
		return
	}
	s.hub.BroadcastToRoom(roomCode, EventChatMessage, message)
}

// consumeEndedEvents 消費生命週期層的投票結束通知
// 計時器到期、手動結束與啟動恢復都會匯入同一條路徑
func (s *PollSocketService) consumeEndedEvents() {
	for ev := range s.polls.Events() {
		s.onPollEnded(ev)
	}
}

func (s *PollSocketService) onPollEnded(ev PollEnded) {
	// 結束是終局事件，無論由哪條路徑觸發都全房間廣播
	s.hub.BroadcastToRoom(ev.RoomCode, EventPollEnded, h{
		"results":       ev.Results,
		"correctAnswer": ev.CorrectAnswer,
	})

	session := s.sessions.Get(ev.RoomCode)
	if session == nil {
		return
	}

	session.ResetVotedFlags()
	s.broadcastRoster(ev.RoomCode, session)

	// 佇列非空時自動開始下一題
	next, ok := session.DequeueHead()
	if !ok {
		s.broadcastCanCreate(ev.RoomCode)
		return
	}
	s.broadcastQueue(ev.RoomCode, session)

	poll, err := s.polls.CreatePoll(ev.RoomCode, next.Question, next.Type,
		next.Options, next.Timer, next.CorrectAnswer, next.IsAnonymous)
	if err != nil {
		// 自動開始失敗不致命：讓主持人知道可以重新出題即可
		log.Printf("failed to auto-start queued poll in room %s: %v", ev.RoomCode, err)
		s.hub.BroadcastToPresenter(ev.RoomCode, EventCanCreateUpdate, h{"canCreate": true})
		return
	}

	s.announcePollStarted(ev.RoomCode, session, poll)
	log.Printf("auto-started queued poll in room %s: %q", ev.RoomCode, poll.Question)
}

// announcePollStarted 廣播新題目開始並重置所有相關的衍生視圖
func (s *PollSocketService) announcePollStarted(roomCode string, session *RoomSession, poll *models.Poll) {
	session.ResetVotedFlags()

	s.hub.BroadcastToRoom(roomCode, EventPollStarted, h{
		"poll":          sanitizedPoll(poll),
		"remainingTime": poll.Timer,
	})
	s.hub.BroadcastToPresenter(roomCode, EventCanCreateUpdate, h{"canCreate": false})
	s.broadcastRoster(roomCode, session)
	s.broadcastLeaderboard(roomCode, session)
}

// canCreateNewPoll 判斷房間是否能開始新題目：
// 沒有進行中的投票，或房間無人連線，或所有連線中的參與者都已作答
func (s *PollSocketService) canCreateNewPoll(roomCode string) bool {
	if s.polls.GetActivePoll(roomCode) == nil {
		return true
	}
	session := s.sessions.Get(roomCode)
	if session == nil || session.ParticipantCount() == 0 {
		return true
	}
	return session.AllVoted()
}

func (s *PollSocketService) broadcastRoster(roomCode string, session *RoomSession) {
	s.hub.BroadcastToPresenter(roomCode, EventRosterUpdate, h{"roster": session.Participants()})
}

func (s *PollSocketService) broadcastLeaderboard(roomCode string, session *RoomSession) {
	s.hub.BroadcastToRoom(roomCode, EventLeaderboardUpdate, h{"leaderboard": session.Leaderboard()})
}

func (s *PollSocketService) broadcastQueue(roomCode string, session *RoomSession) {
	s.hub.BroadcastToPresenter(roomCode, EventQueueUpdate, h{"queue": session.Queue()})
}

func (s *PollSocketService) broadcastCanCreate(roomCode string) {
	s.hub.BroadcastToPresenter(roomCode, EventCanCreateUpdate, h{"canCreate": s.canCreateNewPoll(roomCode)})
}

// activePollView 回傳進行中題目的視圖，沒有時為 nil
// 參與者的視圖不帶標準答案與個別選票，答案只在題目結束時公布
func (s *PollSocketService) activePollView(roomCode string, includeAnswer bool) interface{} {
	poll := s.polls.GetActivePoll(roomCode)
	if poll == nil {
		return nil
	}
	if includeAnswer {
		return poll
	}
	return sanitizedPoll(poll)
}

// sanitizedPoll 回傳去除標準答案與選票明細的題目複本
func sanitizedPoll(poll *models.Poll) *models.Poll {
	cloned := *poll
	cloned.CorrectAnswer = ""
	cloned.Votes = nil
	return &cloned
}

// reject 將失敗原因回報給發起操作的連線，絕不全房間廣播
func (s *PollSocketService) reject(client *Client, err error) {
	s.hub.SendToClient(client, EventRejected, h{"reason": err.Error()})
}
