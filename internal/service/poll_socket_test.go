package service

import (
	"testing"

	"poll_web/internal/models"
)

func newTestSocketService() (*PollSocketService, *PollService, *SessionRegistry) {
	polls := NewPollService(newFakePollRepo())
	sessions := NewSessionRegistry()
	socket := NewPollSocketService(polls, nil, nil, sessions, NewWebSocketManager())
	return socket, polls, sessions
}

func TestCanCreateNewPoll(t *testing.T) {
	socket, polls, sessions := newTestSocketService()

	// 沒有進行中的投票
	if !socket.canCreateNewPoll("ABCDEF") {
		t.Error("expected true with no active poll")
	}

	mustCreatePoll(t, polls, "ABCDEF")

	// 有進行中的投票但房間無人連線
	if !socket.canCreateNewPoll("ABCDEF") {
		t.Error("expected true with active poll but empty room")
	}

	session := sessions.GetOrCreate("ABCDEF")
	session.AddParticipant(&Participant{ConnID: "c1", ParticipantID: "s1", Name: "Alice"})

	// 有進行中的投票且有人尚未作答
	if socket.canCreateNewPoll("ABCDEF") {
		t.Error("expected false with pending votes")
	}

	// 全員作答後解除封鎖
	session.MarkVoted("c1")
	if !socket.canCreateNewPoll("ABCDEF") {
		t.Error("expected true after every participant voted")
	}
}

func TestOnPollEnded_StartsQueuedPoll(t *testing.T) {
	socket, polls, sessions := newTestSocketService()

	first := mustCreatePoll(t, polls, "ABCDEF")

	session := sessions.GetOrCreate("ABCDEF")
	session.AddParticipant(&Participant{ConnID: "c1", ParticipantID: "s1", Name: "Alice"})
	session.MarkVoted("c1")
	session.Enqueue(models.QueuedPoll{
		Question: "queued question",
		Type:     models.QuestionTypeMCQ,
		Options:  []string{"A", "B"},
		Timer:    30,
	})

	results, err := polls.EndPoll("ABCDEF")
	if err != nil {
		t.Fatalf("EndPoll failed: %v", err)
	}
	socket.onPollEnded(PollEnded{RoomCode: "ABCDEF", Results: results, CorrectAnswer: "4"})

	// 佇列頭端的題目自動成為新的進行中投票
	active := polls.GetActivePoll("ABCDEF")
	if active == nil {
		t.Fatal("queued poll not auto-started")
	}
	if active.ID == first.ID || active.Question != "queued question" {
		t.Errorf("unexpected active poll after auto-start: %+v", active)
	}
	if len(session.Queue()) != 0 {
		t.Error("queue not drained after auto-start")
	}

	// 新題目開始時作答標記全部重置
	if session.AllVoted() {
		t.Error("voted flags not reset for the new poll")
	}
}

func TestOnPollEnded_EmptyQueue(t *testing.T) {
	socket, polls, sessions := newTestSocketService()

	mustCreatePoll(t, polls, "ABCDEF")
	session := sessions.GetOrCreate("ABCDEF")
	session.AddParticipant(&Participant{ConnID: "c1", ParticipantID: "s1", Name: "Alice"})
	session.MarkVoted("c1")

	results, err := polls.EndPoll("ABCDEF")
	if err != nil {
		t.Fatalf("EndPoll failed: %v", err)
	}
	socket.onPollEnded(PollEnded{RoomCode: "ABCDEF", Results: results})

	if polls.GetActivePoll("ABCDEF") != nil {
		t.Error("no poll should start with an empty queue")
	}
	if session.AllVoted() {
		t.Error("voted flags not reset after poll ended")
	}
}
