package service

import (
	"errors"
	"testing"
	"time"

	"poll_web/internal/models"
)

func TestAddParticipant_NameTaken(t *testing.T) {
	rs := newRoomSession()

	if err := rs.AddParticipant(&Participant{ConnID: "c1", ParticipantID: "s1", Name: "Alice"}); err != nil {
		t.Fatalf("first join failed: %v", err)
	}

	// 顯示名稱不分大小寫唯一
	err := rs.AddParticipant(&Participant{ConnID: "c2", ParticipantID: "s2", Name: "alice"})
	if !errors.Is(err, ErrNameTaken) {
		t.Errorf("expected ErrNameTaken, got %v", err)
	}

	// 同一連線重複加入視為更新，不算撞名
	if err := rs.AddParticipant(&Participant{ConnID: "c1", ParticipantID: "s1", Name: "Alice"}); err != nil {
		t.Errorf("rejoin on same connection failed: %v", err)
	}
}

func TestParticipants_JoinOrder(t *testing.T) {
	rs := newRoomSession()

	base := time.Now()
	rs.AddParticipant(&Participant{ConnID: "c2", ParticipantID: "s2", Name: "Bob", JoinedAt: base.Add(time.Second)})
	rs.AddParticipant(&Participant{ConnID: "c1", ParticipantID: "s1", Name: "Alice", JoinedAt: base})
	rs.AddParticipant(&Participant{ConnID: "c3", ParticipantID: "s3", Name: "Carol", JoinedAt: base.Add(2 * time.Second)})

	roster := rs.Participants()
	want := []string{"Alice", "Bob", "Carol"}
	if len(roster) != len(want) {
		t.Fatalf("expected %d participants, got %d", len(want), len(roster))
	}
	for i, name := range want {
		if roster[i].Name != name {
			t.Errorf("roster[%d] = %s, want %s", i, roster[i].Name, name)
		}
	}
}

func TestVotedFlags(t *testing.T) {
	rs := newRoomSession()
	rs.AddParticipant(&Participant{ConnID: "c1", ParticipantID: "s1", Name: "Alice"})
	rs.AddParticipant(&Participant{ConnID: "c2", ParticipantID: "s2", Name: "Bob"})

	if rs.AllVoted() {
		t.Error("AllVoted true before anyone voted")
	}

	rs.MarkVoted("c1")
	if rs.AllVoted() {
		t.Error("AllVoted true with one pending participant")
	}

	rs.MarkVoted("c2")
	if !rs.AllVoted() {
		t.Error("AllVoted false after every participant voted")
	}

	rs.ResetVotedFlags()
	if rs.AllVoted() {
		t.Error("flags not cleared by ResetVotedFlags")
	}

	// 名冊為空時視為全員已作答
	empty := newRoomSession()
	if !empty.AllVoted() {
		t.Error("AllVoted false for empty roster")
	}
}

func TestLeaderboard(t *testing.T) {
	rs := newRoomSession()

	rs.ApplyScore("s1", "Alice", true)
	rs.ApplyScore("s1", "Alice", true)
	rs.ApplyScore("s2", "Bob", true)
	rs.ApplyScore("s2", "Bob", false)
	rs.ApplyScore("s3", "Carol", true)

	board := rs.Leaderboard()
	if len(board) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(board))
	}

	// 分數高者在前，同分以參與者代碼排序
	if board[0].ParticipantID != "s1" || board[0].Score != 2 {
		t.Errorf("board[0] = %+v, want s1 with score 2", board[0])
	}
	if board[1].ParticipantID != "s2" || board[2].ParticipantID != "s3" {
		t.Errorf("tie not broken by participant ID: %s before %s",
			board[1].ParticipantID, board[2].ParticipantID)
	}

	if board[1].TotalAnswered != 2 || board[1].CorrectAnswers != 1 {
		t.Errorf("s2 tallies wrong: answered=%d correct=%d",
			board[1].TotalAnswered, board[1].CorrectAnswers)
	}
}

func TestPresenterSlot(t *testing.T) {
	rs := newRoomSession()

	rs.SetPresenter("c1")
	if !rs.IsPresenter("c1") {
		t.Error("presenter not registered")
	}
	if rs.IsPresenter("c2") {
		t.Error("non-presenter connection passed the check")
	}

	// 後到的連線直接接管主持人位置
	rs.SetPresenter("c2")
	if rs.IsPresenter("c1") {
		t.Error("old presenter still holds the slot after takeover")
	}
	if !rs.IsPresenter("c2") {
		t.Error("new presenter not registered after takeover")
	}

	// 非目前主持人的清除不生效
	if rs.ClearPresenter("c1") {
		t.Error("stale connection cleared the presenter slot")
	}
	if !rs.ClearPresenter("c2") {
		t.Error("current presenter failed to clear the slot")
	}
	if rs.IsPresenter("c2") {
		t.Error("presenter slot not empty after clear")
	}
}

func TestQueue(t *testing.T) {
	rs := newRoomSession()

	rs.Enqueue(models.QueuedPoll{Question: "q1"})
	rs.Enqueue(models.QueuedPoll{Question: "q2"})
	rs.Enqueue(models.QueuedPoll{Question: "q3"})

	if rs.RemoveQueued(5) {
		t.Error("out-of-range removal must be a no-op")
	}
	if !rs.RemoveQueued(1) {
		t.Error("in-range removal failed")
	}

	queue := rs.Queue()
	if len(queue) != 2 || queue[0].Question != "q1" || queue[1].Question != "q3" {
		t.Fatalf("unexpected queue after removal: %+v", queue)
	}

	head, ok := rs.DequeueHead()
	if !ok || head.Question != "q1" {
		t.Errorf("DequeueHead = %+v, want q1", head)
	}
	head, ok = rs.DequeueHead()
	if !ok || head.Question != "q3" {
		t.Errorf("DequeueHead = %+v, want q3", head)
	}
	if _, ok := rs.DequeueHead(); ok {
		t.Error("DequeueHead on empty queue must report false")
	}
}

func TestSessionRegistry_Bindings(t *testing.T) {
	reg := NewSessionRegistry()

	first := reg.GetOrCreate("abcdef")
	second := reg.GetOrCreate("ABCDEF")
	if first != second {
		t.Error("room code lookup must be case-insensitive")
	}

	if reg.Get("NOROOM") != nil {
		t.Error("Get must not create sessions")
	}

	reg.BindConn("c1", "abcdef")
	roomCode, ok := reg.UnbindConn("c1")
	if !ok || roomCode != "ABCDEF" {
		t.Errorf("UnbindConn = %q/%v, want ABCDEF/true", roomCode, ok)
	}
	if _, ok := reg.UnbindConn("c1"); ok {
		t.Error("second unbind must report missing binding")
	}
}

func TestSessionRegistry_Reap(t *testing.T) {
	reg := NewSessionRegistry()

	// 閒置超過 TTL 的房間
	idle := reg.GetOrCreate("IDLE01")
	idle.mu.Lock()
	idle.emptySince = time.Now().Add(-time.Hour)
	idle.mu.Unlock()

	// 仍有參與者連線的房間
	busy := reg.GetOrCreate("BUSY01")
	busy.AddParticipant(&Participant{ConnID: "c1", ParticipantID: "s1", Name: "Alice"})

	// 剛變為無人、尚未超過 TTL 的房間
	reg.GetOrCreate("FRESH1")

	reg.reap(30 * time.Minute)

	if reg.Get("IDLE01") != nil {
		t.Error("idle session past TTL not reaped")
	}
	if reg.Get("BUSY01") == nil {
		t.Error("occupied session must never be reaped")
	}
	if reg.Get("FRESH1") == nil {
		t.Error("recently emptied session reaped too early")
	}
}

func TestRoomSession_IdleTracking(t *testing.T) {
	rs := newRoomSession()

	// 新建立且無人連線的房間立即開始計時
	if rs.idleSince().IsZero() {
		t.Error("fresh empty session must report an idle start time")
	}

	rs.AddParticipant(&Participant{ConnID: "c1", ParticipantID: "s1", Name: "Alice"})
	if !rs.idleSince().IsZero() {
		t.Error("occupied session must not report idle")
	}

	rs.RemoveParticipant("c1")
	if rs.idleSince().IsZero() {
		t.Error("idle clock not restarted after last participant left")
	}

	// 只剩主持人也算有人
	rs.SetPresenter("p1")
	if !rs.idleSince().IsZero() {
		t.Error("session with presenter must not report idle")
	}
}
