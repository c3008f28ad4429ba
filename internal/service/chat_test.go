package service

import (
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"poll_web/internal/models"
)

type fakeChatRepo struct {
	mu       sync.Mutex
	messages []models.ChatMessage
}

func (f *fakeChatRepo) Create(message *models.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, *message)
	return nil
}

func (f *fakeChatRepo) FindRecentByRoom(roomCode string, limit int) ([]models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found []models.ChatMessage
	for _, m := range f.messages {
		if m.RoomCode == roomCode {
			found = append(found, m)
		}
	}
	if len(found) > limit {
		found = found[len(found)-limit:]
	}
	return found, nil
}

func TestSaveMessage(t *testing.T) {
	repo := &fakeChatRepo{}
	s := NewChatService(repo)

	msg, err := s.SaveMessage("abcdef", "Alice", "participant", "hello")
	if err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}
	if msg.RoomCode != "ABCDEF" {
		t.Errorf("room code not normalized: %s", msg.RoomCode)
	}
	if msg.Timestamp.IsZero() {
		t.Error("timestamp not assigned")
	}

	// 超長訊息被截斷而不是拒絕
	long := strings.Repeat("x", chatMaxLength+100)
	truncated, err := s.SaveMessage("ABCDEF", "Alice", "participant", long)
	if err != nil {
		t.Fatalf("SaveMessage with long message failed: %v", err)
	}
	if len(truncated.Message) != chatMaxLength {
		t.Errorf("message length = %d, want %d", len(truncated.Message), chatMaxLength)
	}
}

func TestSaveMessage_MultibyteTruncation(t *testing.T) {
	repo := &fakeChatRepo{}
	s := NewChatService(repo)

	// 中文訊息每字三個位元組，截斷必須以字元為單位，不能切在位元組中間
	long := strings.Repeat("測", chatMaxLength+100)
	truncated, err := s.SaveMessage("ABCDEF", "Alice", "participant", long)
	if err != nil {
		t.Fatalf("SaveMessage with long CJK message failed: %v", err)
	}
	if got := utf8.RuneCountInString(truncated.Message); got != chatMaxLength {
		t.Errorf("rune count = %d, want %d", got, chatMaxLength)
	}
	if !utf8.ValidString(truncated.Message) {
		t.Error("truncated message is not valid UTF-8")
	}
}

func TestRecentMessages(t *testing.T) {
	repo := &fakeChatRepo{}
	s := NewChatService(repo)

	for _, text := range []string{"first", "second", "third"} {
		if _, err := s.SaveMessage("ABCDEF", "Alice", "participant", text); err != nil {
			t.Fatalf("SaveMessage failed: %v", err)
		}
	}

	messages, err := s.RecentMessages("ABCDEF")
	if err != nil {
		t.Fatalf("RecentMessages failed: %v", err)
	}
	if len(messages) != 3 || messages[0].Message != "first" || messages[2].Message != "third" {
		t.Errorf("unexpected backlog: %+v", messages)
	}
}
