package service

import (
	"poll_web/internal/repository"
)

type Services struct {
	Room             *RoomService
	Poll             *PollService
	Chat             *ChatService
	Sessions         *SessionRegistry
	WebSocketManager *WebSocketManager
	PollSocket       *PollSocketService
}

func NewServices(repos *repository.Repositories) *Services {
	hub := NewWebSocketManager()
	sessions := NewSessionRegistry()

	pollService := NewPollService(repos.Poll)
	roomService := NewRoomService(repos.Room, repos.Poll)
	chatService := NewChatService(repos.Chat)
	pollSocket := NewPollSocketService(pollService, roomService, chatService, sessions, hub)

	return &Services{
		Room:             roomService,
		Poll:             pollService,
		Chat:             chatService,
		Sessions:         sessions,
		WebSocketManager: hub,
		PollSocket:       pollSocket,
	}
}
