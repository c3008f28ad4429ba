package repository

import "poll_web/internal/storage"

type Repositories struct {
	Room     RoomRepository
	Poll     PollRepository
	Chat     ChatRepository
	Template TemplateRepository
}

func NewRepositories(db *storage.PostgresDB) *Repositories {
	return &Repositories{
		Room:     NewRoomRepository(db),
		Poll:     NewPollRepository(db),
		Chat:     NewChatRepository(db),
		Template: NewTemplateRepository(db),
	}
}
