package service

import (
	"collabboard/internal/repository"
)

type Services struct {
	Gateway     *Gateway
	Coordinator *RoomCoordinator
	DrawRelay   *DrawRelay
	ChatRelay   *ChatRelay
	Snapshot    *SnapshotService
	Room        *RoomService
}

func NewServices(repos *repository.Repositories) *Services {
	gateway := NewGateway()
	// join/leave/save/clear 共用同一組房間鎖
	locks := &roomLocks{}

	return &Services{
		Gateway:     gateway,
		Coordinator: NewRoomCoordinator(repos.Room, gateway, locks),
		DrawRelay:   NewDrawRelay(gateway),
		ChatRelay:   NewChatRelay(gateway),
		Snapshot:    NewSnapshotService(repos.Room, gateway, locks),
		Room:        NewRoomService(repos.Room),
	}
}
