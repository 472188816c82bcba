package service

import (
	"collabboard/internal/models"
	"collabboard/internal/repository"
)

// RoomService 是 REST 介面背後的房間 CRUD 薄封裝
type RoomService struct {
	roomRepo repository.RoomRepository
}

func NewRoomService(roomRepo repository.RoomRepository) *RoomService {
	return &RoomService{roomRepo: roomRepo}
}

// CreateRoom 建立一個沒有任何成員的新房間
func (s *RoomService) CreateRoom(name string, accessLevel models.AccessLevel) (*models.Room, error) {
	if accessLevel == "" {
		accessLevel = models.AccessLevelPublic
	}

	room := &models.Room{
		Name:        name,
		AccessLevel: accessLevel,
		Members:     models.MemberList{},
		History:     models.HistoryLog{},
	}
	if err := s.roomRepo.Create(room); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *RoomService) GetRoom(roomID uint) (*models.Room, error) {
	return s.roomRepo.FindByID(roomID)
}

// UpdateAccessLevel 修改房間的存取等級
func (s *RoomService) UpdateAccessLevel(roomID uint, accessLevel models.AccessLevel) (*models.Room, error) {
	room, err := s.roomRepo.FindByID(roomID)
	if err != nil {
		return nil, err
	}

	room.AccessLevel = accessLevel
	if err := s.roomRepo.Update(room); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *RoomService) DeleteRoom(roomID uint) error {
	if _, err := s.roomRepo.FindByID(roomID); err != nil {
		return err
	}
	return s.roomRepo.Delete(roomID)
}

// ListPublicRooms 列出最新建立的公開房間摘要
func (s *RoomService) ListPublicRooms(limit int) ([]models.RoomSummary, error) {
	rooms, err := s.roomRepo.FindPublic(limit)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.RoomSummary, 0, len(rooms))
	for i := range rooms {
		summaries = append(summaries, rooms[i].Summary())
	}
	return summaries, nil
}
