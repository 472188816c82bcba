package service

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"collabboard/internal/models"
	"collabboard/internal/repository"
)

// roomLocks 提供以房間為粒度的互斥鎖。
// 同一房間的 join/leave/save/clear 必須彼此串行，不同房間之間不互相阻塞。
// 鎖項不回收：房間狀態一律在持鎖後重新讀取，殘留的鎖項只會串行化一次落空操作。
type roomLocks struct {
	locks sync.Map // roomID -> *sync.Mutex
}

func (l *roomLocks) lock(roomID uint) *sync.Mutex {
	mu, _ := l.locks.LoadOrStore(roomID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m
}

// RoomCoordinator 擁有房間成員狀態機與管理員選舉，
// 是唯一允許修改房間成員名單的元件。
type RoomCoordinator struct {
	roomRepo repository.RoomRepository
	gateway  Broadcaster
	locks    *roomLocks
}

func NewRoomCoordinator(roomRepo repository.RoomRepository, gateway Broadcaster, locks *roomLocks) *RoomCoordinator {
	return &RoomCoordinator{
		roomRepo: roomRepo,
		gateway:  gateway,
		locks:    locks,
	}
}

// Join 把連線加入房間。
// 同名成員存在時視為重連，只就地更新其 connectionId，
// 保留原本的位置、管理員旗標與加入時間。第一位成員成為管理員。
func (c *RoomCoordinator) Join(roomID uint, connectionID, displayName string) error {
	mu := c.locks.lock(roomID)
	defer mu.Unlock()

	room, err := c.roomRepo.FindByID(roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			c.gateway.ToConnection(connectionID, models.EventRoomError,
				models.RoomErrorEvent{Message: "Room not found"})
			return err
		}
		c.gateway.ToConnection(connectionID, models.EventRoomError,
			models.RoomErrorEvent{Message: "Failed to join room"})
		return err
	}

	if idx := room.Members.IndexByName(displayName); idx >= 0 {
		room.Members[idx].ConnectionID = connectionID
	} else {
		room.Members = append(room.Members, models.Member{
			ConnectionID: connectionID,
			DisplayName:  displayName,
			IsAdmin:      len(room.Members) == 0, // 第一位成員是管理員
			JoinedAt:     time.Now(),
		})
	}

	if err := c.roomRepo.Update(room); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			// 房間在讀取後被並發刪除，加入失敗
			c.gateway.ToConnection(connectionID, models.EventRoomError,
				models.RoomErrorEvent{Message: "Room not found"})
			return err
		}
		logrus.WithError(err).WithField("roomId", roomID).Error("failed to persist join")
		c.gateway.ToConnection(connectionID, models.EventRoomError,
			models.RoomErrorEvent{Message: "Failed to join room"})
		return err
	}

	c.gateway.JoinRoom(connectionID, roomID)

	c.gateway.ToRoom(roomID, models.EventMemberJoined, models.MemberJoinedEvent{
		ConnectionID: connectionID,
		DisplayName:  displayName,
		Members:      room.Members,
	})
	c.gateway.ToConnection(connectionID, models.EventCanvasState,
		models.CanvasStateEvent{CanvasData: room.CanvasData})
	c.gateway.ToRoom(roomID, models.EventRoomUsers,
		models.RoomUsersEvent{Members: room.Members})

	logrus.WithFields(logrus.Fields{
		"roomId":      roomID,
		"displayName": displayName,
		"members":     len(room.Members),
	}).Info("member joined room")
	return nil
}

// Leave 把連線移出房間，對已不在房間的連線是冪等的空操作。
// 成員歸零的房間整筆刪除；前任管理員離開時由加入順序最早的成員接任。
func (c *RoomCoordinator) Leave(roomID uint, connectionID string) error {
	mu := c.locks.lock(roomID)
	defer mu.Unlock()

	room, err := c.roomRepo.FindByID(roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			// 房間已被並發的斷線清理刪除，無事可做
			return nil
		}
		return err
	}

	idx := room.Members.IndexByConnection(connectionID)
	if idx < 0 {
		return nil
	}

	displayName := room.Members[idx].DisplayName
	room.Members = append(room.Members[:idx], room.Members[idx+1:]...)

	c.gateway.LeaveRoom(connectionID, roomID)

	if len(room.Members) == 0 {
		// 沒有人需要通知，整筆刪掉
		if err := c.roomRepo.Delete(room.ID); err != nil && !errors.Is(err, repository.ErrRoomNotFound) {
			return err
		}
		logrus.WithField("roomId", roomID).Info("room emptied and deleted")
		return nil
	}

	if !room.Members.HasAdmin() {
		room.Members[0].IsAdmin = true
		logrus.WithFields(logrus.Fields{
			"roomId":      roomID,
			"displayName": room.Members[0].DisplayName,
		}).Info("elected new room admin")
	}

	if err := c.roomRepo.Update(room); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil
		}
		return err
	}

	c.gateway.ToRoom(roomID, models.EventMemberLeft, models.MemberLeftEvent{
		ConnectionID: connectionID,
		DisplayName:  displayName,
		Members:      room.Members,
	})
	c.gateway.ToRoom(roomID, models.EventRoomUsers,
		models.RoomUsersEvent{Members: room.Members})
	return nil
}

// NotifyRoomDeleted 向房間內所有成員（含發送者）廣播房間已被刪除
func (c *RoomCoordinator) NotifyRoomDeleted(roomID uint) {
	c.gateway.ToRoom(roomID, models.EventRoomDeleted, models.RoomDeletedEvent{
		Message: "This room has been deleted by the owner",
	})
}

// HandleDisconnect 是斷線清理器，連線終止時恰好執行一次。
// 以 Room Store 為準找出此連線所在的所有房間並逐一執行 Leave，
// 對已被並發刪除的房間保持冪等。
func (c *RoomCoordinator) HandleDisconnect(connectionID string) {
	rooms, err := c.roomRepo.FindByConnectionID(connectionID)
	if err != nil {
		logrus.WithError(err).WithField("connectionId", connectionID).
			Error("failed to look up rooms for disconnected client")
		return
	}

	for i := range rooms {
		if err := c.Leave(rooms[i].ID, connectionID); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"connectionId": connectionID,
				"roomId":       rooms[i].ID,
			}).Error("failed to remove disconnected member")
		}
	}
}
