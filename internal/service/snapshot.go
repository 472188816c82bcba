package service

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"collabboard/internal/models"
	"collabboard/internal/repository"
)

// SnapshotService 把客戶端提交的畫布快照寫入 Room Store。
// 伺服器不解讀繪圖事件，快照是客戶端自行重建的完整狀態。
type SnapshotService struct {
	roomRepo repository.RoomRepository
	gateway  Broadcaster
	locks    *roomLocks
}

func NewSnapshotService(roomRepo repository.RoomRepository, gateway Broadcaster, locks *roomLocks) *SnapshotService {
	return &SnapshotService{
		roomRepo: roomRepo,
		gateway:  gateway,
		locks:    locks,
	}
}

// Save 無條件覆寫畫布快照（last-write-wins，不做合併或版本檢查）。
// 房間已不存在時靜默落空，不是錯誤：保存對呼叫端是 fire-and-forget。
func (s *SnapshotService) Save(roomID uint, canvasData string) {
	mu := s.locks.lock(roomID)
	defer mu.Unlock()

	if err := s.roomRepo.UpdateCanvas(roomID, canvasData); err != nil {
		logrus.WithError(err).WithField("roomId", roomID).Error("failed to save canvas snapshot")
	}
}

// Clear 清空畫布快照、追加一筆操作記錄，並向房間內其他連線廣播 clear-canvas
func (s *SnapshotService) Clear(roomID uint, connectionID string) error {
	mu := s.locks.lock(roomID)
	defer mu.Unlock()

	room, err := s.roomRepo.FindByID(roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil
		}
		return err
	}

	room.CanvasData = ""
	room.History = room.History.Append(models.HistoryEntry{
		Action:    "clear",
		Data:      map[string]any{},
		Timestamp: time.Now(),
	})

	if err := s.roomRepo.Update(room); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil
		}
		return err
	}

	s.gateway.ToRoomExcept(roomID, connectionID, models.EventClearCanvas, struct{}{})
	return nil
}
