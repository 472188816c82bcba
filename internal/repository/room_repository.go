package repository

import (
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"collabboard/internal/models"
	"collabboard/internal/storage"
)

type RoomRepository interface {
	Create(room *models.Room) error
	FindByID(id uint) (*models.Room, error)
	FindByConnectionID(connectionID string) ([]models.Room, error)
	FindPublic(limit int) ([]models.Room, error)
	Update(room *models.Room) error
	UpdateCanvas(id uint, canvasData string) error
	Delete(id uint) error
}

type roomRepository struct {
	db *storage.PostgresDB
}

func NewRoomRepository(db *storage.PostgresDB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) Create(room *models.Room) error {
	return r.db.Create(room).Error
}

func (r *roomRepository) FindByID(id uint) (*models.Room, error) {
	var room models.Room
	err := r.db.First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// FindByConnectionID 用 jsonb 包含查詢找出指定連線所在的所有房間，
// 斷線清理時以此為準（記憶體中的索引僅供轉發用）
func (r *roomRepository) FindByConnectionID(connectionID string) ([]models.Room, error) {
	probe, err := json.Marshal([]map[string]string{{"connectionId": connectionID}})
	if err != nil {
		return nil, err
	}

	var rooms []models.Room
	err = r.db.Where("members @> ?", string(probe)).Find(&rooms).Error
	return rooms, err
}

// FindPublic 查詢公開房間，最新建立的在前
func (r *roomRepository) FindPublic(limit int) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.Where("access_level = ?", models.AccessLevelPublic).
		Order("created_at DESC").
		Limit(limit).
		Find(&rooms).Error
	return rooms, err
}

// Update 以條件式 UPDATE 覆寫既有的房間列，列已被刪除時回報 ErrRoomNotFound、
// 不會重新插入。讀取後被並發刪除的房間由呼叫端決定如何收場。
func (r *roomRepository) Update(room *models.Room) error {
	result := r.db.Model(&models.Room{}).
		Where("id = ?", room.ID).
		Updates(map[string]interface{}{
			"name":         room.Name,
			"access_level": room.AccessLevel,
			"members":      room.Members,
			"canvas_data":  room.CanvasData,
			"history":      room.History,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// UpdateCanvas 覆寫畫布快照（last-write-wins）。
// 房間已被刪除時不回報錯誤，寫入靜默落空。
func (r *roomRepository) UpdateCanvas(id uint, canvasData string) error {
	return r.db.Model(&models.Room{}).
		Where("id = ?", id).
		Update("canvas_data", canvasData).Error
}

func (r *roomRepository) Delete(id uint) error {
	result := r.db.Unscoped().Delete(&models.Room{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}
