package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Room 表示一個共享畫板房間
type Room struct {
	gorm.Model
	Name        string      `json:"name" gorm:"not null"`
	AccessLevel AccessLevel `json:"accessLevel" gorm:"type:varchar(10);default:'public'"`
	Members     MemberList  `json:"members" gorm:"type:jsonb;default:'[]'"`
	CanvasData  string      `json:"canvasData" gorm:"type:text"` // 序列化後的畫布快照，伺服器不解讀內容
	History     HistoryLog  `json:"history" gorm:"type:jsonb;default:'[]'"`
}

// AccessLevel 定義房間的存取等級
type AccessLevel string

const (
	AccessLevelPublic  AccessLevel = "public"
	AccessLevelPrivate AccessLevel = "private"
)

// Member 表示一個連線在房間內的成員資格，只屬於該房間
type Member struct {
	ConnectionID string    `json:"connectionId"`
	DisplayName  string    `json:"displayName"`
	IsAdmin      bool      `json:"isAdmin"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// MemberList 是按加入順序排列的成員序列，以 jsonb 欄位存儲
type MemberList []Member

// IndexByName 依顯示名稱搜尋成員，找不到時回傳 -1
func (m MemberList) IndexByName(displayName string) int {
	for i := range m {
		if m[i].DisplayName == displayName {
			return i
		}
	}
	return -1
}

// IndexByConnection 依連線 ID 搜尋成員，找不到時回傳 -1
func (m MemberList) IndexByConnection(connectionID string) int {
	for i := range m {
		if m[i].ConnectionID == connectionID {
			return i
		}
	}
	return -1
}

// HasAdmin 回報是否有任一成員持有管理員旗標
func (m MemberList) HasAdmin() bool {
	for i := range m {
		if m[i].IsAdmin {
			return true
		}
	}
	return false
}

func (m MemberList) Value() (driver.Value, error) {
	if m == nil {
		m = MemberList{}
	}
	return json.Marshal(m)
}

func (m *MemberList) Scan(value interface{}) error {
	if value == nil {
		*m = MemberList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("failed to scan MemberList: unsupported column type")
		}
	}
	return json.Unmarshal(bytes, m)
}

// HistoryEntry 表示一筆畫布操作記錄
type HistoryEntry struct {
	Action    string         `json:"action"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// HistoryLog 是有上限的操作記錄序列，以 jsonb 欄位存儲
type HistoryLog []HistoryEntry

// HistoryLimit 是每個房間保留的操作記錄上限，超過時淘汰最舊的記錄
const HistoryLimit = 128

// Append 追加一筆記錄並裁剪到上限
func (h HistoryLog) Append(entry HistoryEntry) HistoryLog {
	h = append(h, entry)
	if len(h) > HistoryLimit {
		h = h[len(h)-HistoryLimit:]
	}
	return h
}

func (h HistoryLog) Value() (driver.Value, error) {
	if h == nil {
		h = HistoryLog{}
	}
	return json.Marshal(h)
}

func (h *HistoryLog) Scan(value interface{}) error {
	if value == nil {
		*h = HistoryLog{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("failed to scan HistoryLog: unsupported column type")
		}
	}
	return json.Unmarshal(bytes, h)
}

// RoomSummary 是公開房間列表中的單筆摘要
type RoomSummary struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	UserCount int       `json:"userCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary 產生房間的列表摘要
func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		ID:        r.ID,
		Name:      r.Name,
		UserCount: len(r.Members),
		CreatedAt: r.CreatedAt,
	}
}
