package models

import (
	"encoding/json"
)

// 客戶端發送的事件名稱
const (
	EventJoin        = "join"
	EventDraw        = "draw"
	EventDrawUpdate  = "draw-update"
	EventDrawEnd     = "draw-end"
	EventClearCanvas = "clear-canvas"
	EventSaveCanvas  = "save-canvas"
	EventSendMessage = "send-message"
	EventRoomDeleted = "room-deleted"
)

// 伺服器發送的事件名稱
const (
	EventMemberJoined   = "member-joined"
	EventMemberLeft     = "member-left"
	EventRoomUsers      = "room-users"
	EventCanvasState    = "canvas-state"
	EventRoomError      = "room-error"
	EventReceiveMessage = "receive-message"
)

// Envelope 是 WebSocket 訊息的外層結構，data 的具體格式由 event 決定
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ValidationError 表示缺少或格式錯誤的必要欄位，在閘道器邊界驗證時產生
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return "missing or invalid field: " + e.Field
}

// JoinPayload 是 join 事件的負載
type JoinPayload struct {
	RoomID      uint   `json:"roomId"`
	DisplayName string `json:"displayName"`
}

func (p *JoinPayload) Validate() error {
	if p.RoomID == 0 {
		return &ValidationError{Field: "roomId"}
	}
	if p.DisplayName == "" {
		return &ValidationError{Field: "displayName"}
	}
	return nil
}

// DrawPayload 是 draw 事件的負載，drawingData 對伺服器而言是不透明的
type DrawPayload struct {
	RoomID      uint            `json:"roomId"`
	DrawingData json.RawMessage `json:"drawingData"`
	Completed   bool            `json:"completed"`
	IsEraser    bool            `json:"isEraser"`
}

func (p *DrawPayload) Validate() error {
	if p.RoomID == 0 {
		return &ValidationError{Field: "roomId"}
	}
	if len(p.DrawingData) == 0 {
		return &ValidationError{Field: "drawingData"}
	}
	return nil
}

// DrawUpdatePayload 是 draw-update 事件的負載，代表尚未定稿的即時筆劃
type DrawUpdatePayload struct {
	RoomID      uint            `json:"roomId"`
	DrawingData json.RawMessage `json:"drawingData"`
	OwnerID     string          `json:"ownerId"`
}

func (p *DrawUpdatePayload) Validate() error {
	if p.RoomID == 0 {
		return &ValidationError{Field: "roomId"}
	}
	if len(p.DrawingData) == 0 {
		return &ValidationError{Field: "drawingData"}
	}
	return nil
}

// DrawEndPayload 是 draw-end 事件的負載
type DrawEndPayload struct {
	RoomID  uint   `json:"roomId"`
	OwnerID string `json:"ownerId"`
}

func (p *DrawEndPayload) Validate() error {
	if p.RoomID == 0 {
		return &ValidationError{Field: "roomId"}
	}
	return nil
}

// ClearCanvasPayload 是 clear-canvas 事件的負載
type ClearCanvasPayload struct {
	RoomID uint `json:"roomId"`
}

func (p *ClearCanvasPayload) Validate() error {
	if p.RoomID == 0 {
		return &ValidationError{Field: "roomId"}
	}
	return nil
}

// SaveCanvasPayload 是 save-canvas 事件的負載
type SaveCanvasPayload struct {
	RoomID     uint   `json:"roomId"`
	CanvasData string `json:"canvasData"`
}

func (p *SaveCanvasPayload) Validate() error {
	if p.RoomID == 0 {
		return &ValidationError{Field: "roomId"}
	}
	return nil
}

// SendMessagePayload 是 send-message 事件的負載
type SendMessagePayload struct {
	RoomID      uint   `json:"roomId"`
	Message     string `json:"message"`
	DisplayName string `json:"displayName"`
}

func (p *SendMessagePayload) Validate() error {
	if p.RoomID == 0 {
		return &ValidationError{Field: "roomId"}
	}
	if p.Message == "" {
		return &ValidationError{Field: "message"}
	}
	return nil
}

// RoomDeletedPayload 是 room-deleted 事件的負載
type RoomDeletedPayload struct {
	RoomID uint `json:"roomId"`
}

func (p *RoomDeletedPayload) Validate() error {
	if p.RoomID == 0 {
		return &ValidationError{Field: "roomId"}
	}
	return nil
}

// MemberJoinedEvent 在成員加入後廣播給整個房間（含加入者）
type MemberJoinedEvent struct {
	ConnectionID string     `json:"connectionId"`
	DisplayName  string     `json:"displayName"`
	Members      MemberList `json:"members"`
}

// MemberLeftEvent 在成員離開後廣播給剩餘成員
type MemberLeftEvent struct {
	ConnectionID string     `json:"connectionId"`
	DisplayName  string     `json:"displayName"`
	Members      MemberList `json:"members"`
}

// RoomUsersEvent 攜帶房間的完整成員名單
type RoomUsersEvent struct {
	Members MemberList `json:"members"`
}

// CanvasStateEvent 只單播給剛加入的連線，攜帶當前畫布快照
type CanvasStateEvent struct {
	CanvasData string `json:"canvasData"`
}

// RoomErrorEvent 只單播給請求者
type RoomErrorEvent struct {
	Message string `json:"message"`
}

// DrawEvent 是轉發給其他連線的定稿繪圖物件
type DrawEvent struct {
	ConnectionID string          `json:"connectionId"`
	DrawingData  json.RawMessage `json:"drawingData"`
	Completed    bool            `json:"completed"`
	IsEraser     bool            `json:"isEraser"`
}

// DrawUpdateEvent 是轉發給其他連線的即時筆劃預覽，每個 owner 只保留最新一筆
type DrawUpdateEvent struct {
	ConnectionID string          `json:"connectionId"`
	DrawingData  json.RawMessage `json:"drawingData"`
	OwnerID      string          `json:"ownerId"`
}

// DrawEndEvent 通知接收方丟棄指定 owner 的預覽
type DrawEndEvent struct {
	ConnectionID string `json:"connectionId"`
	OwnerID      string `json:"ownerId"`
}

// ReceiveMessageEvent 是轉發給其他連線的聊天訊息，發送者自行產生本地回顯
type ReceiveMessageEvent struct {
	ConnectionID    string `json:"connectionId"`
	DisplayName     string `json:"displayName"`
	Message         string `json:"message"`
	ServerTimestamp int64  `json:"serverTimestamp"`
}

// RoomDeletedEvent 通知房間內所有成員房間已被刪除
type RoomDeletedEvent struct {
	Message string `json:"message"`
}
