package service

import (
	"time"

	"collabboard/internal/models"
)

// DrawRelay 負責房間內繪圖事件的無狀態扇出。
// 繪圖內容對伺服器是不透明的，不做任何解讀，也不持久化；
// 轉發在發送者的讀取迴圈上同步執行，因此同一發送者在同一房間內的事件保持到達順序。
type DrawRelay struct {
	gateway Broadcaster
}

func NewDrawRelay(gateway Broadcaster) *DrawRelay {
	return &DrawRelay{gateway: gateway}
}

// Draw 把定稿的繪圖物件轉發給房間內其他連線，發送者已有本地狀態故排除
func (r *DrawRelay) Draw(connectionID string, p *models.DrawPayload) {
	r.gateway.ToRoomExcept(p.RoomID, connectionID, models.EventDraw, models.DrawEvent{
		ConnectionID: connectionID,
		DrawingData:  p.DrawingData,
		Completed:    p.Completed,
		IsEraser:     p.IsEraser,
	})
}

// DrawUpdate 轉發即時筆劃預覽，接收方對每個 owner 只保留最新一筆
func (r *DrawRelay) DrawUpdate(connectionID string, p *models.DrawUpdatePayload) {
	ownerID := p.OwnerID
	if ownerID == "" {
		ownerID = connectionID
	}
	r.gateway.ToRoomExcept(p.RoomID, connectionID, models.EventDrawUpdate, models.DrawUpdateEvent{
		ConnectionID: connectionID,
		DrawingData:  p.DrawingData,
		OwnerID:      ownerID,
	})
	r.gateway.TrackPreview(p.RoomID, connectionID, ownerID, p.DrawingData)
}

// DrawEnd 通知接收方丟棄指定 owner 的預覽
func (r *DrawRelay) DrawEnd(connectionID string, p *models.DrawEndPayload) {
	ownerID := p.OwnerID
	if ownerID == "" {
		ownerID = connectionID
	}
	r.gateway.ToRoomExcept(p.RoomID, connectionID, models.EventDrawEnd, models.DrawEndEvent{
		ConnectionID: connectionID,
		OwnerID:      ownerID,
	})
	r.gateway.UntrackPreview(p.RoomID, connectionID, ownerID)
}

// ChatRelay 負責房間內聊天訊息的無狀態扇出，不持久化聊天記錄
type ChatRelay struct {
	gateway Broadcaster
}

func NewChatRelay(gateway Broadcaster) *ChatRelay {
	return &ChatRelay{gateway: gateway}
}

// Send 附上伺服器時間戳後轉發給房間內其他連線。
// 發送者被排除，由客戶端自行產生本地回顯。
func (r *ChatRelay) Send(connectionID string, p *models.SendMessagePayload) {
	r.gateway.ToRoomExcept(p.RoomID, connectionID, models.EventReceiveMessage, models.ReceiveMessageEvent{
		ConnectionID:    connectionID,
		DisplayName:     p.DisplayName,
		Message:         p.Message,
		ServerTimestamp: time.Now().UnixMilli(),
	})
}
