package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"collabboard/internal/models"
	"collabboard/internal/service"
)

// 定義 WebSocket 升級器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 注意：在生產環境中，應該檢查 origin
	},
}

// WebSocketHandler 終結 WebSocket 連線並把入站事件分派給對應的服務
type WebSocketHandler struct {
	gateway     *service.Gateway
	coordinator *service.RoomCoordinator
	drawRelay   *service.DrawRelay
	chatRelay   *service.ChatRelay
	snapshot    *service.SnapshotService
}

func NewWebSocketHandler(services *service.Services) *WebSocketHandler {
	return &WebSocketHandler{
		gateway:     services.Gateway,
		coordinator: services.Coordinator,
		drawRelay:   services.DrawRelay,
		chatRelay:   services.ChatRelay,
		snapshot:    services.Snapshot,
	}
}

// HandleWebSocket 處理 WebSocket 連接請求
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := h.gateway.Register(conn)

	// 連線終止時恰好執行一次斷線清理
	defer func() {
		h.gateway.Unregister(client)
		h.coordinator.HandleDisconnect(client.ID)
		conn.Close()
	}()

	h.gateway.ConfigureRead(client)

	for {
		data, err := client.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("connectionId", client.ID).Warn("websocket unexpected close")
			}
			return
		}
		h.dispatch(client, data)
	}
}

// dispatch 在閘道器邊界解碼並驗證入站事件，再交給對應的處理器。
// 不屬於客戶端可見類型的錯誤一律記錄後丟棄，絕不讓讀取迴圈崩潰。
func (h *WebSocketHandler) dispatch(client *service.Client, data []byte) {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logrus.WithError(err).WithField("connectionId", client.ID).Warn("malformed message envelope")
		h.gateway.ToConnection(client.ID, models.EventRoomError,
			models.RoomErrorEvent{Message: "Invalid message format"})
		return
	}

	switch env.Event {
	case models.EventJoin:
		var p models.JoinPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		// NotFound 由協調器直接回報給請求者
		if err := h.coordinator.Join(p.RoomID, client.ID, p.DisplayName); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"connectionId": client.ID,
				"roomId":       p.RoomID,
			}).Warn("join failed")
		}

	case models.EventDraw:
		var p models.DrawPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.drawRelay.Draw(client.ID, &p)

	case models.EventDrawUpdate:
		var p models.DrawUpdatePayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.drawRelay.DrawUpdate(client.ID, &p)

	case models.EventDrawEnd:
		var p models.DrawEndPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.drawRelay.DrawEnd(client.ID, &p)

	case models.EventClearCanvas:
		var p models.ClearCanvasPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		if err := h.snapshot.Clear(p.RoomID, client.ID); err != nil {
			logrus.WithError(err).WithField("roomId", p.RoomID).Error("failed to clear canvas")
		}

	case models.EventSaveCanvas:
		var p models.SaveCanvasPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		// fire-and-forget，協議不定義回覆
		h.snapshot.Save(p.RoomID, p.CanvasData)

	case models.EventSendMessage:
		var p models.SendMessagePayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.chatRelay.Send(client.ID, &p)

	case models.EventRoomDeleted:
		var p models.RoomDeletedPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.coordinator.NotifyRoomDeleted(p.RoomID)

	default:
		logrus.WithFields(logrus.Fields{
			"connectionId": client.ID,
			"event":        env.Event,
		}).Warn("unknown event")
	}
}

// validatable 是閘道器邊界上所有入站負載共同實作的驗證介面
type validatable interface {
	Validate() error
}

// decode 解碼並驗證負載，失敗時單播 room-error 給請求者並回傳 false
func (h *WebSocketHandler) decode(client *service.Client, data json.RawMessage, payload validatable) bool {
	if err := json.Unmarshal(data, payload); err != nil {
		h.gateway.ToConnection(client.ID, models.EventRoomError,
			models.RoomErrorEvent{Message: "Invalid message format"})
		return false
	}
	if err := payload.Validate(); err != nil {
		h.gateway.ToConnection(client.ID, models.EventRoomError,
			models.RoomErrorEvent{Message: err.Error()})
		return false
	}
	return true
}
