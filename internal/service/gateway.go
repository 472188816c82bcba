package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"collabboard/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 畫布快照可能很大
	sendBufferSize = 256
)

// Broadcaster 是協調器與轉發器對外遞送事件的介面，由 Gateway 實作
type Broadcaster interface {
	JoinRoom(connectionID string, roomID uint)
	LeaveRoom(connectionID string, roomID uint)
	ToConnection(connectionID string, event string, data any)
	ToRoom(roomID uint, event string, data any)
	ToRoomExcept(roomID uint, exceptConnectionID string, event string, data any)
	TrackPreview(roomID uint, exceptConnectionID, ownerID string, data json.RawMessage)
	UntrackPreview(roomID uint, exceptConnectionID, ownerID string)
}

// wsConn 抽象底層的 WebSocket 連線，由 *websocket.Conn 實作，測試時以假連線替換
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client 代表一條已建立的 WebSocket 連線
type Client struct {
	ID   string
	conn wsConn
	send chan []byte

	// 此連線追蹤中的即時筆劃預覽，依房間分組：roomId -> ownerId -> 最新一筆。
	// 每次 draw-update 覆蓋，draw-end 時移除；離開房間只丟棄該房間的預覽，
	// 同一連線在其他房間追蹤中的預覽不受影響。
	previewsMux sync.Mutex
	previews    map[uint]map[string]json.RawMessage
}

func (c *Client) setPreview(roomID uint, ownerID string, data json.RawMessage) {
	c.previewsMux.Lock()
	defer c.previewsMux.Unlock()
	if c.previews[roomID] == nil {
		c.previews[roomID] = make(map[string]json.RawMessage)
	}
	c.previews[roomID][ownerID] = data
}

func (c *Client) removePreview(roomID uint, ownerID string) {
	c.previewsMux.Lock()
	defer c.previewsMux.Unlock()
	if owners, ok := c.previews[roomID]; ok {
		delete(owners, ownerID)
		if len(owners) == 0 {
			delete(c.previews, roomID)
		}
	}
}

func (c *Client) clearPreviews(roomID uint) {
	c.previewsMux.Lock()
	defer c.previewsMux.Unlock()
	delete(c.previews, roomID)
}

// Preview 回傳此連線在指定房間追蹤中的指定 owner 預覽，供測試與偵錯使用
func (c *Client) Preview(roomID uint, ownerID string) (json.RawMessage, bool) {
	c.previewsMux.Lock()
	defer c.previewsMux.Unlock()
	data, ok := c.previews[roomID][ownerID]
	return data, ok
}

// PreviewCount 回傳此連線在所有房間追蹤中的預覽總數
func (c *Client) PreviewCount() int {
	c.previewsMux.Lock()
	defer c.previewsMux.Unlock()
	count := 0
	for _, owners := range c.previews {
		count += len(owners)
	}
	return count
}

// Gateway 終結所有客戶端連線並負責事件遞送。
// 它維護的房間索引只是轉發用途，成員資格以 Room Store 為準。
type Gateway struct {
	clientsMux sync.RWMutex
	clients    map[string]*Client          // connectionId -> client
	rooms      map[uint]map[string]*Client // roomId -> connectionId -> client
	index      map[string]map[uint]bool    // connectionId -> 已加入的房間，加速斷線清理
}

func NewGateway() *Gateway {
	return &Gateway{
		clients: make(map[string]*Client),
		rooms:   make(map[uint]map[string]*Client),
		index:   make(map[string]map[uint]bool),
	}
}

// Register 為新連線分配唯一的 connectionId 並啟動寫入迴圈
func (g *Gateway) Register(conn wsConn) *Client {
	client := &Client{
		ID:       uuid.NewString(),
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		previews: make(map[uint]map[string]json.RawMessage),
	}

	g.clientsMux.Lock()
	g.clients[client.ID] = client
	g.clientsMux.Unlock()

	go g.writePump(client)

	logrus.WithField("connectionId", client.ID).Info("client connected")
	return client
}

// Unregister 把連線從所有交付路徑移除並關閉發送通道。
// 成員資格的收尾由 Disconnect Reaper 處理，這裡只清本地索引。
func (g *Gateway) Unregister(client *Client) {
	g.clientsMux.Lock()
	if _, ok := g.clients[client.ID]; !ok {
		g.clientsMux.Unlock()
		return
	}
	delete(g.clients, client.ID)
	for roomID := range g.index[client.ID] {
		if members, ok := g.rooms[roomID]; ok {
			delete(members, client.ID)
			if len(members) == 0 {
				delete(g.rooms, roomID)
			}
		}
	}
	delete(g.index, client.ID)
	// 發送端都持有讀鎖，在寫鎖內關閉通道可避免對已關閉通道發送
	close(client.send)
	g.clientsMux.Unlock()

	logrus.WithField("connectionId", client.ID).Info("client disconnected")
}

// JoinRoom 把連線掛進房間的轉發名單
func (g *Gateway) JoinRoom(connectionID string, roomID uint) {
	g.clientsMux.Lock()
	defer g.clientsMux.Unlock()

	client, ok := g.clients[connectionID]
	if !ok {
		return
	}
	if g.rooms[roomID] == nil {
		g.rooms[roomID] = make(map[string]*Client)
	}
	g.rooms[roomID][connectionID] = client
	if g.index[connectionID] == nil {
		g.index[connectionID] = make(map[uint]bool)
	}
	g.index[connectionID][roomID] = true
}

// LeaveRoom 把連線移出房間的轉發名單並丟棄它在該房間追蹤中的預覽
func (g *Gateway) LeaveRoom(connectionID string, roomID uint) {
	g.clientsMux.Lock()
	client := g.clients[connectionID]
	if members, ok := g.rooms[roomID]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(g.rooms, roomID)
		}
	}
	if roomSet, ok := g.index[connectionID]; ok {
		delete(roomSet, roomID)
	}
	g.clientsMux.Unlock()

	if client != nil {
		client.clearPreviews(roomID)
	}
}

// ToConnection 只對指定連線單播事件
func (g *Gateway) ToConnection(connectionID string, event string, data any) {
	g.clientsMux.RLock()
	client, ok := g.clients[connectionID]
	g.clientsMux.RUnlock()
	if !ok {
		return
	}
	g.deliver(client, event, data)
}

// ToRoom 廣播事件給房間內所有連線
func (g *Gateway) ToRoom(roomID uint, event string, data any) {
	g.ToRoomExcept(roomID, "", event, data)
}

// ToRoomExcept 廣播事件給房間內除指定連線外的所有連線
func (g *Gateway) ToRoomExcept(roomID uint, exceptConnectionID string, event string, data any) {
	for _, client := range g.roomClients(roomID, exceptConnectionID) {
		g.deliver(client, event, data)
	}
}

// TrackPreview 讓房間內每個接收方記下指定 owner 的最新預覽（覆蓋而非累積）
func (g *Gateway) TrackPreview(roomID uint, exceptConnectionID, ownerID string, data json.RawMessage) {
	for _, client := range g.roomClients(roomID, exceptConnectionID) {
		client.setPreview(roomID, ownerID, data)
	}
}

// UntrackPreview 讓房間內每個接收方丟棄指定 owner 的預覽
func (g *Gateway) UntrackPreview(roomID uint, exceptConnectionID, ownerID string) {
	for _, client := range g.roomClients(roomID, exceptConnectionID) {
		client.removePreview(roomID, ownerID)
	}
}

func (g *Gateway) roomClients(roomID uint, exceptConnectionID string) []*Client {
	g.clientsMux.RLock()
	defer g.clientsMux.RUnlock()

	members := g.rooms[roomID]
	clients := make([]*Client, 0, len(members))
	for id, client := range members {
		if id == exceptConnectionID {
			continue
		}
		clients = append(clients, client)
	}
	return clients
}

// deliver 將事件編碼後放入客戶端的發送隊列。
// 隊列已滿代表客戶端跟不上，直接斷開它。
func (g *Gateway) deliver(client *Client, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("failed to encode event data")
		return
	}
	message, err := json.Marshal(models.Envelope{Event: event, Data: payload})
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("failed to encode envelope")
		return
	}

	full := false
	g.clientsMux.RLock()
	if _, ok := g.clients[client.ID]; ok {
		select {
		case client.send <- message:
		default:
			full = true
		}
	}
	g.clientsMux.RUnlock()

	if full {
		logrus.WithField("connectionId", client.ID).Warn("send buffer full, dropping client")
		g.Unregister(client)
		client.conn.Close()
	}
}

// writePump 處理向客戶端發送訊息與心跳
func (g *Gateway) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ConfigureRead 設定客戶端連線的讀取限制與 pong 處理，由讀取迴圈啟動前呼叫
func (g *Gateway) ConfigureRead(client *Client) {
	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
}

// ReadMessage 從客戶端連線讀取下一則原始訊息
func (c *Client) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}
