package service

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"collabboard/internal/models"
	"collabboard/internal/repository"
)

var errFakeConnClosed = errors.New("fake connection closed")

// fakeRoomRepo 是記憶體中的 RoomRepository，讀寫都以副本進行，
// 模擬真實 store「持久化前修改不生效」的行為
type fakeRoomRepo struct {
	mu     sync.Mutex
	nextID uint
	rooms  map[uint]models.Room

	// 持久化前執行的測試掛鉤，用來模擬讀取與寫回之間的並發操作
	beforeUpdate func()
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[uint]models.Room)}
}

func cloneRoom(r models.Room) models.Room {
	r.Members = append(models.MemberList{}, r.Members...)
	r.History = append(models.HistoryLog{}, r.History...)
	return r
}

func (f *fakeRoomRepo) Create(room *models.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	room.ID = f.nextID
	room.CreatedAt = time.Now()
	f.rooms[room.ID] = cloneRoom(*room)
	return nil
}

func (f *fakeRoomRepo) FindByID(id uint) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	copied := cloneRoom(room)
	return &copied, nil
}

func (f *fakeRoomRepo) FindByConnectionID(connectionID string) ([]models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.Room
	for _, room := range f.rooms {
		if room.Members.IndexByConnection(connectionID) >= 0 {
			result = append(result, cloneRoom(room))
		}
	}
	return result, nil
}

func (f *fakeRoomRepo) FindPublic(limit int) ([]models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.Room
	for _, room := range f.rooms {
		if room.AccessLevel == models.AccessLevelPublic {
			result = append(result, cloneRoom(room))
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Update 如同真實 store 以條件式寫回：列已不存在時回報 ErrRoomNotFound，不重新插入
func (f *fakeRoomRepo) Update(room *models.Room) error {
	if f.beforeUpdate != nil {
		f.beforeUpdate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[room.ID]; !ok {
		return repository.ErrRoomNotFound
	}
	f.rooms[room.ID] = cloneRoom(*room)
	return nil
}

func (f *fakeRoomRepo) UpdateCanvas(id uint, canvasData string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		// 房間不存在時靜默落空
		return nil
	}
	room.CanvasData = canvasData
	f.rooms[id] = room
	return nil
}

func (f *fakeRoomRepo) Delete(id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[id]; !ok {
		return repository.ErrRoomNotFound
	}
	delete(f.rooms, id)
	return nil
}

// sentEvent 記錄 fakeBroadcaster 遞送的一筆事件
type sentEvent struct {
	Target string // "room" 或 "conn"
	RoomID uint
	ConnID string // 單播目標，或廣播時被排除的連線
	Event  string
	Data   any
}

// fakeBroadcaster 記錄所有遞送呼叫，供協調器與快照服務的測試檢查
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []sentEvent
	joins  map[string][]uint
	leaves map[string][]uint
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{
		joins:  make(map[string][]uint),
		leaves: make(map[string][]uint),
	}
}

func (f *fakeBroadcaster) JoinRoom(connectionID string, roomID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins[connectionID] = append(f.joins[connectionID], roomID)
}

func (f *fakeBroadcaster) LeaveRoom(connectionID string, roomID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves[connectionID] = append(f.leaves[connectionID], roomID)
}

func (f *fakeBroadcaster) ToConnection(connectionID string, event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{Target: "conn", ConnID: connectionID, Event: event, Data: data})
}

func (f *fakeBroadcaster) ToRoom(roomID uint, event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{Target: "room", RoomID: roomID, Event: event, Data: data})
}

func (f *fakeBroadcaster) ToRoomExcept(roomID uint, exceptConnectionID string, event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{Target: "room", RoomID: roomID, ConnID: exceptConnectionID, Event: event, Data: data})
}

func (f *fakeBroadcaster) TrackPreview(roomID uint, exceptConnectionID, ownerID string, data json.RawMessage) {
}

func (f *fakeBroadcaster) UntrackPreview(roomID uint, exceptConnectionID, ownerID string) {}

// eventsNamed 回傳指定名稱的事件記錄
func (f *fakeBroadcaster) eventsNamed(event string) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []sentEvent
	for _, e := range f.events {
		if e.Event == event {
			result = append(result, e)
		}
	}
	return result
}

func (f *fakeBroadcaster) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// fakeConn 實作 wsConn，記錄所有寫出的訊息
type fakeConn struct {
	mu       sync.Mutex
	written  [][]byte
	closed   bool
	readCh   chan []byte
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{readCh: make(chan []byte, 16)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.readCh
	if !ok {
		return 0, nil, errFakeConnClosed
	}
	return 1, data, nil
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	// 只記錄文字訊息，忽略心跳與關閉幀
	if messageType == 1 {
		copied := append([]byte(nil), data...)
		c.written = append(c.written, copied)
	}
	return nil
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error        { return nil }
func (c *fakeConn) SetReadDeadline(t time.Time) error         { return nil }
func (c *fakeConn) SetReadLimit(limit int64)                  {}
func (c *fakeConn) SetPongHandler(h func(appData string) error) {}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// failWrites 讓之後所有的寫入都回報指定錯誤
func (c *fakeConn) failWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([][]byte, len(c.written))
	copy(result, c.written)
	return result
}

// envelopes 解碼此連線收到的所有訊息
func (c *fakeConn) envelopes() []models.Envelope {
	var result []models.Envelope
	for _, raw := range c.messages() {
		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err == nil {
			result = append(result, env)
		}
	}
	return result
}
