package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabboard/internal/models"
	"collabboard/internal/repository"
	"collabboard/internal/service"
)

// fakeWSConn 實作閘道器所需的連線介面，記錄所有寫出的文字訊息
type fakeWSConn struct {
	mu      sync.Mutex
	written [][]byte
}

func (c *fakeWSConn) ReadMessage() (int, []byte, error) {
	return 0, nil, errors.New("not used in dispatch tests")
}

func (c *fakeWSConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if messageType == websocket.TextMessage {
		c.written = append(c.written, append([]byte(nil), data...))
	}
	return nil
}

func (c *fakeWSConn) SetWriteDeadline(t time.Time) error          { return nil }
func (c *fakeWSConn) SetReadDeadline(t time.Time) error           { return nil }
func (c *fakeWSConn) SetReadLimit(limit int64)                    {}
func (c *fakeWSConn) SetPongHandler(h func(appData string) error) {}
func (c *fakeWSConn) Close() error                                { return nil }

func (c *fakeWSConn) envelopes() []models.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var result []models.Envelope
	for _, raw := range c.written {
		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err == nil {
			result = append(result, env)
		}
	}
	return result
}

func newTestWSHandler() (*WebSocketHandler, *service.Services, *stubRoomRepo) {
	repo := newStubRoomRepo()
	services := service.NewServices(&repository.Repositories{Room: repo})
	return NewWebSocketHandler(services), services, repo
}

func envelope(t *testing.T, event string, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(models.Envelope{Event: event, Data: data})
	require.NoError(t, err)
	return raw
}

// 等待指定連線收到目標事件（遞送經過非同步的寫入迴圈）
func waitForEvent(t *testing.T, conn *fakeWSConn, event string) models.Envelope {
	t.Helper()
	var found models.Envelope
	require.Eventually(t, func() bool {
		for _, env := range conn.envelopes() {
			if env.Event == event {
				found = env
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond, "expected %s event", event)
	return found
}

func TestDispatch_MalformedEnvelope(t *testing.T) {
	handler, services, _ := newTestWSHandler()
	conn := &fakeWSConn{}
	client := services.Gateway.Register(conn)

	handler.dispatch(client, []byte("not json at all"))

	env := waitForEvent(t, conn, models.EventRoomError)
	var event models.RoomErrorEvent
	require.NoError(t, json.Unmarshal(env.Data, &event))
	assert.Equal(t, "Invalid message format", event.Message)
}

func TestDispatch_JoinMissingDisplayName(t *testing.T) {
	handler, services, repo := newTestWSHandler()
	room := &models.Room{Name: "sketchpad", AccessLevel: models.AccessLevelPublic}
	require.NoError(t, repo.Create(room))

	conn := &fakeWSConn{}
	client := services.Gateway.Register(conn)

	handler.dispatch(client, envelope(t, models.EventJoin, models.JoinPayload{RoomID: room.ID}))

	// 驗證在任何變更之前就拒絕
	env := waitForEvent(t, conn, models.EventRoomError)
	var event models.RoomErrorEvent
	require.NoError(t, json.Unmarshal(env.Data, &event))
	assert.Contains(t, event.Message, "displayName")

	stored, err := repo.FindByID(room.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Members)
}

func TestDispatch_JoinUnknownRoom(t *testing.T) {
	handler, services, _ := newTestWSHandler()
	conn := &fakeWSConn{}
	client := services.Gateway.Register(conn)

	handler.dispatch(client, envelope(t, models.EventJoin,
		models.JoinPayload{RoomID: 42, DisplayName: "alice"}))

	env := waitForEvent(t, conn, models.EventRoomError)
	var event models.RoomErrorEvent
	require.NoError(t, json.Unmarshal(env.Data, &event))
	assert.Equal(t, "Room not found", event.Message)
}

func TestDispatch_JoinAndDrawFlow(t *testing.T) {
	handler, services, repo := newTestWSHandler()
	room := &models.Room{Name: "sketchpad", AccessLevel: models.AccessLevelPublic, CanvasData: "snapshot"}
	require.NoError(t, repo.Create(room))

	connA, connB := &fakeWSConn{}, &fakeWSConn{}
	clientA := services.Gateway.Register(connA)
	clientB := services.Gateway.Register(connB)

	handler.dispatch(clientA, envelope(t, models.EventJoin,
		models.JoinPayload{RoomID: room.ID, DisplayName: "alice"}))
	handler.dispatch(clientB, envelope(t, models.EventJoin,
		models.JoinPayload{RoomID: room.ID, DisplayName: "bob"}))

	// 加入者收到當前快照的單播
	stateEnv := waitForEvent(t, connA, models.EventCanvasState)
	var state models.CanvasStateEvent
	require.NoError(t, json.Unmarshal(stateEnv.Data, &state))
	assert.Equal(t, "snapshot", state.CanvasData)

	waitForEvent(t, connB, models.EventRoomUsers)

	// alice 畫一筆，只有 bob 收到
	handler.dispatch(clientA, envelope(t, models.EventDraw, models.DrawPayload{
		RoomID:      room.ID,
		DrawingData: json.RawMessage(`{"type":"line"}`),
		Completed:   true,
	}))

	drawEnv := waitForEvent(t, connB, models.EventDraw)
	var draw models.DrawEvent
	require.NoError(t, json.Unmarshal(drawEnv.Data, &draw))
	assert.Equal(t, clientA.ID, draw.ConnectionID)

	for _, env := range connA.envelopes() {
		assert.NotEqual(t, models.EventDraw, env.Event, "sender must not receive its own draw")
	}

	stored, err := repo.FindByID(room.ID)
	require.NoError(t, err)
	require.Len(t, stored.Members, 2)
	assert.True(t, stored.Members[0].IsAdmin)
	assert.False(t, stored.Members[1].IsAdmin)
}

func TestDispatch_SendMessageExcludesSender(t *testing.T) {
	handler, services, repo := newTestWSHandler()
	room := &models.Room{Name: "sketchpad", AccessLevel: models.AccessLevelPublic}
	require.NoError(t, repo.Create(room))

	connA, connB := &fakeWSConn{}, &fakeWSConn{}
	clientA := services.Gateway.Register(connA)
	clientB := services.Gateway.Register(connB)

	handler.dispatch(clientA, envelope(t, models.EventJoin,
		models.JoinPayload{RoomID: room.ID, DisplayName: "alice"}))
	handler.dispatch(clientB, envelope(t, models.EventJoin,
		models.JoinPayload{RoomID: room.ID, DisplayName: "bob"}))

	handler.dispatch(clientA, envelope(t, models.EventSendMessage, models.SendMessagePayload{
		RoomID:      room.ID,
		Message:     fmt.Sprintf("hello from %s", "alice"),
		DisplayName: "alice",
	}))

	env := waitForEvent(t, connB, models.EventReceiveMessage)
	var msg models.ReceiveMessageEvent
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "alice", msg.DisplayName)
	assert.NotZero(t, msg.ServerTimestamp)

	for _, env := range connA.envelopes() {
		assert.NotEqual(t, models.EventReceiveMessage, env.Event)
	}
}
