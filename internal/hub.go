package internal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 系統設計問題：
//   如何為每條客戶端連接提供一個雙向的、房間範圍的事件通道？
//
// 核心挑戰：
//   1. 入站：帶名稱的結構化訊息 + 可選的 ack 回調（create/join 需要回覆）
//   2. 出站：房間範圍廣播 + 點對點回覆，順序與狀態變更一致
//   3. 心跳機制：檢測死連接（網絡異常、瀏覽器崩潰）
//   4. 斷線即移除：讀取失敗立刻走玩家移除流程
//
// 設計方案：
//   ✅ Hub 模式 - 集中管理所有連接，實現核心的 Broadcaster 介面
//   ✅ 連接句柄 = UUID - 連接即身份，斷線即失效
//   ✅ 緩衝 send channel - 異步發送，慢客戶端不拖累房間
//   ✅ Ping/Pong 心跳 - 54s/60s（發送端留 6 秒余量）

// Hub WebSocket 連接中心
//
// 連接映射分兩層：
//   - conns：connID -> 連接（點對點回覆、斷線清理）
//   - rooms：roomCode -> connID -> 連接（房間廣播）
//
// rooms 的成員關係由遊戲核心透過 Join/Leave 驅動（先訂閱、後廣播），
// Hub 自己不解讀任何遊戲語義。
type Hub struct {
	registry *Registry
	mirror   *Mirror // 可選的 NATS 事件鏡像；nil 表示停用
	logger   *slog.Logger
	upgrader websocket.Upgrader

	conns map[string]*Conn
	rooms map[string]map[string]*Conn
	mu    sync.RWMutex
}

// Conn 一條客戶端連接
type Conn struct {
	ID        string // 連接句柄：遊戲核心裡的玩家身份
	hub       *Hub
	sock      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

// NewHub 創建 WebSocket Hub
func NewHub(registry *Registry, mirror *Mirror, logger *slog.Logger) *Hub {
	return &Hub{
		registry: registry,
		mirror:   mirror,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 生產環境應檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[string]*Conn),
		rooms: make(map[string]map[string]*Conn),
	}
}

// ServeWS 處理 WebSocket 連接
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	sock, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	conn := &Conn{
		ID:   uuid.NewString(),
		hub:  hub,
		sock: sock,
		send: make(chan []byte, 256),
	}

	hub.mu.Lock()
	hub.conns[conn.ID] = conn
	hub.mu.Unlock()

	go conn.writePump()
	go conn.readPump()

	hub.logger.Info("WebSocket 連接建立", "conn_id", conn.ID)
}

// Join 將連接訂閱到房間（實現 Broadcaster）
func (hub *Hub) Join(roomCode, connID string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	conn, ok := hub.conns[connID]
	if !ok {
		return
	}
	if hub.rooms[roomCode] == nil {
		hub.rooms[roomCode] = make(map[string]*Conn)
	}
	hub.rooms[roomCode][connID] = conn
}

// Leave 將連接移出房間（實現 Broadcaster）
func (hub *Hub) Leave(roomCode, connID string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if roomConns, ok := hub.rooms[roomCode]; ok {
		delete(roomConns, connID)
		if len(roomConns) == 0 {
			delete(hub.rooms, roomCode)
		}
	}
}

// Broadcast 向房間廣播事件（實現 Broadcaster）
func (hub *Hub) Broadcast(roomCode string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		hub.logger.Error("序列化事件失敗", "error", err, "event", event.Name)
		return
	}

	hub.mu.RLock()
	for _, conn := range hub.rooms[roomCode] {
		select {
		case conn.send <- data:
		default:
			// 連接緩衝區滿：丟棄該連接的這條訊息，不拖累房間
			hub.logger.Warn("連接緩衝區滿",
				"room_code", roomCode,
				"conn_id", conn.ID)
		}
	}
	hub.mu.RUnlock()

	if hub.mirror != nil {
		hub.mirror.Publish(roomCode, event)
	}
}

// isMember 檢查連接是否為房間成員
func (hub *Hub) isMember(roomCode, connID string) bool {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	_, ok := hub.rooms[roomCode][connID]
	return ok
}

// unregister 移除連接的登記
//
// 必須先在寫鎖下把連接摘出所有房間索引、之後才關閉 send：
// 登出與遊戲核心的玩家移除（Leave）之間存在窗口，其間對同一
// 房間的廣播若還看得到這條連接，就會對已關閉的通道發送而 panic。
func (hub *Hub) unregister(conn *Conn) {
	hub.mu.Lock()
	if actual, ok := hub.conns[conn.ID]; ok && actual == conn {
		delete(hub.conns, conn.ID)
	}
	for code, roomConns := range hub.rooms {
		if actual, ok := roomConns[conn.ID]; ok && actual == conn {
			delete(roomConns, conn.ID)
			if len(roomConns) == 0 {
				delete(hub.rooms, code)
			}
		}
	}
	hub.mu.Unlock()

	conn.closeOnce.Do(func() {
		close(conn.send)
	})
}

// Stop 停止 Hub：關閉所有連接
func (hub *Hub) Stop() {
	hub.mu.Lock()
	for _, conn := range hub.conns {
		conn.closeOnce.Do(func() {
			close(conn.send)
		})
		_ = conn.sock.Close()
	}
	hub.conns = make(map[string]*Conn)
	hub.rooms = make(map[string]map[string]*Conn)
	hub.mu.Unlock()

	hub.logger.Info("WebSocket Hub 已停止")
}

// clientMessage 入站訊息信封
//
// Ack 為可選的回調編號：呼叫端帶上時，處理結果（成功載荷或錯誤）
// 會以同編號點對點回覆；不帶則為即發即忘。
type clientMessage struct {
	Type string          `json:"type"`
	Ack  *int64          `json:"ack,omitempty"`
	Data json.RawMessage `json:"data"`
}

// ackReply 點對點回覆信封
type ackReply struct {
	Ack   int64     `json:"ack"`
	Data  any       `json:"data,omitempty"`
	Error *AppError `json:"error,omitempty"`
}

// readPump 讀取並分派客戶端訊息
//
// 讀取失敗（含心跳超時）即斷線：取消登記、走玩家移除流程。
// 斷線是正常的生命週期轉換，不是錯誤。
func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.hub.registry.RemoveConnection(c.ID)
		_ = c.sock.Close()
		c.hub.logger.Info("WebSocket 連接關閉", "conn_id", c.ID)
	}()

	if err := c.sock.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		c.hub.logger.Error("設置讀取期限失敗", "error", err)
	}
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		messageType, message, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket 讀取錯誤", "error", err, "conn_id", c.ID)
			}
			break
		}

		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

// writePump 寫入訊息到客戶端，並以 54 秒間隔發送 Ping
func (c *Conn) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.sock.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.sock.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				_ = c.sock.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.sock.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 批量送出隊列中剩餘的訊息
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.sock.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			if err := c.sock.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply 發送點對點回覆（ack 編號缺席時為 no-op）
func (c *Conn) reply(ackID *int64, data any, appErr *AppError) {
	if ackID == nil {
		return
	}
	payload, err := json.Marshal(ackReply{Ack: *ackID, Data: data, Error: appErr})
	if err != nil {
		c.hub.logger.Error("序列化回覆失敗", "error", err)
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// 各訊息的載荷結構
type createRoomPayload struct {
	DisplayName string `json:"display_name"`
}

type joinRoomPayload struct {
	DisplayName string `json:"display_name"`
	RoomCode    string `json:"room_code"`
}

type roomScopedPayload struct {
	RoomCode string `json:"room_code"`
}

type readyPayload struct {
	RoomCode string `json:"room_code"`
	Ready    bool   `json:"ready"`
}

type submitDrawingPayload struct {
	RoomCode string `json:"room_code"`
	Round    int    `json:"round"`
	Drawing  string `json:"drawing"`
}

type submitRatingPayload struct {
	RoomCode string `json:"room_code"`
	TargetID string `json:"target_id"`
	// Rating 以 any 解碼：非數字輸入強制轉換為 0 而非拒絕
	Rating any `json:"rating"`
}

type submitVotePayload struct {
	RoomCode string `json:"room_code"`
	TargetID string `json:"target_id"`
}

type chatPayload struct {
	RoomCode string `json:"room_code"`
	Text     string `json:"text"`
}

// handleMessage 分派一條入站訊息
//
// 每條訊息在這條連接的讀取 goroutine 上處理到完成；
// 針對同一房間的互斥由房間鎖保證。
func (c *Conn) handleMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.hub.logger.Error("解析客戶端訊息失敗", "error", err, "conn_id", c.ID)
		return
	}

	reg := c.hub.registry

	switch msg.Type {
	case "create-room":
		var p createRoomPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			c.reply(msg.Ack, nil, New(ErrCodeValidation, "invalid payload"))
			return
		}
		code, err := reg.CreateRoom(c.ID, p.DisplayName)
		if err != nil {
			c.reply(msg.Ack, nil, asAppError(err))
			return
		}
		c.reply(msg.Ack, map[string]any{"room_code": code}, nil)

	case "join-room":
		var p joinRoomPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			c.reply(msg.Ack, nil, New(ErrCodeValidation, "invalid payload"))
			return
		}
		if err := reg.JoinRoom(c.ID, p.DisplayName, p.RoomCode); err != nil {
			c.reply(msg.Ack, nil, asAppError(err))
			return
		}
		c.reply(msg.Ack, map[string]any{"success": true}, nil)

	case "set-ready":
		var p readyPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		reg.SetReady(p.RoomCode, c.ID, p.Ready)

	case "start-game":
		var p roomScopedPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		reg.StartGame(p.RoomCode, c.ID)

	case "submit-drawing":
		var p submitDrawingPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		reg.SubmitDrawing(p.RoomCode, c.ID, p.Drawing)

	case "unsubmit-drawing":
		var p submitDrawingPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		reg.UnsubmitDrawing(p.RoomCode, c.ID)

	case "get-player-names":
		var p roomScopedPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			c.reply(msg.Ack, []PlayerName{}, nil)
			return
		}
		c.reply(msg.Ack, reg.PlayerNames(p.RoomCode), nil)

	case "submit-rating":
		var p submitRatingPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		reg.SubmitRating(p.RoomCode, c.ID, p.TargetID, CoerceRating(p.Rating))

	case "submit-vote":
		var p submitVotePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		reg.SubmitVote(p.RoomCode, c.ID, p.TargetID)

	case "next-round-ack":
		var p readyPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		reg.AckNextRound(p.RoomCode, c.ID, p.Ready)

	case "leader-advance":
		var p roomScopedPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		reg.LeaderAdvance(p.RoomCode, c.ID)

	case "presentation-ready":
		var p readyPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		reg.PresentationReady(p.RoomCode, c.ID, p.Ready)

	case "chat":
		var p chatPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		// 聊天只轉發給同房成員，不觸碰遊戲狀態
		if c.hub.isMember(p.RoomCode, c.ID) {
			c.hub.Broadcast(p.RoomCode, Event{
				Name: EventChatMessage,
				Data: map[string]any{
					"conn_id":   c.ID,
					"text":      p.Text,
					"timestamp": time.Now().Unix(),
				},
			})
		}

	default:
		c.hub.logger.Debug("收到未知訊息類型", "type", msg.Type, "conn_id", c.ID)
	}
}

// asAppError 將錯誤正規化為 AppError（保底為驗證錯誤）
func asAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrCodeValidation, err.Error())
}
