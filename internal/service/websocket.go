package service

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// InboundMessage 是客戶端送入的統一訊息格式
type InboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OutboundMessage 是推播給客戶端的統一訊息格式
type OutboundMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Client 代表一個 WebSocket 客戶端連接
type Client struct {
	ID          string                // 連線識別碼
	Conn        *websocket.Conn       // WebSocket 連接
	SendChan    chan *OutboundMessage // 消息發送通道，用於異步傳送消息
	RoomCode    string                // 加入的房間（由 hub 的鎖保護）
	IsPresenter bool                  // 是否以主持人身分加入（由 hub 的鎖保護）
}

// MessageHandler 處理入站訊息與連線斷開
// 由推播調度層實作，hub 本身不理解任何訊息語意
type MessageHandler interface {
	HandleMessage(client *Client, msg *InboundMessage)
	HandleDisconnect(client *Client)
}

// WebSocketManager 管理所有的 WebSocket 連接和消息傳遞
type WebSocketManager struct {
	clientsMux  sync.RWMutex
	rooms       map[string]map[*Client]bool // roomCode -> client -> bool
	clientsByID map[string]*Client          // connID -> client
	handler     MessageHandler
}

// NewWebSocketManager 創建並初始化新的 WebSocket 管理器
func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		rooms:       make(map[string]map[*Client]bool),
		clientsByID: make(map[string]*Client),
	}
}

// SetHandler 註冊入站訊息處理器，必須在接受連線前完成
func (m *WebSocketManager) SetHandler(handler MessageHandler) {
	m.handler = handler
}

// HandleConnection 處理新的 WebSocket 連接，阻塞直到連線關閉
func (m *WebSocketManager) HandleConnection(conn *websocket.Conn, connID string) {
	client := &Client{
		ID:       connID,
		Conn:     conn,
		SendChan: make(chan *OutboundMessage, 256),
	}

	m.clientsMux.Lock()
	m.clientsByID[connID] = client
	m.clientsMux.Unlock()

	// 確保連接關閉時清理資源
	defer func() {
		m.removeClient(client)
		conn.Close()
		if m.handler != nil {
			m.handler.HandleDisconnect(client)
		}
	}()

	go m.writePump(client)
	m.readPump(client)
}

// JoinRoom 將連線加入房間的廣播群組
// 以主持人身分加入時同時訂閱主持人專屬的推播
func (m *WebSocketManager) JoinRoom(client *Client, roomCode string, presenter bool) {
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()

	// 先離開原本的房間
	if client.RoomCode != "" && client.RoomCode != roomCode {
		if clients, ok := m.rooms[client.RoomCode]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(m.rooms, client.RoomCode)
			}
		}
	}

	if m.rooms[roomCode] == nil {
		m.rooms[roomCode] = make(map[*Client]bool)
	}
	m.rooms[roomCode][client] = true
	client.RoomCode = roomCode
	client.IsPresenter = presenter
}

// readPump 持續監聽並處理從客戶端接收的消息
func (m *WebSocketManager) readPump(client *Client) {
	client.Conn.SetReadLimit(4096)
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket unexpected close error: %v", err)
			}
			break
		}

		var msg InboundMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("message parse error: %v", err)
			continue
		}

		if m.handler != nil {
			m.handler.HandleMessage(client, &msg)
		}
	}
}

// writePump 處理向客戶端發送消息的邏輯
func (m *WebSocketManager) writePump(client *Client) {
	// 設置心跳檢查計時器
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.SendChan:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// nil 是關閉哨兵：排在它之前的訊息都已送出，此時才關閉連線
			if message == nil {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				client.Conn.Close()
				return
			}

			messageBytes, err := json.Marshal(message)
			if err != nil {
				log.Printf("message encoding error: %v", err)
				continue
			}

			if err := client.Conn.WriteMessage(websocket.TextMessage, messageBytes); err != nil {
				return
			}

		case <-ticker.C:
			// 發送心跳包
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// BroadcastToRoom 向房間內的所有客戶端廣播消息
func (m *WebSocketManager) BroadcastToRoom(roomCode, event string, data interface{}) {
	m.clientsMux.RLock()
	clients := make([]*Client, 0, len(m.rooms[roomCode]))
	for client := range m.rooms[roomCode] {
		clients = append(clients, client)
	}
	m.clientsMux.RUnlock()

	msg := &OutboundMessage{Event: event, Data: data}
	for _, client := range clients {
		m.send(client, msg)
	}
}

// BroadcastToPresenter 只向房間內以主持人身分加入的連線廣播
func (m *WebSocketManager) BroadcastToPresenter(roomCode, event string, data interface{}) {
	m.clientsMux.RLock()
	clients := make([]*Client, 0, 1)
	for client := range m.rooms[roomCode] {
		if client.IsPresenter {
			clients = append(clients, client)
		}
	}
	m.clientsMux.RUnlock()

	msg := &OutboundMessage{Event: event, Data: data}
	for _, client := range clients {
		m.send(client, msg)
	}
}

// SendToClient 對單一連線發送點對點消息
func (m *WebSocketManager) SendToClient(client *Client, event string, data interface{}) {
	m.send(client, &OutboundMessage{Event: event, Data: data})
}

// SendToConnID 以連線識別碼發送點對點消息
func (m *WebSocketManager) SendToConnID(connID, event string, data interface{}) {
	m.clientsMux.RLock()
	client := m.clientsByID[connID]
	m.clientsMux.RUnlock()

	if client != nil {
		m.send(client, &OutboundMessage{Event: event, Data: data})
	}
}

// Disconnect 關閉指定的連線（用於踢出參與者）
// 關閉哨兵經由發送隊列排在已排入的訊息之後，最後的通知送達後才會關閉
func (m *WebSocketManager) Disconnect(connID string) {
	m.clientsMux.RLock()
	client := m.clientsByID[connID]
	m.clientsMux.RUnlock()

	if client == nil {
		return
	}
	select {
	case client.SendChan <- nil:
	default:
		// 隊列已滿表示客戶端早已停止消費，直接關閉
		client.Conn.Close()
	}
}

// RoomClientCount 回傳房間目前的連線數
func (m *WebSocketManager) RoomClientCount(roomCode string) int {
	m.clientsMux.RLock()
	defer m.clientsMux.RUnlock()
	return len(m.rooms[roomCode])
}

// send 將消息排入發送隊列；隊列已滿表示客戶端停止消費，直接斷線
func (m *WebSocketManager) send(client *Client, msg *OutboundMessage) {
	select {
	case client.SendChan <- msg:
	default:
		m.removeClient(client)
		client.Conn.Close()
	}
}

// removeClient 安全地移除客戶端連接
func (m *WebSocketManager) removeClient(client *Client) {
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()

	if _, ok := m.clientsByID[client.ID]; !ok {
		return
	}
	delete(m.clientsByID, client.ID)

	if clients, ok := m.rooms[client.RoomCode]; ok {
		delete(clients, client)
		// 如果房間空了，刪除房間的廣播群組
		if len(clients) == 0 {
			delete(m.rooms, client.RoomCode)
		}
	}
}
