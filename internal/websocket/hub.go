package websocket

import (
	"context"
	"sync"
)

// Hub 按用户管理 WebSocket 连接
type Hub struct {
	// userID -> 客户端集合
	clients map[string]map[*Client]struct{}

	// Register 注册新客户端
	Register chan *Client

	// Unregister 注销客户端
	Unregister chan *Client

	mu sync.RWMutex
}

// NewHub 创建新的 Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run 运行 Hub, ctx 取消后关闭全部连接
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.Register:
			h.mu.Lock()
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*Client]struct{})
			}
			h.clients[client.UserID][client] = struct{}{}
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
		}
	}
}

// removeLocked 移除客户端, 调用方需持有写锁
func (h *Hub) removeLocked(client *Client) {
	set, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.Send)
	if len(set) == 0 {
		delete(h.clients, client.UserID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for client := range set {
			close(client.Send)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
}

// BroadcastToUser 向特定用户的全部连接发送消息, 返回送达的连接数
// 发送队列已满的连接会被断开
func (h *Hub) BroadcastToUser(userID string, message []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for client := range h.clients[userID] {
		select {
		case client.Send <- message:
			delivered++
		default:
			h.removeLocked(client)
		}
	}
	return delivered
}

// HasUser 检查用户是否在线
func (h *Hub) HasUser(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// GetClientCount 获取客户端数量
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
