package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"skillport-relay/internal/middleware"
	"skillport-relay/internal/relay"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册。
// 房间的加入/离开通过连接建立后的事件完成，握手本身不绑定房间。
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *relay.Hub
}

// NewWebSocketHandler 创建 WebSocketHandler 实例
func NewWebSocketHandler(hub *relay.Hub) *WebSocketHandler {
	if hub == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// 允许所有来源连接 (生产环境应配置具体的允许来源)
		CheckOrigin: func(r *http.Request) bool {
			// TODO: Implement proper origin checking for production
			return true
		},
	}

	return &WebSocketHandler{
		upgrader: upgrader,
		hub:      hub,
	}
}

// HandleConnection 处理 WebSocket 连接请求。
// 凭证校验由 Auth 中间件完成；没有通过校验的请求到不了这里，
// 因此未认证连接绝不会进入事件处理。
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	// 1. 获取认证身份 (由 Auth 中间件设置)
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		logrus.Warn("WS Handler: Identity not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return // 此时还未升级到 WebSocket，返回 HTTP 错误
	}
	logCtx := logrus.WithField("user_id", identity.UserID)

	// 2. 升级 HTTP 连接到 WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 方法会自动发送 HTTP 错误响应，这里只记录日志
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}
	logCtx.Info("WS Handler: Connection upgraded to WebSocket")

	// 3. 创建 Client 并向 Hub 注册
	client := relay.NewClient(h.hub, conn, identity)
	if !h.hub.Register(client) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}

	// 4. 启动客户端的读写 goroutine
	client.Run()
	logCtx.Info("WS Handler: Client read/write pumps started")
	// 后续的 WebSocket 通信由 ReadPump 和 WritePump 处理
}
