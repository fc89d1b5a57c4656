package app

import (
	"context"
	"encoding/json"
	"time"

	"marketplace_chat_service/internal/chat/domain"
	"marketplace_chat_service/pkg/logger"
	"marketplace_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// ChatWebsocketHandler bridge a websocket connection to the SessionRouter
type ChatWebsocketHandler struct {
	router       *SessionRouter
	pingInterval time.Duration
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(router *SessionRouter, pingInterval time.Duration) *ChatWebsocketHandler {
	if pingInterval <= 0 {
		pingInterval = time.Minute
	}
	return &ChatWebsocketHandler{
		router:       router,
		pingInterval: pingInterval,
	}
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	memberID, _ := conn.Locals(middlewares.TokenMemberID).(string)
	session := h.router.NewSession(conn)
	logger.Log.Info("websocket open", zap.String("session", session.ID()), zap.String("member_id", memberID))

	ticker := time.NewTicker(h.pingInterval)
	ctxClose, cancel := context.WithCancel(ctx)

	defer func() {
		ticker.Stop()
		cancel()
		// 斷線等同 leave
		h.router.Disconnect(context.Background(), session)
		logger.Log.Info("websocket close", zap.String("session", session.ID()), zap.String("member_id", memberID))
		conn.Close()
	}()

	//server發出ping之後client連線正常會回pong
	conn.SetPongHandler(func(appData string) error {
		logger.Log.Debug("received pong", zap.String("session", session.ID()))
		return nil
	})

	// 定期發送 Ping; control frames share the session write lock
	go func() {
		for {
			select {
			case <-ticker.C:
				session.writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(10*time.Second))
				session.writeMu.Unlock()
				if err != nil {
					logger.Log.Warn("ping failed", zap.String("session", session.ID()), zap.Error(err))
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Info("connection closed", zap.String("session", session.ID()))
			} else {
				//直接斷線 1006
				logger.Log.Warn("websocket read error", zap.String("session", session.ID()), zap.Error(err))
			}
			return
		}

		if mt != websocket.TextMessage {
			h.router.Dispatch(ctxClose, session, []byte(`{"action":"unsupported frame"}`))
			continue
		}
		h.router.Dispatch(ctxClose, session, withTokenIdentity(message, memberID))
	}
}

// withTokenIdentity fill a missing user_id with the token's member id
func withTokenIdentity(raw []byte, memberID string) []byte {
	if memberID == "" {
		return raw
	}
	var req domain.WSRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.UserID != "" {
		return raw
	}
	req.UserID = memberID
	b, err := json.Marshal(req)
	if err != nil {
		return raw
	}
	return b
}
