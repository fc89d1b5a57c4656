package router

import (
	"context"

	"marketplace_chat_service/internal/chat/api/handlers"
	"marketplace_chat_service/internal/chat/app"
	"marketplace_chat_service/pkg/middlewares"
	"marketplace_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers everything the router mounts
type Handlers struct {
	Conversation *handlers.ConversationHandler
	Report       *handlers.ReportHandler
	Websocket    *app.ChatWebsocketHandler
	// Gatherer metrics source, nil serves the default registry
	Gatherer prometheus.Gatherer
}

// RegisterRoutes 注册聊天服務路由
// @title Marketplace Chat Service API
// @version 1.0
// @description Conversations, realtime presence and moderation reports
// @host localhost:8082
// @BasePath /
func RegisterRoutes(r *fiber.App, h Handlers) {
	r.Get("/swagger/*", swagger.HandlerDefault)
	r.Get("/", handlers.ConnectCheck)
	r.Post("/debug", handlers.DebugLogFlag)

	metrics := promhttp.Handler()
	if h.Gatherer != nil {
		metrics = promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})
	}
	r.Get("/metrics", adaptor.HTTPHandler(metrics))

	chat := r.Group("/chat", middlewares.JWTMiddleware())
	chat.Post("/create", h.Conversation.Create)
	chat.Post("/join", h.Conversation.Join)
	chat.Post("/leave", h.Conversation.Leave)
	chat.Get("/list", h.Conversation.List)
	chat.Get("/export", h.Conversation.Export)

	reports := r.Group("/reports", middlewares.JWTMiddleware())
	reports.Post("/submit", h.Report.Submit)

	admin := middlewares.RequireRole(token.RoleAdmin)
	reports.Get("/", admin, h.Report.List)
	reports.Get("/:id", admin, h.Report.Get)
	reports.Get("/:id/document", admin, h.Report.Document)

	r.Use("/ws", middlewares.JWTMiddleware(), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		h.Websocket.HandleConnection(context.Background(), c)
	}))
}
