package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"sns-chat-service/internal/db"
	"sns-chat-service/internal/handlers"
	"sns-chat-service/internal/middleware"
	"sns-chat-service/internal/observability"
	"sns-chat-service/internal/presence"
	"sns-chat-service/internal/rabbitmq"
	"sns-chat-service/internal/repositories"
	"sns-chat-service/internal/telemetry"
	"sns-chat-service/internal/ws"
)

const serviceName = "sns-chat-service"

func main() {
	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	ctx := context.Background()
	shutdownTracing, err := observability.SetupTracing(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	amqpURL := getEnv("AMQP_URL", "")
	auditPublisher := rabbitmq.NewPublisher(amqpURL, getEnv("AMQP_EXCHANGE", "sns.events"))
	defer auditPublisher.Close()
	emitter := telemetry.NewAuditEmitter(auditPublisher, getEnv("AUDIT_ROUTING_KEY", "audit.chat"), serviceName, getEnv("ENVIRONMENT", "dev"))

	if amqpURL != "" {
		wsPublisher, err := observability.NewAMQPPublisher(amqpURL, getEnv("WS_EVENTS_EXCHANGE", "ws.events"))
		if err != nil {
			log.Printf("ws event publishing disabled: %v", err)
		} else {
			observability.SetPublisher(wsPublisher)
			defer wsPublisher.Close()
		}
	}

	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	presenceRepo := repositories.NewPresenceRepo(database)

	hub := ws.NewHub()
	tracker := presence.NewTracker(presenceRepo, hub)
	deliveryRouter := ws.NewRouter(hub, roomRepo)
	socket := ws.NewSocketHandler(hub, deliveryRouter, tracker, roomRepo, messageRepo)

	chatHandler := handlers.NewChatHandler(roomRepo, messageRepo, emitter)
	statusHandler := handlers.NewStatusHandler(presenceRepo)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.BearerAuth(getEnv("AUTH_JWT_SECRET", "")))

	router.GET("/user/status/:user_id", statusHandler.GetUserStatus)
	router.POST("/chat/start", chatHandler.StartChat)
	router.GET("/chat/rooms/:user_id", chatHandler.ListRooms)
	router.POST("/chat/rooms/:room_id/read", chatHandler.MarkRoomRead)
	router.GET("/chat/messages/:room_id", chatHandler.GetRoomMessages)
	router.GET("/chat/unread-room-count/:user_id", chatHandler.UnreadRoomCount)

	router.GET("/ws", socket.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, emitter, getEnv("DEBUG_ROUTES", "false") == "true")

	port := getEnv("PORT", "8083")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
