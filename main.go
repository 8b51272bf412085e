package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.25.0"

	"realtime-service/internal/config"
	"realtime-service/internal/db"
	"realtime-service/internal/handlers"
	"realtime-service/internal/identity"
	"realtime-service/internal/middleware"
	"realtime-service/internal/notifications"
	"realtime-service/internal/observability"
	"realtime-service/internal/pushtokens"
	"realtime-service/internal/rabbitmq"
	"realtime-service/internal/repositories"
	"realtime-service/internal/telemetry"
	"realtime-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	if cfg.OTLPEndpoint != "" {
		tp, err := initTracer(ctx, cfg.OTLPEndpoint, cfg.Environment)
		if err != nil {
			log.Fatalf("failed to init tracer: %v", err)
		}
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				log.Printf("tracer shutdown: %v", err)
			}
		}()
	}

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("redis unreachable, push tokens degraded: %v", err)
	}

	if cfg.AMQPURL != "" {
		eventPublisher, err := observability.NewEventPublisher(cfg.AMQPURL, cfg.EventExchange)
		if err != nil {
			log.Printf("event publisher disabled: %v", err)
		} else {
			observability.SetPublisher(eventPublisher)
			defer eventPublisher.Close()
		}
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.EventExchange)
	defer auditPublisher.Close()
	audit := telemetry.NewAuditEmitter(auditPublisher, cfg.AuditRouting, "realtime-service", cfg.Environment)

	pushPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.PushExchange)
	defer pushPublisher.Close()

	verifier := identity.NewJWTVerifier(cfg.JWTSecret)
	resolver := identity.NewResolver(verifier)

	notificationRepo := repositories.NewNotificationRepo(database)
	roomRepo := repositories.NewRoomRepo(database)
	userRepo := repositories.NewUserRepo(database)
	tokenStore := pushtokens.NewRedisStore(redisClient)

	hub := ws.NewHub()

	dispatcher := notifications.NewDispatcher(
		roomRepo,
		notificationRepo,
		hub,
		tokenStore,
		notifications.NewAMQPPushSender(pushPublisher, "push.deliveries"),
		cfg.DispatchQueueSize,
	)
	dispatcher.Start(ctx, cfg.DispatchWorkers)

	socketHandler := ws.NewSocketHandler(hub, resolver, userRepo, notificationRepo, dispatcher, audit)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo, dispatcher, dispatcher)
	deviceHandler := handlers.NewDeviceHandler(tokenStore)
	roomHandler := handlers.NewRoomHandler(roomRepo)
	presenceHandler := handlers.NewPresenceHandler(hub)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("realtime-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/ws", socketHandler.Handle)

	router.GET("/notifications", authMiddleware, notificationHandler.List)
	router.GET("/notifications/unread-count", authMiddleware, notificationHandler.UnreadCount)
	router.POST("/notifications", authMiddleware, notificationHandler.Create)
	router.POST("/notifications/:notification_id/read", authMiddleware, notificationHandler.MarkRead)
	router.POST("/notifications/read-all", authMiddleware, notificationHandler.MarkAllRead)
	router.DELETE("/notifications/:notification_id", authMiddleware, notificationHandler.Delete)

	router.POST("/rooms/:room_id/participants", authMiddleware, roomHandler.AddParticipant)
	router.GET("/rooms/:room_id/participants", authMiddleware, roomHandler.Participants)

	router.POST("/devices", authMiddleware, deviceHandler.Register)
	router.DELETE("/devices", authMiddleware, deviceHandler.Unregister)

	router.GET("/presence/online", authMiddleware, presenceHandler.Online)
	router.GET("/presence/rooms/:room_id", authMiddleware, presenceHandler.RoomPresence)
	router.GET("/presence/users/:user_id", authMiddleware, presenceHandler.UserOnline)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugEndpoints)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func initTracer(ctx context.Context, endpoint, environment string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("realtime-service"),
		attribute.String("environment", environment),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}
