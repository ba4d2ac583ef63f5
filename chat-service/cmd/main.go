package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/cache"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/config"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
	chatgrpc "github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/grpc"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/handler"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/hub"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/identity"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/idgen"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/kafka"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/metrics"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/registry"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/repository"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/service"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/sweeper"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/database"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/jwt"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := log.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Init(log.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "chat-service"})
	logger := log.L()
	cfg.WatchLogLevel(func(level string) {
		log.SetLevel(level)
		logger.Info().Str("level", level).Msg("log level changed")
	})

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database ready")

	var manager *jwt.Manager
	if cfg.Auth.PrivateKeyPath != "" {
		key, err := jwt.LoadPrivateKeyFile(cfg.Auth.PrivateKeyPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load signing key")
		}
		manager = jwt.NewManagerWithKey(key, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, cfg.Auth.Issuer)
	} else {
		logger.Warn().Msg("no signing key configured, using an ephemeral key")
		manager, err = jwt.NewManager(cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, cfg.Auth.Issuer)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create token manager")
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reg *registry.LocalRegistry
	if cfg.Redis.Enabled {
		mirror, err := registry.NewRedisPresenceMirror(cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize presence mirror")
		}
		defer mirror.Close()
		mirror.StartHeartbeat(ctx)
		defer mirror.StopHeartbeat()
		reg = registry.NewLocalRegistry(mirror)
		logger.Info().Str("address", cfg.Redis.Address).Msg("presence mirrored to redis")
	} else {
		reg = registry.NewLocalRegistry(nil)
	}

	var msgCache cache.MessageCache
	if cfg.Cache.Enabled {
		rc, err := cache.NewRedisMessageCache(cfg.Redis, cfg.Cache.Prefix)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize message cache")
		}
		defer rc.Close()
		msgCache = rc
	}

	var publisher kafka.MessagePublisher
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewConfluentProducer(kafka.TopicOptions{
			Brokers:           cfg.Kafka.Brokers,
			Topic:             cfg.Kafka.Topic,
			Partitions:        cfg.Kafka.Partitions,
			ReplicationFactor: cfg.Kafka.ReplicationFactor,
			Retention:         cfg.Kafka.Retention,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize kafka producer")
		}
		defer producer.Close()
		publisher = producer
		logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing messages to kafka")
	}

	messageIDs, err := idgen.NewSnowflake(cfg.Snowflake.MachineID, cfg.Snowflake.Epoch)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create id generator")
	}
	recordIDs, err := idgen.NewRecordGenerator(idgen.RecordOptions{
		Strategy:       cfg.IDs.RecordStrategy,
		NanoIDSize:     cfg.IDs.NanoIDSize,
		NanoIDAlphabet: cfg.IDs.NanoIDAlphabet,
		CUID2Length:    cfg.IDs.CUID2Length,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create record id generator")
	}

	repo := repository.NewGormRepository(db)
	wsHub := hub.NewHub(m)
	auth := service.NewMembershipAuthority(repo)
	pipeline := service.NewMessagePipeline(repo, auth, wsHub, messageIDs, publisher, msgCache, m)
	invitations := service.NewInvitationService(repo, repo, auth, reg, recordIDs, msgCache, cfg.Invitation.DefaultTTL, cfg.Invitation.MaxTTL, m)
	typing := service.NewTypingBroadcaster(wsHub, cfg.Typing.TTL)
	queries := service.NewQueryService(repo, auth, recordIDs, msgCache, cfg.Cache.TTL)

	sessions := service.NewSessionService(reg, manager)

	chatSvc := service.NewChatService(wsHub, reg, auth, pipeline, invitations, typing)
	if err := chatSvc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start chat service")
	}
	defer chatSvc.Stop()

	sweep, err := sweeper.New(invitations, cfg.Invitation.SweepSchedule)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create invitation sweeper")
	}
	if err := sweep.AddJob("revocation-cleanup", "@every 10m", manager.CleanupExpiredRevocations); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule revocation cleanup")
	}
	sweep.Start()
	defer sweep.Stop()

	var grpcServer *chatgrpc.Server
	if cfg.GRPC.Enabled {
		grpcServer, err = chatgrpc.NewServer(fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port), logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to start grpc server")
		}
		grpcServer.Start()
		defer grpcServer.GracefulStop()
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(logger))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}
	handler.NewHandler(queries, pipeline, invitations, sessions, middleware.NewAuthMiddleware(manager)).RegisterRoutes(router)

	// The websocket route gets the net/http logger; everything else falls
	// through to gin, which logs on its own.
	root := mux.NewRouter()
	root.Use(mux.MiddlewareFunc(log.HTTPMiddleware(logger)))
	handler.NewWSHandler(wsHub, chatSvc, identity.NewJWTVerifier(manager), m, cfg.WebSocket).RegisterRoutes(root)
	root.NotFoundHandler = router

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     root,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("address", server.Addr).Msg("chat service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	if grpcServer != nil {
		grpcServer.SetServing(true)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down chat service")
	if grpcServer != nil {
		grpcServer.SetServing(false)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("chat service stopped")
}
