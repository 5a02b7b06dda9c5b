// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"fitbridge-service/internal/config"
	"fitbridge-service/internal/db"
	handoffHandler "fitbridge-service/internal/handlers/handoff"
	nutritionHandler "fitbridge-service/internal/handlers/nutrition"
	wsHandler "fitbridge-service/internal/handlers/ws"
	"fitbridge-service/internal/middleware"
	"fitbridge-service/internal/pkg/jwt"
	"fitbridge-service/internal/pkg/session"
	"fitbridge-service/internal/repository/postgres"
	authUsecase "fitbridge-service/internal/service/auth"
	handoffUsecase "fitbridge-service/internal/service/handoff"
	nutritionUsecase "fitbridge-service/internal/service/nutrition"
	"fitbridge-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	http   *http.Server
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Println("[REDIS] ✅ Connected successfully")

	// ----- Logger -----
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	s.logger = logger

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Session Manager & Rate Limiter -----
	sessionManager := session.NewManager(redisClient)
	rateLimiter := session.NewRateLimiter(redisClient)

	// ----- Repositories -----
	authRepo := postgres.NewAuthRepository(pool)
	pendingRepo := postgres.NewPendingSessionRepository(pool)
	nutritionRepo := postgres.NewNutritionLogRepository(pool)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(logger)

	// ----- Services (Usecases) -----
	var verifier authUsecase.IdentityVerifier
	switch s.cfg.IdPVerifier {
	case "unverified":
		logger.Warn("using unverified-claims identity verifier; dev only")
		verifier = authUsecase.UnverifiedClaimsVerifier{}
	default:
		return fmt.Errorf("unknown IDP_VERIFIER %q", s.cfg.IdPVerifier)
	}

	authService := authUsecase.NewAuthService(
		authRepo,
		jwtManager,
		sessionManager,
		rateLimiter,
		verifier,
		logger,
	)

	handoffService := handoffUsecase.NewService(
		pendingRepo,
		authRepo,
		jwtManager.Generator,
		sessionManager,
		hub,
		handoffUsecase.Config{
			TTL:       s.cfg.PendingSessionTTL,
			Retention: s.cfg.PendingSessionRetention,
			TokenTTL:  s.cfg.JWT.TTL,
		},
		logger,
	)

	nutritionService := nutritionUsecase.NewNutritionService(nutritionRepo, logger)

	// Pending-session GC; runs until the process exits.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			handoffService.PurgeExpired(ctx)
		}
	}()

	// ----- Handlers -----
	handoffHandlerInst := handoffHandler.NewHandoffHandler(handoffService, authService, rateLimiter, s.cfg.DeepLinkScheme, logger)
	authHandlerInst := handoffHandler.NewAuthHandler(authService, logger)
	nutritionHandlerInst := nutritionHandler.NewNutritionHandler(nutritionService)
	wsHandlerInst := wsHandler.NewWebSocketHandler(hub, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(authService)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		HandoffHandler:   handoffHandlerInst,
		AuthHandler:      authHandlerInst,
		NutritionHandler: nutritionHandlerInst,
		WSHandler:        wsHandlerInst,
		AuthMiddleware:   authMiddleware,
		ServiceToken:     s.cfg.ServiceToken,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	s.http = &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}
	log.Printf("🚀 Server running on %s", s.cfg.HTTPAddr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener. A no-op when
// the server never started.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
