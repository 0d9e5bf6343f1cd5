package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/momoso/api/internal/ai"
	"github.com/momoso/api/internal/cache"
	"github.com/momoso/api/internal/config"
	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/internal/handler"
	"github.com/momoso/api/internal/jobs"
	"github.com/momoso/api/internal/middleware"
	"github.com/momoso/api/internal/relay"
	"github.com/momoso/api/internal/repository"
	"github.com/momoso/api/internal/service"
	"github.com/momoso/api/internal/transcribe"
	"github.com/momoso/api/migrations"
	"github.com/momoso/api/pkg/jwt"
)

func main() {
	// Initialize structured logging. The level drops to Debug once the
	// config says we are in development.
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: &logLevel,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.IsDevelopment() {
		logLevel.Set(slog.LevelDebug)
	}

	// Initialize database connection
	db := database.NewSurrealDB(database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Namespace:       cfg.Database.Namespace,
		Database:        cfg.Database.Database,
		ConnectAttempts: cfg.Database.ConnectAttempts,
		QueryTimeout:    cfg.Database.QueryTimeout,
	})

	ctx := context.Background()
	if err := db.Connect(ctx); err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := migrations.Apply(ctx, db); err != nil {
		slog.Error("failed to apply migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database),
	)

	// Initialize Redis
	store := cache.NewRedisStore(cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := store.Connect(ctx); err != nil {
		slog.Error("failed to connect to redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	// Initialize JWT service
	jwtService, err := jwt.NewService(jwt.Config{
		PrivateKeyPath: cfg.JWT.PrivateKeyPath,
		PublicKeyPath:  cfg.JWT.PublicKeyPath,
		Issuer:         cfg.JWT.Issuer,
		AccessTTL:      cfg.JWT.AccessTTL,
		RefreshTTL:     cfg.JWT.RefreshTTL,
	})
	if err != nil {
		slog.Error("failed to initialize JWT service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize AI provider
	aiProvider, err := ai.New(ctx, ai.Config{
		Provider: cfg.AI.Provider,
		Gemini: ai.GeminiConfig{
			APIKey:         cfg.AI.GeminiAPIKey,
			Model:          cfg.AI.GeminiModel,
			EmbeddingModel: cfg.AI.EmbeddingModel,
			BaseURL:        cfg.AI.GeminiBaseURL,
		},
		OpenAI: ai.OpenAIConfig{
			APIKey:         cfg.AI.OpenAIAPIKey,
			BaseURL:        cfg.AI.OpenAIBaseURL,
			Model:          cfg.AI.OpenAIModel,
			EmbeddingModel: cfg.AI.OpenAIEmbed,
			WhisperModel:   cfg.AI.WhisperModel,
		},
	})
	if err != nil {
		slog.Error("failed to initialize ai provider", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("ai provider ready", slog.String("provider", aiProvider.Name()))

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	identityRepo := repository.NewIdentityRepository(db)
	novelRepo := repository.NewNovelRepository(db)
	episodeRepo := repository.NewEpisodeRepository(db)
	discussionRepo := repository.NewDiscussionRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	transcriptRepo := repository.NewTranscriptRepository(db)
	passageRepo := repository.NewPassageRepository(db)

	// Initialize external providers
	providers := newProviders(cfg, logger)

	// Initialize services
	tokenService := service.NewTokenService(service.TokenServiceConfig{
		JWTService: jwtService,
		Store:      store,
	})

	verificationService := service.NewVerificationService(service.VerificationServiceConfig{
		SMS:    providers.sms,
		Mailer: providers.mailer,
		Store:  store,
	})

	authService := service.NewAuthService(service.AuthServiceConfig{
		UserRepo:     userRepo,
		TokenService: tokenService,
		Verification: verificationService,
	})

	oauthService := service.NewOAuthService(service.OAuthServiceConfig{
		Google:       providers.google,
		UserRepo:     userRepo,
		IdentityRepo: identityRepo,
		TokenService: tokenService,
		Store:        store,
	})

	novelService := service.NewNovelService(service.NovelServiceConfig{
		NovelRepo:   novelRepo,
		EpisodeRepo: episodeRepo,
		Generator:   aiProvider,
	})

	discussionService := service.NewDiscussionService(service.DiscussionServiceConfig{
		DiscussionRepo: discussionRepo,
		NoteRepo:       noteRepo,
		TranscriptRepo: transcriptRepo,
		NovelRepo:      novelRepo,
		Generator:      aiProvider,
		Logger:         logger,
	})

	assistantService := service.NewAssistantService(service.AssistantServiceConfig{
		NovelRepo:   novelRepo,
		EpisodeRepo: episodeRepo,
		PassageRepo: passageRepo,
		Embedder:    aiProvider,
		Generator:   aiProvider,
	})

	// Initialize relay hub and transcription pipeline
	hub := relay.NewHub(relay.Config{
		AllowedOrigins: cfg.Relay.AllowedOrigins,
		Logger:         logger.With("component", "relay"),
	})
	go hub.Run()

	pipelineCtx, stopPipeline := context.WithCancel(context.Background())
	defer stopPipeline()

	pipeline := transcribe.New(transcribe.Config{
		Recognizer: aiProvider,
		Sink:       discussionService,
		Workers:    cfg.Transcribe.Workers,
		QueueSize:  cfg.Transcribe.QueueSize,
		Language:   cfg.Transcribe.Language,
		Logger:     logger.With("component", "transcribe"),
	})
	pipeline.Start(pipelineCtx)

	// Initialize background jobs
	discussionCloser := jobs.NewDiscussionCloser(jobs.DiscussionCloserConfig{
		Discussions: discussionService,
		Interval:    cfg.Jobs.DiscussionCloseInterval,
		Logger:      logger,
	})
	discussionCloser.Start()

	cookies := middleware.Cookies{
		Domain:     cfg.Cookie.Domain,
		Secure:     cfg.Cookie.Secure,
		AccessTTL:  tokenService.AccessTTL(),
		RefreshTTL: tokenService.RefreshTTL(),
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(handler.AuthHandlerConfig{
		AuthService:         authService,
		VerificationService: verificationService,
		OAuthService:        oauthService,
		Cookies:             cookies,
		OAuthSuccessURL:     cfg.OAuth.Google.SuccessURL,
	})
	novelHandler := handler.NewNovelHandler(novelService, assistantService)
	discussionHandler := handler.NewDiscussionHandler(discussionService, assistantService)
	relayHandler := handler.NewRelayHandler(handler.RelayHandlerConfig{
		Hub:    hub,
		Chunks: transcribe.NewChunkStore(cfg.Transcribe.AudioDir),
		Queue:  pipeline,
		Logger: logger,
	})
	rtcHandler := handler.NewRTCHandler(cfg.Relay)
	healthHandler := handler.NewHealthHandler(map[string]handler.Pinger{
		"database": db,
		"redis":    store,
	})

	// Create router and register routes
	mux := http.NewServeMux()

	authMiddleware := middleware.Auth(tokenService, cookies)
	optionalAuth := middleware.OptionalAuth(tokenService, cookies)
	idempotent := middleware.Idempotency(middleware.IdempotencyConfig{Store: store})
	otpLimit := middleware.RateLimit(middleware.NewRateLimiter(middleware.RateLimitConfig{
		Store:  store,
		Scope:  "otp",
		Rate:   5,
		Window: 10 * time.Minute,
	}))

	// The global limiter runs before Auth and so counts per client IP.
	// These run after it and count per user.
	userLimit := middleware.RateLimit(middleware.NewRateLimiter(middleware.RateLimitConfig{
		Store:  store,
		Scope:  "user",
		Rate:   100,
		Window: time.Minute,
	}))
	generateLimit := middleware.RateLimit(middleware.NewRateLimiter(middleware.RateLimitConfig{
		Store:  store,
		Scope:  "generate",
		Rate:   20,
		Window: time.Minute,
	}))

	// protected requires a user; generate additionally caps model calls and
	// replays retried generation calls that carry an Idempotency-Key
	protected := func(h http.HandlerFunc) http.Handler { return authMiddleware(userLimit(h)) }
	generate := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(userLimit(generateLimit(idempotent(h))))
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", healthHandler.Health)

	// Verification endpoints (public)
	mux.Handle("POST /v1/auth/phone/send", otpLimit(http.HandlerFunc(authHandler.SendPhoneCode)))
	mux.HandleFunc("POST /v1/auth/phone/verify", authHandler.VerifyPhoneCode)
	mux.Handle("POST /v1/auth/email/send", otpLimit(http.HandlerFunc(authHandler.SendEmailCode)))
	mux.HandleFunc("POST /v1/auth/email/verify", authHandler.VerifyEmailCode)

	// Auth endpoints (public)
	mux.HandleFunc("POST /v1/auth/signup", authHandler.Signup)
	mux.HandleFunc("POST /v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /v1/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /v1/auth/find-email", authHandler.FindEmail)
	mux.HandleFunc("POST /v1/auth/reset-password", authHandler.ResetPassword)
	mux.HandleFunc("GET /v1/auth/nickname", authHandler.CheckNickname)

	// OAuth endpoints (public)
	mux.HandleFunc("GET /v1/auth/google", authHandler.GoogleStart)
	mux.HandleFunc("GET /v1/auth/google/callback", authHandler.GoogleCallback)

	// Auth endpoints (protected)
	mux.Handle("POST /v1/auth/logout", protected(authHandler.Logout))
	mux.Handle("GET /v1/auth/me", protected(authHandler.Me))

	// Novel endpoints
	mux.Handle("POST /v1/novels", protected(novelHandler.Create))
	mux.HandleFunc("GET /v1/novels/{novelId}", novelHandler.Get)
	mux.HandleFunc("GET /v1/novels/{novelId}/episodes", novelHandler.ListEpisodes)
	mux.Handle("POST /v1/novels/{novelId}/worldview", generate(novelHandler.Worldview))
	mux.Handle("POST /v1/novels/{novelId}/synopsis", generate(novelHandler.Synopsis))
	mux.Handle("POST /v1/novels/{novelId}/characters", generate(novelHandler.Characters))
	mux.Handle("POST /v1/novels/{novelId}/episodes", generate(novelHandler.WriteEpisode))
	mux.Handle("POST /v1/novels/{novelId}/index", protected(novelHandler.Index))

	// Discussion endpoints
	mux.Handle("POST /v1/discussions", protected(discussionHandler.Create))
	mux.HandleFunc("GET /v1/discussions", discussionHandler.List)
	mux.HandleFunc("GET /v1/discussions/{discussionId}", discussionHandler.Get)
	mux.Handle("POST /v1/discussions/{discussionId}/join", protected(discussionHandler.Join))
	mux.Handle("POST /v1/discussions/{discussionId}/leave", protected(discussionHandler.Leave))
	mux.HandleFunc("GET /v1/discussions/{discussionId}/notes", discussionHandler.Notes)
	mux.Handle("POST /v1/discussions/{discussionId}/notes", generate(discussionHandler.Summarize))
	mux.Handle("POST /v1/discussions/{discussionId}/assistant/topics", generate(discussionHandler.Topics))
	mux.Handle("POST /v1/discussions/{discussionId}/assistant/fact-check", generate(discussionHandler.FactCheck))

	// Relay endpoints
	mux.Handle("GET /v1/relay/ws/{room}", optionalAuth(http.HandlerFunc(relayHandler.Connect)))
	mux.HandleFunc("GET /v1/relay/status", relayHandler.Status)
	mux.Handle("POST /v1/relay/audio/{room}", optionalAuth(http.HandlerFunc(relayHandler.UploadAudio)))

	// WebRTC client configuration
	mux.HandleFunc("GET /v1/rtc/ice-servers", rtcHandler.ICEServers)

	// Apply global middleware
	wrapped := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Logger,
		middleware.Recovery,
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.RateLimit(middleware.NewRateLimiter(middleware.RateLimitConfig{Store: store})),
		middleware.Compress,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	discussionCloser.Stop()
	hub.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	// Uploads are finished; let queued chunks drain
	pipeline.Stop()

	slog.Info("server exited")
}
