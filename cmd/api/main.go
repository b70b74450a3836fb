package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	"visaconnect/internal/adapter/api"
	"visaconnect/internal/adapter/api/handler"
	apimiddleware "visaconnect/internal/adapter/api/middleware"
	"visaconnect/internal/adapter/api/router"
	"visaconnect/internal/adapter/repository"
	"visaconnect/internal/adapter/repository/memory"
	domainrepo "visaconnect/internal/domain/repository"
	"visaconnect/internal/domain/service"
	"visaconnect/internal/infrastructure/firebase"
	"visaconnect/internal/infrastructure/lock"
	"visaconnect/internal/infrastructure/payment"
	"visaconnect/internal/infrastructure/ratelimit"
	"visaconnect/internal/infrastructure/storage"
	"visaconnect/internal/infrastructure/token"
	"visaconnect/internal/infrastructure/websocket"
	"visaconnect/internal/usecase"
	"visaconnect/pkg/config"
	"visaconnect/pkg/logger"
	"visaconnect/pkg/response"
)

// repositories groups the persistence ports so both store drivers can be
// wired the same way.
type repositories struct {
	ledger        domainrepo.Ledger
	users         domainrepo.UserRepository
	escrows       domainrepo.EscrowRepository
	cases         domainrepo.CaseRepository
	proposals     domainrepo.ProposalRepository
	visaRequests  domainrepo.VisaRequestRepository
	notifications domainrepo.NotificationRepository
	files         domainrepo.FileMetadataRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		OutputPath:  "stdout",
		Environment: cfg.Environment,
	}); err != nil {
		logger.Error("Failed to initialize logger: %v", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.HealthCheck{}
	jwtManager := token.NewJWTManager(cfg.JWTSecret, time.Duration(cfg.JWTExpiry)*time.Second)

	var (
		repos       repositories
		verifier    service.TokenVerifier
		emails      handler.EmailLookup
		fileStorage service.FileUploadService
	)

	switch cfg.StoreDriver {
	case "firestore":
		opt := credentials(cfg)

		firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
		if err != nil {
			logger.Error("Failed to initialize Firebase: %v", err)
			os.Exit(1)
		}

		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			logger.Error("Failed to initialize Firebase Auth: %v", err)
			os.Exit(1)
		}

		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opt)
		if err != nil {
			logger.Error("Failed to create Firestore client: %v", err)
			os.Exit(1)
		}
		defer firestoreClient.Close()

		repos = repositories{
			ledger:        repository.NewFirestoreLedger(firestoreClient),
			users:         repository.NewFirestoreUserRepository(firestoreClient),
			escrows:       repository.NewFirestoreEscrowRepository(firestoreClient),
			cases:         repository.NewFirestoreCaseRepository(firestoreClient),
			proposals:     repository.NewFirestoreProposalRepository(firestoreClient),
			visaRequests:  repository.NewFirestoreVisaRequestRepository(firestoreClient),
			notifications: repository.NewFirestoreNotificationRepository(firestoreClient),
			files:         repository.NewFirestoreFileMetadataRepository(firestoreClient),
		}
		checks["firestore"] = func(ctx context.Context) error {
			_, err := firestoreClient.Collection("users").Limit(1).Documents(ctx).GetAll()
			return err
		}

		firebaseAuthClient := firebase.NewFirebaseAuthClient(authClient)
		emails = firebaseAuthClient
		verifier = firebaseAuthClient
		if cfg.IsDevelopment() {
			verifier = token.ChainVerifier{firebaseAuthClient, jwtManager}
		}

		if cfg.StorageBucket != "" {
			storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, opt)
			if err != nil {
				logger.Error("Failed to initialize Cloud Storage: %v", err)
				os.Exit(1)
			}
			defer storageClient.Close()
			fileStorage = storageClient
		}

	case "memory":
		logger.Warn("Using the in-memory store; data is lost on restart")
		store := memory.NewStore()
		repos = repositories{
			ledger:        store.Ledger(),
			users:         store.Users(),
			escrows:       store.Escrows(),
			cases:         store.Cases(),
			proposals:     store.Proposals(),
			visaRequests:  store.VisaRequests(),
			notifications: store.Notifications(),
			files:         store.FileMetadata(),
		}
		verifier = jwtManager
	}

	var locker service.Locker = lock.NewLocalLocker()
	if cfg.RedisURL != "" {
		redisClient, err := lock.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, cfg.LockTTL)
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
		logger.Info("Using Redis locks")
	}

	var gateway service.PaymentGateway
	switch cfg.PaymentProvider {
	case "midtrans":
		gateway = payment.NewMidtransGateway(cfg.MidtransServerKey, cfg.MidtransEnvironment == "production")
	default:
		gateway = payment.NewSandboxGateway()
	}

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	dispatcher := usecase.NewNotificationDispatcher(repos.notifications, repos.users, wsManager, cfg.NotificationQueueSize)
	go dispatcher.Start(ctx)

	limiter := ratelimit.NewRateLimiter()
	limiter.StartCleanupRoutine(ctx.Done())

	escrowUseCase := usecase.NewEscrowUseCase(
		repos.ledger,
		repos.escrows,
		repos.proposals,
		repos.visaRequests,
		gateway,
		locker,
		dispatcher,
		usecase.FeeConfig{
			PlatformPercent: cfg.PlatformFeePercent,
			PaymentPercent:  cfg.PaymentFeePercent,
		},
	)
	caseUseCase := usecase.NewCaseUseCase(repos.ledger, repos.cases, repos.files, fileStorage, locker, dispatcher)
	proposalUseCase := usecase.NewProposalUseCase(repos.proposals, repos.visaRequests, locker, dispatcher)
	visaRequestUseCase := usecase.NewVisaRequestUseCase(repos.visaRequests)
	notificationUseCase := usecase.NewNotificationUseCase(repos.notifications)
	dashboardUseCase := usecase.NewDashboardUseCase(repos.cases, repos.escrows, repos.proposals, repos.visaRequests, repos.notifications)
	userUseCase := usecase.NewUserUseCase(repos.users)

	handler.Setup(escrowUseCase, caseUseCase, proposalUseCase, visaRequestUseCase, notificationUseCase, dashboardUseCase, userUseCase, emails)
	handler.SetupHealthHandler(checks)
	handler.SetupWebSocketHandler(wsManager, cfg.WSAllowedOrigins)
	handler.SetupDevTokenHandler(jwtManager, repos.users)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(apimiddleware.GeneralRateLimit(cfg.RateLimitPerMinute))

	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = response.HTTPErrorHandler

	authMiddleware := apimiddleware.NewAuthMiddleware(verifier, repos.users)
	router.Setup(e, authMiddleware, limiter, cfg.Environment)

	go func() {
		logger.Info("Starting server on port %s (%s, store=%s)", cfg.ServerPort, cfg.Environment, cfg.StoreDriver)
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			logger.Error("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
}

// credentials prefers the inline service account JSON used in deployments
// and falls back to the key file used locally.
func credentials(cfg *config.Config) option.ClientOption {
	if cfg.FirebaseServiceAccountJSON != "" {
		logger.Info("Using Firebase service account from environment variable")
		return option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON))
	}

	if _, err := os.Stat(cfg.FirebaseServiceAccountPath); os.IsNotExist(err) {
		logger.Error("Service account file does not exist: %s", cfg.FirebaseServiceAccountPath)
		os.Exit(1)
	}
	logger.Info("Using Firebase service account from file: %s", cfg.FirebaseServiceAccountPath)
	return option.WithCredentialsFile(cfg.FirebaseServiceAccountPath)
}
