package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/aymanebs/emr-api/config"
	"github.com/aymanebs/emr-api/internal/email"
	"github.com/aymanebs/emr-api/internal/filestore"
	"github.com/aymanebs/emr-api/internal/handler"
	authHandler "github.com/aymanebs/emr-api/internal/handler/auth"
	consultationHandler "github.com/aymanebs/emr-api/internal/handler/consultation"
	deliverableHandler "github.com/aymanebs/emr-api/internal/handler/deliverable"
	patientHandler "github.com/aymanebs/emr-api/internal/handler/patient"
	sessionHandler "github.com/aymanebs/emr-api/internal/handler/session"
	"github.com/aymanebs/emr-api/internal/middleware"
	"github.com/aymanebs/emr-api/internal/repository/postgres"
	"github.com/aymanebs/emr-api/internal/router"
	authService "github.com/aymanebs/emr-api/internal/service/auth"
	consultationService "github.com/aymanebs/emr-api/internal/service/consultation"
	fulfillmentService "github.com/aymanebs/emr-api/internal/service/fulfillment"
	patientService "github.com/aymanebs/emr-api/internal/service/patient"
	"github.com/aymanebs/emr-api/internal/session"
	"github.com/aymanebs/emr-api/pkg/auth"
	"github.com/aymanebs/emr-api/pkg/logger"
	"github.com/aymanebs/emr-api/pkg/metrics"
	"github.com/aymanebs/emr-api/pkg/security"
	"github.com/aymanebs/emr-api/pkg/validator"
)

func main() {
	appLog := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		appLog.Fatal(err, "failed to load configuration")
	}

	validator.Register()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLog.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	sessionStore, err := session.NewRedisStore(cfg.Redis.URL, cfg.Redis.SessionTTL)
	if err != nil {
		appLog.Fatal(err, "failed to connect to Redis")
	}

	files, err := filestore.NewDiskStore(cfg.Uploads.Root, cfg.Uploads.PublicURL)
	if err != nil {
		appLog.Fatal(err, "failed to initialize upload root")
	}

	// Repositories
	patientRepo := postgres.NewPatientRepository(db)
	consultationRepo := postgres.NewConsultationRepository(db)
	deliverableRepo := postgres.NewDeliverableRepository(db)
	userRepo := postgres.NewUserRepository(db)

	// Services
	m := metrics.NewMetrics("emr", "api")
	jwtExpiry := time.Duration(cfg.JWT.ExpiryHours) * time.Hour
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, jwtExpiry)
	hasher := security.NewBcryptHasher(12)

	notifier := email.NewNoopService()
	if cfg.SMTP.Enabled {
		notifier = email.NewSMTPService(cfg.SMTP)
	}

	authSvc := authService.NewService(userRepo, jwtSvc, hasher, jwtExpiry)
	patientSvc := patientService.NewService(patientRepo)
	consultationSvc := consultationService.NewService(consultationRepo, patientRepo)
	fulfillmentSvc := fulfillmentService.NewService(
		consultationRepo, deliverableRepo, patientRepo, userRepo,
		files, sessionStore, notifier, m,
	)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(authSvc)

	// Handlers
	h := handler.NewHandler(db)
	authH := authHandler.NewHandler(authSvc)
	patientH := patientHandler.NewHandler(patientSvc)
	consultationH := consultationHandler.NewHandler(consultationSvc)
	sessionH := sessionHandler.NewHandler(patientSvc, sessionStore, m)
	deliverableH := deliverableHandler.NewHandler(fulfillmentSvc, files)

	r := router.NewRouter(
		authMiddleware,
		authH,
		patientH,
		consultationH,
		sessionH,
		deliverableH,
		h,
		router.Config{
			RateLimit:     rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:     cfg.RateLimit.Burst,
			CORSConfig:    middleware.DefaultCORSConfig(),
			MetricsPrefix: "emr_api",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLog.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Fatal(err, "server forced to shutdown")
	}

	appLog.Info("server exited properly")
}
